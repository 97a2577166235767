package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/repository"
)

// DefaultStaleness is how long a stored global snapshot is served before
// it is recomputed.
const DefaultStaleness = 5 * time.Minute

// Reporter computes dashboard rollups.  Global stats are cached in the
// admin_stats snapshot row; organizer stats are always computed live.
type Reporter struct {
	stats     *repository.StatsRepo
	staleness time.Duration

	Now func() time.Time
}

// NewReporter returns a Reporter.  A non-positive staleness selects
// DefaultStaleness.
func NewReporter(stats *repository.StatsRepo, staleness time.Duration) *Reporter {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Reporter{stats: stats, staleness: staleness, Now: time.Now}
}

// ComputeGlobalStats recomputes the rollup over all active tournaments.
// This-month revenue is attributed by the tournament's creation date.
func (r *Reporter) ComputeGlobalStats(ctx context.Context) (model.Stats, error) {
	return r.compute(ctx, 0)
}

// ComputeOrganizerStats is ComputeGlobalStats scoped to one organizer's
// active tournaments.  TotalUsers stays zero.
func (r *Reporter) ComputeOrganizerStats(ctx context.Context, organizerID uint64) (model.Stats, error) {
	if organizerID == 0 {
		return model.Stats{}, invalid("organizer id required", "organizerId")
	}
	return r.compute(ctx, organizerID)
}

// GlobalStats serves the stored snapshot while it is younger than the
// staleness window and otherwise recomputes and overwrites it.  Racing
// recomputes both write; the last writer wins.
func (r *Reporter) GlobalStats(ctx context.Context) (model.Stats, error) {
	now := r.Now().UTC()
	snap, ok, err := r.stats.GetSnapshot(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	if ok && now.Sub(snap.LastUpdated) < r.staleness {
		return snap, nil
	}
	return r.RefreshGlobalStats(ctx)
}

// RefreshGlobalStats recomputes the global rollup and stores it as the
// new snapshot regardless of its age.
func (r *Reporter) RefreshGlobalStats(ctx context.Context) (model.Stats, error) {
	fresh, err := r.compute(ctx, 0)
	if err != nil {
		return model.Stats{}, err
	}
	if err := r.stats.SaveSnapshot(ctx, fresh); err != nil {
		return model.Stats{}, err
	}
	slog.DebugContext(ctx, "admin stats recomputed", "tournaments", fresh.TotalTournaments, "revenue_cents", fresh.TotalRevenueCents)
	return fresh, nil
}

func (r *Reporter) compute(ctx context.Context, organizerID uint64) (model.Stats, error) {
	now := r.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	s, err := r.stats.Aggregate(ctx, organizerID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return model.Stats{}, err
	}
	s.AverageParticipants = averageOf(s.TotalParticipants, s.TotalTournaments)
	s.LastUpdated = now
	return s, nil
}

// averageOf rounds total/count to the nearest integer; zero when count is zero.
func averageOf(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return int64(math.Round(float64(total) / float64(count)))
}
