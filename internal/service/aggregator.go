package service

import (
	"context"
	"errors"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/repository"
)

// Aggregator derives participant counts and revenue from registration
// rows at call time.  It holds no state of its own.
type Aggregator struct {
	stats *repository.StatsRepo
}

func NewAggregator(stats *repository.StatsRepo) *Aggregator {
	return &Aggregator{stats: stats}
}

// ParticipantCount is the number of active registrations in pending,
// confirmed or completed status.
func (a *Aggregator) ParticipantCount(ctx context.Context, tournamentID uint64) (int64, error) {
	return a.stats.ParticipantCount(ctx, tournamentID)
}

// TotalRevenue is the sum of amounts paid over active registrations whose
// payment completed.
func (a *Aggregator) TotalRevenue(ctx context.Context, tournamentID uint64) (int64, error) {
	return a.stats.TotalRevenue(ctx, tournamentID)
}

// Summary returns count, revenue and the status breakdown together.
func (a *Aggregator) Summary(ctx context.Context, tournamentID uint64) (model.TournamentSummary, error) {
	if _, err := a.stored(ctx, tournamentID); err != nil {
		return model.TournamentSummary{}, err
	}
	return a.stats.Summary(ctx, tournamentID)
}

// Consistency compares the stored participants counter with the live count.
type Consistency struct {
	TournamentID uint64 `json:"tournament_id"`
	StoredCount  int64  `json:"stored_count"`
	LiveCount    int64  `json:"live_count"`
	Consistent   bool   `json:"consistent"`
}

// Verify reports whether the denormalized counter agrees with the ledger.
func (a *Aggregator) Verify(ctx context.Context, tournamentID uint64) (Consistency, error) {
	stored, err := a.stored(ctx, tournamentID)
	if err != nil {
		return Consistency{}, err
	}
	live, err := a.stats.ParticipantCount(ctx, tournamentID)
	if err != nil {
		return Consistency{}, err
	}
	return Consistency{
		TournamentID: tournamentID,
		StoredCount:  stored,
		LiveCount:    live,
		Consistent:   stored == live,
	}, nil
}

func (a *Aggregator) stored(ctx context.Context, tournamentID uint64) (int64, error) {
	n, err := a.stats.StoredParticipants(ctx, tournamentID)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return 0, notFound("tournament")
	}
	return n, err
}
