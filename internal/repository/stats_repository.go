package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/tournament-registration/internal/model"
)

// StatsRepo runs the aggregation queries behind the Aggregator and the
// Reporter and stores the single admin_stats snapshot row (id = 1).
type StatsRepo struct {
	db *sql.DB
}

// NewStatsRepo constructs a StatsRepo.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// ParticipantCount counts active registrations holding a slot.
func (r *StatsRepo) ParticipantCount(ctx context.Context, tournamentID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations
		 WHERE tournament_id = ? AND is_active = 1 AND registration_status IN ('pending', 'confirmed', 'completed')`,
		tournamentID).Scan(&n)
	return n, err
}

// TotalRevenue sums the amounts of active registrations with a completed payment.
func (r *StatsRepo) TotalRevenue(ctx context.Context, tournamentID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_paid_cents), 0) FROM registrations
		 WHERE tournament_id = ? AND is_active = 1 AND payment_status = 'completed'`,
		tournamentID).Scan(&n)
	return n, err
}

// Summary computes participant count, revenue and the per-status
// breakdown of one tournament in a single pass.
func (r *StatsRepo) Summary(ctx context.Context, tournamentID uint64) (model.TournamentSummary, error) {
	const q = `SELECT
		COALESCE(SUM(CASE WHEN is_active = 1 AND registration_status IN ('pending', 'confirmed', 'completed') THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND payment_status = 'completed' THEN amount_paid_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND registration_status = 'pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND registration_status = 'confirmed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND registration_status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN registration_status = 'cancelled' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN is_active = 1 AND payment_status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM registrations WHERE tournament_id = ?`
	s := model.TournamentSummary{TournamentID: tournamentID}
	err := r.db.QueryRowContext(ctx, q, tournamentID).Scan(
		&s.ParticipantCount, &s.TotalRevenueCents, &s.Pending, &s.Confirmed, &s.Completed, &s.Cancelled, &s.PaidCount)
	return s, err
}

// ParticipantCounts returns live participant counts keyed by tournament
// ID.  Tournaments without registrations are absent from the map.
func (r *StatsRepo) ParticipantCounts(ctx context.Context, ids []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := fmt.Sprintf(`SELECT tournament_id, COUNT(*) FROM registrations
		WHERE is_active = 1 AND registration_status IN ('pending', 'confirmed', 'completed') AND tournament_id IN (%s)
		GROUP BY tournament_id`, strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","))
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// StoredParticipants reads the denormalized counter, including
// soft-deleted tournaments.
func (r *StatsRepo) StoredParticipants(ctx context.Context, tournamentID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT participants FROM tournaments WHERE id = ?`, tournamentID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, ErrTournamentNotFound
	}
	return n, err
}

// Aggregate computes totals over active tournaments, optionally scoped to
// one organizer (organizerID 0 means all).  Monthly revenue covers
// tournaments created in [monthStart, monthEnd).  TotalUsers is only
// filled for the unscoped query.  AverageParticipants and LastUpdated are
// left to the caller.
func (r *StatsRepo) Aggregate(ctx context.Context, organizerID uint64, monthStart, monthEnd time.Time) (model.Stats, error) {
	var s model.Stats
	scope, args := "", []any{}
	if organizerID != 0 {
		scope = " AND t.organizer_id = ?"
		args = append(args, organizerID)
	}

	tq := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN t.status = 'upcoming' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'ongoing' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM tournaments t WHERE t.is_active = 1` + scope
	if err := r.db.QueryRowContext(ctx, tq, args...).Scan(
		&s.TotalTournaments, &s.UpcomingTournaments, &s.OngoingTournaments, &s.CompletedTournaments); err != nil {
		return s, err
	}

	rq := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN r.registration_status IN ('pending', 'confirmed', 'completed') THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN r.payment_status = 'completed' THEN r.amount_paid_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN r.payment_status = 'completed' AND t.created_at >= ? AND t.created_at < ? THEN r.amount_paid_cents ELSE 0 END), 0)
		FROM registrations r JOIN tournaments t ON t.id = r.tournament_id
		WHERE r.is_active = 1 AND t.is_active = 1` + scope
	rargs := append([]any{monthStart.UTC(), monthEnd.UTC()}, args...)
	if err := r.db.QueryRowContext(ctx, rq, rargs...).Scan(
		&s.TotalRegistrations, &s.TotalParticipants, &s.TotalRevenueCents, &s.MonthlyRevenueCents); err != nil {
		return s, err
	}

	if organizerID == 0 {
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&s.TotalUsers); err != nil {
			return s, err
		}
	}
	return s, nil
}

// GetSnapshot returns the stored snapshot.  ok is false while the row has
// never been written.
func (r *StatsRepo) GetSnapshot(ctx context.Context) (s model.Stats, ok bool, err error) {
	const q = `SELECT total_tournaments, total_users, total_registrations, total_participants, total_revenue_cents,
		monthly_revenue_cents, average_participants, upcoming_tournaments, ongoing_tournaments, completed_tournaments,
		last_updated FROM admin_stats WHERE id = 1`
	var last sql.NullTime
	err = r.db.QueryRowContext(ctx, q).Scan(&s.TotalTournaments, &s.TotalUsers, &s.TotalRegistrations,
		&s.TotalParticipants, &s.TotalRevenueCents, &s.MonthlyRevenueCents, &s.AverageParticipants,
		&s.UpcomingTournaments, &s.OngoingTournaments, &s.CompletedTournaments, &last)
	if err == sql.ErrNoRows {
		return s, false, nil
	}
	if err != nil || !last.Valid {
		return s, false, err
	}
	s.LastUpdated = last.Time.UTC()
	return s, true, nil
}

// SaveSnapshot overwrites the snapshot row.  Concurrent writers simply
// replace each other.
func (r *StatsRepo) SaveSnapshot(ctx context.Context, s model.Stats) error {
	const q = `UPDATE admin_stats SET total_tournaments = ?, total_users = ?, total_registrations = ?,
		total_participants = ?, total_revenue_cents = ?, monthly_revenue_cents = ?, average_participants = ?,
		upcoming_tournaments = ?, ongoing_tournaments = ?, completed_tournaments = ?, last_updated = ?
		WHERE id = 1`
	_, err := r.db.ExecContext(ctx, q, s.TotalTournaments, s.TotalUsers, s.TotalRegistrations,
		s.TotalParticipants, s.TotalRevenueCents, s.MonthlyRevenueCents, s.AverageParticipants,
		s.UpcomingTournaments, s.OngoingTournaments, s.CompletedTournaments, s.LastUpdated.UTC())
	return err
}
