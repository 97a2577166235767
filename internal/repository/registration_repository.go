package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/tournament-registration/internal/model"
)

// RegistrationRepo persists registrations.  Rows are never deleted;
// cancellation clears is_active and active_user_id so the unique key on
// (tournament_id, active_user_id) only ever covers active rows.  All
// timestamps are stored in UTC.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a new RegistrationRepo bound to the given database.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

const registrationColumns = `id, tournament_id, user_id, registration_status, payment_status, amount_paid_cents,
	profile, has_detailed_profile, cancel_reason, registered_at, paid_at, cancelled_at, is_active, created_at, updated_at`

// ActiveExistsTx reports whether the user already holds an active
// registration for the tournament.
func (r *RegistrationRepo) ActiveExistsTx(ctx context.Context, tx *sql.Tx, tournamentID, userID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE tournament_id = ? AND user_id = ? AND is_active = 1 LIMIT 1`,
		tournamentID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CreateTx inserts a new active registration within the scope of an
// existing transaction and populates the generated ID.  A violation of
// the active-registration unique key is reported as ErrDuplicateKey.
// The caller must commit or rollback the transaction.
func (r *RegistrationRepo) CreateTx(ctx context.Context, tx *sql.Tx, reg *model.Registration) error {
	profile, err := encodeProfile(reg.Profile)
	if err != nil {
		return err
	}
	const q = `INSERT INTO registrations (tournament_id, user_id, active_user_id, registration_status, payment_status,
		amount_paid_cents, profile, has_detailed_profile, registered_at, paid_at, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
	var paidAt any
	if reg.PaidAt != nil {
		paidAt = reg.PaidAt.UTC()
	}
	res, err := tx.ExecContext(ctx, q,
		reg.TournamentID, reg.UserID, reg.UserID, string(reg.Status), string(reg.PaymentStatus),
		reg.AmountPaidCents, profile, reg.HasDetailedProfile, reg.RegisteredAt.UTC(), paidAt,
		reg.CreatedAt.UTC(), reg.UpdatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	reg.ID = uint64(id)
	reg.IsActive = true
	return nil
}

// GetByID returns a registration regardless of its active flag.
func (r *RegistrationRepo) GetByID(ctx context.Context, id uint64) (*model.Registration, error) {
	return getRegistration(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *RegistrationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Registration, error) {
	return getRegistration(ctx, tx, id)
}

// ListByUser returns every registration of a user, newest first.
func (r *RegistrationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE user_id = ? ORDER BY registered_at DESC, id DESC`, userID)
}

// ListByTournament returns every registration of a tournament in
// registration order.
func (r *RegistrationRepo) ListByTournament(ctx context.Context, tournamentID uint64) ([]model.Registration, error) {
	return r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE tournament_id = ? ORDER BY registered_at ASC, id ASC`, tournamentID)
}

// CountByTournamentTx counts all rows for a tournament, cancelled ones
// included.
func (r *RegistrationRepo) CountByTournamentTx(ctx context.Context, tx *sql.Tx, tournamentID uint64) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE tournament_id = ?`, tournamentID).Scan(&n)
	return n, err
}

// MarkPaid records a completed payment.  It only matches an active row
// whose payment is not yet completed or refunded and whose status is
// pending or confirmed; pending rows become confirmed.  ErrConflict is
// returned when nothing matched.
func (r *RegistrationRepo) MarkPaid(ctx context.Context, id uint64, amountCents int64, now time.Time) error {
	const q = `UPDATE registrations
		SET payment_status = 'completed', registration_status = 'confirmed', amount_paid_cents = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND payment_status IN ('pending', 'failed')
		AND registration_status IN ('pending', 'confirmed')`
	now = now.UTC()
	res, err := r.db.ExecContext(ctx, q, amountCents, now, now, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrConflict)
}

// MarkPaymentFailed flags a pending payment as failed.  The registration
// keeps its slot.
func (r *RegistrationRepo) MarkPaymentFailed(ctx context.Context, id uint64, now time.Time) error {
	const q = `UPDATE registrations SET payment_status = 'failed', updated_at = ?
		WHERE id = ? AND is_active = 1 AND payment_status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, now.UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrConflict)
}

// CancelTx deactivates a pending or confirmed registration and releases
// its unique key.  ErrConflict is returned when the row is not in a
// cancellable state.
func (r *RegistrationRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64, reason *string, now time.Time) error {
	const q = `UPDATE registrations
		SET registration_status = 'cancelled', is_active = 0, active_user_id = NULL, cancel_reason = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND registration_status IN ('pending', 'confirmed')`
	now = now.UTC()
	res, err := tx.ExecContext(ctx, q, nullString(reason), now, now, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrConflict)
}

// CompleteConfirmedTx marks every active confirmed registration of the
// tournament as completed and returns how many rows changed.
func (r *RegistrationRepo) CompleteConfirmedTx(ctx context.Context, tx *sql.Tx, tournamentID uint64, now time.Time) (int64, error) {
	const q = `UPDATE registrations SET registration_status = 'completed', updated_at = ?
		WHERE tournament_id = ? AND is_active = 1 AND registration_status = 'confirmed'`
	res, err := tx.ExecContext(ctx, q, now.UTC(), tournamentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RegistrationRepo) list(ctx context.Context, q string, args ...any) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

func getRegistration(ctx context.Context, q querier, id uint64) (*model.Registration, error) {
	row := q.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, id)
	return scanRegistration(row)
}

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var (
		reg          model.Registration
		status       string
		payment      string
		profile      sql.NullString
		cancelReason sql.NullString
		paidAt       sql.NullTime
		cancelledAt  sql.NullTime
	)
	err := row.Scan(&reg.ID, &reg.TournamentID, &reg.UserID, &status, &payment, &reg.AmountPaidCents,
		&profile, &reg.HasDetailedProfile, &cancelReason, &reg.RegisteredAt, &paidAt, &cancelledAt,
		&reg.IsActive, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	reg.Status = model.RegistrationStatus(status)
	reg.PaymentStatus = model.PaymentStatus(payment)
	if profile.Valid && profile.String != "" {
		var p model.Profile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return nil, err
		}
		reg.Profile = &p
	}
	if cancelReason.Valid {
		s := cancelReason.String
		reg.CancelReason = &s
	}
	reg.PaidAt = timePtr(paidAt)
	reg.CancelledAt = timePtr(cancelledAt)
	reg.RegisteredAt = reg.RegisteredAt.UTC()
	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.UpdatedAt = reg.UpdatedAt.UTC()
	return &reg, nil
}

func encodeProfile(p *model.Profile) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
