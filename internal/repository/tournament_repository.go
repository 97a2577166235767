package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/tournament-registration/internal/model"
)

// TournamentRepo manages persistence for tournaments.  The participants
// column is only written by IncrementParticipantsTx and
// DecrementParticipantsTx, which callers run inside the same transaction
// that inserts or cancels the registration.
type TournamentRepo struct {
	db *sql.DB
	// lockClause turns a select into a current, locking read.  SQLite
	// serializes writers and has no FOR UPDATE, so it stays empty there.
	lockClause string
}

// NewTournamentRepo constructs a TournamentRepo with the given DB handle.
func NewTournamentRepo(db *sql.DB) *TournamentRepo {
	r := &TournamentRepo{db: db}
	if _, ok := db.Driver().(*mysql.MySQLDriver); ok {
		r.lockClause = " FOR UPDATE"
	}
	return r
}

const tournamentColumns = `id, organizer_id, name, slug, description, sport_type, status, location,
	start_date, end_date, max_participants, entry_fee_cents, participants, is_active, created_at, updated_at`

// TournamentFilter narrows List.  Zero values mean "any".
type TournamentFilter struct {
	SportType   model.SportType
	Status      model.TournamentStatus
	OrganizerID uint64
	Search      string
	Page        int
	PageSize    int
}

// Create inserts a new tournament and assigns the generated ID.  Status
// defaults to upcoming and participants to zero regardless of the values
// on t.
func (r *TournamentRepo) Create(ctx context.Context, t *model.Tournament) error {
	const q = `INSERT INTO tournaments (organizer_id, name, slug, description, sport_type, status, location,
		start_date, end_date, max_participants, entry_fee_cents, participants, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`
	t.Status = model.TournamentUpcoming
	t.Participants = 0
	t.IsActive = true
	res, err := r.db.ExecContext(ctx, q,
		t.OrganizerID, t.Name, t.Slug, t.Description, string(t.SportType), string(t.Status), t.Location,
		t.StartDate.UTC(), endDateArg(t.EndDate), t.MaxParticipants, t.EntryFeeCents,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID returns an active tournament.  Soft-deleted tournaments are
// reported as ErrTournamentNotFound.
func (r *TournamentRepo) GetByID(ctx context.Context, id uint64) (*model.Tournament, error) {
	return getTournament(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *TournamentRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Tournament, error) {
	return getTournament(ctx, tx, id)
}

// GetForUpdateTx is GetByIDTx as a locking read.  Under MySQL's
// REPEATABLE READ a plain select inside the transaction returns the
// snapshot taken by its first read; the locking read sees rows committed
// since, such as a slot taken by a concurrent registration.
func (r *TournamentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Tournament, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ? AND is_active = 1`+r.lockClause, id)
	return scanTournament(row)
}

// OrganizerIDTx returns the organizer of a tournament including
// soft-deleted ones, for ownership checks on historical registrations.
func (r *TournamentRepo) OrganizerIDTx(ctx context.Context, tx *sql.Tx, id uint64) (uint64, error) {
	return organizerID(ctx, tx, id)
}

// OrganizerID is OrganizerIDTx outside a transaction.
func (r *TournamentRepo) OrganizerID(ctx context.Context, id uint64) (uint64, error) {
	return organizerID(ctx, r.db, id)
}

func organizerID(ctx context.Context, q querier, id uint64) (uint64, error) {
	var owner uint64
	err := q.QueryRowContext(ctx, `SELECT organizer_id FROM tournaments WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTournamentNotFound
	}
	return owner, err
}

// GetBySlug returns the oldest active tournament with the slug.
func (r *TournamentRepo) GetBySlug(ctx context.Context, slug string) (*model.Tournament, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tournamentColumns+` FROM tournaments WHERE slug = ? AND is_active = 1 ORDER BY id LIMIT 1`, slug)
	return scanTournament(row)
}

// SlugExists reports whether any tournament, active or not, uses slug.
func (r *TournamentRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM tournaments WHERE slug = ? LIMIT 1`, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// List returns one page of active tournaments ordered by start date and
// the total number of matches.
func (r *TournamentRepo) List(ctx context.Context, f TournamentFilter) ([]model.Tournament, int64, error) {
	where := []string{"is_active = 1"}
	args := []any{}
	if f.SportType != "" {
		where = append(where, "sport_type = ?")
		args = append(args, string(f.SportType))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.OrganizerID != 0 {
		where = append(where, "organizer_id = ?")
		args = append(args, f.OrganizerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(location) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournaments WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	q := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE ` + cond +
		` ORDER BY start_date ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Tournament{}
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// IncrementParticipantsTx takes one capacity slot.  The update only
// matches an active upcoming tournament with a free slot, so it reports
// false without error when the slot could not be taken; the caller
// re-reads the tournament to find out why.
func (r *TournamentRepo) IncrementParticipantsTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) (bool, error) {
	const q = `UPDATE tournaments SET participants = participants + 1, updated_at = ?
		WHERE id = ? AND is_active = 1 AND status = 'upcoming' AND participants < max_participants`
	res, err := tx.ExecContext(ctx, q, now.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DecrementParticipantsTx frees one capacity slot.  The counter never
// goes below zero.
func (r *TournamentRepo) DecrementParticipantsTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	const q = `UPDATE tournaments SET participants = participants - 1, updated_at = ?
		WHERE id = ? AND participants > 0`
	_, err := tx.ExecContext(ctx, q, now.UTC(), id)
	return err
}

// Update writes the editable fields of t.  The row must be active, not
// completed or cancelled, and must not hold more participants than the
// new max_participants; otherwise ErrConflict is returned.
func (r *TournamentRepo) Update(ctx context.Context, t *model.Tournament, now time.Time) error {
	const q = `UPDATE tournaments SET name = ?, slug = ?, description = ?, sport_type = ?, location = ?,
		start_date = ?, end_date = ?, max_participants = ?, entry_fee_cents = ?, updated_at = ?
		WHERE id = ? AND is_active = 1 AND status IN ('upcoming', 'ongoing') AND participants <= ?`
	res, err := r.db.ExecContext(ctx, q,
		t.Name, t.Slug, t.Description, string(t.SportType), t.Location,
		t.StartDate.UTC(), endDateArg(t.EndDate), t.MaxParticipants, t.EntryFeeCents, now.UTC(),
		t.ID, t.MaxParticipants)
	if err != nil {
		return err
	}
	return expectOne(res, ErrConflict)
}

// SetStatusTx moves a tournament from one status to another.  ErrConflict
// is returned when the stored status is no longer from.
func (r *TournamentRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.TournamentStatus, now time.Time) error {
	const q = `UPDATE tournaments SET status = ?, updated_at = ? WHERE id = ? AND is_active = 1 AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(to), now.UTC(), id, string(from))
	if err != nil {
		return err
	}
	return expectOne(res, ErrConflict)
}

// SoftDeleteTx clears is_active.
func (r *TournamentRepo) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE tournaments SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, now.UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrTournamentNotFound)
}

// HardDeleteTx removes the row.  The caller must have checked that no
// registration references it.
func (r *TournamentRepo) HardDeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tournaments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, ErrTournamentNotFound)
}

func getTournament(ctx context.Context, q querier, id uint64) (*model.Tournament, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ? AND is_active = 1`, id)
	return scanTournament(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTournament(row rowScanner) (*model.Tournament, error) {
	var (
		t           model.Tournament
		description sql.NullString
		endDate     sql.NullTime
		sport       string
		status      string
	)
	err := row.Scan(&t.ID, &t.OrganizerID, &t.Name, &t.Slug, &description, &sport, &status, &t.Location,
		&t.StartDate, &endDate, &t.MaxParticipants, &t.EntryFeeCents, &t.Participants, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.SportType = model.SportType(sport)
	t.Status = model.TournamentStatus(status)
	t.EndDate = timePtr(endDate)
	t.StartDate = t.StartDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func endDateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// expectOne maps a zero-row write to notMatched.
func expectOne(res sql.Result, notMatched error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notMatched
	}
	return nil
}
