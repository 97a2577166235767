package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/repository"
)

// TournamentService creates, edits and lists tournaments.  Reads are
// enriched with the live participant count from the ledger.
type TournamentService struct {
	db            *sql.DB
	tournaments   *repository.TournamentRepo
	registrations *repository.RegistrationRepo
	stats         *repository.StatsRepo
	ledger        *Ledger

	Now func() time.Time
}

func NewTournamentService(db *sql.DB, tournaments *repository.TournamentRepo, registrations *repository.RegistrationRepo, stats *repository.StatsRepo, ledger *Ledger) *TournamentService {
	return &TournamentService{
		db:            db,
		tournaments:   tournaments,
		registrations: registrations,
		stats:         stats,
		ledger:        ledger,
		Now:           time.Now,
	}
}

// TournamentInput carries the fields of a new tournament.
type TournamentInput struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	SportType       model.SportType `json:"sport_type"`
	Location        string          `json:"location"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date"`
	MaxParticipants uint32          `json:"max_participants"`
	EntryFeeCents   int64           `json:"entry_fee_cents"`
}

// TournamentPatch carries a partial update; nil fields are left unchanged.
// ClearEndDate removes an existing end date and cannot be combined with
// EndDate.
type TournamentPatch struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	SportType       *model.SportType `json:"sport_type"`
	Location        *string          `json:"location"`
	StartDate       *time.Time       `json:"start_date"`
	EndDate         *time.Time       `json:"end_date"`
	MaxParticipants *uint32          `json:"max_participants"`
	EntryFeeCents   *int64           `json:"entry_fee_cents"`
	ClearEndDate    bool             `json:"clear_end_date"`
}

// TournamentView is a tournament with its live participant count.
type TournamentView struct {
	model.Tournament
	ParticipantCount int64 `json:"participant_count"`
	SpotsLeft        int64 `json:"spots_left"`
}

// Create stores a new upcoming tournament owned by the actor.
func (s *TournamentService) Create(ctx context.Context, actor model.Actor, in TournamentInput) (*model.Tournament, error) {
	if !actor.CanOrganize() {
		return nil, fmt.Errorf("create tournament: %w", ErrForbidden)
	}
	t := &model.Tournament{
		OrganizerID:     actor.UserID,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		SportType:       in.SportType,
		Location:        strings.TrimSpace(in.Location),
		StartDate:       in.StartDate.UTC(),
		EndDate:         utcPtr(in.EndDate),
		MaxParticipants: in.MaxParticipants,
		EntryFeeCents:   in.EntryFeeCents,
	}
	if err := validateTournament(t); err != nil {
		return nil, err
	}
	sl, err := s.uniqueSlug(ctx, t.Name)
	if err != nil {
		return nil, err
	}
	t.Slug = sl
	now := s.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.tournaments.Create(ctx, t); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "tournament created", "tournament_id", t.ID, "organizer_id", t.OrganizerID, "slug", t.Slug)
	return t, nil
}

// Update applies patch to a tournament owned by the actor.  Completed or
// cancelled tournaments cannot be edited, and capacity cannot drop below
// the participants already registered.
func (s *TournamentService) Update(ctx context.Context, actor model.Actor, id uint64, patch TournamentPatch) (*model.Tournament, error) {
	t, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, invalidState("tournament is %s", t.Status)
	}
	oldName := t.Name
	if patch.Name != nil {
		t.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.SportType != nil {
		t.SportType = *patch.SportType
	}
	if patch.Location != nil {
		t.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.StartDate != nil {
		t.StartDate = patch.StartDate.UTC()
	}
	switch {
	case patch.ClearEndDate && patch.EndDate != nil:
		return nil, invalid("end_date and clear_end_date are mutually exclusive", "end_date")
	case patch.ClearEndDate:
		t.EndDate = nil
	case patch.EndDate != nil:
		t.EndDate = utcPtr(patch.EndDate)
	}
	if patch.MaxParticipants != nil {
		t.MaxParticipants = *patch.MaxParticipants
	}
	if patch.EntryFeeCents != nil {
		t.EntryFeeCents = *patch.EntryFeeCents
	}
	if err := validateTournament(t); err != nil {
		return nil, err
	}
	if t.Name != oldName {
		if t.Slug, err = s.uniqueSlug(ctx, t.Name); err != nil {
			return nil, err
		}
	}
	now := s.Now().UTC()
	if err := s.tournaments.Update(ctx, t, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, s.updateConflict(ctx, id, t.MaxParticipants)
		}
		return nil, err
	}
	return s.tournaments.GetByID(ctx, id)
}

func (s *TournamentService) updateConflict(ctx context.Context, id uint64, limit uint32) error {
	cur, err := s.tournaments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return notFound("tournament")
	}
	if err != nil {
		return err
	}
	if cur.Participants > limit {
		return invalidState("max_participants %d is below the %d registered participants", limit, cur.Participants)
	}
	return invalidState("tournament is %s", cur.Status)
}

// UpdateStatus moves a tournament along its lifecycle.  Completing a
// tournament completes its confirmed registrations in the same
// transaction.
func (s *TournamentService) UpdateStatus(ctx context.Context, actor model.Actor, id uint64, to model.TournamentStatus) (*model.Tournament, error) {
	if !to.Valid() {
		return nil, invalid("unknown status", "status")
	}
	t, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(to) {
		return nil, invalidState("cannot move tournament from %s to %s", t.Status, to)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.Now().UTC()
	if err := s.tournaments.SetStatusTx(ctx, tx, id, t.Status, to, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalidState("tournament status changed concurrently")
		}
		return nil, err
	}
	if to == model.TournamentCompleted {
		if _, err := s.ledger.CompleteForTournament(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "tournament status changed", "tournament_id", id, "from", t.Status, "to", to)
	return s.tournaments.GetByID(ctx, id)
}

// Delete removes a tournament owned by the actor.  A tournament that was
// ever registered for is only deactivated so its history stays available
// to statistics; otherwise the row is removed.  soft reports which one
// happened.
func (s *TournamentService) Delete(ctx context.Context, actor model.Actor, id uint64) (soft bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := s.tournaments.GetByIDTx(ctx, tx, id)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return false, notFound("tournament")
	}
	if err != nil {
		return false, err
	}
	if !canManage(actor, t) {
		return false, fmt.Errorf("delete tournament %d: %w", id, ErrForbidden)
	}
	n, err := s.registrations.CountByTournamentTx(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if n > 0 {
		err = s.tournaments.SoftDeleteTx(ctx, tx, id, s.Now().UTC())
		soft = true
	} else {
		err = s.tournaments.HardDeleteTx(ctx, tx, id)
	}
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	slog.InfoContext(ctx, "tournament deleted", "tournament_id", id, "soft", soft)
	return soft, nil
}

// Get returns an active tournament.
func (s *TournamentService) Get(ctx context.Context, id uint64) (*TournamentView, error) {
	t, err := s.tournaments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return nil, notFound("tournament")
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

// GetBySlug returns the active tournament with the slug.
func (s *TournamentService) GetBySlug(ctx context.Context, sl string) (*TournamentView, error) {
	t, err := s.tournaments.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(sl)))
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return nil, notFound("tournament")
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

// List returns a page of active tournaments and the total match count.
func (s *TournamentService) List(ctx context.Context, f repository.TournamentFilter) ([]TournamentView, int64, error) {
	if f.SportType != "" && !f.SportType.Valid() {
		return nil, 0, invalid("unknown sport type", "sport_type")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalid("unknown status", "status")
	}
	ts, total, err := s.tournaments.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint64, len(ts))
	for i := range ts {
		ids[i] = ts[i].ID
	}
	counts, err := s.stats.ParticipantCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TournamentView, len(ts))
	for i, t := range ts {
		out[i] = newView(t, counts[t.ID])
	}
	return out, total, nil
}

func (s *TournamentService) view(ctx context.Context, t *model.Tournament) (*TournamentView, error) {
	n, err := s.stats.ParticipantCount(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	v := newView(*t, n)
	return &v, nil
}

func newView(t model.Tournament, count int64) TournamentView {
	left := int64(t.MaxParticipants) - count
	if left < 0 {
		left = 0
	}
	return TournamentView{Tournament: t, ParticipantCount: count, SpotsLeft: left}
}

// owned loads an active tournament the actor may manage.
func (s *TournamentService) owned(ctx context.Context, actor model.Actor, id uint64) (*model.Tournament, error) {
	t, err := s.tournaments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return nil, notFound("tournament")
	}
	if err != nil {
		return nil, err
	}
	if !canManage(actor, t) {
		return nil, fmt.Errorf("tournament %d: %w", id, ErrForbidden)
	}
	return t, nil
}

func canManage(actor model.Actor, t *model.Tournament) bool {
	return actor.IsAdmin() || (actor.Role == model.RoleOrganizer && actor.UserID == t.OrganizerID)
}

// uniqueSlug derives a URL slug from name and appends a numeric suffix
// until it no longer collides with an existing tournament.
func (s *TournamentService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "tournament"
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.tournaments.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func validateTournament(t *model.Tournament) error {
	var fields []string
	if t.Name == "" || len(t.Name) > 255 {
		fields = append(fields, "name")
	}
	if !t.SportType.Valid() {
		fields = append(fields, "sport_type")
	}
	if t.StartDate.IsZero() {
		fields = append(fields, "start_date")
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		fields = append(fields, "end_date")
	}
	if t.MaxParticipants < 1 {
		fields = append(fields, "max_participants")
	}
	if t.EntryFeeCents < 0 {
		fields = append(fields, "entry_fee_cents")
	}
	if len(fields) > 0 {
		return invalid("invalid tournament", fields...)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
