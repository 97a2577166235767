package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/queue"
	"github.com/iliyamo/tournament-registration/internal/repository"
)

// Ledger is the authoritative record of who is registered for which
// tournament.  Every check-then-act sequence runs in one database
// transaction, and the tournament's participants counter is only changed
// inside the transaction that inserts or cancels the registration.
type Ledger struct {
	db            *sql.DB
	tournaments   *repository.TournamentRepo
	registrations *repository.RegistrationRepo
	users         *repository.UserRepo

	Notifier Notifier
	Now      func() time.Time
}

// NewLedger wires a Ledger.  Events are discarded until a Notifier is set.
func NewLedger(db *sql.DB, tournaments *repository.TournamentRepo, registrations *repository.RegistrationRepo, users *repository.UserRepo) *Ledger {
	if db == nil || tournaments == nil || registrations == nil || users == nil {
		panic("nil dependency passed to NewLedger")
	}
	return &Ledger{
		db:            db,
		tournaments:   tournaments,
		registrations: registrations,
		users:         users,
		Notifier:      NopNotifier{},
		Now:           time.Now,
	}
}

// RegisterInput is a registration attempt.  UserID defaults to the
// actor; PaymentStatus defaults to pending.
type RegisterInput struct {
	TournamentID  uint64
	UserID        uint64
	PaymentStatus model.PaymentStatus
	Profile       *model.Profile
}

// RegisterResult is returned by a successful Register.
type RegisterResult struct {
	Registration       *model.Registration `json:"registration"`
	ParticipantCount   int64               `json:"participant_count"`
	HasDetailedProfile bool                `json:"has_detailed_profile"`
}

// Register admits a user to an upcoming tournament.  Within one
// transaction it checks that the user exists, that no active registration
// for the pair exists and that a slot is free, takes the slot with a
// conditional increment and inserts the row.  The unique key on active
// registrations backs up the duplicate check under concurrency.
func (l *Ledger) Register(ctx context.Context, actor model.Actor, in RegisterInput) (*RegisterResult, error) {
	if in.UserID == 0 {
		in.UserID = actor.UserID
	}
	if in.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("register on behalf of another user: %w", ErrForbidden)
	}
	if err := validateRegister(&in); err != nil {
		return nil, err
	}

	now := l.Now().UTC()
	reg := &model.Registration{
		TournamentID:       in.TournamentID,
		UserID:             in.UserID,
		Status:             model.RegistrationPending,
		PaymentStatus:      model.PaymentPending,
		Profile:            in.Profile,
		HasDetailedProfile: in.Profile != nil,
		RegisteredAt:       now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := l.users.ExistsTx(ctx, tx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("user")
	}

	t, err := l.tournaments.GetByIDTx(ctx, tx, in.TournamentID)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return nil, notFound("tournament")
	}
	if err != nil {
		return nil, err
	}
	if t.Status != model.TournamentUpcoming {
		return nil, invalidState("tournament is %s", t.Status)
	}

	dup, err := l.registrations.ActiveExistsTx(ctx, tx, in.TournamentID, in.UserID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateRegistration
	}

	taken, err := l.tournaments.IncrementParticipantsTx(ctx, tx, in.TournamentID, now)
	if err != nil {
		return nil, err
	}
	if !taken {
		return nil, l.classifyNoSlot(ctx, tx, in.TournamentID)
	}

	if in.PaymentStatus == model.PaymentCompleted {
		reg.Status = model.RegistrationConfirmed
		reg.PaymentStatus = model.PaymentCompleted
		reg.AmountPaidCents = t.EntryFeeCents
		reg.PaidAt = &now
	}
	if err := l.registrations.CreateTx(ctx, tx, reg); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateRegistration
		}
		return nil, err
	}

	after, err := l.tournaments.GetByIDTx(ctx, tx, in.TournamentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "registration created",
		"registration_id", reg.ID, "tournament_id", reg.TournamentID, "user_id", reg.UserID,
		"status", reg.Status, "participants", after.Participants)
	l.Notifier.Notify(ctx, newEvent(queue.EventRegistered, reg, "", now))

	return &RegisterResult{
		Registration:       reg,
		ParticipantCount:   int64(after.Participants),
		HasDetailedProfile: reg.HasDetailedProfile,
	}, nil
}

// classifyNoSlot explains why the conditional increment matched no row.
// It reads with a lock so it sees what the failed update saw, not the
// transaction's earlier snapshot.
func (l *Ledger) classifyNoSlot(ctx context.Context, tx *sql.Tx, tournamentID uint64) error {
	t, err := l.tournaments.GetForUpdateTx(ctx, tx, tournamentID)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return notFound("tournament")
	}
	if err != nil {
		return err
	}
	if t.Status != model.TournamentUpcoming {
		return invalidState("tournament is %s", t.Status)
	}
	if t.Participants >= t.MaxParticipants {
		return ErrCapacityExceeded
	}
	return fmt.Errorf("could not reserve a slot in tournament %d", tournamentID)
}

func validateRegister(in *RegisterInput) error {
	var fields []string
	if in.TournamentID == 0 {
		fields = append(fields, "tournamentId")
	}
	if in.UserID == 0 {
		fields = append(fields, "userId")
	}
	switch in.PaymentStatus {
	case "":
		in.PaymentStatus = model.PaymentPending
	case model.PaymentPending, model.PaymentCompleted:
	default:
		fields = append(fields, "paymentStatus")
	}
	if len(fields) > 0 {
		return invalid("invalid registration", fields...)
	}
	if in.Profile != nil {
		if missing := in.Profile.MissingFields(); len(missing) > 0 {
			return invalid("incomplete participant profile", missing...)
		}
	}
	return nil
}

// MarkPaid records a successful external payment.  The registration must
// be active, pending or confirmed, and not already paid; it becomes
// confirmed with the given amount.  The registrant, the tournament's
// organizer and admins may record payments.
func (l *Ledger) MarkPaid(ctx context.Context, actor model.Actor, registrationID uint64, amountCents int64) (*model.Registration, error) {
	if amountCents < 0 {
		return nil, invalid("amount must not be negative", "amountPaid")
	}
	reg, err := l.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, actor, reg, true); err != nil {
		return nil, err
	}
	now := l.Now().UTC()
	if err := l.registrations.MarkPaid(ctx, registrationID, amountCents, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, l.stateError(ctx, registrationID, "mark paid")
		}
		return nil, err
	}
	reg, err = l.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "registration paid",
		"registration_id", reg.ID, "tournament_id", reg.TournamentID, "amount_cents", amountCents)
	l.Notifier.Notify(ctx, newEvent(queue.EventPaid, reg, "", now))
	return reg, nil
}

// MarkPaymentFailed flags a pending payment as failed.  The registration
// stays pending and keeps its slot until paid or cancelled.
func (l *Ledger) MarkPaymentFailed(ctx context.Context, actor model.Actor, registrationID uint64) (*model.Registration, error) {
	reg, err := l.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, actor, reg, false); err != nil {
		return nil, err
	}
	now := l.Now().UTC()
	if err := l.registrations.MarkPaymentFailed(ctx, registrationID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, l.stateError(ctx, registrationID, "mark payment failed")
		}
		return nil, err
	}
	reg, err = l.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	l.Notifier.Notify(ctx, newEvent(queue.EventPaymentFailed, reg, "", now))
	return reg, nil
}

// Cancel deactivates a registration and frees its slot in the same
// transaction.  Only the tournament's organizer or an admin may cancel.
// Cancelling an already cancelled registration succeeds without change;
// completed registrations cannot be cancelled.
func (l *Ledger) Cancel(ctx context.Context, actor model.Actor, registrationID uint64, reason string) (*model.Registration, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	reg, err := l.registrations.GetByIDTx(ctx, tx, registrationID)
	if errors.Is(err, repository.ErrRegistrationNotFound) {
		return nil, notFound("registration")
	}
	if err != nil {
		return nil, err
	}
	owner, err := l.tournaments.OrganizerIDTx(ctx, tx, reg.TournamentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Role == model.RoleOrganizer && actor.UserID == owner) {
		return nil, fmt.Errorf("cancel registration %d: %w", registrationID, ErrForbidden)
	}
	if reg.Status == model.RegistrationCancelled {
		return reg, nil
	}
	if !reg.Status.CanTransitionTo(model.RegistrationCancelled) {
		return nil, invalidState("registration is %s", reg.Status)
	}

	now := l.Now().UTC()
	var why *string
	if r := strings.TrimSpace(reason); r != "" {
		why = &r
	}
	if err := l.registrations.CancelTx(ctx, tx, registrationID, why, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race; the committed state decides.
			_ = tx.Rollback()
			cur, lerr := l.load(ctx, registrationID)
			if lerr != nil {
				return nil, lerr
			}
			if cur.Status == model.RegistrationCancelled {
				return cur, nil
			}
			return nil, invalidState("registration is %s", cur.Status)
		}
		return nil, err
	}
	if err := l.tournaments.DecrementParticipantsTx(ctx, tx, reg.TournamentID, now); err != nil {
		return nil, err
	}
	reg, err = l.registrations.GetByIDTx(ctx, tx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "registration cancelled",
		"registration_id", reg.ID, "tournament_id", reg.TournamentID, "by", actor.UserID)
	l.Notifier.Notify(ctx, newEvent(queue.EventCancelled, reg, reason, now))
	return reg, nil
}

// CompleteForTournament moves the tournament's confirmed registrations to
// completed.  It runs in the caller's transaction, the one that completes
// the tournament.
func (l *Ledger) CompleteForTournament(ctx context.Context, tx *sql.Tx, tournamentID uint64) (int64, error) {
	n, err := l.registrations.CompleteConfirmedTx(ctx, tx, tournamentID, l.Now().UTC())
	if err != nil {
		return 0, err
	}
	slog.DebugContext(ctx, "registrations completed", "tournament_id", tournamentID, "count", n)
	return n, nil
}

// Get returns a registration visible to the actor.
func (l *Ledger) Get(ctx context.Context, actor model.Actor, registrationID uint64) (*model.Registration, error) {
	reg, err := l.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, actor, reg, true); err != nil {
		return nil, err
	}
	return reg, nil
}

// ListMine returns the user's registrations, newest first.
func (l *Ledger) ListMine(ctx context.Context, userID uint64) ([]model.Registration, error) {
	return l.registrations.ListByUser(ctx, userID)
}

// ListForTournament returns every registration of a tournament to its
// organizer or an admin.
func (l *Ledger) ListForTournament(ctx context.Context, actor model.Actor, tournamentID uint64) ([]model.Registration, error) {
	owner, err := l.tournaments.OrganizerID(ctx, tournamentID)
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return nil, notFound("tournament")
	}
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.UserID != owner {
		return nil, fmt.Errorf("list registrations of tournament %d: %w", tournamentID, ErrForbidden)
	}
	return l.registrations.ListByTournament(ctx, tournamentID)
}

func (l *Ledger) load(ctx context.Context, id uint64) (*model.Registration, error) {
	reg, err := l.registrations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrRegistrationNotFound) {
		return nil, notFound("registration")
	}
	return reg, err
}

// authorize allows admins, the tournament's organizer and, when
// allowRegistrant is set, the registrant.
func (l *Ledger) authorize(ctx context.Context, actor model.Actor, reg *model.Registration, allowRegistrant bool) error {
	if actor.IsAdmin() || (allowRegistrant && actor.UserID == reg.UserID) {
		return nil
	}
	if actor.Role == model.RoleOrganizer {
		owner, err := l.tournaments.OrganizerID(ctx, reg.TournamentID)
		if err != nil {
			return err
		}
		if owner == actor.UserID {
			return nil
		}
	}
	return fmt.Errorf("registration %d: %w", reg.ID, ErrForbidden)
}

// stateError reports why a conditional update on a registration matched
// nothing.
func (l *Ledger) stateError(ctx context.Context, id uint64, op string) error {
	reg, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	if !reg.IsActive {
		return invalidState("%s: registration is %s", op, reg.Status)
	}
	return invalidState("%s: registration is %s with payment %s", op, reg.Status, reg.PaymentStatus)
}
