package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tournament-registration/internal/database"
	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/queue"
	"github.com/iliyamo/tournament-registration/internal/repository"
)

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.RegistrationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.RegistrationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	db          *sql.DB
	users       *repository.UserRepo
	ledger      *Ledger
	aggregator  *Aggregator
	reporter    *Reporter
	tournaments *TournamentService
	clock       *fakeClock
	notifier    *recordingNotifier
	admin       model.Actor
	seq         atomic.Int64
}

// newFixture builds every service over a fresh SQLite database.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	users := repository.NewUserRepo(db)
	tournamentRepo := repository.NewTournamentRepo(db)
	registrationRepo := repository.NewRegistrationRepo(db)
	statsRepo := repository.NewStatsRepo(db)

	ledger := NewLedger(db, tournamentRepo, registrationRepo, users)
	ledger.Notifier = notifier
	ledger.Now = clock.Now

	reporter := NewReporter(statsRepo, 5*time.Minute)
	reporter.Now = clock.Now

	svc := NewTournamentService(db, tournamentRepo, registrationRepo, statsRepo, ledger)
	svc.Now = clock.Now

	f := &fixture{
		db:          db,
		users:       users,
		ledger:      ledger,
		aggregator:  NewAggregator(statsRepo),
		reporter:    reporter,
		tournaments: svc,
		clock:       clock,
		notifier:    notifier,
	}
	f.admin = f.actor(t, model.RoleAdmin)
	return f
}

// actor provisions a user with the role and returns it as an Actor.
func (f *fixture) actor(t testingT, role string) model.Actor {
	t.Helper()
	n := f.seq.Add(1)
	id, err := f.users.Create(context.Background(), fmt.Sprintf("user%d@example.com", n), fmt.Sprintf("User %d", n), role, f.clock.Now())
	require.NoError(t, err)
	return model.Actor{UserID: id, Role: role}
}

// tournament creates an upcoming tournament owned by organizer.
func (f *fixture) tournament(t testingT, organizer model.Actor, capacity uint32, feeCents int64) *model.Tournament {
	t.Helper()
	n := f.seq.Add(1)
	tr, err := f.tournaments.Create(context.Background(), organizer, TournamentInput{
		Name:            fmt.Sprintf("Spring Open %d", n),
		SportType:       model.SportTennis,
		Location:        "Court 1",
		StartDate:       f.clock.Now().Add(30 * 24 * time.Hour),
		MaxParticipants: capacity,
		EntryFeeCents:   feeCents,
	})
	require.NoError(t, err)
	return tr
}

func (f *fixture) register(ctx context.Context, user model.Actor, tournamentID uint64) (*RegisterResult, error) {
	return f.ledger.Register(ctx, user, RegisterInput{TournamentID: tournamentID})
}

func fullProfile() *model.Profile {
	return &model.Profile{
		FullName:                 "Ada Lovelace",
		Email:                    "ada@example.com",
		Phone:                    "+44 20 0000 0000",
		DateOfBirth:              "1990-12-10",
		Gender:                   "female",
		Address:                  "12 St James's Square",
		City:                     "London",
		State:                    "Greater London",
		ZipCode:                  "SW1Y 4JH",
		EmergencyContactName:     "Charles Babbage",
		EmergencyContactPhone:    "+44 20 1111 1111",
		EmergencyContactRelation: "colleague",
		AgreeTerms:               true,
		ExperienceLevel:          "intermediate",
	}
}
