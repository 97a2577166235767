package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tournament-registration/internal/database"
	"github.com/iliyamo/tournament-registration/internal/model"
)

var now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func createTestStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedTournament provisions an organizer and an upcoming tournament owned
// by it.
func seedTournament(t *testing.T, db *sql.DB, slug string, capacity uint32) *model.Tournament {
	t.Helper()
	organizer, err := NewUserRepo(db).Create(context.Background(), "org-"+slug+"@example.com", "Organizer", model.RoleOrganizer, now)
	require.NoError(t, err)
	tr := &model.Tournament{
		OrganizerID:     organizer,
		Name:            "Open " + slug,
		Slug:            slug,
		SportType:       model.SportBasketball,
		Location:        "Hall A",
		StartDate:       now.Add(72 * time.Hour),
		MaxParticipants: capacity,
		EntryFeeCents:   1500,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, NewTournamentRepo(db).Create(context.Background(), tr))
	return tr
}

func TestUserEmailUnique(t *testing.T) {
	db := createTestStore(t)
	users := NewUserRepo(db)
	ctx := context.Background()

	id, err := users.Create(ctx, "a@example.com", "A", model.RoleUser, now)
	require.NoError(t, err)
	_, err = users.Create(ctx, "a@example.com", "A again", model.RoleUser, now)
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	_, err = users.GetByID(ctx, id+100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestParticipantCounterStopsAtCapacity(t *testing.T) {
	db := createTestStore(t)
	repo := NewTournamentRepo(db)
	ctx := context.Background()
	tr := seedTournament(t, db, "counter", 2)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	for i, want := range []bool{true, true, false} {
		ok, err := repo.IncrementParticipantsTx(ctx, tx, tr.ID, now)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "increment %d", i)
	}
	require.NoError(t, repo.DecrementParticipantsTx(ctx, tx, tr.ID, now))
	got, err := repo.GetByIDTx(ctx, tx, tr.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Participants)
	require.NoError(t, tx.Commit())
}

func TestActiveRegistrationUniqueUntilCancelled(t *testing.T) {
	db := createTestStore(t)
	ctx := context.Background()
	uid, err := NewUserRepo(db).Create(ctx, "p@example.com", "P", model.RoleUser, now)
	require.NoError(t, err)
	tr := seedTournament(t, db, "unique", 10)
	regs := NewRegistrationRepo(db)

	newReg := func() *model.Registration {
		return &model.Registration{
			TournamentID:  tr.ID,
			UserID:        uid,
			Status:        model.RegistrationPending,
			PaymentStatus: model.PaymentPending,
			RegisteredAt:  now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	first := newReg()
	require.NoError(t, regs.CreateTx(ctx, tx, first))
	assert.ErrorIs(t, regs.CreateTx(ctx, tx, newReg()), ErrDuplicateKey)
	exists, err := regs.ActiveExistsTx(ctx, tx, tr.ID, uid)
	require.NoError(t, err)
	assert.True(t, exists)

	reason := "injury"
	require.NoError(t, regs.CancelTx(ctx, tx, first.ID, &reason, now))
	assert.ErrorIs(t, regs.CancelTx(ctx, tx, first.ID, nil, now), ErrConflict)
	require.NoError(t, regs.CreateTx(ctx, tx, newReg()))
	require.NoError(t, tx.Commit())

	got, err := regs.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationCancelled, got.Status)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "injury", *got.CancelReason)

	all, err := regs.ListByTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := createTestStore(t)
	stats := NewStatsRepo(db)
	ctx := context.Background()

	_, ok, err := stats.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store has no snapshot")

	in := model.Stats{TotalTournaments: 3, TotalRevenueCents: 4500, AverageParticipants: 2, LastUpdated: now}
	require.NoError(t, stats.SaveSnapshot(ctx, in))
	out, ok, err := stats.GetSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.TotalTournaments, out.TotalTournaments)
	assert.Equal(t, in.TotalRevenueCents, out.TotalRevenueCents)
	assert.True(t, now.Equal(out.LastUpdated))
}

func TestLockingReadFollowsDriver(t *testing.T) {
	assert.Empty(t, NewTournamentRepo(createTestStore(t)).lockClause)

	// sql.Open does not dial, so no server is needed to pick the driver
	my, err := sql.Open("mysql", "user:pass@tcp(127.0.0.1:3306)/tournaments?parseTime=true")
	require.NoError(t, err)
	defer my.Close()
	assert.Equal(t, " FOR UPDATE", NewTournamentRepo(my).lockClause)
}

func TestGetForUpdateTxSkipsInactive(t *testing.T) {
	db := createTestStore(t)
	repo := NewTournamentRepo(db)
	ctx := context.Background()
	tr := seedTournament(t, db, "locked", 4)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	got, err := repo.GetForUpdateTx(ctx, tx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Slug, got.Slug)

	require.NoError(t, repo.SoftDeleteTx(ctx, tx, tr.ID, now))
	_, err = repo.GetForUpdateTx(ctx, tx, tr.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
