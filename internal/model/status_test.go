package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var allRegistrationStatuses = []RegistrationStatus{
	RegistrationPending, RegistrationConfirmed, RegistrationWaitlisted, RegistrationCancelled, RegistrationCompleted,
}

func TestRegistrationTransitions(t *testing.T) {
	allowed := map[[2]RegistrationStatus]bool{
		{RegistrationPending, RegistrationConfirmed}:   true,
		{RegistrationPending, RegistrationCancelled}:   true,
		{RegistrationConfirmed, RegistrationCompleted}: true,
		{RegistrationConfirmed, RegistrationCancelled}: true,
	}
	for _, from := range allRegistrationStatuses {
		for _, to := range allRegistrationStatuses {
			assert.Equal(t, allowed[[2]RegistrationStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalRegistrationStatusesNeverMove(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		path := rapid.SliceOfN(rapid.SampledFrom(allRegistrationStatuses), 1, 10).Draw(rt, "path")
		cur := RegistrationPending
		for _, next := range path {
			if cur.Terminal() && cur.CanTransitionTo(next) {
				rt.Fatalf("terminal %s moved to %s", cur, next)
			}
			if cur.CanTransitionTo(next) {
				cur = next
			}
		}
		if !cur.Valid() {
			rt.Fatalf("walked into unknown status %q", cur)
		}
	})
}

func TestTournamentTransitions(t *testing.T) {
	assert.True(t, TournamentUpcoming.CanTransitionTo(TournamentOngoing))
	assert.True(t, TournamentUpcoming.CanTransitionTo(TournamentCancelled))
	assert.True(t, TournamentOngoing.CanTransitionTo(TournamentCompleted))
	assert.True(t, TournamentOngoing.CanTransitionTo(TournamentCancelled))
	assert.False(t, TournamentUpcoming.CanTransitionTo(TournamentCompleted))
	assert.False(t, TournamentOngoing.CanTransitionTo(TournamentUpcoming))
	assert.False(t, TournamentCompleted.CanTransitionTo(TournamentCancelled))
	assert.False(t, TournamentCancelled.CanTransitionTo(TournamentUpcoming))
	assert.True(t, TournamentCompleted.Terminal())
	assert.False(t, TournamentStatus("paused").Valid())
}

func TestHoldsSlot(t *testing.T) {
	assert.True(t, RegistrationPending.HoldsSlot())
	assert.True(t, RegistrationConfirmed.HoldsSlot())
	assert.True(t, RegistrationCompleted.HoldsSlot())
	assert.False(t, RegistrationCancelled.HoldsSlot())
	assert.False(t, RegistrationWaitlisted.HoldsSlot())
}

func TestProfileMissingFields(t *testing.T) {
	assert.Equal(t, []string{
		"fullName", "email", "phone", "dateOfBirth", "gender", "address", "city", "state", "zipCode",
		"emergencyContactName", "emergencyContactPhone", "emergencyContactRelation", "agreeTerms",
	}, Profile{}.MissingFields())

	p := Profile{
		FullName: "A", Email: "a@b.c", Phone: "1", DateOfBirth: "2000-01-01", Gender: "x",
		Address: "1 Road", City: "C", State: "S", ZipCode: "Z",
		EmergencyContactName: "E", EmergencyContactPhone: "2", EmergencyContactRelation: "R",
		AgreeTerms: true,
	}
	assert.Empty(t, p.MissingFields())
}

func TestSpotsLeft(t *testing.T) {
	assert.EqualValues(t, 3, Tournament{MaxParticipants: 5, Participants: 2}.SpotsLeft())
	assert.EqualValues(t, 0, Tournament{MaxParticipants: 2, Participants: 2}.SpotsLeft())
	assert.True(t, SportTableTennis.Valid())
	assert.False(t, SportType("curling").Valid())
}
