package model

import "time"

// SportType enumerates the sports a tournament can be organised for.
type SportType string

const (
	SportFootball    SportType = "football"
	SportBasketball  SportType = "basketball"
	SportCricket     SportType = "cricket"
	SportTennis      SportType = "tennis"
	SportBadminton   SportType = "badminton"
	SportVolleyball  SportType = "volleyball"
	SportTableTennis SportType = "table_tennis"
	SportChess       SportType = "chess"
	SportEsports     SportType = "esports"
	SportAthletics   SportType = "athletics"
	SportSwimming    SportType = "swimming"
	SportOther       SportType = "other"
)

var sportTypes = map[SportType]bool{
	SportFootball: true, SportBasketball: true, SportCricket: true, SportTennis: true,
	SportBadminton: true, SportVolleyball: true, SportTableTennis: true, SportChess: true,
	SportEsports: true, SportAthletics: true, SportSwimming: true, SportOther: true,
}

// Valid reports whether s is a known sport type.
func (s SportType) Valid() bool { return sportTypes[s] }

// TournamentStatus is the lifecycle state of a tournament.
type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "upcoming"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentCompleted TournamentStatus = "completed"
	TournamentCancelled TournamentStatus = "cancelled"
)

// Valid reports whether s is a known tournament status.
func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentUpcoming, TournamentOngoing, TournamentCompleted, TournamentCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change or edit is allowed.
func (s TournamentStatus) Terminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

// CanTransitionTo reports whether an organizer may move a tournament from
// s to next: upcoming → ongoing → completed, and upcoming|ongoing →
// cancelled.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	switch s {
	case TournamentUpcoming:
		return next == TournamentOngoing || next == TournamentCancelled
	case TournamentOngoing:
		return next == TournamentCompleted || next == TournamentCancelled
	}
	return false
}

// Tournament represents an event organised by a user with the ORGANIZER
// role.  This struct corresponds to a row in the `tournaments` table.
//
// Fields:
//
//	ID              – primary key identifier.
//	OrganizerID     – user ID of the organizer.
//	Name, Slug      – display name and URL slug derived from it.
//	SportType       – one of the SportType constants.
//	Status          – lifecycle status (upcoming, ongoing, completed, cancelled).
//	StartDate       – when the tournament begins.
//	EndDate         – optional end; never before StartDate.
//	MaxParticipants – capacity, at least 1.
//	EntryFeeCents   – entry fee in minor currency units, at least 0.
//	Participants    – counter maintained only inside ledger transactions.
//	IsActive        – false once soft-deleted.
type Tournament struct {
	ID              uint64           `json:"id"`                 // tournaments.id
	OrganizerID     uint64           `json:"organizer_id"`       // tournaments.organizer_id
	Name            string           `json:"name"`               // tournaments.name
	Slug            string           `json:"slug"`               // tournaments.slug
	Description     string           `json:"description"`        // tournaments.description
	SportType       SportType        `json:"sport_type"`         // tournaments.sport_type
	Status          TournamentStatus `json:"status"`             // tournaments.status
	Location        string           `json:"location"`           // tournaments.location
	StartDate       time.Time        `json:"start_date"`         // tournaments.start_date
	EndDate         *time.Time       `json:"end_date,omitempty"` // tournaments.end_date (nullable)
	MaxParticipants uint32           `json:"max_participants"`   // tournaments.max_participants
	EntryFeeCents   int64            `json:"entry_fee_cents"`    // tournaments.entry_fee_cents
	Participants    uint32           `json:"participants"`       // tournaments.participants
	IsActive        bool             `json:"is_active"`          // tournaments.is_active
	CreatedAt       time.Time        `json:"created_at"`         // tournaments.created_at
	UpdatedAt       time.Time        `json:"updated_at"`         // tournaments.updated_at
}

// SpotsLeft returns the remaining capacity according to the stored counter.
func (t Tournament) SpotsLeft() uint32 {
	if t.Participants >= t.MaxParticipants {
		return 0
	}
	return t.MaxParticipants - t.Participants
}
