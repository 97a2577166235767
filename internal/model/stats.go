package model

import "time"

// Stats is a dashboard rollup.  The same shape serves the global admin
// view and the organizer-scoped view; organizer stats leave TotalUsers at
// zero.
type Stats struct {
	TotalTournaments     int64     `json:"total_tournaments"`
	TotalUsers           int64     `json:"total_users"`
	TotalRegistrations   int64     `json:"total_registrations"`
	TotalParticipants    int64     `json:"total_participants"`
	TotalRevenueCents    int64     `json:"total_revenue_cents"`
	MonthlyRevenueCents  int64     `json:"monthly_revenue_cents"`
	AverageParticipants  int64     `json:"average_participants"`
	UpcomingTournaments  int64     `json:"upcoming_tournaments"`
	OngoingTournaments   int64     `json:"ongoing_tournaments"`
	CompletedTournaments int64     `json:"completed_tournaments"`
	LastUpdated          time.Time `json:"last_updated"`
}

// TournamentSummary is the live aggregate for one tournament computed from
// its registrations.
type TournamentSummary struct {
	TournamentID      uint64 `json:"tournament_id"`
	ParticipantCount  int64  `json:"participant_count"`
	TotalRevenueCents int64  `json:"total_revenue_cents"`
	Pending           int64  `json:"pending"`
	Confirmed         int64  `json:"confirmed"`
	Completed         int64  `json:"completed"`
	Cancelled         int64  `json:"cancelled"`
	PaidCount         int64  `json:"paid_count"`
}
