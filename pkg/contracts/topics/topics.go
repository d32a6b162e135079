package topics

const (
	// Bets
	BetSettled = "bet_settled"

	// Seeds
	SeedRotated = "seed_rotated"

	// DLQs
	CompensationDLQ = "bet_compensation_dlq"
)
