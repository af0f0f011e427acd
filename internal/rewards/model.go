package rewards

import "time"

// Catalog is the fixed mapping from reward id to point cost.
var Catalog = map[int]int{
	1: 20,
	2: 50,
	3: 100,
}

// Cost looks up a reward's point cost.
func Cost(rewardID int) (int, bool) {
	cost, ok := Catalog[rewardID]
	return cost, ok
}

// Redemption is one append-only entry of the redemption log.
type Redemption struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"studentID"`
	RewardID  int       `json:"rewardID"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is the reward view for one student: current balance, per-reward
// redemption counts, and the full history newest first.
type Status struct {
	StudentID    string       `json:"studentID"`
	Points       int          `json:"points"`
	RewardCounts map[int]int  `json:"rewardCounts"`
	Records      []Redemption `json:"records"`
}
