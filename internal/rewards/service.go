package rewards

import (
	"context"
	"errors"
	"strconv"

	"engage/internal/apperr"
	"engage/internal/metrics"
)

// Ledger is the persistence surface the service drives. *Repository
// implements it; tests substitute fakes.
type Ledger interface {
	Redeem(ctx context.Context, studentID string, rewardID, cost int) error
	Balance(ctx context.Context, studentID string) (int, error)
	Redemptions(ctx context.Context, studentID string) ([]Redemption, error)
}

// Service guards balance mutations and redemption bookkeeping.
type Service struct {
	ledger Ledger
}

// NewService creates a service backed by a ledger.
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// Redeem spends points on a catalog reward. Both the decrement and the
// redemption record land together or not at all.
func (s *Service) Redeem(ctx context.Context, studentID string, rewardID int) error {
	if studentID == "" {
		return apperr.New(apperr.Invalid, "student id required")
	}
	cost, ok := Cost(rewardID)
	if !ok {
		return apperr.Newf(apperr.Invalid, "unknown reward id %d", rewardID)
	}
	if err := s.ledger.Redeem(ctx, studentID, rewardID, cost); err != nil {
		switch {
		case errors.Is(err, ErrNoBalance):
			return apperr.New(apperr.NotFound, "student not found")
		case errors.Is(err, ErrInsufficient):
			return apperr.New(apperr.Conflict, "insufficient points")
		default:
			return apperr.Wrap(apperr.Internal, "redeem", err)
		}
	}
	metrics.Redemptions.WithLabelValues(strconv.Itoa(rewardID)).Inc()
	return nil
}

// RewardStatus returns the student's balance, per-reward counts, and
// redemption history.
func (s *Service) RewardStatus(ctx context.Context, studentID string) (Status, error) {
	if studentID == "" {
		return Status{}, apperr.New(apperr.Invalid, "student id required")
	}
	points, err := s.ledger.Balance(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrNoBalance) {
			return Status{}, apperr.New(apperr.NotFound, "student not found")
		}
		return Status{}, apperr.Wrap(apperr.Internal, "reward status", err)
	}
	records, err := s.ledger.Redemptions(ctx, studentID)
	if err != nil {
		return Status{}, apperr.Wrap(apperr.Internal, "reward status", err)
	}
	counts := make(map[int]int, len(Catalog))
	for id := range Catalog {
		counts[id] = 0
	}
	for _, rec := range records {
		if _, ok := counts[rec.RewardID]; ok {
			counts[rec.RewardID]++
		}
	}
	return Status{
		StudentID:    studentID,
		Points:       points,
		RewardCounts: counts,
		Records:      records,
	}, nil
}
