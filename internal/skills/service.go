package skills

import (
	"context"
	"math"

	"engage/internal/apperr"
	"engage/internal/event"
)

// Summary is the analysis service's view of one student: normalized
// 0–10 scores per category (keyed by full category name) plus a short
// coaching narrative.
type Summary struct {
	SkillScores   map[string]float64 `json:"skillScores"`
	CoachAnalysis string             `json:"coachAnalysis"`
}

// WeightSource yields the skill weights of a student's attended events.
// *Repository implements it; tests substitute fakes.
type WeightSource interface {
	AttendedWeights(ctx context.Context, studentID string) ([]event.SkillWeights, error)
}

// Adviser produces the coaching narrative. *coach.Client implements it.
type Adviser interface {
	Advise(ctx context.Context, scores map[string]float64) string
}

// Service computes normalized skill profiles from attended events.
type Service struct {
	weights WeightSource
	adviser Adviser
}

// NewService creates a service.
func NewService(weights WeightSource, adviser Adviser) *Service {
	return &Service{weights: weights, adviser: adviser}
}

// Summarize aggregates the student's attended-event weights into a
// normalized skill profile with a coach narrative. A student with no
// attendance records gets all-zero scores.
func (s *Service) Summarize(ctx context.Context, studentID string) (Summary, error) {
	if studentID == "" {
		return Summary{}, apperr.New(apperr.Invalid, "student id required")
	}
	attended, err := s.weights.AttendedWeights(ctx, studentID)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.Internal, "skill summary", err)
	}
	if len(attended) == 0 {
		return Summary{
			SkillScores:   zeroScores(),
			CoachAnalysis: "No attended events yet.",
		}, nil
	}

	raw := make(map[string]int, len(event.SkillCodes))
	for _, w := range attended {
		for code, v := range w.ByCode() {
			raw[code] += v
		}
	}
	scores := Normalize(raw)
	return Summary{
		SkillScores:   scores,
		CoachAnalysis: s.adviser.Advise(ctx, scores),
	}, nil
}

// Normalize scales raw per-code totals to a 0–10 range against the
// maximum category, rounded to 2 decimal places, keyed by full category
// name. All-zero input stays all-zero.
func Normalize(raw map[string]int) map[string]float64 {
	maxRaw := 0
	for _, v := range raw {
		if v > maxRaw {
			maxRaw = v
		}
	}
	out := make(map[string]float64, len(event.SkillCodes))
	for _, code := range event.SkillCodes {
		name := event.SkillNames[code]
		if maxRaw == 0 {
			out[name] = 0
			continue
		}
		out[name] = math.Round(float64(raw[code])/float64(maxRaw)*10*100) / 100
	}
	return out
}

func zeroScores() map[string]float64 {
	out := make(map[string]float64, len(event.SkillCodes))
	for _, code := range event.SkillCodes {
		out[event.SkillNames[code]] = 0
	}
	return out
}
