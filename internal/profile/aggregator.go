package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"engage/internal/apperr"
	"engage/internal/event"
	"engage/internal/metrics"
	"engage/internal/user"
)

// Resolver locates peer services. *registry.Client implements it.
type Resolver interface {
	ResolveURL(ctx context.Context, serviceName string) (string, error)
}

// StudentSource reads the local student record. *user.Repository
// implements it.
type StudentSource interface {
	GetStudent(ctx context.Context, studentID string) (*user.Student, error)
}

// Profile is the composite student view assembled from local data plus
// the event and analysis services. When a remote call fails its fields
// stay empty; the profile itself still succeeds.
type Profile struct {
	Student       user.Student         `json:"student"`
	EventHistory  []event.StudentEvent `json:"eventHistory"`
	EventCount    int                  `json:"eventCount"`
	SkillScores   map[string]float64   `json:"skillScores"`
	CoachAnalysis string               `json:"coachAnalysis"`
}

// Service assembles profiles across service boundaries.
type Service struct {
	students        StudentSource
	resolver        Resolver
	http            *http.Client
	eventService    string
	analysisService string
}

// NewService creates an aggregator. timeout bounds each remote call.
func NewService(students StudentSource, resolver Resolver, eventService, analysisService string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		students:        students,
		resolver:        resolver,
		http:            &http.Client{Timeout: timeout},
		eventService:    eventService,
		analysisService: analysisService,
	}
}

// GetProfile returns the composite profile for a student. The local
// record is required; the two remote enrichments degrade independently
// to empty values on resolution failure, timeout, or error status.
func (s *Service) GetProfile(ctx context.Context, studentID string) (Profile, error) {
	st, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return Profile{}, apperr.Wrap(apperr.Internal, "get profile", err)
	}
	if st == nil {
		return Profile{}, apperr.New(apperr.NotFound, "student not found")
	}

	p := Profile{
		Student:      *st,
		EventHistory: []event.StudentEvent{},
		SkillScores:  map[string]float64{},
	}

	if history, total, err := s.fetchEventHistory(ctx, studentID); err != nil {
		metrics.RemoteCallFailures.WithLabelValues(s.eventService).Inc()
		log.Printf("profile: event history for %s degraded: %v", studentID, err)
	} else {
		p.EventHistory = history
		p.EventCount = total
	}

	if summary, err := s.fetchSkillSummary(ctx, studentID); err != nil {
		metrics.RemoteCallFailures.WithLabelValues(s.analysisService).Inc()
		log.Printf("profile: skill summary for %s degraded: %v", studentID, err)
	} else {
		p.SkillScores = summary.SkillScores
		p.CoachAnalysis = summary.CoachAnalysis
	}

	return p, nil
}

func (s *Service) fetchEventHistory(ctx context.Context, studentID string) ([]event.StudentEvent, int, error) {
	var out struct {
		EventHistory []event.StudentEvent `json:"eventHistory"`
		Total        int                  `json:"total"`
	}
	if err := s.fetchJSON(ctx, s.eventService, "/internal/event-history/"+url.PathEscape(studentID), &out); err != nil {
		return nil, 0, err
	}
	if out.EventHistory == nil {
		out.EventHistory = []event.StudentEvent{}
	}
	return out.EventHistory, out.Total, nil
}

type skillSummary struct {
	SkillScores   map[string]float64 `json:"skillScores"`
	CoachAnalysis string             `json:"coachAnalysis"`
}

func (s *Service) fetchSkillSummary(ctx context.Context, studentID string) (skillSummary, error) {
	var out skillSummary
	if err := s.fetchJSON(ctx, s.analysisService, "/internal/skill-summary/"+url.PathEscape(studentID), &out); err != nil {
		return skillSummary{}, err
	}
	if out.SkillScores == nil {
		out.SkillScores = map[string]float64{}
	}
	return out, nil
}

func (s *Service) fetchJSON(ctx context.Context, serviceName, path string, v any) error {
	callCtx, cancel := context.WithTimeout(ctx, s.http.Timeout)
	defer cancel()

	base, err := s.resolver.ResolveURL(callCtx, serviceName)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Unavailable, serviceName+" unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.Unavailable, fmt.Sprintf("%s returned status %d", serviceName, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.Unavailable, serviceName+" response malformed", err)
	}
	return nil
}
