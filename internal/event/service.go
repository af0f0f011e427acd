package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"engage/internal/apperr"
	"engage/internal/metrics"
)

// Store is the persistence surface the service drives. *Repository
// implements it; tests substitute fakes.
type Store interface {
	InsertEvent(ctx context.Context, e Event) (int64, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
	UpdateEvent(ctx context.Context, id int64, upd Update) (bool, error)
	DeleteEvent(ctx context.Context, id int64) (imageURL string, found bool, err error)
	ListEvents(ctx context.Context, filter ListFilter, search, tag string, page int, now time.Time) ([]Event, int, error)
	InsertTicket(ctx context.Context, studentID string, eventID int64) (Ticket, error)
	CheckIn(ctx context.Context, studentID string, eventID int64) (int, error)
	ListForStudent(ctx context.Context, studentID string, filter ListFilter, page int, now time.Time) ([]StudentEvent, int, error)
}

// Service enforces the register/check-in protocol and owns the event
// catalog rules.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// CreateEvent validates and stores a new catalog entry.
func (s *Service) CreateEvent(ctx context.Context, e Event) (int64, error) {
	if strings.TrimSpace(e.Name) == "" {
		return 0, apperr.New(apperr.Invalid, "event name required")
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return 0, apperr.New(apperr.Invalid, "start and end time required")
	}
	if !e.StartTime.Before(e.EndTime) {
		return 0, apperr.New(apperr.Invalid, "start time must be before end time")
	}
	id, err := s.store.InsertEvent(ctx, e)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "create event", err)
	}
	return id, nil
}

// GetEvent returns one event by id.
func (s *Service) GetEvent(ctx context.Context, id int64) (*Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get event", err)
	}
	if e == nil {
		return nil, apperr.New(apperr.NotFound, "event not found")
	}
	return e, nil
}

// UpdateEvent applies a partial update to an event.
func (s *Service) UpdateEvent(ctx context.Context, id int64, upd Update) error {
	if upd.StartTime != nil && upd.EndTime != nil && !upd.StartTime.Before(*upd.EndTime) {
		return apperr.New(apperr.Invalid, "start time must be before end time")
	}
	found, err := s.store.UpdateEvent(ctx, id, upd)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update event", err)
	}
	if !found {
		return apperr.New(apperr.NotFound, "event not found")
	}
	return nil
}

// DeleteEvent removes an event with its attendance records and returns
// the stored image reference for media cleanup.
func (s *Service) DeleteEvent(ctx context.Context, id int64) (string, error) {
	imageURL, found, err := s.store.DeleteEvent(ctx, id)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "delete event", err)
	}
	if !found {
		return "", apperr.New(apperr.NotFound, "event not found")
	}
	return imageURL, nil
}

// ListEvents returns one page of the catalog.
func (s *Service) ListEvents(ctx context.Context, filter ListFilter, search, tag string, page int) (Page[Event], error) {
	if filter == "" {
		filter = FilterAll
	}
	if !filter.Valid() {
		return Page[Event]{}, apperr.Newf(apperr.Invalid, "unknown filter %q", filter)
	}
	if page < 1 {
		page = 1
	}
	items, total, err := s.store.ListEvents(ctx, filter, search, tag, page, s.now())
	if err != nil {
		return Page[Event]{}, apperr.Wrap(apperr.Internal, "list events", err)
	}
	return Page[Event]{
		Page:       page,
		PageSize:   PageSize,
		TotalCount: total,
		TotalPages: TotalPages(total),
		Items:      items,
	}, nil
}

// Register creates a Registered attendance record for the pair and
// returns the ticket. Registration closes once the event has ended.
func (s *Service) Register(ctx context.Context, studentID string, eventID int64) (Ticket, error) {
	if studentID == "" {
		return Ticket{}, apperr.New(apperr.Invalid, "student id required")
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return Ticket{}, apperr.Wrap(apperr.Internal, "register", err)
	}
	if e == nil {
		return Ticket{}, apperr.New(apperr.NotFound, "event not found")
	}
	if s.now().After(e.EndTime) {
		return Ticket{}, apperr.New(apperr.Conflict, "event has already ended")
	}
	t, err := s.store.InsertTicket(ctx, studentID, eventID)
	if err != nil {
		if errors.Is(err, ErrDuplicateTicket) {
			return Ticket{}, apperr.New(apperr.Conflict, "already registered for this event")
		}
		return Ticket{}, apperr.Wrap(apperr.Internal, "register", err)
	}
	metrics.TicketsIssued.Inc()
	return t, nil
}

// CheckIn marks a Registered record as attended and awards the event's
// summed skill weights. A repeated check-in is rejected, not absorbed.
func (s *Service) CheckIn(ctx context.Context, studentID string, eventID int64) (int, error) {
	if studentID == "" {
		return 0, apperr.New(apperr.Invalid, "student id required")
	}
	award, err := s.store.CheckIn(ctx, studentID, eventID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoRegistration):
			return 0, apperr.New(apperr.NotFound, "no registration for this event")
		case errors.Is(err, ErrAlreadyCheckedIn):
			return 0, apperr.New(apperr.Conflict, "already checked in")
		default:
			return 0, apperr.Wrap(apperr.Internal, "check in", err)
		}
	}
	metrics.CheckIns.Inc()
	metrics.PointsAwarded.Add(float64(award))
	return award, nil
}

// ListForStudent returns one page of the student's registered events
// enriched with check-in state.
func (s *Service) ListForStudent(ctx context.Context, studentID string, filter ListFilter, page int) (Page[StudentEvent], error) {
	if studentID == "" {
		return Page[StudentEvent]{}, apperr.New(apperr.Invalid, "student id required")
	}
	if filter == "" {
		filter = FilterAll
	}
	if !filter.Valid() {
		return Page[StudentEvent]{}, apperr.Newf(apperr.Invalid, "unknown filter %q", filter)
	}
	if page < 1 {
		page = 1
	}
	items, total, err := s.store.ListForStudent(ctx, studentID, filter, page, s.now())
	if err != nil {
		return Page[StudentEvent]{}, apperr.Wrap(apperr.Internal, "list student events", err)
	}
	return Page[StudentEvent]{
		Page:       page,
		PageSize:   PageSize,
		TotalCount: total,
		TotalPages: TotalPages(total),
		Items:      items,
	}, nil
}
