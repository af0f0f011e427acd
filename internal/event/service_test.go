package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engage/internal/apperr"
)

type pairKey struct {
	student string
	eventID int64
}

// fakeStore mimics the transactional repo semantics in memory.
type fakeStore struct {
	events   map[int64]Event
	tickets  map[pairKey]*Ticket
	balances map[string]int
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:   map[int64]Event{},
		tickets:  map[pairKey]*Ticket{},
		balances: map[string]int{},
		nextID:   1,
	}
}

func (f *fakeStore) InsertEvent(_ context.Context, e Event) (int64, error) {
	e.ID = f.nextID
	f.nextID++
	f.events[e.ID] = e
	return e.ID, nil
}

func (f *fakeStore) GetEvent(_ context.Context, id int64) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, id int64, upd Update) (bool, error) {
	e, ok := f.events[id]
	if !ok {
		return false, nil
	}
	if upd.Name != nil {
		e.Name = *upd.Name
	}
	if upd.ImageURL != nil {
		e.ImageURL = *upd.ImageURL
	}
	f.events[id] = e
	return true, nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id int64) (string, bool, error) {
	e, ok := f.events[id]
	if !ok {
		return "", false, nil
	}
	delete(f.events, id)
	for k := range f.tickets {
		if k.eventID == id {
			delete(f.tickets, k)
		}
	}
	return e.ImageURL, true, nil
}

func (f *fakeStore) ListEvents(_ context.Context, _ ListFilter, _, _ string, page int, _ time.Time) ([]Event, int, error) {
	all := make([]Event, 0, len(f.events))
	for _, e := range f.events {
		all = append(all, e)
	}
	return paginate(all, page), len(all), nil
}

func (f *fakeStore) InsertTicket(_ context.Context, studentID string, eventID int64) (Ticket, error) {
	key := pairKey{studentID, eventID}
	if _, exists := f.tickets[key]; exists {
		return Ticket{}, ErrDuplicateTicket
	}
	t := Ticket{TicketID: "ticket-1", StudentID: studentID, EventID: eventID, CreatedAt: time.Now()}
	f.tickets[key] = &t
	return t, nil
}

func (f *fakeStore) CheckIn(_ context.Context, studentID string, eventID int64) (int, error) {
	t, ok := f.tickets[pairKey{studentID, eventID}]
	if !ok {
		return 0, ErrNoRegistration
	}
	if t.CheckedIn {
		return 0, ErrAlreadyCheckedIn
	}
	t.CheckedIn = true
	award := f.events[eventID].Skills.Total()
	f.balances[studentID] += award
	return award, nil
}

func (f *fakeStore) ListForStudent(_ context.Context, studentID string, _ ListFilter, page int, _ time.Time) ([]StudentEvent, int, error) {
	var all []StudentEvent
	for key, t := range f.tickets {
		if key.student != studentID {
			continue
		}
		all = append(all, StudentEvent{Event: f.events[key.eventID], TicketID: t.TicketID, CheckedIn: t.CheckedIn})
	}
	return paginate(all, page), len(all), nil
}

func paginate[T any](all []T, page int) []T {
	start := (page - 1) * PageSize
	if start >= len(all) {
		return nil
	}
	end := start + PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func newTestService(store *fakeStore, now time.Time) *Service {
	svc := NewService(store)
	svc.now = func() time.Time { return now }
	return svc
}

func futureEvent(store *fakeStore, now time.Time, w SkillWeights) int64 {
	id, _ := store.InsertEvent(context.Background(), Event{
		Name:      "Networking Night",
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(3 * time.Hour),
		Skills:    w,
	})
	return id
}

func TestCreateEventValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now())

	_, err := svc.CreateEvent(context.Background(), Event{Name: " "})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	start := time.Now()
	_, err = svc.CreateEvent(context.Background(), Event{Name: "x", StartTime: start, EndTime: start})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = svc.CreateEvent(context.Background(), Event{Name: "x", StartTime: start.Add(time.Hour), EndTime: start})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	id, err := svc.CreateEvent(context.Background(), Event{Name: "x", StartTime: start, EndTime: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)
	id := futureEvent(store, now, SkillWeights{})

	_, err := svc.Register(context.Background(), "z100", id)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "z100", id)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Len(t, store.tickets, 1)
}

func TestRegisterUnknownEvent(t *testing.T) {
	now := time.Now()
	svc := newTestService(newFakeStore(), now)

	_, err := svc.Register(context.Background(), "z100", 42)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestRegisterEndedEvent(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)
	id, _ := store.InsertEvent(context.Background(), Event{
		Name:      "Old Workshop",
		StartTime: now.Add(-3 * time.Hour),
		EndTime:   now.Add(-time.Hour),
	})

	_, err := svc.Register(context.Background(), "z100", id)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestCheckInBeforeRegister(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)
	id := futureEvent(store, now, SkillWeights{EC: 3})

	_, err := svc.CheckIn(context.Background(), "z100", id)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Equal(t, 0, store.balances["z100"])
}

func TestCheckInAwardsWeightSum(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)
	id := futureEvent(store, now, SkillWeights{EC: 3, LT: 2})

	_, err := svc.Register(context.Background(), "z100", id)
	require.NoError(t, err)

	award, err := svc.CheckIn(context.Background(), "z100", id)
	require.NoError(t, err)
	assert.Equal(t, 5, award)
	assert.Equal(t, 5, store.balances["z100"])
}

func TestSecondCheckInRejectedAndAwardsOnce(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)
	id := futureEvent(store, now, SkillWeights{EC: 3, LT: 2})

	_, err := svc.Register(context.Background(), "z100", id)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), "z100", id)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), "z100", id)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, 5, store.balances["z100"], "balance must change exactly once")
}

func TestListForStudentPagination(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)

	for i := 0; i < 15; i++ {
		id := futureEvent(store, now, SkillWeights{})
		_, err := svc.Register(context.Background(), "z100", id)
		require.NoError(t, err)
	}

	page1, err := svc.ListForStudent(context.Background(), "z100", FilterAll, 1)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 10)
	assert.Equal(t, 15, page1.TotalCount)
	assert.Equal(t, 2, page1.TotalPages)

	page2, err := svc.ListForStudent(context.Background(), "z100", FilterAll, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 5)
	assert.Equal(t, 2, page2.TotalPages)
}

func TestListForStudentUnknownFilter(t *testing.T) {
	svc := newTestService(newFakeStore(), time.Now())
	_, err := svc.ListForStudent(context.Background(), "z100", ListFilter("someday"), 1)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestUpdateEventMissing(t *testing.T) {
	svc := newTestService(newFakeStore(), time.Now())
	name := "renamed"
	err := svc.UpdateEvent(context.Background(), 9, Update{Name: &name})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDeleteEventReturnsImage(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	svc := newTestService(store, now)
	id, _ := store.InsertEvent(context.Background(), Event{
		Name:      "Gala",
		StartTime: now,
		EndTime:   now.Add(time.Hour),
		ImageURL:  "https://res.cloudinary.com/demo/image/upload/v1/events/gala.jpg",
	})
	_, err := svc.Register(context.Background(), "z100", id)
	require.NoError(t, err)

	imageURL, err := svc.DeleteEvent(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, imageURL, "gala.jpg")
	assert.Empty(t, store.tickets, "attendance records cascade with the event")
}
