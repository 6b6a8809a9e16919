package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/repository"
)

// memStore is an in-memory RideStore and BookingStore.  Every method holds
// the mutex for its whole body, which gives the same atomicity as the
// transactions of the MySQL repositories.  failInsert and failRelease make
// the next booking insert or seat release fail, rolling back its whole
// operation.
type memStore struct {
	mu          sync.Mutex
	rides       map[string]model.Ride
	bookings    map[string]model.Booking
	failInsert  error
	failRelease error
}

func newMemStore() *memStore {
	return &memStore{rides: map[string]model.Ride{}, bookings: map[string]model.Booking{}}
}

func (m *memStore) put(r model.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = r
}

func (m *memStore) seats(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rides[id].AvailableSeats
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *memStore) Create(ctx context.Context, r *model.Ride) error {
	m.put(*r)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ListUpcoming(ctx context.Context, since time.Time, limit int) ([]model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Ride{}
	for _, r := range m.rides {
		if r.DepartureAt.After(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListByDriver(ctx context.Context, driverID string) ([]model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Ride{}
	for _, r := range m.rides {
		if r.DriverID == driverID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BookSeats applies the decrement and the insert together, or neither.
func (m *memStore) BookSeats(ctx context.Context, b *model.Booking) (*model.Ride, error) {
	if b.Seats < 1 {
		return nil, repository.ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[b.RideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.AvailableSeats < b.Seats {
		return nil, repository.ErrInsufficientSeats
	}
	if m.failInsert != nil {
		return nil, m.failInsert
	}
	r.AvailableSeats -= b.Seats
	m.rides[b.RideID] = r
	m.bookings[b.ID] = *b
	return &r, nil
}

// CancelBooking removes the booking and releases its seats together, or
// neither.
func (m *memStore) CancelBooking(ctx context.Context, bookingID, riderID string) (*model.Booking, *model.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	if b.RiderID != riderID {
		return nil, nil, repository.ErrForbidden
	}
	r, rideExists := m.rides[b.RideID]
	if rideExists {
		if m.failRelease != nil {
			return nil, nil, m.failRelease
		}
		if r.AvailableSeats+b.Seats > r.Capacity {
			return nil, nil, repository.ErrCapacityExceeded
		}
	}
	delete(m.bookings, bookingID)
	if !rideExists {
		return &b, nil, nil
	}
	r.AvailableSeats += b.Seats
	m.rides[b.RideID] = r
	return &b, &r, nil
}

func (m *memStore) DeleteWithBookings(ctx context.Context, id string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[id]; !ok {
		return nil, repository.ErrNotFound
	}
	removed := []model.Booking{}
	for bid, b := range m.bookings {
		if b.RideID == id {
			removed = append(removed, b)
			delete(m.bookings, bid)
		}
	}
	delete(m.rides, id)
	return removed, nil
}

// bookingStore exposes the booking half of memStore under the
// BookingStore method names.
type bookingStore struct{ *memStore }

func (s bookingStore) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s bookingStore) ListByRider(ctx context.Context, riderID string) ([]model.Booking, error) {
	return s.filter(func(b model.Booking) bool { return b.RiderID == riderID }), nil
}

func (s bookingStore) ListByRide(ctx context.Context, rideID string) ([]model.Booking, error) {
	return s.filter(func(b model.Booking) bool { return b.RideID == rideID }), nil
}

func (s bookingStore) filter(keep func(model.Booking) bool) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s bookingStore) MarkCaptured(ctx context.Context, id, transactionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PaymentStatus = model.PaymentCaptured
	b.Status = model.BookingConfirmed
	b.TransactionID = &transactionID
	b.ChargedAt = &at
	s.bookings[id] = b
	return nil
}

// memFeedback is an in-memory FeedbackStore keyed by booking.
type memFeedback struct {
	mu        sync.Mutex
	byBooking map[string]model.Feedback
}

func newMemFeedback() *memFeedback { return &memFeedback{byBooking: map[string]model.Feedback{}} }

func (m *memFeedback) Create(ctx context.Context, f *model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byBooking[f.BookingID]; ok {
		return repository.ErrDuplicate
	}
	m.byBooking[f.BookingID] = *f
	return nil
}

func (m *memFeedback) ListByDriver(ctx context.Context, driverID string) ([]model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Feedback{}
	for _, f := range m.byBooking {
		if f.DriverID == driverID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type published struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type enqueued struct {
	jobType string
	payload map[string]any
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, jobType string, payload map[string]any) (model.JobHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return model.JobHandle{}, d.err
	}
	d.jobs = append(d.jobs, enqueued{jobType: jobType, payload: payload})
	return model.JobHandle{ID: "job-" + jobType, Queue: "notifications"}, nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls int
	keys  []string
}

func (i *recordingInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	i.keys = append(i.keys, keys...)
	return nil
}
