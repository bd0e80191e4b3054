// Package vehicle records odometer readings and fuel purchases for a signed-in
// user and keeps the derived metrics snapshot up to date.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/j-veylop/vehicle-dashboard/internal/aggregator"
	"github.com/j-veylop/vehicle-dashboard/internal/clock"
	"github.com/j-veylop/vehicle-dashboard/internal/logger"
	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

var (
	// ErrNotAuthenticated is returned for any operation without a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidQuantity is returned when a fuel quantity is not a positive number.
	ErrInvalidQuantity = errors.New("fuel quantity must be greater than zero")

	// ErrInvalidReading is returned for negative or non-finite odometer values.
	ErrInvalidReading = errors.New("odometer reading must be a non-negative number")

	// ErrNoRecognizer is returned by UploadOdometer when no recognizer is configured.
	ErrNoRecognizer = errors.New("image recognition is not configured")
)

// EventStore persists and lists a user's vehicle events.
type EventStore interface {
	ListOdometerReadings(ctx context.Context, userID string) ([]models.OdometerReading, error)
	ListFuelEntries(ctx context.Context, userID string) ([]models.FuelEntry, error)
	AppendOdometerReading(ctx context.Context, userID string, value float64, at time.Time) (models.OdometerReading, error)
	AppendFuelEntry(ctx context.Context, userID string, quantity, price float64, at time.Time) (models.FuelEntry, error)
}

// Recognizer extracts an odometer value from a photo.
type Recognizer interface {
	RecognizeOdometer(ctx context.Context, filename string, image io.Reader) (float64, error)
}

// Session identifies the signed-in user.
type Session struct {
	UserID string
}

// Authenticated reports whether the session carries a user.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Event represents a vehicle service event.
type Event struct {
	Error    error
	Snapshot *models.MetricsSnapshot
	UserID   string
	Type     EventType
}

// EventType defines the type of vehicle event.
type EventType int

const (
	EventSnapshotUpdated EventType = iota
	EventReadingAdded
	EventFuelAdded
	EventError
)

// String returns a short name for the event type.
func (t EventType) String() string {
	switch t {
	case EventSnapshotUpdated:
		return "snapshot_updated"
	case EventReadingAdded:
		return "reading_added"
	case EventFuelAdded:
		return "fuel_added"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Service records events and caches one snapshot per user.
type Service struct {
	mu         sync.RWMutex
	store      EventStore
	recognizer Recognizer
	clock      clock.Clock
	snapshots  map[string]models.MetricsSnapshot
	eventChan  chan Event
	aggOpts    []aggregator.Option
}

// Option configures a Service.
type Option func(*Service)

// WithRecognizer sets the image recognizer used by UploadOdometer.
func WithRecognizer(r Recognizer) Option {
	return func(s *Service) {
		s.recognizer = r
	}
}

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAggregatorOptions sets the options used when computing snapshots.
func WithAggregatorOptions(opts ...aggregator.Option) Option {
	return func(s *Service) {
		s.aggOpts = append(s.aggOpts, opts...)
	}
}

// New creates a vehicle service backed by store.
func New(store EventStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		clock:     clock.Real{},
		snapshots: make(map[string]models.MetricsSnapshot),
		eventChan: make(chan Event, 100),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the event channel for subscribing to vehicle changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Refresh reloads the user's events and recomputes the snapshot.
func (s *Service) Refresh(ctx context.Context, session Session) (models.MetricsSnapshot, error) {
	if !session.Authenticated() {
		return models.MetricsSnapshot{}, ErrNotAuthenticated
	}

	readings, err := s.store.ListOdometerReadings(ctx, session.UserID)
	if err != nil {
		return models.MetricsSnapshot{}, s.fail(session.UserID, fmt.Errorf("failed to load odometer readings: %w", err))
	}

	entries, err := s.store.ListFuelEntries(ctx, session.UserID)
	if err != nil {
		return models.MetricsSnapshot{}, s.fail(session.UserID, fmt.Errorf("failed to load fuel entries: %w", err))
	}

	snap := aggregator.ComputeSnapshot(readings, entries, s.clock.Now(), s.aggOpts...)

	s.mu.Lock()
	s.snapshots[session.UserID] = snap
	s.mu.Unlock()

	logger.Debug("Snapshot refreshed",
		"user", session.UserID,
		"readings", snap.OdometerCount,
		"fuel_entries", snap.FuelCount,
	)

	s.sendEvent(Event{Type: EventSnapshotUpdated, UserID: session.UserID, Snapshot: &snap})

	return snap, nil
}

// Snapshot returns the cached snapshot for a user, if one has been computed.
func (s *Service) Snapshot(userID string) (models.MetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[userID]
	return snap, ok
}

// UploadOdometer recognizes the odometer value in a photo and records it.
func (s *Service) UploadOdometer(ctx context.Context, session Session, filename string, image io.Reader) (models.OdometerReading, error) {
	if !session.Authenticated() {
		return models.OdometerReading{}, ErrNotAuthenticated
	}
	if s.recognizer == nil {
		return models.OdometerReading{}, ErrNoRecognizer
	}

	value, err := s.recognizer.RecognizeOdometer(ctx, filename, image)
	if err != nil {
		return models.OdometerReading{}, s.fail(session.UserID, fmt.Errorf("failed to recognize odometer: %w", err))
	}

	return s.addReading(ctx, session, value)
}

// AddOdometerReading records a manually entered odometer value.
func (s *Service) AddOdometerReading(ctx context.Context, session Session, value float64) (models.OdometerReading, error) {
	if !session.Authenticated() {
		return models.OdometerReading{}, ErrNotAuthenticated
	}
	return s.addReading(ctx, session, value)
}

func (s *Service) addReading(ctx context.Context, session Session, value float64) (models.OdometerReading, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return models.OdometerReading{}, fmt.Errorf("%w: %v", ErrInvalidReading, value)
	}

	reading, err := s.store.AppendOdometerReading(ctx, session.UserID, value, s.clock.Now())
	if err != nil {
		return models.OdometerReading{}, s.fail(session.UserID, fmt.Errorf("failed to save odometer reading: %w", err))
	}

	logger.Info("Odometer reading added", "user", session.UserID, "value", value)
	s.sendEvent(Event{Type: EventReadingAdded, UserID: session.UserID})

	s.refreshAfterWrite(ctx, session)
	return reading, nil
}

// AddFuelEntry records a fuel purchase. A negative or missing price is stored as 0.
func (s *Service) AddFuelEntry(ctx context.Context, session Session, quantity, price float64) (models.FuelEntry, error) {
	if !session.Authenticated() {
		return models.FuelEntry{}, ErrNotAuthenticated
	}
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return models.FuelEntry{}, ErrInvalidQuantity
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		price = 0
	}

	entry, err := s.store.AppendFuelEntry(ctx, session.UserID, quantity, price, s.clock.Now())
	if err != nil {
		return models.FuelEntry{}, s.fail(session.UserID, fmt.Errorf("failed to save fuel entry: %w", err))
	}

	logger.Info("Fuel entry added", "user", session.UserID, "quantity", quantity, "price", price)
	s.sendEvent(Event{Type: EventFuelAdded, UserID: session.UserID})

	s.refreshAfterWrite(ctx, session)
	return entry, nil
}

// refreshAfterWrite recomputes the snapshot once a write has succeeded.
// The write is not rolled back if the refresh fails.
func (s *Service) refreshAfterWrite(ctx context.Context, session Session) {
	if _, err := s.Refresh(ctx, session); err != nil {
		logger.Warn("Failed to refresh snapshot after write", "user", session.UserID, "error", err)
	}
}

// fail logs err, emits it as an event and returns it.
func (s *Service) fail(userID string, err error) error {
	logger.Error("Vehicle operation failed", "user", userID, "error", err)
	s.sendEvent(Event{Type: EventError, UserID: userID, Error: err})
	return err
}

func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close drops all cached snapshots.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.snapshots)
	return nil
}
