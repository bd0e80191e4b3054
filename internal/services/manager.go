// Package services provides service orchestration for the CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/vehicle-dashboard/internal/clock"
	"github.com/j-veylop/vehicle-dashboard/internal/config"
	"github.com/j-veylop/vehicle-dashboard/internal/db"
	"github.com/j-veylop/vehicle-dashboard/internal/logger"
	"github.com/j-veylop/vehicle-dashboard/internal/models"
	"github.com/j-veylop/vehicle-dashboard/internal/services/ocr"
	"github.com/j-veylop/vehicle-dashboard/internal/services/vehicle"
	"github.com/j-veylop/vehicle-dashboard/internal/services/watcher"
)

type (
	// SnapshotEvent is emitted when a user's snapshot is recomputed.
	SnapshotEvent struct {
		UserID   string
		Snapshot models.MetricsSnapshot
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SnapshotEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()    {}

// SnapshotPublisher sends snapshots somewhere outside the process.
type SnapshotPublisher interface {
	PublishSnapshot(userID string, snap models.MetricsSnapshot) error
	Close()
}

// Notifier shows a message to the user.
type Notifier func(title, message string) error

// DesktopNotifier shows a desktop notification.
func DesktopNotifier(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher publishes every recomputed snapshot. The manager closes it.
func WithPublisher(p SnapshotPublisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithNotifier enables notifications for new events and anomalies.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notify = n
	}
}

// WithClock replaces the clock used for snapshots and new events.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	vehicle     *vehicle.Service
	database    *db.DB
	watcher     *watcher.Watcher
	publisher   SnapshotPublisher
	notify      Notifier
	clock       clock.Clock
	stopChan    chan struct{}
	doneChan    chan struct{}
	subscribers []chan<- ServiceEvent
	previous    map[string]models.MetricsSnapshot
	session     vehicle.Session
	closeOnce   sync.Once
}

// NewManager opens the database and creates the services for session.
func NewManager(cfg *config.Config, session vehicle.Session, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		session:  session,
		clock:    clock.Real{},
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		previous: make(map[string]models.MetricsSnapshot),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	recognizer := ocr.NewClient(cfg.OCRURL, ocr.WithTimeout(cfg.OCRTimeout))

	m.vehicle = vehicle.New(m.database,
		vehicle.WithRecognizer(recognizer),
		vehicle.WithClock(m.clock),
		vehicle.WithAggregatorOptions(cfg.AggregatorOptions()...),
	)

	go m.routeEvents()

	return m, nil
}

// Watch refreshes the session's snapshot whenever the database changes on disk.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		return nil
	}

	w, err := watcher.New(m.cfg.DatabasePath, m.onDatabaseChange,
		watcher.WithDebounce(m.cfg.WatchDebounce),
		watcher.WithErrorHandler(func(err error) {
			m.broadcast(ErrorEvent{Service: "watcher", Error: err})
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to start database watcher: %w", err)
	}
	m.watcher = w
	return nil
}

func (m *Manager) onDatabaseChange() {
	logger.Debug("Database changed", "path", m.cfg.DatabasePath)
	if _, err := m.Refresh(context.Background()); err != nil {
		logger.Warn("Refresh after database change failed", "error", err)
	}
}

// Refresh recomputes the session's snapshot.
func (m *Manager) Refresh(ctx context.Context) (models.MetricsSnapshot, error) {
	return m.vehicle.Refresh(ctx, m.session)
}

// routeEvents routes events from the vehicle service to subscribers.
func (m *Manager) routeEvents() {
	defer close(m.doneChan)

	for {
		select {
		case event := <-m.vehicle.Events():
			m.handleVehicleEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

// handleVehicleEvent converts and broadcasts vehicle events.
func (m *Manager) handleVehicleEvent(event vehicle.Event) {
	switch event.Type {
	case vehicle.EventSnapshotUpdated:
		if event.Snapshot == nil {
			return
		}
		snap := *event.Snapshot

		m.checkNotifications(event.UserID, snap)

		if m.publisher != nil {
			if err := m.publisher.PublishSnapshot(event.UserID, snap); err != nil {
				logger.Error("Failed to publish snapshot", "user", event.UserID, "error", err)
				m.broadcast(ErrorEvent{Service: "publisher", Error: err})
			}
		}

		m.broadcast(SnapshotEvent{UserID: event.UserID, Snapshot: snap})

	case vehicle.EventError:
		m.broadcast(ErrorEvent{
			Service: "vehicle",
			Error:   event.Error,
		})
	}
}

// checkNotifications compares a snapshot with the previous one for the same
// user and notifies about new events and new anomalies.
func (m *Manager) checkNotifications(userID string, snap models.MetricsSnapshot) {
	m.mu.Lock()
	old, exists := m.previous[userID]
	m.previous[userID] = snap
	m.mu.Unlock()

	if !exists || m.notify == nil {
		return
	}

	var notes [][2]string

	if snap.OdometerCount > old.OdometerCount {
		notes = append(notes, [2]string{
			"New odometer reading",
			fmt.Sprintf("Odometer now at %.0f. Last %d days: %.0f driven.",
				snap.CurrentReading, m.cfg.WindowDays, snap.WindowDistance),
		})
	}

	if snap.FuelCount > old.FuelCount {
		notes = append(notes, [2]string{
			"Fuel entry added",
			fmt.Sprintf("Last %d days: %.2f spent, efficiency %.2f.",
				m.cfg.WindowDays, snap.WindowCost, snap.WindowEfficiency),
		})
	}

	// Only notify when anomalies appear, not while they persist
	if len(snap.Anomalies) > len(old.Anomalies) {
		notes = append(notes, [2]string{
			"Odometer anomaly",
			"A later odometer reading is lower than an earlier one. Check recent entries.",
		})
	}

	for _, n := range notes {
		if err := m.notify(n[0], n[1]); err != nil {
			logger.Warn("Notification failed", "title", n[0], "error", err)
		}
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
func (m *Manager) Subscribe() chan ServiceEvent {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Session returns the session the manager acts for.
func (m *Manager) Session() vehicle.Session {
	return m.session
}

// Vehicle returns the vehicle service.
func (m *Manager) Vehicle() *vehicle.Service {
	return m.vehicle
}

// Database returns the database.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		m.mu.RLock()
		w := m.watcher
		m.mu.RUnlock()

		// Stop the watcher first so no refresh races the shutdown
		if w != nil {
			if err := w.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		close(m.stopChan)
		<-m.doneChan

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.vehicle.Close(); err != nil {
			errs = append(errs, err)
		}

		if m.publisher != nil {
			m.publisher.Close()
		}

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}
