// Package daemon provides the long-running coordinator service and its HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"

	"github.com/theirongolddev/tburn/internal/coordinator"
	"github.com/theirongolddev/tburn/internal/logger"
	"github.com/theirongolddev/tburn/internal/model"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	Notify       bool
	SinkTimeout  time.Duration
}

// Coordinator is the part of coordinator.Coordinator the daemon drives.
type Coordinator interface {
	Tick(ctx context.Context, now time.Time) *model.Snapshot
	Refresh(ctx context.Context, now time.Time) *model.Snapshot
	Schedule() []coordinator.ScheduleEntry
}

// Sink receives every changed snapshot.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap *model.Snapshot) error
	Close() error
}

// Event types.
const (
	EventSnapshot       = "snapshot"
	EventMetricsDelta   = "metrics_delta"
	EventPricesTomorrow = "prices_tomorrow"
	EventFetchError     = "fetch_error"
)

// Delta captures metric changes between ticks.
type Delta struct {
	Changed  map[model.MetricKey]float64 `json:"changed,omitempty"`
	Appeared []model.MetricKey           `json:"appeared,omitempty"`
	Vanished []model.MetricKey           `json:"vanished,omitempty"`
}

func (d Delta) isZero() bool {
	return len(d.Changed) == 0 && len(d.Appeared) == 0 && len(d.Vanished) == 0
}

// Event is emitted whenever the published snapshot or fetcher health changes.
type Event struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Snapshot  *model.Snapshot `json:"snapshot,omitempty"`
	Delta     Delta           `json:"delta"`
	Fetcher   string          `json:"fetcher,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	InstanceID      string                      `json:"instance_id"`
	StartedAt       time.Time                   `json:"started_at"`
	LastTickAt      time.Time                   `json:"last_tick_at"`
	TickIntervalSec int                         `json:"tick_interval_sec"`
	TickCount       int64                       `json:"tick_count"`
	Snapshot        *model.Snapshot             `json:"snapshot,omitempty"`
	Schedule        []coordinator.ScheduleEntry `json:"schedule"`
	Sinks           []string                    `json:"sinks,omitempty"`
	EventCount      int                         `json:"event_count"`
	SubscriberCount int                         `json:"subscriber_count"`
}

// notify sends a desktop notification.
var notify = func(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg   Config
	coord Coordinator
	sinks []Sink
	id    string

	// tickMu serializes tick processing between the loop and /v1/refresh.
	tickMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastTickAt  time.Time
	tickCount   int64
	snapshot    *model.Snapshot
	schedule    []coordinator.ScheduleEntry
	lastErrs    map[string]string
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, coord Coordinator, sinks ...Sink) *Service {
	if cfg.Interval < time.Second {
		cfg.Interval = 15 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 10 * time.Second
	}

	return &Service{
		cfg:       cfg,
		coord:     coord,
		sinks:     sinks,
		id:        uuid.NewString(),
		startedAt: time.Now(),
		lastErrs:  make(map[string]string),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/v1/refresh", s.handleRefresh)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run starts HTTP endpoints and the tick loop until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("daemon started", "addr", s.cfg.Addr, "instance", s.id, "interval", s.cfg.Interval)

	// Seed initial snapshot so status is useful immediately.
	s.tickOnce(ctx, false)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.closeSinks()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.tickOnce(ctx, false)
		case err := <-errCh:
			s.closeSinks()
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// tickOnce runs one coordinator tick (or a forced refresh) and fans the
// result out to events, sinks and notifications.
func (s *Service) tickOnce(ctx context.Context, refresh bool) *model.Snapshot {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := time.Now()
	var snap *model.Snapshot
	if refresh {
		snap = s.coord.Refresh(ctx, now)
	} else {
		snap = s.coord.Tick(ctx, now)
	}
	schedule := s.coord.Schedule()

	changed, tomorrowFlip := s.record(snap, schedule, now)
	if changed {
		s.publishSinks(ctx, snap)
	}
	if tomorrowFlip && s.cfg.Notify {
		if err := notify("Tibber prices", "Tomorrow's electricity prices are available."); err != nil {
			logger.Warn("desktop notification failed", "error", err)
		}
	}
	return snap
}

// record stores the new snapshot and schedule and emits events. It reports
// whether the metrics changed and whether tomorrow's prices just appeared.
func (s *Service) record(snap *model.Snapshot, schedule []coordinator.ScheduleEntry, now time.Time) (changed, tomorrowFlip bool) {
	var pending []Event

	s.mu.Lock()
	prev := s.snapshot
	s.snapshot = snap
	s.schedule = schedule
	s.lastTickAt = now
	s.tickCount++

	newEvent := func(typ string) Event {
		s.nextEventID++
		return Event{ID: s.nextEventID, Type: typ, Timestamp: now, Snapshot: snap}
	}

	if prev == nil {
		pending = append(pending, newEvent(EventSnapshot))
		changed = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		ev := newEvent(EventMetricsDelta)
		ev.Delta = delta
		pending = append(pending, ev)
		changed = true
	}

	if snap != nil && snap.PricesTomorrow && (prev == nil || !prev.PricesTomorrow) {
		pending = append(pending, newEvent(EventPricesTomorrow))
		tomorrowFlip = prev != nil
	}

	for _, e := range schedule {
		if e.LastError != "" && e.LastError != s.lastErrs[e.ID] {
			ev := newEvent(EventFetchError)
			ev.Snapshot = nil
			ev.Fetcher = e.ID
			ev.Error = e.LastError
			pending = append(pending, ev)
		}
		s.lastErrs[e.ID] = e.LastError
	}
	s.mu.Unlock()

	for _, ev := range pending {
		s.publishEvent(ev)
	}
	return changed, tomorrowFlip
}

func (s *Service) publishSinks(ctx context.Context, snap *model.Snapshot) {
	for _, sink := range s.sinks {
		sctx, cancel := context.WithTimeout(ctx, s.cfg.SinkTimeout)
		if err := sink.Publish(sctx, snap); err != nil {
			logger.Warn("sink publish failed", "sink", sink.Name(), "error", err)
		}
		cancel()
	}
}

func (s *Service) closeSinks() {
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			logger.Warn("sink close failed", "sink", sink.Name(), "error", err)
		}
	}
}

// diffSnapshots compares the exposed metric values of two snapshots.
func diffSnapshots(prev, curr *model.Snapshot) Delta {
	var d Delta
	if prev == nil || curr == nil {
		return d
	}
	for _, key := range curr.Enabled {
		a, b := prev.Value(key), curr.Value(key)
		switch {
		case a == nil && b == nil:
		case a == nil:
			d.Appeared = append(d.Appeared, key)
		case b == nil:
			d.Vanished = append(d.Vanished, key)
		case *a != *b:
			if d.Changed == nil {
				d.Changed = make(map[model.MetricKey]float64)
			}
			d.Changed[key] = *b - *a
		}
	}
	for _, key := range prev.Enabled {
		if !curr.IsEnabled(key) && prev.Value(key) != nil {
			d.Vanished = append(d.Vanished, key)
		}
	}
	return d
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sinks := make([]string, 0, len(s.sinks))
	for _, sink := range s.sinks {
		sinks = append(sinks, sink.Name())
	}
	return Status{
		InstanceID:      s.id,
		StartedAt:       s.startedAt,
		LastTickAt:      s.lastTickAt,
		TickIntervalSec: int(s.cfg.Interval.Seconds()),
		TickCount:       s.tickCount,
		Snapshot:        s.snapshot,
		Schedule:        s.schedule,
		Sinks:           sinks,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// A client that hangs up must not cancel the fetches it started.
	snap := s.tickOnce(context.WithoutCancel(r.Context()), true)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Snapshot,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
