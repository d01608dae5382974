// Package coordinator schedules the Tibber fetchers on a shared tick, applies
// their results to the monthly ledger and publishes metric snapshots.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/logger"
	"github.com/theirongolddev/tburn/internal/model"
	"github.com/theirongolddev/tburn/internal/pipeline"
	"github.com/theirongolddev/tburn/internal/tibber"
)

// DefaultFetchTimeout bounds a single fetcher invocation.
const DefaultFetchTimeout = 30 * time.Second

// HistoricSource returns the hourly consumption history of a home.
type HistoricSource interface {
	FetchHistoricConsumption(ctx context.Context) ([]tibber.HourlyConsumption, error)
}

// LiveHome caches the current price info of a home.
type LiveHome interface {
	UpdatePriceInfo(ctx context.Context) error
	PriceTotal() map[string]float64
	HasRealTimeConsumption() bool
	Info() tibber.HomeInfo
}

// GridSource serves grid tariffs behind an app login.
type GridSource interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	FetchGridPrices(ctx context.Context, token string) (*tibber.GridPriceResponse, error)
}

// Fetcher retrieves data from one source and proposes its next run.
// Fetch must not modify coordinator state; changes are returned as mutations.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, view pipeline.View, now time.Time) Result
}

// Result is what a fetcher returns from one invocation.
type Result struct {
	Mutations []Mutation
	NextDue   time.Time
	Err       error
}

// ScheduleEntry is a read-only copy of one fetcher's schedule state.
type ScheduleEntry struct {
	ID        string    `json:"id"`
	NextDue   time.Time `json:"next_due"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Options configures a Coordinator.
type Options struct {
	Location     *time.Location
	FetchTimeout time.Duration
	Subsidy      config.SubsidyParams
	// Start sets the initial schedule; fetchers are due one minute before it.
	Start time.Time
}

type entry struct {
	fetcher Fetcher
	nextDue time.Time
	lastRun time.Time
	lastErr error
}

// state is everything mutations touch. It is only accessed under mu.
type state struct {
	ledger   *pipeline.Ledger
	peak     *pipeline.PeakTracker
	live     map[time.Time]float64
	grid     map[time.Time]float64
	realtime bool
	tomorrow bool
	home     model.HomeInfo
}

// Coordinator runs fetchers when they are due and publishes snapshots.
// Tick and Refresh are serialized; a call made while another is running
// waits for it.
type Coordinator struct {
	mu      sync.Mutex
	loc     *time.Location
	timeout time.Duration
	subsidy config.SubsidyParams
	start   time.Time
	entries []*entry
	st      state
	grid    bool

	snap atomic.Pointer[model.Snapshot]
}

// New creates a coordinator with no fetchers registered.
func New(opts Options) *Coordinator {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	subsidy := opts.Subsidy
	if subsidy == (config.SubsidyParams{}) {
		subsidy = config.DefaultSubsidy
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	return &Coordinator{
		loc:     loc,
		timeout: timeout,
		subsidy: subsidy,
		start:   start,
		st: state{
			ledger: pipeline.NewLedger(start, loc),
			peak:   pipeline.NewPeakTracker(loc),
		},
	}
}

// Register adds f to the schedule, due immediately.
func (c *Coordinator) Register(f Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &entry{fetcher: f, nextDue: c.start.Add(-time.Minute)})
	if f.ID() == GridPriceFetcherID {
		c.grid = true
	}
}

// Tick runs every fetcher due at now, applies their mutations and publishes
// a new snapshot.
func (c *Coordinator) Tick(ctx context.Context, now time.Time) *model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked(ctx, now)
}

// Refresh marks every fetcher due and ticks.
func (c *Coordinator) Refresh(ctx context.Context, now time.Time) *model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.nextDue = now
	}
	return c.tickLocked(ctx, now)
}

func (c *Coordinator) tickLocked(ctx context.Context, now time.Time) *model.Snapshot {
	for _, e := range c.entries {
		if now.Before(e.nextDue) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		id := e.fetcher.ID()
		logger.Debug("running fetcher", "fetcher", id, "due", e.nextDue)

		fctx, cancel := context.WithTimeout(ctx, c.timeout)
		res := e.fetcher.Fetch(fctx, c.st.ledger, now)
		cancel()

		for _, m := range res.Mutations {
			m.apply(&c.st)
		}
		e.nextDue = res.NextDue
		e.lastRun = now
		e.lastErr = res.Err
		if res.Err != nil {
			logger.Warn("fetch failed", "fetcher", id, "error", res.Err, "next_due", res.NextDue)
		} else {
			logger.Debug("fetch done", "fetcher", id, "mutations", len(res.Mutations), "next_due", res.NextDue)
		}
	}

	snap := c.buildSnapshot(now)
	c.snap.Store(snap)
	return snap
}

func (c *Coordinator) buildSnapshot(now time.Time) *model.Snapshot {
	values := pipeline.Compute(pipeline.Inputs{
		Now:        now,
		Location:   c.loc,
		Records:    c.st.ledger.Records(),
		Peak:       c.st.peak,
		LivePrices: c.st.live,
		GridPrices: c.st.grid,
		Subsidy:    c.subsidy,
	})

	enabled := c.enabledLocked()
	snap := &model.Snapshot{
		At:             now,
		Home:           c.st.home,
		Values:         make(map[model.MetricKey]*float64, len(enabled)),
		Peak:           c.st.peak.Attrs(),
		Enabled:        enabled,
		PricesTomorrow: c.st.tomorrow,
		LedgerSize:     c.st.ledger.Len(),
	}
	for _, key := range enabled {
		snap.Values[key] = model.Round2(values[key])
	}
	if c.grid && len(c.st.grid) > 0 {
		snap.GridPrices = make(map[time.Time]float64, len(c.st.grid))
		for h, p := range c.st.grid {
			snap.GridPrices[h] = p
		}
	}
	return snap
}

// enabledLocked lists the metrics exposed for this home.
func (c *Coordinator) enabledLocked() []model.MetricKey {
	keys := make([]model.MetricKey, 0, len(model.Metrics))
	for _, d := range model.Metrics {
		switch d.Key {
		case model.DailyCostWithSubsidy:
			if !c.st.realtime {
				continue
			}
		case model.GridPrice, model.TotalPriceWithSubsidy:
			if !c.grid {
				continue
			}
		}
		keys = append(keys, d.Key)
	}
	return keys
}

// Snapshot returns the last published snapshot, or nil before the first tick.
func (c *Coordinator) Snapshot() *model.Snapshot {
	return c.snap.Load()
}

// Schedule returns the schedule state of every fetcher in registration order.
func (c *Coordinator) Schedule() []ScheduleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScheduleEntry, 0, len(c.entries))
	for _, e := range c.entries {
		se := ScheduleEntry{ID: e.fetcher.ID(), NextDue: e.nextDue, LastRun: e.lastRun}
		if e.lastErr != nil {
			se.LastError = e.lastErr.Error()
		}
		out = append(out, se)
	}
	return out
}

// NextDue returns the earliest due time across fetchers.
func (c *Coordinator) NextDue() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next time.Time
	for _, e := range c.entries {
		if next.IsZero() || e.nextDue.Before(next) {
			next = e.nextDue
		}
	}
	return next
}

// Ledger returns the current month's ledger. The returned view is never
// modified; a successful consumption fetch replaces it.
func (c *Coordinator) Ledger() pipeline.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.ledger
}

// Location returns the zone used for day and month boundaries.
func (c *Coordinator) Location() *time.Location {
	return c.loc
}
