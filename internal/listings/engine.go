package listings

import (
	"context"
	"strings"
	"sync"
	"time"

	"land-marketplace/internal/common/errors"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/common/metrics"
	"land-marketplace/internal/debounce"
	"land-marketplace/internal/models"
)

// DefaultQuietPeriod is how long search input must be idle before it is sent.
const DefaultQuietPeriod = 400 * time.Millisecond

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// State is an immutable snapshot of the engine.
type State struct {
	Status  Status
	Filter  QueryFilter
	Results []models.Listing
	// Error is the user-facing message of the last failed fetch.
	Error     string
	Retryable bool
	// Generation identifies the request whose response produced this state.
	Generation uint64

	version uint64
}

func (s State) Loading() bool {
	return s.Status == StatusLoading
}

type Option func(*Engine)

func WithQuietPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.quiet = d
		}
	}
}

func WithClock(c debounce.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithListener registers a callback invoked after every state change. Callbacks
// are serialized and never receive an older state after a newer one.
func WithListener(fn func(State)) Option {
	return func(e *Engine) {
		e.listener = fn
	}
}

func WithInitialType(t models.PropertyType) Option {
	return func(e *Engine) {
		if t.IsValid() {
			e.filter.ActiveType = t
		}
	}
}

// Engine maintains the listing filter and the result set for it. Only the response
// to the most recently issued request may update visible state; earlier responses
// are discarded on arrival.
type Engine struct {
	mu         sync.Mutex
	searcher   Searcher
	logger     logger.Logger
	debouncer  *debounce.Debouncer
	quiet      time.Duration
	clock      debounce.Clock
	listener   func(State)
	filter     QueryFilter
	status     Status
	results    []models.Listing
	errMsg     string
	retryable  bool
	generation uint64
	shownGen   uint64
	version    uint64
	closed     bool

	// ctx scopes fetches started by the debounce timer; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	notifyMu     sync.Mutex
	notifiedUpTo uint64
}

func NewEngine(searcher Searcher, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		searcher: searcher,
		logger:   log.WithFields(map[string]interface{}{"component": "listing-engine"}),
		quiet:    DefaultQuietPeriod,
		clock:    debounce.RealClock(),
		status:   StatusIdle,
		filter:   QueryFilter{ActiveType: models.PropertyTypeAll},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.debouncer = debounce.New(e.quiet, e.publishSearch, debounce.WithClock(e.clock))
	return e
}

// SetSearchText echoes text immediately and publishes it to the query once input
// has been idle for the quiet period.
func (e *Engine) SetSearchText(text string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.filter.SearchText = text
	st := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(st)
	e.debouncer.Trigger(strings.TrimSpace(text))
}

// publishSearch runs when the quiet period elapses. An unchanged value does not
// refetch.
func (e *Engine) publishSearch(text string) {
	e.mu.Lock()
	if e.closed || text == e.filter.DebouncedSearchText {
		e.mu.Unlock()
		return
	}
	e.filter.DebouncedSearchText = text
	e.mu.Unlock()

	e.Refetch(e.ctx)
}

// SetActiveType switches the property type and refetches without debounce.
func (e *Engine) SetActiveType(ctx context.Context, t models.PropertyType) error {
	if t == "" {
		t = models.PropertyTypeAll
	}
	if err := validateType(t); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.NewInvalidStateError("set property type", "closed")
	}
	e.filter.ActiveType = t
	e.mu.Unlock()

	e.Refetch(ctx)
	return nil
}

// SetLocation applies a location filter and refetches.
func (e *Engine) SetLocation(ctx context.Context, location string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.NewInvalidStateError("set location", "closed")
	}
	e.filter.Location = strings.TrimSpace(location)
	e.mu.Unlock()

	e.Refetch(ctx)
	return nil
}

// SetPriceRange applies price bounds (nil means unbounded) and refetches. An
// invalid range leaves the filter untouched and issues no request.
func (e *Engine) SetPriceRange(ctx context.Context, min, max *int64) error {
	if err := validatePriceRange(min, max); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.NewInvalidStateError("set price range", "closed")
	}
	e.filter.MinPrice = copyPrice(min)
	e.filter.MaxPrice = copyPrice(max)
	e.mu.Unlock()

	e.Refetch(ctx)
	return nil
}

// SubmitSearch publishes any pending search text without waiting for the quiet
// period and fetches once.
func (e *Engine) SubmitSearch(ctx context.Context) State {
	text, pending := e.debouncer.Take()

	e.mu.Lock()
	if e.closed {
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st
	}
	if !pending {
		text = strings.TrimSpace(e.filter.SearchText)
	}
	e.filter.DebouncedSearchText = text
	e.mu.Unlock()

	return e.Refetch(ctx)
}

// Apply replaces the whole filter and fetches once. Search text is published
// without waiting for the quiet period.
func (e *Engine) Apply(ctx context.Context, f QueryFilter) (State, error) {
	if f.ActiveType == "" {
		f.ActiveType = models.PropertyTypeAll
	}
	if err := validateType(f.ActiveType); err != nil {
		return e.Snapshot(), err
	}
	if err := validatePriceRange(f.MinPrice, f.MaxPrice); err != nil {
		return e.Snapshot(), err
	}
	e.debouncer.Cancel()

	e.mu.Lock()
	if e.closed {
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st, errors.NewInvalidStateError("apply filters", "closed")
	}
	e.filter = QueryFilter{
		ActiveType:          f.ActiveType,
		SearchText:          f.SearchText,
		DebouncedSearchText: strings.TrimSpace(f.SearchText),
		Location:            strings.TrimSpace(f.Location),
		MinPrice:            copyPrice(f.MinPrice),
		MaxPrice:            copyPrice(f.MaxPrice),
	}
	e.mu.Unlock()

	return e.Refetch(ctx), nil
}

// Reset clears every filter and fetches the unfiltered list.
func (e *Engine) Reset(ctx context.Context) State {
	e.debouncer.Cancel()

	e.mu.Lock()
	if e.closed {
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st
	}
	e.filter = QueryFilter{ActiveType: models.PropertyTypeAll}
	e.mu.Unlock()

	return e.Refetch(ctx)
}

// Refetch issues one request for the current filter and returns the state after
// its response was handled. When a newer request was issued meanwhile, the
// response is discarded and the returned state is whatever is current.
func (e *Engine) Refetch(ctx context.Context) State {
	e.mu.Lock()
	if e.closed {
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st
	}
	e.generation++
	gen := e.generation
	params := e.filter.Params()
	e.status = StatusLoading
	e.errMsg = ""
	e.retryable = false
	loading := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(loading)

	lands, err := e.searcher.Search(ctx, params)

	e.mu.Lock()
	if e.closed || gen != e.generation {
		metrics.ListingFetchesTotal.WithLabelValues(metrics.OutcomeStale).Inc()
		e.logger.Debug("discarding stale listing response", map[string]interface{}{
			"generation": gen,
			"latest":     e.generation,
			"closed":     e.closed,
		})
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st
	}

	e.shownGen = gen
	if err != nil {
		stdErr := errors.Normalize(err)
		e.status = StatusFailed
		e.results = []models.Listing{}
		e.errMsg = stdErr.Message
		e.retryable = stdErr.Retryable
		metrics.ListingFetchesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		e.logger.Warn("listing fetch failed", map[string]interface{}{
			"generation": gen,
			"params":     params.Encode(),
			"code":       string(stdErr.Code),
		})
	} else {
		e.status = StatusSuccess
		e.results = lands
		metrics.ListingFetchesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		e.logger.Debug("listing fetch succeeded", map[string]interface{}{
			"generation": gen,
			"count":      len(lands),
		})
	}
	st := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(st)
	return st
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Close stops the debounce timer. After Close no timer fires and no response
// changes state.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.debouncer.Stop()
	e.cancel()
}

func (e *Engine) snapshotLocked() State {
	e.version++
	f := e.filter
	f.MinPrice = copyPrice(e.filter.MinPrice)
	f.MaxPrice = copyPrice(e.filter.MaxPrice)

	var results []models.Listing
	if e.results != nil {
		results = make([]models.Listing, len(e.results))
		copy(results, e.results)
	}
	return State{
		Status:     e.status,
		Filter:     f,
		Results:    results,
		Error:      e.errMsg,
		Retryable:  e.retryable,
		Generation: e.shownGen,
		version:    e.version,
	}
}

// notify delivers st unless a newer snapshot was already delivered.
func (e *Engine) notify(st State) {
	if e.listener == nil {
		return
	}
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if st.version <= e.notifiedUpTo {
		return
	}
	e.notifiedUpTo = st.version
	e.listener(st)
}
