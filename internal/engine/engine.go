// Package engine synchronizes viewer-held track state: it loads track
// batches into the track store, dispatches background enrichment and
// drives the server metadata poll loop.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/flymap/trackd/internal/metadata"
	"github.com/flymap/trackd/internal/pending"
	"github.com/flymap/trackd/internal/trackstore"
	"github.com/flymap/trackd/internal/types"
)

const (
	// DefaultPollDelay is the delay between metadata polls.
	DefaultPollDelay = 15 * time.Second

	// DefaultPendingTTL bounds how long a group's metadata request
	// stays pending before it is given up.
	DefaultPendingTTL = 3 * time.Minute
)

// Fetcher fetches server metadata for a set of group ids.
type Fetcher interface {
	Fetch(ctx context.Context, ids []int64) (metadata.Result, error)
}

// Notifier is told about group membership changes, decoupled from the
// track store itself (URL and display bookkeeping live behind it).
type Notifier interface {
	GroupsAdded(ids []int64)
	GroupsRemoved(ids []int64)
}

// pollState tracks the metadata poll loop. At most one poll cycle is
// ever outstanding: a group registration only schedules a poll from
// idle, and a finished poll reschedules itself only while ids remain
// pending.
type pollState int

const (
	stateIdle pollState = iota
	statePollScheduled
	statePollInFlight
)

// Engine is the track synchronization engine. Its enrichment worker is
// created on first need and torn down with the engine.
type Engine struct {
	store    *trackstore.Store
	pending  *pending.Tracker
	fetcher  Fetcher
	notifier Notifier

	pollDelay  time.Duration
	pendingTTL time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     pollState
	timer     *time.Timer
	worker    *worker
	closed    bool
	loaded    bool
	timestamp int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier attaches a group membership notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithPollDelay overrides the metadata poll delay.
func WithPollDelay(d time.Duration) Option {
	return func(e *Engine) { e.pollDelay = d }
}

// WithPendingTTL overrides the pending request lifetime.
func WithPendingTTL(d time.Duration) Option {
	return func(e *Engine) { e.pendingTTL = d }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store and metadata fetcher.
func New(store *trackstore.Store, fetcher Fetcher, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:      store,
		pending:    pending.NewTracker(),
		fetcher:    fetcher,
		pollDelay:  DefaultPollDelay,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadTracks inserts a batch of tracks, dispatches each to the
// enrichment worker and registers the groups that still need
// server-side metadata. On the very first batch the current-track
// cursor and the global timestamp reference are set from the batch's
// first track.
func (e *Engine) LoadTracks(tracks []*types.Track) {
	if len(tracks) == 0 {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	first := !e.loaded
	e.loaded = true
	e.store.InsertMany(tracks)
	w := e.workerLocked()
	registered := false
	for _, track := range tracks {
		w.submit(track)
		if !track.PostProcessed {
			e.pending.Add(track.Group, e.now())
			registered = true
		}
	}
	if first {
		if len(tracks[0].Ts) > 0 {
			e.timestamp = tracks[0].Ts[0]
		}
		e.store.SetCurrent(tracks[0].ID)
	}
	if registered {
		e.schedulePollLocked()
	}
	e.mu.Unlock()

	if e.notifier != nil {
		e.notifier.GroupsAdded(groupsOf(tracks))
	}
}

// RemoveGroups removes every track of the given groups. A pending
// metadata poll for a removed group is not canceled; its eventual
// result patches an unknown id, which is a silent no-op.
func (e *Engine) RemoveGroups(ids []int64) {
	e.store.RemoveByGroupIDs(ids)
	if e.notifier != nil {
		e.notifier.GroupsRemoved(ids)
	}
}

// Timestamp returns the global timestamp reference set by the first
// loaded batch, or 0 before any load.
func (e *Engine) Timestamp() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timestamp
}

// Close tears the engine down: the poll chain stops, the enrichment
// worker drains and exits.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
	w := e.worker
	e.mu.Unlock()

	e.cancel()
	if w != nil {
		w.close()
	}
	e.wg.Wait()
}

// schedulePollLocked arms the poll timer. Only an idle engine
// schedules: a poll already scheduled or in flight covers the newly
// registered groups.
func (e *Engine) schedulePollLocked() {
	if e.closed || e.state != stateIdle {
		return
	}
	e.state = statePollScheduled
	e.timer = time.AfterFunc(e.pollDelay, e.poll)
}

// poll runs one metadata poll cycle: sweep expired requests, fetch the
// remaining ids in one batched call, apply the patches and reschedule
// while anything stays pending. Transport failures and not-ready
// responses are both retried on the next cycle.
func (e *Engine) poll() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.state = statePollInFlight
	e.mu.Unlock()

	e.pending.SweepExpired(e.now(), e.pendingTTL)
	if ids := e.pending.IDs(); len(ids) > 0 {
		res, err := e.fetcher.Fetch(e.ctx, ids)
		switch {
		case err != nil:
			log.Printf("Metadata fetch failed (will retry): %v", err)
		case res.NotReady:
			// Server has not computed the metadata yet.
		default:
			e.applyMetadata(res.Groups)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.pending.Empty() {
		e.state = stateIdle
		return
	}
	e.state = statePollScheduled
	e.timer = time.AfterFunc(e.pollDelay, e.poll)
}

// applyMetadata patches every track matched by the batch and clears
// the matched groups from the pending tracker. Patches for tracks that
// were removed in the meantime fall through as no-ops.
func (e *Engine) applyMetadata(groups []metadata.MetaGroup) {
	for _, group := range groups {
		e.pending.Remove(group.ID)
		for index, gnd := range group.GroundAltitudes {
			if gnd.Altitudes == nil {
				continue
			}
			id := types.TrackID(group.ID, index)
			e.store.Patch(id, types.TrackPatch{GroundAltitude: gnd.Altitudes})
		}
		for index, airspaces := range group.Airspaces {
			if airspaces == nil {
				continue
			}
			id := types.TrackID(group.ID, index)
			e.store.Patch(id, types.TrackPatch{Airspaces: airspaces})
		}
	}
}

// workerLocked lazily creates the enrichment worker.
func (e *Engine) workerLocked() *worker {
	if e.worker == nil {
		e.worker = newWorker()
		e.wg.Add(1)
		go e.runWorker(e.worker)
	}
	return e.worker
}

// runWorker applies enrichment results through the same patch path as
// server metadata, so both merge conflict-free field by field.
func (e *Engine) runWorker(w *worker) {
	defer e.wg.Done()
	for track := range w.jobs {
		e.store.Patch(track.ID, Enrich(track))
	}
}

func groupsOf(tracks []*types.Track) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, track := range tracks {
		if !seen[track.Group] {
			seen[track.Group] = true
			ids = append(ids, track.Group)
		}
	}
	return ids
}
