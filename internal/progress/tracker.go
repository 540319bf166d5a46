// Package progress tracks in-flight uploads to the backend and streams their
// progress to browsers over WebSocket.
package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/filevault/filevault/internal/logger"
	"github.com/google/uuid"
)

type State string

const (
	StateWaiting   State = "waiting"
	StateUploading State = "uploading"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

func (s State) terminal() bool { return s == StateDone || s == StateFailed }

// Event is a snapshot of one upload, sent to subscribers as JSON.
type Event struct {
	ID       string `json:"id"`
	FileName string `json:"file_name,omitempty"`
	Sent     int64  `json:"sent"`
	Total    int64  `json:"total"`
	Percent  int    `json:"percent"`
	State    State  `json:"state"`
	FileID   string `json:"file_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type entry struct {
	event     Event
	updatedAt time.Time
	subs      map[chan Event]struct{}
}

// Tracker holds upload progress keyed by upload id.
type Tracker struct {
	mu      sync.Mutex
	uploads map[string]*entry
	grace   time.Duration
	now     func() time.Time
}

// NewTracker returns a tracker that forgets finished uploads after grace.
func NewTracker(grace time.Duration) *Tracker {
	return &Tracker{
		uploads: make(map[string]*entry),
		grace:   grace,
		now:     time.Now,
	}
}

// NormalizeID returns id if it is a valid UUID, otherwise a fresh one.
func NormalizeID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewString()
}

// Percent is round(sent*100/total), clamped to [0, 100].
func Percent(sent, total int64) int {
	if total <= 0 || sent <= 0 {
		return 0
	}
	p := int(math.Round(float64(sent) * 100 / float64(total)))
	if p > 100 {
		p = 100
	}
	return p
}

// Start marks id as uploading. Subscribers that connected before the upload
// began keep their subscription. A finished id that is reused starts over.
func (t *Tracker) Start(id, fileName string, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entryLocked(id)
	if e.event.State.terminal() {
		e.event = Event{ID: id}
		e.subs = make(map[chan Event]struct{})
	}
	e.event.FileName = fileName
	e.event.Total = total
	e.event.State = StateUploading
	t.publishLocked(e)
}

// Update records bytes sent. It has the shape of apiclient.ProgressFunc once
// bound with Reporter.
func (t *Tracker) Update(id string, sent, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.uploads[id]
	if !ok || e.event.State.terminal() {
		return
	}
	if total > 0 {
		e.event.Total = total
	}
	newPercent := Percent(sent, e.event.Total)
	changed := newPercent != e.event.Percent
	e.event.Sent = sent
	e.event.Percent = newPercent
	e.updatedAt = t.now()
	// Only whole-percent steps reach subscribers.
	if changed {
		t.publishLocked(e)
	}
}

// Reporter binds Update to id.
func (t *Tracker) Reporter(id string) func(sent, total int64) {
	return func(sent, total int64) { t.Update(id, sent, total) }
}

func (t *Tracker) Finish(id, fileID string) {
	t.finish(id, StateDone, fileID, "")
}

func (t *Tracker) Fail(id, message string) {
	t.finish(id, StateFailed, "", message)
}

func (t *Tracker) finish(id string, state State, fileID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entryLocked(id)
	if e.event.State.terminal() {
		return
	}
	e.event.State = state
	e.event.FileID = fileID
	e.event.Error = message
	if state == StateDone {
		e.event.Sent = e.event.Total
		e.event.Percent = 100
	}
	t.publishLocked(e)
	t.closeSubsLocked(e)
}

// Get returns the latest snapshot for id.
func (t *Tracker) Get(id string) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.uploads[id]
	if !ok {
		return Event{}, false
	}
	return e.event, true
}

// Subscribe returns a channel that receives the current snapshot and then
// every change, and is closed once the upload finishes. Slow readers only see
// the latest event. Subscribing to an unknown id registers it as waiting so a
// browser may connect before its upload request arrives.
func (t *Tracker) Subscribe(id string) (<-chan Event, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entryLocked(id)
	ch := make(chan Event, 1)
	ch <- e.event
	if e.event.State.terminal() {
		close(ch)
		return ch, func() {}
	}
	e.subs[ch] = struct{}{}

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Sweep forgets uploads idle for longer than the grace period and returns
// how many were removed. Entries still uploading, and waiting entries a
// browser is subscribed to, are kept.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.grace)
	removed := 0
	for id, e := range t.uploads {
		if e.event.State == StateUploading || e.updatedAt.After(cutoff) {
			continue
		}
		if e.event.State == StateWaiting && len(e.subs) > 0 {
			continue
		}
		t.closeSubsLocked(e)
		delete(t.uploads, id)
		removed++
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	interval := t.grace
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				logger.Log.Debug("forgot finished uploads", "count", n)
			}
		}
	}
}

func (t *Tracker) entryLocked(id string) *entry {
	e, ok := t.uploads[id]
	if !ok {
		e = &entry{
			event: Event{ID: id, State: StateWaiting},
			subs:  make(map[chan Event]struct{}),
		}
		t.uploads[id] = e
	}
	e.updatedAt = t.now()
	return e
}

func (t *Tracker) closeSubsLocked(e *entry) {
	for ch := range e.subs {
		close(ch)
	}
	clear(e.subs)
}

func (t *Tracker) publishLocked(e *entry) {
	for ch := range e.subs {
		select {
		case ch <- e.event:
		default:
			// Replace the stale event the reader has not taken yet.
			select {
			case <-ch:
			default:
			}
			ch <- e.event
		}
	}
}
