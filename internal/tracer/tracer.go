// ============================================================================
// cx-taskflow Tracer - Fixed-Capacity Chrome Trace Event Recorder
// ============================================================================
//
// Package: internal/tracer
// File: tracer.go
// Function: Records Begin/End/Instant events into a pre-allocated buffer and
//   exports them in Chrome Trace Event JSON format.
//
// Design Pattern:
//   Grounded on original_source/src/cx_tracer.c: a fixed-capacity event array
//   guarded by a single lock, saturating silently once full rather than
//   growing. Thread identity is approximated with a goroutine-id cache since
//   Go has no _Thread_local; see threadID below.
//
// ============================================================================

// Package tracer records Begin/End/Instant trace events and exports them as
// Chrome Trace Event JSON.
package tracer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/ChuLiYu/cx-taskflow/pkg/types"
)

// Kind identifies the phase of a trace event.
type Kind int

const (
	Begin Kind = iota
	End
	Instant
)

func (k Kind) phase() string {
	switch k {
	case Begin:
		return "B"
	case End:
		return "E"
	case Instant:
		return "i"
	default:
		return "?"
	}
}

// Scope is the optional scope qualifier carried by Instant events.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeGlobal
	ScopeProcess
	ScopeThread
)

func (s Scope) letter() (byte, bool) {
	switch s {
	case ScopeGlobal:
		return 'g', true
	case ScopeProcess:
		return 'p', true
	case ScopeThread:
		return 't', true
	default:
		return 0, false
	}
}

// Event is one recorded trace event.
type Event struct {
	Name  string
	Cat   string
	Kind  Kind
	Scope Scope
	Sec   int64
	Nsec  int64
	PID   int
	TID   int
}

// Tracer is a fixed-capacity, concurrency-safe event recorder. Once the
// buffer fills, further events are silently dropped, mirroring the original
// C tracer's saturate-and-drop behavior under a hard memory budget.
type Tracer struct {
	mu       sync.Mutex
	events   []Event
	cap      int
	count    int
	nextTID  int
	tidCache sync.Map // goroutine id (uint64) -> assigned tid (int)
	pid      int
	observer EventObserver
}

// EventObserver receives a notification for every event append records,
// whether or not the buffer had room for it. Kept as a small interface, the
// same pattern taskflow.Flow uses for its metricsObserver, so the tracer
// never imports internal/metrics directly.
type EventObserver interface {
	RecordTracerEvent()
}

// SetObserver attaches an optional event observer. Never required: a Tracer
// with no observer set behaves identically, just unobserved.
func (t *Tracer) SetObserver(o EventObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = o
}

// New creates a Tracer able to hold up to cap events.
func New(cap int) *Tracer {
	return &Tracer{
		events:  make([]Event, cap),
		cap:     cap,
		nextTID: 1,
		pid:     os.Getpid(),
	}
}

// Count returns the number of events currently recorded.
func (t *Tracer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Clear discards all recorded events without shrinking the buffer.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
}

// Begin records a 'B' phase event for name/cat on the calling goroutine.
func (t *Tracer) Begin(name, cat string) {
	t.append(name, cat, Begin, ScopeNone)
}

// End records an 'E' phase event for name/cat on the calling goroutine.
func (t *Tracer) End(name, cat string) {
	t.append(name, cat, End, ScopeNone)
}

// Instant records an 'i' phase event with the given scope.
func (t *Tracer) Instant(name, cat string, scope Scope) {
	t.append(name, cat, Instant, scope)
}

func (t *Tracer) append(name, cat string, kind Kind, scope Scope) {
	tid := t.threadID()
	now := time.Now()

	t.mu.Lock()
	if t.count < t.cap {
		t.events[t.count] = Event{
			Name:  name,
			Cat:   cat,
			Kind:  kind,
			Scope: scope,
			Sec:   now.Unix(),
			Nsec:  int64(now.Nanosecond()),
			PID:   t.pid,
			TID:   tid,
		}
		t.count++
	}
	observer := t.observer
	t.mu.Unlock()

	if observer != nil {
		observer.RecordTracerEvent()
	}
}

// threadID returns a small, stable integer identifying the calling
// goroutine, assigned on first use. Go has no per-thread storage
// equivalent to C's _Thread_local, and goroutines are not bound to OS
// threads, so this approximates the original's per-thread id with a
// per-goroutine id cached by the runtime-assigned goroutine id.
func (t *Tracer) threadID() int {
	gid := goroutineID()
	if v, ok := t.tidCache.Load(gid); ok {
		return v.(int)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.tidCache.Load(gid); ok {
		return v.(int)
	}
	id := t.nextTID
	t.nextTID++
	t.tidCache.Store(gid, id)
	return id
}

// goroutineID extracts the runtime-assigned goroutine id from the stack
// trace header ("goroutine 123 [running]:"). This relies on an undocumented
// runtime debug format and is used only to derive a stable per-goroutine
// trace identity, never for scheduling decisions.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// WriteJSON writes every recorded event as a Chrome Trace Event JSON array
// to w.
func (t *Tracer) WriteJSON(w io.Writer) error {
	t.mu.Lock()
	events := make([]Event, t.count)
	copy(events, t.events[:t.count])
	t.mu.Unlock()

	if _, err := io.WriteString(w, "["); err != nil {
		return ErrWrite
	}
	for i, ev := range events {
		mirror := toMirror(ev)
		buf, err := json.Marshal(mirror)
		if err != nil {
			return ErrWrite
		}
		if _, err := w.Write(buf); err != nil {
			return ErrWrite
		}
		if i < len(events)-1 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return ErrWrite
			}
		}
	}
	if _, err := io.WriteString(w, "]"); err != nil {
		return ErrWrite
	}
	return nil
}

// WriteJSONFile writes every recorded event as Chrome Trace Event JSON to
// the file at path, creating or truncating it.
func (t *Tracer) WriteJSONFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tracer: error opening file: %w", err)
	}
	defer f.Close()
	return t.WriteJSON(f)
}

// toMirror converts an Event to its json-tagged wire form. The microsecond
// timestamp matches Chrome's trace-event "ts" convention.
func toMirror(ev Event) types.TraceEvent {
	us := (ev.Sec*1_000_000_000 + ev.Nsec) / 1000
	m := types.TraceEvent{
		Name:  ev.Name,
		Cat:   ev.Cat,
		Phase: ev.Kind.phase(),
		TS:    us,
		PID:   ev.PID,
		TID:   ev.TID,
	}
	if letter, ok := ev.Scope.letter(); ok {
		m.Scope = string(letter)
	}
	return m
}
