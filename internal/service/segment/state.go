// Package segment provides identifier generation and finality tracking for
// transcript segments.
package segment

import (
	"errors"
	"fmt"
)

// State is the finality state of a segment as seen by the feed.
type State int

const (
	// StatePartial - recognition is still revising the text.
	StatePartial State = iota
	// StateFinal - the provider settled the text.
	StateFinal
	// StateClosed - the owning session was torn down.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePartial:
		return "PARTIAL"
	case StateFinal:
		return "FINAL"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

var (
	ErrSegmentClosed       = errors.New("segment is closed")
	ErrAlreadyFinal        = errors.New("segment already final")
	ErrPartialAfterFinal   = errors.New("partial received after final")
	ErrPartialLimitReached = errors.New("partial revision limit reached")
)

// Lifecycle tracks how one segment identifier progresses.
// Not safe for concurrent use; owners serialize access.
//
//	PARTIAL ──ObserveFinal()──► FINAL
//	   │                          │
//	   └──── Close() ─────────────┴──► CLOSED
//
// Providers redeliver the same segment on every emission; repeated
// observations return sentinel errors.
type Lifecycle struct {
	segmentID   string
	state       State
	revisions   int
	maxPartials int
}

// NewLifecycle creates a lifecycle in PARTIAL state. maxPartials <= 0
// disables the revision limit.
func NewLifecycle(segmentID string, maxPartials int) *Lifecycle {
	return &Lifecycle{
		segmentID:   segmentID,
		state:       StatePartial,
		maxPartials: maxPartials,
	}
}

func (l *Lifecycle) SegmentID() string { return l.segmentID }

func (l *Lifecycle) State() State { return l.state }

// Revisions returns how many partial updates were accepted.
func (l *Lifecycle) Revisions() int { return l.revisions }

func (l *Lifecycle) IsFinal() bool { return l.state == StateFinal }

// ObservePartial records a partial revision.
func (l *Lifecycle) ObservePartial() error {
	switch l.state {
	case StatePartial:
		if l.maxPartials > 0 && l.revisions >= l.maxPartials {
			return ErrPartialLimitReached
		}
		l.revisions++
		return nil
	case StateFinal:
		return ErrPartialAfterFinal
	case StateClosed:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// ObserveFinal transitions to FINAL. It returns nil only for the first
// final observation.
func (l *Lifecycle) ObserveFinal() error {
	switch l.state {
	case StatePartial:
		l.state = StateFinal
		return nil
	case StateFinal:
		return ErrAlreadyFinal
	case StateClosed:
		return ErrSegmentClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Observe dispatches on the finality flag.
func (l *Lifecycle) Observe(final bool) error {
	if final {
		return l.ObserveFinal()
	}
	return l.ObservePartial()
}

// Close is idempotent.
func (l *Lifecycle) Close() {
	l.state = StateClosed
}
