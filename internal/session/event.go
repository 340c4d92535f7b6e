// internal/session/event.go
package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/register-programmer/internal/register"
)

// Event is one progress report. Sessions emit one per state transition plus
// the occasional note; terminal events carry the outcome.
type Event struct {
	Session uint64 // zero for a rejected request that never became a session
	Mode    Mode
	State   State
	At      time.Time
	Elapsed time.Duration
	Message string
	Err     *Error          // set on Failed
	Image   *register.Image // set once encoding succeeded
}

// Sink receives events in emission order. It runs on the controller's
// delivery goroutine and may be slow; sessions never wait for it.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Fanout delivers to every non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range live {
			s.Emit(e)
		}
	})
}

// LogSink writes events to a logrus logger.
func LogSink(log logrus.FieldLogger) Sink {
	return SinkFunc(func(e Event) {
		entry := log.WithFields(logrus.Fields{
			"session": e.Session,
			"mode":    e.Mode.String(),
			"state":   e.State.String(),
		})
		if e.Elapsed > 0 {
			entry = entry.WithField("elapsed", e.Elapsed.Round(time.Millisecond))
		}

		switch {
		case e.Err != nil:
			entry = entry.WithField("kind", e.Err.Kind.String())
			if e.Err.Detail != "" {
				entry = entry.WithField("detail", e.Err.Detail)
			}
			entry.WithError(e.Err.Err).Error(e.Message)
		case e.State == Completed:
			entry.Info(e.Message)
		default:
			entry.Debug(e.Message)
		}
	})
}

// queue is an unbounded FIFO drained by one goroutine, so Emit never blocks
// the protocol path.
type queue struct {
	mu     sync.Mutex
	items  []Event
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

func newQueue(sink Sink) *queue {
	q := &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.pump(sink)
	return q
}

func (q *queue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pump(sink Sink) {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, e := range batch {
			if sink != nil {
				sink.Emit(e)
			}
		}

		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-q.wake
		}
	}
}

// close stops accepting events and waits until queued ones are delivered.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}
