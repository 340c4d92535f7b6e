// internal/writer/mirror.go
package writer

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/register-programmer/internal/session"
	"github.com/tamzrod/register-programmer/internal/status"
)

// Mirror turns session events into status snapshots. It is a session.Sink
// and runs on the controller's delivery goroutine.
type Mirror struct {
	mu   sync.Mutex
	sw   StatusWriter
	log  logrus.FieldLogger
	snap status.Snapshot
}

// NewMirror publishes through sw. Write failures are logged and retried
// with a full block on the next event.
func NewMirror(sw StatusWriter, log logrus.FieldLogger) *Mirror {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mirror{sw: sw, log: log, snap: status.Snapshot{Health: status.HealthUnknown}}
}

// Emit implements session.Sink.
func (m *Mirror) Emit(e session.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.Session == 0 {
		// a rejected request changes nothing on the programmer
		return
	}

	switch e.State {
	case session.Idle:
		m.snap.Health = status.HealthBusy
	case session.Completed:
		m.snap.Health = status.HealthOK
		m.snap.LastErrorCode = 0
		m.bump()
		switch {
		case e.Mode == session.Reset:
			m.snap.Image = [status.SlotImageSlots]uint16{}
		case e.Image != nil:
			copy(m.snap.Image[:], e.Image.Words())
		}
	case session.Failed:
		m.snap.Health = status.HealthError
		if e.Err != nil {
			m.snap.LastErrorCode = e.Err.Code()
		}
		m.bump()
	default:
		return
	}

	if err := m.sw.WriteStatus(m.snap); err != nil {
		m.log.WithError(err).WithField("session", e.Session).Warn("status mirror write failed")
	}
}

// Snapshot returns the last published state.
func (m *Mirror) Snapshot() status.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Mirror) bump() {
	if m.snap.Sessions < 0xFFFF {
		m.snap.Sessions++
	}
}
