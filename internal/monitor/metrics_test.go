// internal/monitor/metrics_test.go
package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tamzrod/register-programmer/internal/session"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := New()

	m.Emit(session.Event{Session: 1, Mode: session.FastTransfer, State: session.Idle})
	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Fatalf("in flight=%v want=1", got)
	}

	m.Emit(session.Event{Session: 1, Mode: session.FastTransfer, State: session.Completed, Elapsed: 40 * time.Millisecond})
	m.Emit(session.Event{
		Session: 2,
		Mode:    session.FullUpload,
		State:   session.Failed,
		Elapsed: 3 * time.Second,
		Err:     &session.Error{Kind: session.KindCompile},
	})

	if got := testutil.ToFloat64(m.sessions.WithLabelValues("fast", "completed")); got != 1 {
		t.Fatalf("fast completed=%v want=1", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues("upload", "CompileFailure")); got != 1 {
		t.Fatalf("upload compile failures=%v want=1", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Fatalf("in flight=%v want=0", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Fatalf("duration series=%d want=2", n)
	}
}

func TestMetrics_BusyRejections(t *testing.T) {
	m := New()

	m.Emit(session.Event{Session: 0, State: session.Failed, Err: &session.Error{Kind: session.KindBusy}})
	m.Emit(session.Event{Session: 0, State: session.Failed, Err: &session.Error{Kind: session.KindBusy}})

	if got := testutil.ToFloat64(m.busy); got != 2 {
		t.Fatalf("busy=%v want=2", got)
	}
	if n := testutil.CollectAndCount(m.sessions); n != 0 {
		t.Fatalf("rejections counted as sessions: %d", n)
	}
}
