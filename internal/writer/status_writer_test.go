// internal/writer/status_writer_test.go
package writer

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/register-programmer/internal/register"
	"github.com/tamzrod/register-programmer/internal/session"
	"github.com/tamzrod/register-programmer/internal/status"
)

// ---- fake endpoint client ----

type fakeEndpointClient struct {
	writes       int
	lastRegsAddr uint16
	lastRegs     []uint16
	failNext     bool
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.failNext {
		f.failNext = false
		return errors.New("endpoint down")
	}
	f.writes++
	f.lastRegsAddr = addr
	f.lastRegs = append([]uint16(nil), regs...)
	return nil
}

func testPlan() StatusPlan {
	return StatusPlan{Endpoint: "status-endpoint", UnitID: 1, BaseSlot: 2, DeviceName: "BENCH-01"}
}

// ---- tests ----

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := testPlan()
	sw := NewDeviceStatusWriter(plan, cli)

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full block write (%d regs), got %d", status.SlotsPerDevice, len(cli.lastRegs))
	}
	if cli.lastRegsAddr != plan.BaseSlot*status.SlotsPerDevice {
		t.Fatalf("full block addr got=%d want=%d", cli.lastRegsAddr, plan.BaseSlot*status.SlotsPerDevice)
	}

	expectedNameRegs := status.EncodeDeviceName(plan.DeviceName)
	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		slot := status.SlotDeviceNameStart + i
		if cli.lastRegs[slot] != expectedNameRegs[i] {
			t.Fatalf("device name slot %d mismatch: got=%d want=%d", slot, cli.lastRegs[slot], expectedNameRegs[i])
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError, LastErrorCode: 4}); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}
	if len(cli.lastRegs) == status.SlotsPerDevice {
		t.Fatalf("device name should not be rewritten on incremental update")
	}
}

func TestImageWrittenAsOneBlock(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := NewDeviceStatusWriter(testPlan(), cli)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("full assert: %v", err)
	}

	next := status.Snapshot{Health: status.HealthOK, Image: [status.SlotImageSlots]uint16{0x3800, 0, 0, 0, 0, 0, 0, 0x0080}}
	if err := sw.WriteStatus(next); err != nil {
		t.Fatalf("image write: %v", err)
	}

	base := testPlan().BaseSlot * status.SlotsPerDevice
	if cli.lastRegsAddr != base+status.SlotImageStart {
		t.Fatalf("image addr got=%d want=%d", cli.lastRegsAddr, base+status.SlotImageStart)
	}
	if len(cli.lastRegs) != status.SlotImageSlots {
		t.Fatalf("image write len=%d want=%d", len(cli.lastRegs), status.SlotImageSlots)
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := NewDeviceStatusWriter(testPlan(), cli)

	sw.WriteStatus(status.Snapshot{Health: status.HealthOK})

	cli.failNext = true
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthBusy}); err == nil {
		t.Fatalf("expected write failure")
	}

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthBusy}); err != nil {
		t.Fatalf("recovery write: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full re-assert after failure, got %d regs", len(cli.lastRegs))
	}
}

func TestUnitIDOutOfRange(t *testing.T) {
	plan := testPlan()
	plan.UnitID = 300
	sw := NewDeviceStatusWriter(plan, &fakeEndpointClient{})

	if err := sw.WriteStatus(status.Snapshot{}); err == nil {
		t.Fatalf("expected unit id error")
	}
}

// ---- mirror ----

type recordingWriter struct {
	snaps []status.Snapshot
}

func (r *recordingWriter) WriteStatus(s status.Snapshot) error {
	r.snaps = append(r.snaps, s)
	return nil
}

func TestMirror_SessionLifecycle(t *testing.T) {
	rw := &recordingWriter{}
	m := NewMirror(rw, nil)

	img := register.Image{0x38, 15: 0x80}
	now := time.Now()

	m.Emit(session.Event{Session: 1, Mode: session.FastTransfer, State: session.Idle, At: now})
	m.Emit(session.Event{Session: 1, Mode: session.FastTransfer, State: session.Encoding, At: now})
	m.Emit(session.Event{Session: 1, Mode: session.FastTransfer, State: session.Completed, At: now, Image: &img})

	if len(rw.snaps) != 2 {
		t.Fatalf("writes=%d want=2 (start and end)", len(rw.snaps))
	}
	if rw.snaps[0].Health != status.HealthBusy {
		t.Fatalf("start health=%d want busy", rw.snaps[0].Health)
	}

	end := rw.snaps[1]
	if end.Health != status.HealthOK || end.Sessions != 1 {
		t.Fatalf("end=%+v", end)
	}
	if end.Image[0] != 0x3800 || end.Image[7] != 0x0080 {
		t.Fatalf("image=%v", end.Image)
	}
}

func TestMirror_FailureKeepsLastGoodImage(t *testing.T) {
	rw := &recordingWriter{}
	m := NewMirror(rw, nil)

	good := register.Image{0: 0xAA}
	bad := register.Image{0: 0x55}

	m.Emit(session.Event{Session: 1, State: session.Completed, Image: &good})
	m.Emit(session.Event{
		Session: 2,
		State:   session.Failed,
		Image:   &bad,
		Err:     &session.Error{Kind: session.KindFlash},
	})

	snap := m.Snapshot()
	if snap.Health != status.HealthError {
		t.Fatalf("health=%d want error", snap.Health)
	}
	if snap.LastErrorCode != uint16(session.KindFlash) {
		t.Fatalf("code=%d want=%d", snap.LastErrorCode, session.KindFlash)
	}
	if snap.Image[0] != 0xAA00 {
		t.Fatalf("image replaced by failed session: %#04x", snap.Image[0])
	}
	if snap.Sessions != 2 {
		t.Fatalf("sessions=%d want=2", snap.Sessions)
	}
}

func TestMirror_IgnoresRejectedRequests(t *testing.T) {
	rw := &recordingWriter{}
	m := NewMirror(rw, nil)

	m.Emit(session.Event{Session: 0, State: session.Failed, Err: &session.Error{Kind: session.KindBusy}})

	if len(rw.snaps) != 0 {
		t.Fatalf("busy rejection published a status")
	}
}

func TestMirror_FailurePublishesKindCode(t *testing.T) {
	rw := &recordingWriter{}
	m := NewMirror(rw, nil)

	m.Emit(session.Event{Session: 1, State: session.Failed, Err: &session.Error{Kind: session.KindTimeout}})

	if len(rw.snaps) != 1 {
		t.Fatalf("snapshots got=%d want=1", len(rw.snaps))
	}
	if got := rw.snaps[0].LastErrorCode; got != uint16(session.KindTimeout) {
		t.Fatalf("last error code got=%d want=%d", got, session.KindTimeout)
	}
}
