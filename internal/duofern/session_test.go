package duofern

import (
	"testing"
	"time"

	"github.com/amken3d/duofern-bridge/internal/duofern/serialport"
)

// newAutoAckPort returns a fakePort that answers every write with the
// constant ACK frame, standing in for a transceiver that always
// acknowledges. Handshake steps don't validate the content of what they
// wait for (spec.md §4.2), so a bare ACK drives the machine through every
// step exactly like a real device's distinct per-step replies would.
func newAutoAckPort() *fakePort {
	p := newFakePort()
	p.onWrite = func([]byte) { p.inject(constAck.Bytes()) }
	return p
}

func withFakeTransport(t *testing.T, port *fakePort) {
	t.Helper()
	orig := openTransportFn
	openTransportFn = func(serialport.Config) (*Transport, error) {
		return newTransport(port), nil
	}
	t.Cleanup(func() { openTransportFn = orig })
}

func drainUntilReady(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Kind == EventInitialized {
				return
			}
		case <-deadline:
			t.Fatal("handshake did not complete in time")
		}
	}
}

func TestSessionHandshakeReachesReady(t *testing.T) {
	port := newAutoAckPort()
	withFakeTransport(t, port)

	s := NewSession(SessionConfig{
		Dongle:         "6F1234",
		InitialPairSet: []DeviceCode{"49ABCD"},
	})

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	drainUntilReady(t, s)
	if s.State() != StateReady {
		t.Fatalf("state = %v, want Ready", s.State())
	}

	s.Close()
	<-done
}

// TestSessionCloseDuringHandshakeFailsFast exercises spec.md §5
// Cancellation: close() must fail an in-flight handshake step rather
// than riding out its full 3 s timer.
func TestSessionCloseDuringHandshakeFailsFast(t *testing.T) {
	port := newFakePort() // never replies; every step would otherwise block for handshakeStepTimeout
	withFakeTransport(t, port)

	s := NewSession(SessionConfig{Dongle: "6F1234"})
	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	// Let Start begin writing Init1 and start waiting on a reply.
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Close did not return promptly while a handshake step was in flight")
	}
	<-done
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", s.State())
	}
}

func TestSessionHandshakeWritesTheSevenLiteralSteps(t *testing.T) {
	port := newAutoAckPort()
	withFakeTransport(t, port)

	s := NewSession(SessionConfig{Dongle: "6F1234"})
	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	drainUntilReady(t, s)
	defer func() {
		s.Close()
		<-done
	}()

	dongleFrame, err := BuildSetDongleFrame("6F1234")
	if err != nil {
		t.Fatalf("BuildSetDongleFrame: %v", err)
	}
	statusReq, err := BuildStatusRequestFrame("")
	if err != nil {
		t.Fatalf("BuildStatusRequestFrame: %v", err)
	}

	want := []string{
		init1Frame.Hex(),
		init2Frame.Hex(),
		dongleFrame.Hex(),
		constAck.Hex(),
		init3Frame.Hex(),
		constAck.Hex(),
		initEndFr.Hex(),
		constAck.Hex(),
		statusReq.Hex(),
		constAck.Hex(),
	}
	writes := port.writes()
	if len(writes) < len(want) {
		t.Fatalf("got %d writes, want at least %d", len(writes), len(want))
	}
	for i, w := range want {
		if string(writes[i]) != mustHexToBytes(t, w) {
			t.Errorf("write[%d] = %x, want %s", i, writes[i], w)
		}
	}
}

func mustHexToBytes(t *testing.T, hex string) string {
	t.Helper()
	f, err := ParseFrameHex(hex)
	if err != nil {
		t.Fatalf("ParseFrameHex(%s): %v", hex, err)
	}
	return string(f.Bytes())
}

// TestSessionDispatcherSendsInOrderAfterAck exercises spec.md §8 scenario
// 6: two frames submitted while Ready go out one at a time, the second
// only after the first is ACKed.
func TestSessionDispatcherSendsInOrderAfterAck(t *testing.T) {
	port := newAutoAckPort()
	withFakeTransport(t, port)

	s := NewSession(SessionConfig{Dongle: "6F1234"})
	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	drainUntilReady(t, s)

	f1, err := BuildCommandFrame("up", "6F1234", "49ABCD", 0)
	if err != nil {
		t.Fatalf("BuildCommandFrame f1: %v", err)
	}
	f2, err := BuildCommandFrame("down", "6F1234", "49ABCE", 0)
	if err != nil {
		t.Fatalf("BuildCommandFrame f2: %v", err)
	}
	if err := s.Submit(f1); err != nil {
		t.Fatalf("Submit f1: %v", err)
	}
	if err := s.Submit(f2); err != nil {
		t.Fatalf("Submit f2: %v", err)
	}

	// Give the run loop time to drive both frames through the ACK gate.
	deadline := time.After(2 * time.Second)
	idx1, idx2 := -1, -1
	for idx1 == -1 || idx2 == -1 {
		select {
		case <-time.After(20 * time.Millisecond):
			for i, w := range port.writes() {
				if string(w) == string(f1.Bytes()) && idx1 == -1 {
					idx1 = i
				}
				if string(w) == string(f2.Bytes()) && idx2 == -1 {
					idx2 = i
				}
			}
		case <-deadline:
			t.Fatal("both frames were not observed on the wire in time")
		}
	}
	if idx1 >= idx2 {
		t.Fatalf("f1 written at %d, f2 at %d: want f1 strictly before f2", idx1, idx2)
	}

	s.Close()
	<-done
}
