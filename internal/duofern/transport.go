package duofern

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/amken3d/duofern-bridge/internal/duofern/errcode"
	"github.com/amken3d/duofern-bridge/internal/duofern/serialport"
)

// Transport implements spec.md §4.1: a fixed-width 22-byte frame reader
// over a serial endpoint. There is no sync word and no length prefix, so
// framing is whatever the byte stream happens to align to; a dropped byte
// desynchronizes every following frame permanently. Implementers must not
// attempt resynchronization heuristics (spec.md §4.1) — any read error is
// therefore treated as fatal and surfaced for Session to reopen, rather
// than retried here.
type Transport struct {
	port serialport.Port

	mu     sync.Mutex
	closed bool
	buf    []byte

	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
}

// OpenTransport opens the named serial endpoint at 115200/8-N-1 and
// starts its background reader, grounded on host/serial's Open +
// protocol.HostTransport's readLoop pattern in the teacher repo.
func OpenTransport(cfg serialport.Config) (*Transport, error) {
	port, err := serialport.Open(cfg)
	if err != nil {
		return nil, classifyOpenErr(err)
	}
	return newTransport(port), nil
}

// newTransport wraps an already-open Port. Tests use this directly with
// an in-memory io.ReadWriteCloser standing in for the serial device.
func newTransport(port serialport.Port) *Transport {
	t := &Transport{
		port:   port,
		events: make(chan Event, 32),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go t.readLoop()
	t.emit(Event{Kind: EventOpened})
	return t
}

func classifyOpenErr(err error) error {
	if os.IsPermission(err) {
		return errcode.New(errcode.PortPermission, "open", err)
	}
	return errcode.New(errcode.PortUnavailable, "open", err)
}

// Events returns the transport's inbound stream: opened, frame_rx, and
// error, per spec.md §4.1's contract.
func (t *Transport) Events() <-chan Event { return t.events }

func (t *Transport) emit(e Event) {
	select {
	case t.events <- e:
	case <-t.stopCh:
	}
}

// Write sends raw frame bytes. Per spec.md §4.1 it fails with
// PortIOError once the transport is closed or the underlying write is
// short or errors.
func (t *Transport) Write(f Frame) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errcode.New(errcode.PortIOError, "write", errors.New("transport closed"))
	}

	b := f.Bytes()
	n, err := t.port.Write(b)
	if err != nil {
		return errcode.New(errcode.PortIOError, "write", err)
	}
	if n != len(b) {
		return errcode.New(errcode.PortIOError, "write", errors.Errorf("short write: %d/%d bytes", n, len(b)))
	}
	return nil
}

// Close stops the reader and closes the underlying port. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.stopCh)
	<-t.doneCh
	return t.port.Close()
}

// readLoop appends inbound bytes to a growing buffer and emits one
// frame_rx event per complete 22-byte unit, per spec.md §4.1's framing
// rule. Any read error besides a read-timeout (used by real serial ports
// to return control periodically) is fatal: the loop emits an error
// event and exits without attempting to resynchronize.
func (t *Transport) readLoop() {
	defer close(t.doneCh)

	chunk := make([]byte, 256)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			if err == io.EOF {
				return
			}
			if to, ok := err.(interface{ Timeout() bool }); ok && to.Timeout() {
				continue
			}
			t.emit(errorEvent(errcode.PortIOError, err))
			return
		}
		if n == 0 {
			continue
		}

		t.mu.Lock()
		t.buf = append(t.buf, chunk[:n]...)
		for len(t.buf) >= FrameLen {
			f, _ := NewFrame(t.buf[:FrameLen])
			t.buf = t.buf[FrameLen:]
			t.mu.Unlock()
			t.emit(Event{Kind: EventFrameRx, FrameHex: f.Hex()})
			t.mu.Lock()
		}
		t.mu.Unlock()
	}
}
