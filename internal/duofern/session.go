package duofern

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/amken3d/duofern-bridge/internal/duofern/errcode"
	"github.com/amken3d/duofern-bridge/internal/duofern/serialport"
)

// handshakeStepTimeout bounds every individual handshake step (spec.md
// §4.2): at most one step timer armed at a time.
const handshakeStepTimeout = 3 * time.Second

// openTransportFn is the hook Session uses to open its serial endpoint.
// Tests replace it with a constructor wrapping an in-memory port.
var openTransportFn = OpenTransport

// SessionState is the observable state of spec.md §4.2's machine:
// Closed -> Opening -> Handshaking -> Ready -> (Reinitializing ->
// Handshaking -> Ready)* -> Closed|Failed.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpening
	StateHandshaking
	StateReady
	StateReinitializing
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateReinitializing:
		return "reinitializing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionConfig carries what Session needs to open the link and run the
// handshake, per spec.md §6.
type SessionConfig struct {
	Port           serialport.Config
	Dongle         DongleID
	InitialPairSet []DeviceCode
}

// Session is the single authority over transport/queue/pair-set state
// (spec.md §5): every field below this point in the struct is touched
// only from the run() goroutine.
type Session struct {
	cfg SessionConfig

	events  chan Event
	cmdCh   chan Frame
	closeCh chan struct{}
	doneCh  chan struct{}

	state      SessionState
	pairSet    []DeviceCode
	pairIndex  map[DeviceCode]bool
	transport  *Transport
	dispatcher *Dispatcher
	registrar  *Registrar
}

// NewSession constructs a Session in state Closed. Call Start to open the
// transport and run the handshake.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:        cfg,
		events:     make(chan Event, 64),
		cmdCh:      make(chan Frame, 64),
		closeCh:    make(chan struct{}),
		doneCh:     make(chan struct{}),
		state:      StateClosed,
		pairSet:    append([]DeviceCode(nil), cfg.InitialPairSet...),
		pairIndex:  indexOf(cfg.InitialPairSet),
		dispatcher: newDispatcher(),
		registrar:  newRegistrar(),
	}
}

func indexOf(codes []DeviceCode) map[DeviceCode]bool {
	m := make(map[DeviceCode]bool, len(codes))
	for _, c := range codes {
		m[c.Normalize()] = true
	}
	return m
}

// Events returns the Session's outbound event stream (spec.md §6).
func (s *Session) Events() <-chan Event { return s.events }

// State reports the current observable state.
func (s *Session) State() SessionState { return s.state }

// Start opens the Transport and runs the handshake, then services
// Submit/Close for the Session's lifetime. It returns once the run loop
// has exited (on Close, or on an unrecoverable failure).
func (s *Session) Start() {
	defer close(s.doneCh)

	s.setState(StateOpening)
	port, err := openTransportFn(s.cfg.Port)
	if err != nil {
		s.emit(errorEvent(errcode.Of(err), err))
		s.setState(StateFailed)
		return
	}
	s.transport = port
	s.emit(Event{Kind: EventOpened})

	s.setState(StateHandshaking)
	if err := s.handshake(s.pairSet); err != nil {
		_ = s.transport.Close()
		if errcode.Of(err) == errcode.SessionClosing {
			s.setState(StateClosed)
			s.emit(Event{Kind: EventClosed})
			return
		}
		s.emit(errorEvent(errcode.Of(err), err))
		s.setState(StateFailed)
		return
	}

	s.setState(StateReady)
	s.emit(Event{Kind: EventInitialized})
	s.runLoop()
}

// Submit queues a frame for transmission (spec.md §4.3). It never blocks
// indefinitely: the command channel is generously buffered so a brief
// suspension (e.g. mid-reopen) does not deadlock the caller.
func (s *Session) Submit(f Frame) error {
	select {
	case s.cmdCh <- f:
		return nil
	case <-s.doneCh:
		return errcode.New(errcode.PortIOError, "submit", errors.New("session not running"))
	}
}

// Close cancels any outstanding timers, clears the queue, and closes the
// Transport, then waits for the run loop to exit. Idempotent.
func (s *Session) Close() {
	select {
	case <-s.closeCh:
	default:
		close(s.closeCh)
	}
	<-s.doneCh
}

func (s *Session) setState(st SessionState) {
	s.state = st
	s.emit(logEvent(LogDebug, "session state -> "+st.String()))
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		// Slow consumer: drop rather than block the single authority loop.
	}
}

// handshake runs the fixed 7-step sequence of spec.md §4.2 against the
// current Transport. It is strictly sequential; no pipelining.
func (s *Session) handshake(pairSet []DeviceCode) error {
	if err := s.sendAndAwait(init1Frame); err != nil {
		return err
	}
	if err := s.sendAndAwait(init2Frame); err != nil {
		return err
	}

	dongleFrame, err := BuildSetDongleFrame(s.cfg.Dongle)
	if err != nil {
		return err
	}
	if err := s.sendAwaitAck(dongleFrame); err != nil {
		return err
	}
	if err := s.sendAwaitAck(init3Frame); err != nil {
		return err
	}

	for i, dev := range pairSet {
		f, err := BuildSetPairsFrame(i, dev)
		if err != nil {
			return err
		}
		if err := s.sendAwaitAck(f); err != nil {
			return err
		}
	}

	if err := s.sendAwaitAck(initEndFr); err != nil {
		return err
	}

	statusReq, err := BuildStatusRequestFrame("")
	if err != nil {
		return err
	}
	return s.sendAwaitAck(statusReq)
}

// sendAndAwait writes f, then waits up to handshakeStepTimeout for any one
// inbound frame. Per spec.md §4.2 its content is not validated, but it
// must actually be a received frame: the Transport's own self-emitted
// Opened event (and any other non-frame event) does not count, or the
// very first step would be satisfied by that stale event instead of a
// real device response. close() must also fail a step fast rather than
// riding out the rest of its 3 s timer (spec.md §5 Cancellation).
func (s *Session) sendAndAwait(f Frame) error {
	if err := s.transport.Write(f); err != nil {
		return err
	}
	s.emit(Event{Kind: EventFrameTx, FrameHex: f.Hex()})

	deadline := time.NewTimer(handshakeStepTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-s.closeCh:
			return errcode.New(errcode.SessionClosing, "handshake", errors.New("session closing"))
		case ev, ok := <-s.transport.Events():
			if !ok {
				return errcode.New(errcode.FramingLost, "handshake", errors.New("transport closed mid-step"))
			}
			if ev.Kind == EventError {
				return errcode.New(errcode.PortIOError, "handshake", ev.Cause)
			}
			s.emit(ev)
			if ev.Kind != EventFrameRx {
				continue
			}
			return nil
		case <-deadline.C:
			return errcode.New(errcode.HandshakeStepTimeout, "handshake", errors.Errorf("no frame within %s", handshakeStepTimeout))
		}
	}
}

// sendAwaitAck runs sendAndAwait, then writes the constant ACK frame
// unconditionally, per the steps of spec.md §4.2 that call for it.
func (s *Session) sendAwaitAck(f Frame) error {
	if err := s.sendAndAwait(f); err != nil {
		return err
	}
	if err := s.transport.Write(constAck); err != nil {
		return err
	}
	s.emit(Event{Kind: EventFrameTx, FrameHex: constAck.Hex()})
	return nil
}

// runLoop is the single event loop of spec.md §5: the only place that
// mutates dispatcher, registrar, pair-set, or state once Ready.
func (s *Session) runLoop() {
	var queueTimer *time.Timer
	var queueTimerC <-chan time.Time
	var registrarTimer *time.Timer
	var registrarTimerC <-chan time.Time

	armQueue := func() {
		if queueTimer != nil {
			queueTimer.Stop()
		}
		queueTimer = time.NewTimer(queueAckTimeout)
		queueTimerC = queueTimer.C
	}
	disarmQueue := func() {
		if queueTimer != nil {
			queueTimer.Stop()
		}
		queueTimerC = nil
	}
	armRegistrar := func(d time.Duration) {
		if registrarTimer != nil {
			registrarTimer.Stop()
		}
		registrarTimer = time.NewTimer(d)
		registrarTimerC = registrarTimer.C
	}
	disarmRegistrar := func() {
		if registrarTimer != nil {
			registrarTimer.Stop()
		}
		registrarTimerC = nil
	}
	defer disarmQueue()
	defer disarmRegistrar()

	trySend := func() {
		if s.state != StateReady || !s.dispatcher.ready() {
			return
		}
		f, ok := s.dispatcher.head()
		if !ok {
			return
		}
		if err := s.transport.Write(f); err != nil {
			s.emit(errorEvent(errcode.Of(err), err))
			s.setState(StateFailed)
			return
		}
		s.dispatcher.markInFlight()
		s.emit(Event{Kind: EventFrameTx, FrameHex: f.Hex()})
		armQueue()
	}

	for {
		select {
		case <-s.closeCh:
			disarmQueue()
			disarmRegistrar()
			s.dispatcher.clear()
			_ = s.transport.Close()
			s.setState(StateClosed)
			s.emit(Event{Kind: EventClosed})
			return

		case f := <-s.cmdCh:
			s.dispatcher.submit(f)
			trySend()

		case ev, ok := <-s.transport.Events():
			if !ok {
				s.setState(StateFailed)
				return
			}
			if ev.Kind == EventError {
				s.emit(ev)
				s.setState(StateFailed)
				return
			}
			if ev.Kind != EventFrameRx {
				continue
			}
			s.emit(ev)
			s.handleInbound(ev.FrameHex, disarmQueue, armRegistrar)
			trySend()

		case <-queueTimerC:
			if f, ok := s.dispatcher.head(); ok {
				s.emit(logEvent(LogWarn, "queue ack timeout, un-acked frame "+f.Hex()))
			}
			s.dispatcher.popHead()
			disarmQueue()
			trySend()

		case <-registrarTimerC:
			disarmRegistrar()
			s.fireRegistrar(armRegistrar)
		}
	}
}

// handleInbound classifies one received frame per spec.md §4.3 and reacts:
// advances the queue on ACK, emits Paired/Unpaired, or auto-ACKs a
// device-originated frame and, when it is a status frame, emits Status.
func (s *Session) handleInbound(hex string, disarmQueue func(), armRegistrar func(time.Duration)) {
	f, err := ParseFrameHex(hex)
	if err != nil {
		return
	}
	class, dev := ClassifyFrame(f)
	switch class {
	case ClassAck:
		s.dispatcher.popHead()
		disarmQueue()
	case ClassPairEvent:
		s.emit(Event{Kind: EventPaired, DeviceCode: dev})
	case ClassUnpairEvent:
		s.emit(Event{Kind: EventUnpaired, DeviceCode: dev})
	default:
		// Device-originated message: auto-ACK strictly before dispatch
		// (spec.md §4.3's ordering guarantee).
		if err := s.transport.Write(constAck); err == nil {
			s.emit(Event{Kind: EventFrameTx, FrameHex: constAck.Hex()})
		}
		if IsStatusFrame(f) {
			code := StatusDeviceCode(f)
			s.emit(Event{Kind: EventStatus, DeviceCode: code, Fields: ParseStatus(f)})
			if s.registrar.observe(code, s.pairIndex[code]) {
				armRegistrar(registrarDebounce)
			}
		}
	}
}

// fireRegistrar runs when the debounce or backoff timer expires
// (spec.md §4.6).
func (s *Session) fireRegistrar(armRegistrar func(time.Duration)) {
	if s.registrar.reopening {
		armRegistrar(registrarDebounce)
		return
	}
	batch := s.registrar.drain()
	if len(batch) == 0 {
		return
	}

	newSet := append(append([]DeviceCode(nil), s.pairSet...), batch...)
	s.registrar.reopening = true
	err := s.doReopen(newSet)
	s.registrar.reopening = false

	if err == nil {
		s.registrar.attempts = 0
		return
	}
	if errcode.Of(err) == errcode.SessionClosing {
		// The session is being torn down; runLoop's own closeCh case
		// handles cleanup on its next iteration, no retry to schedule.
		return
	}

	s.registrar.attempts++
	if s.registrar.attempts > registrarMaxAttempts {
		s.emit(errorEvent(errcode.RegistrationExhausted, err))
		s.registrar.attempts = 0
		return
	}
	s.registrar.restore(batch)
	armRegistrar(s.registrar.backoff(s.registrar.attempts))
}

// doReopen implements reopen(new_pair_set) (spec.md §4.2): close the
// Transport, discard the queue (logged at warn), replace PairSet, then
// re-run Open+Handshake. On any failure the old PairSet is restored.
func (s *Session) doReopen(newSet []DeviceCode) error {
	oldSet, oldIndex := s.pairSet, s.pairIndex

	s.setState(StateReinitializing)
	if n := s.dispatcher.len(); n > 0 {
		s.emit(logEvent(LogWarn, fmt.Sprintf("reopen: discarding %d queued frame(s)", n)))
	}
	s.dispatcher.clear()
	_ = s.transport.Close()

	s.pairSet = newSet
	s.pairIndex = indexOf(newSet)

	port, err := openTransportFn(s.cfg.Port)
	if err != nil {
		s.pairSet, s.pairIndex = oldSet, oldIndex
		s.setState(StateFailed)
		return errcode.New(errcode.ReopenFailed, "reopen", err)
	}
	s.transport = port
	s.emit(Event{Kind: EventOpened})

	s.setState(StateHandshaking)
	if err := s.handshake(s.pairSet); err != nil {
		_ = s.transport.Close()
		s.pairSet, s.pairIndex = oldSet, oldIndex
		if errcode.Of(err) == errcode.SessionClosing {
			s.setState(StateClosed)
			return err
		}
		s.setState(StateFailed)
		return errcode.New(errcode.ReopenFailed, "reopen", err)
	}

	s.setState(StateReady)
	s.emit(Event{Kind: EventInitialized})
	return nil
}
