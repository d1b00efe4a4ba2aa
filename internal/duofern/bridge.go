package duofern

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/amken3d/duofern-bridge/internal/duofern/errcode"
	"github.com/amken3d/duofern-bridge/internal/duofern/serialport"
)

// CommandRequest is a host-originated command, translated to a wire
// frame by Bridge.Submit via the Codec.
type CommandRequest struct {
	// Command names a commandCatalog entry ("up", "down", "position",
	// ...), or the special names "automatic" and "statusRequest".
	Command string
	Device  DeviceCode
	Percent int

	// Automatic/AutomaticOn are used only when Command == "automatic".
	Automatic   string
	AutomaticOn bool
}

// Bridge is the wiring and translation layer of SPEC_FULL.md §4.8. It
// holds no protocol state of its own: Session owns the handshake, queue,
// and pair-set; Bridge only starts it and renders its Event stream as
// structured logs.
type Bridge struct {
	dongle  DongleID
	session *Session
	log     *zap.Logger
}

// New validates cfg and wires a Session ready to Run.
func New(cfg Config, log *zap.Logger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	sess := NewSession(SessionConfig{
		Port:           serialport.DefaultConfig(cfg.Port),
		Dongle:         DongleID(cfg.DongleID),
		InitialPairSet: cfg.PairSet(),
	})
	return &Bridge{dongle: DongleID(cfg.DongleID), session: sess, log: log}, nil
}

// Run starts the Session and translates its Event stream into structured
// log lines until ctx is cancelled or the Session exits.
func (b *Bridge) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.session.Start()
	}()

	for {
		select {
		case <-ctx.Done():
			b.session.Close()
			<-done
			return ctx.Err()

		case <-done:
			if b.session.State() == StateFailed {
				return errcode.New(errcode.PortIOError, "run", errors.New("session failed"))
			}
			return nil

		case ev, ok := <-b.session.Events():
			if !ok {
				continue
			}
			b.logEvent(ev)
		}
	}
}

func (b *Bridge) logEvent(ev Event) {
	switch ev.Kind {
	case EventLog:
		switch ev.Level {
		case LogDebug:
			b.log.Debug(ev.Message)
		case LogWarn:
			b.log.Warn(ev.Message)
		case LogError:
			b.log.Error(ev.Message)
		default:
			b.log.Info(ev.Message)
		}
	case EventError:
		b.log.Error("core error", zap.String("code", string(ev.Code)), zap.Error(ev.Cause))
	case EventOpened:
		b.log.Info("transport opened")
	case EventInitialized:
		b.log.Info("session ready")
	case EventClosed:
		b.log.Info("session closed")
	case EventFrameRx:
		b.log.Debug("frame rx", zap.String("hex", ev.FrameHex))
	case EventFrameTx:
		b.log.Debug("frame tx", zap.String("hex", ev.FrameHex))
	case EventPaired:
		b.log.Info("device paired", zap.String("device", string(ev.DeviceCode)))
	case EventUnpaired:
		b.log.Info("device unpaired", zap.String("device", string(ev.DeviceCode)))
	case EventStatus:
		class := ClassOf(ev.DeviceCode)
		fields := make([]zap.Field, 0, len(ev.Fields)+2)
		fields = append(fields, zap.String("device", string(ev.DeviceCode)), zap.String("class", class.String()))
		for name, v := range ev.Fields {
			fields = append(fields, zap.Stringer(name, v))
		}
		b.log.Info("status", fields...)
	}
}

// Submit validates and forwards a host-originated command to the
// Dispatcher via the Codec, per SPEC_FULL.md §4.8. It is a thin
// pass-through: the protocol contract lives entirely in Codec/Dispatcher.
func (b *Bridge) Submit(cmd CommandRequest) error {
	var (
		f   Frame
		err error
	)
	switch cmd.Command {
	case "automatic":
		f, err = BuildAutomaticFrame(cmd.Automatic, cmd.AutomaticOn, b.dongle, cmd.Device)
	case "statusRequest":
		f, err = BuildStatusRequestFrame(cmd.Device)
	default:
		f, err = BuildCommandFrame(cmd.Command, b.dongle, cmd.Device, cmd.Percent)
	}
	if err != nil {
		return err
	}
	return b.session.Submit(f)
}

// Events exposes the raw core event stream for embedding callers that
// want to bypass the logging translation.
func (b *Bridge) Events() <-chan Event { return b.session.Events() }
