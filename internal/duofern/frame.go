package duofern

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// FrameLen is the fixed wire length of every DuoFern frame, in bytes.
const FrameLen = 22

// FrameHexLen is the fixed length of a frame's hex rendering.
const FrameHexLen = FrameLen * 2

// BroadcastCode is the reserved device code meaning "all paired devices".
const BroadcastCode = "FFFFFF"

var errBadFrameLen = errors.New("frame must be exactly 22 bytes")

// Frame is a fixed 22-byte DuoFern wire frame. All protocol reasoning in
// this package happens on the frame's hex rendering: the table-driven
// codec and status parser index by hex character offset, per spec.md §3.
type Frame [FrameLen]byte

// NewFrame builds a Frame from exactly 22 raw bytes.
func NewFrame(b []byte) (Frame, error) {
	var f Frame
	if len(b) != FrameLen {
		return f, errors.Wrapf(errBadFrameLen, "got %d bytes", len(b))
	}
	copy(f[:], b)
	return f, nil
}

// ParseFrameHex builds a Frame from its 44-character uppercase hex
// rendering.
func ParseFrameHex(s string) (Frame, error) {
	var f Frame
	if len(s) != FrameHexLen {
		return f, errors.Errorf("frame hex must be %d chars, got %d", FrameHexLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, errors.Wrap(err, "decode frame hex")
	}
	return NewFrame(b)
}

// Hex renders the frame as 44 uppercase hex characters.
func (f Frame) Hex() string {
	return strings.ToUpper(hex.EncodeToString(f[:]))
}

// Bytes returns the frame's raw 22 bytes.
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameLen)
	copy(b, f[:])
	return b
}

var (
	dongleIDPattern   = regexp.MustCompile(`^6F[0-9A-Fa-f]{4}$`)
	deviceCodePattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)
)

// DongleID is a 6-hex-character transceiver identity. The leading byte is
// always 0x6F.
type DongleID string

// ValidateDongleID reports whether s is a well-formed dongle id.
func ValidateDongleID(s string) error {
	if !dongleIDPattern.MatchString(s) {
		return errors.Errorf("invalid dongle id %q: must match ^6F[0-9A-Fa-f]{4}$", s)
	}
	return nil
}

// DeviceCode is a 6-hex-character DuoFern device identity. The leading
// byte classifies the device type per spec.md §3.
type DeviceCode string

// ValidateDeviceCode reports whether s is a well-formed device code.
func ValidateDeviceCode(s string) error {
	if !deviceCodePattern.MatchString(s) {
		return errors.Errorf("invalid device code %q: must match ^[0-9A-Fa-f]{6}$", s)
	}
	return nil
}

// Normalize upper-cases a device code for use as a map key / PairSet
// member.
func (d DeviceCode) Normalize() DeviceCode {
	return DeviceCode(strings.ToUpper(string(d)))
}

// DeviceClass classifies a DeviceCode by its leading byte, per spec.md §3.
type DeviceClass int

const (
	ClassUnknown DeviceClass = iota
	ClassSimpleBlind
	ClassVenetianBlind
	ClassGate
	ClassActuator
	ClassDimmer
	ClassSensor
	ClassThermostat
	ClassRemote
)

var classByLeadingByte = map[string]DeviceClass{
	"40": ClassSimpleBlind, "41": ClassSimpleBlind, "49": ClassSimpleBlind,
	"61": ClassSimpleBlind, "62": ClassSimpleBlind, "47": ClassSimpleBlind,

	"42": ClassVenetianBlind, "4B": ClassVenetianBlind, "4C": ClassVenetianBlind,
	"70": ClassVenetianBlind,

	"4E": ClassGate,

	"43": ClassActuator, "46": ClassActuator, "71": ClassActuator,

	"48": ClassDimmer, "4A": ClassDimmer,

	"65": ClassSensor, "69": ClassSensor, "A5": ClassSensor, "A9": ClassSensor,
	"AA": ClassSensor, "AB": ClassSensor, "AC": ClassSensor, "AF": ClassSensor,

	"73": ClassThermostat, "E1": ClassThermostat,

	"74": ClassRemote, "A0": ClassRemote, "A1": ClassRemote, "A2": ClassRemote,
	"A3": ClassRemote, "A4": ClassRemote, "A7": ClassRemote, "A8": ClassRemote,
	"AD": ClassRemote, "E0": ClassRemote,
}

// ClassOf classifies a DeviceCode. It is total: an unrecognized leading
// byte (or malformed code) classifies as ClassUnknown and never errors —
// classification must never block the Registrar or StatusParser.
func ClassOf(code DeviceCode) DeviceClass {
	s := string(code.Normalize())
	if len(s) < 2 {
		return ClassUnknown
	}
	if c, ok := classByLeadingByte[s[:2]]; ok {
		return c
	}
	return ClassUnknown
}

func (c DeviceClass) String() string {
	switch c {
	case ClassSimpleBlind:
		return "simple_blind"
	case ClassVenetianBlind:
		return "venetian_blind"
	case ClassGate:
		return "gate"
	case ClassActuator:
		return "actuator"
	case ClassDimmer:
		return "dimmer"
	case ClassSensor:
		return "sensor"
	case ClassThermostat:
		return "thermostat"
	case ClassRemote:
		return "remote"
	default:
		return "unknown"
	}
}
