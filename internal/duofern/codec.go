package duofern

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Fixed wire-layout constants for device-addressed frames, per spec.md
// §4.4. Offsets are in hex characters, matching the teacher's use of
// byte-offset constants (protocol.MessageHeaderSize etc.) generalized to
// the hex-string representation this protocol reasons over.
const (
	frameStartByte = "0D"
	padHex         = "000000000000000000" // 18 zero hex chars
	defaultChannel = "01"
	statusChannel  = "FF"
	defaultSuffix  = "00"
	statusSuffix   = "01"
	zeroDongle     = "000000"
	statusReqBody  = "0F400000"
)

func init() {
	if len(padHex) != 18 {
		panic("padHex must be 18 hex chars")
	}
}

// constAck is the literal frame the core writes unconditionally for every
// auto-ACK and handshake-step ACK (spec.md §4.2 step 3, §4.3).
var constAck = mustParseConst("81" + strings.Repeat("0", 42))

// Handshake-step constant frames (spec.md §4.2), bit-exact contracts.
var (
	init1Frame = mustParseConst("0100" + strings.Repeat("0", 40))
	init2Frame = mustParseConst("0E00" + strings.Repeat("0", 40))
	init3Frame = mustParseConst("1414" + strings.Repeat("0", 40))
	initEndFr  = mustParseConst("1001" + strings.Repeat("0", 40))
)

func mustParseConst(hexStr string) Frame {
	if len(hexStr) != FrameHexLen {
		panic(fmt.Sprintf("constant frame hex wrong length: %d", len(hexStr)))
	}
	f, err := ParseFrameHex(hexStr)
	if err != nil {
		panic(err)
	}
	return f
}

// BuildDeviceFrame assembles a 22-byte device-addressed frame from its
// hex-character fields, per spec.md §4.4's layout table. ch, dongle,
// device, and suffix are taken as already-formatted hex substrings of
// the documented widths.
func BuildDeviceFrame(ch, cmdBody, dongle, device, suffix string) (Frame, error) {
	if len(ch) != 2 {
		return Frame{}, errors.Errorf("channel must be 2 hex chars, got %q", ch)
	}
	if len(cmdBody) != 8 {
		return Frame{}, errors.Errorf("command body must be 8 hex chars, got %q", cmdBody)
	}
	if len(dongle) != 6 {
		return Frame{}, errors.Errorf("dongle field must be 6 hex chars, got %q", dongle)
	}
	if len(device) != 6 {
		return Frame{}, errors.Errorf("device field must be 6 hex chars, got %q", device)
	}
	if len(suffix) != 2 {
		return Frame{}, errors.Errorf("suffix must be 2 hex chars, got %q", suffix)
	}
	full := frameStartByte + ch + cmdBody + padHex + dongle + device + suffix
	return ParseFrameHex(strings.ToUpper(full))
}

// CommandTemplate is one entry in the command catalog: an 8-hex-char
// frame body, optionally containing the "nn" placeholder substituted
// with a caller-supplied byte.
type CommandTemplate struct {
	Name       string
	Body       string // 8 hex chars; may contain "nn" once
	TakesPct   bool   // true when Body's "nn" is a 0..100 percentage
}

// commandCatalog is the full command catalog of spec.md §4.4, expressed
// as a single declarative table per spec.md §9's "static table as data"
// note.
var commandCatalog = map[string]CommandTemplate{
	"up":           {Name: "up", Body: "07010000"},
	"down":         {Name: "down", Body: "07030000"},
	"stop":         {Name: "stop", Body: "07020000"},
	"toggle":       {Name: "toggle", Body: "071A0000"},
	"position":     {Name: "position", Body: "070700nn", TakesPct: true},
	"slatPosition": {Name: "slatPosition", Body: "071B00nn", TakesPct: true},

	"sunModeOn":   {Name: "sunModeOn", Body: "070801FF"},
	"sunModeOff":  {Name: "sunModeOff", Body: "070A0100"},
	"windModeOn":  {Name: "windModeOn", Body: "070D01FF"},
	"windModeOff": {Name: "windModeOff", Body: "070E0100"},
	"rainModeOn":  {Name: "rainModeOn", Body: "071101FF"},
	"rainModeOff": {Name: "rainModeOff", Body: "07120100"},

	"sunPosition":          {Name: "sunPosition", Body: "080100nn", TakesPct: true},
	"ventilatingPosition":  {Name: "ventilatingPosition", Body: "080200nn", TakesPct: true},
	"ventilatingModeOn":    {Name: "ventilatingModeOn", Body: "080200FD"},
	"ventilatingModeOff":   {Name: "ventilatingModeOff", Body: "080200FE"},

	"remotePair": {Name: "remotePair", Body: "06010000"},
}

// automaticSubCode carries the xx/yy sub-code bytes substituted into the
// "08xxyyFD"/"08xxyyFE" automatics templates (spec.md §4.4). spec.md
// states only the template shape and that "sub-codes [are] per
// automatic"; the concrete per-automatic assignment is not given in the
// distilled table (see DESIGN.md "Other inventions not given literally
// by spec.md" for the rationale of this assignment).
type automaticSubCode struct{ xx, yy string }

var automaticSubCodes = map[string]automaticSubCode{
	"sun":    {"01", "01"},
	"time":   {"01", "02"},
	"dawn":   {"01", "03"},
	"dusk":   {"01", "04"},
	"manual": {"01", "05"},
	"wind":   {"01", "06"},
	"rain":   {"01", "07"},
}

// pctToHexByte renders a 0..100 decimal percentage as its two-hex-char
// byte representation, e.g. 50 -> "32".
func pctToHexByte(pct int) (string, error) {
	if pct < 0 || pct > 100 {
		return "", errors.Errorf("position %d out of range 0..100", pct)
	}
	return fmt.Sprintf("%02X", pct), nil
}

// BuildCommandFrame builds a device-addressed command frame for a named
// catalog entry. pct is used only for templates with TakesPct set; it is
// ignored otherwise.
func BuildCommandFrame(name string, dongle DongleID, device DeviceCode, pct int) (Frame, error) {
	tmpl, ok := commandCatalog[name]
	if !ok {
		return Frame{}, errors.Errorf("unknown command %q", name)
	}
	if err := ValidateDongleID(string(dongle)); err != nil {
		return Frame{}, err
	}
	if err := ValidateDeviceCode(string(device)); err != nil {
		return Frame{}, err
	}
	body := tmpl.Body
	if tmpl.TakesPct {
		b, err := pctToHexByte(pct)
		if err != nil {
			return Frame{}, err
		}
		body = strings.Replace(body, "nn", b, 1)
	}
	return BuildDeviceFrame(defaultChannel, body, string(dongle), string(device.Normalize()), defaultSuffix)
}

// BuildAutomaticFrame builds a frame toggling one of the named automatics
// (sun, time, dawn, dusk, manual, wind, rain) on or off.
func BuildAutomaticFrame(automatic string, on bool, dongle DongleID, device DeviceCode) (Frame, error) {
	sub, ok := automaticSubCodes[automatic]
	if !ok {
		return Frame{}, errors.Errorf("unknown automatic %q", automatic)
	}
	if err := ValidateDongleID(string(dongle)); err != nil {
		return Frame{}, err
	}
	if err := ValidateDeviceCode(string(device)); err != nil {
		return Frame{}, err
	}
	suffix := "FE"
	if on {
		suffix = "FD"
	}
	body := "08" + sub.xx + sub.yy + suffix
	return BuildDeviceFrame(defaultChannel, body, string(dongle), string(device.Normalize()), defaultSuffix)
}

// BuildStatusRequestFrame builds a status-request frame. When device is
// empty it targets the broadcast code, matching spec.md §8 scenario 3.
func BuildStatusRequestFrame(device DeviceCode) (Frame, error) {
	dev := string(BroadcastCode)
	if device != "" {
		if err := ValidateDeviceCode(string(device)); err != nil {
			return Frame{}, err
		}
		dev = string(device.Normalize())
	}
	return BuildDeviceFrame(statusChannel, statusReqBody, zeroDongle, dev, statusSuffix)
}

// BuildSetDongleFrame builds the handshake step-3 frame announcing the
// dongle id to the transceiver (spec.md §4.2 step 3): `0A <dongle_id> 00
// 01`, zero-padded to 44 hex chars.
func BuildSetDongleFrame(dongle DongleID) (Frame, error) {
	if err := ValidateDongleID(string(dongle)); err != nil {
		return Frame{}, err
	}
	body := "0A" + string(dongle) + "0001"
	return ParseFrameHex(body + strings.Repeat("0", FrameHexLen-len(body)))
}

// BuildSetPairsFrame builds one handshake step-5 frame registering a
// single PairSet member at its 0-based index (spec.md §4.2 step 5):
// `03 <counter> <device> 00`, zero-padded to 44 hex chars.
func BuildSetPairsFrame(counter int, device DeviceCode) (Frame, error) {
	if counter < 0 || counter > 0xFF {
		return Frame{}, errors.Errorf("pair counter %d out of byte range", counter)
	}
	if err := ValidateDeviceCode(string(device)); err != nil {
		return Frame{}, err
	}
	body := fmt.Sprintf("03%02X%s00", counter, device.Normalize())
	return ParseFrameHex(body + strings.Repeat("0", FrameHexLen-len(body)))
}

// BuildRemotePairFrames builds the two back-to-back remote-pair frames
// (spec.md §4.4): identical bodies, suffix alternating 00 then 01. Both
// must be submitted to the Dispatcher.
func BuildRemotePairFrames(dongle DongleID, device DeviceCode) ([2]Frame, error) {
	var out [2]Frame
	if err := ValidateDongleID(string(dongle)); err != nil {
		return out, err
	}
	if err := ValidateDeviceCode(string(device)); err != nil {
		return out, err
	}
	body := commandCatalog["remotePair"].Body
	f0, err := BuildDeviceFrame(defaultChannel, body, string(dongle), string(device.Normalize()), "00")
	if err != nil {
		return out, err
	}
	f1, err := BuildDeviceFrame(defaultChannel, body, string(dongle), string(device.Normalize()), "01")
	if err != nil {
		return out, err
	}
	out[0], out[1] = f0, f1
	return out, nil
}

// FrameClass discriminates inbound frames per spec.md §4.3's
// classification rules (first-byte inspection, not regex, per spec.md
// §9's "regex on hex string → structural match" note).
type FrameClass int

const (
	ClassMessage FrameClass = iota
	ClassAck
	ClassPairEvent
	ClassUnpairEvent
)

// ClassifyFrame classifies an inbound frame and, for pair/unpair events,
// extracts the device code at hex offset 30..36 (byte 15..17).
func ClassifyFrame(f Frame) (FrameClass, DeviceCode) {
	h := f.Hex()
	if h[:2] == "81" {
		return ClassAck, ""
	}
	if strings.HasPrefix(h, "0602") {
		return ClassPairEvent, DeviceCode(h[30:36])
	}
	if strings.HasPrefix(h, "0603") {
		return ClassUnpairEvent, DeviceCode(h[30:36])
	}
	return ClassMessage, ""
}

// IsStatusFrame reports whether a Message-classified frame is a status
// report, per spec.md §4.5: it begins "0FFF0F".
func IsStatusFrame(f Frame) bool {
	return strings.HasPrefix(f.Hex(), "0FFF0F")
}

// StatusDeviceCode extracts the reporting device's code from a status
// frame at hex offset 30..36, normalized to uppercase per spec.md §4.6.
func StatusDeviceCode(f Frame) DeviceCode {
	h := f.Hex()
	if len(h) < 36 {
		return ""
	}
	return DeviceCode(h[30:36]).Normalize()
}
