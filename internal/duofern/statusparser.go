package duofern

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// FieldValueKind discriminates StatusParser's tagged value type, per
// spec.md §9's "dynamic field map → tagged value" note.
type FieldValueKind int

const (
	FieldNumber FieldValueKind = iota
	FieldString
)

// FieldValue is a closed String|Number sum, modeling the heterogeneous
// mapping parse_status returns.
type FieldValue struct {
	Kind   FieldValueKind
	Number int
	Text   string
}

func numberValue(n int) FieldValue { return FieldValue{Kind: FieldNumber, Number: n} }
func stringValue(s string) FieldValue { return FieldValue{Kind: FieldString, Text: s} }

// String renders the value for logging regardless of kind.
func (v FieldValue) String() string {
	if v.Kind == FieldString {
		return v.Text
	}
	return strconv.Itoa(v.Number)
}

// fieldDef is one entry of the StatusFieldTable: (name, byte position,
// bit range, optional invert base, optional value map name), keyed by
// field ID. A single global table is used (rather than one keyed by
// (format, id) pairs) because spec.md §6 lists the same field ID with an
// identical definition across every format that includes it; only the
// per-format *membership* list differs.
type fieldDef struct {
	Name       string
	Pos        int
	BitFrom    int
	BitTo      int
	InvertBase *int // nil when the field is not inverted
	MapName    string
}

func invert(base int) *int { return &base }

// arrayMaps holds the value maps of spec.md §6 that are actually applied
// (index into a fixed string array, with out-of-range values passed
// through as raw numbers per spec.md §4.5 step 7).
var arrayMaps = map[string][]string{
	"onOff":  {"off", "on"},
	"upDown": {"up", "down"},
	// moving maps both bit values to "stop" by design: motion truth comes
	// from command-issue logic on the host side, not from status bytes
	// (spec.md §4.5, §9 open question #3).
	"moving": {"stop", "stop"},
	"motor":  {"off", "short(160ms)", "long(480ms)", "individual"},
	"closeT": {"off", "30", "60", "90", "120", "150", "180", "210", "240"},
	"openS":  {"error", "11", "15", "19"},
}

// scaleOrHexMap reports whether mapName names a "scale*"/"hex" transform.
// Per spec.md §9 open question #2, these are declared in the source but
// never applied for the device classes this module's format table
// covers (blind/gate/actuator); the field is surfaced as a raw number.
func scaleOrHexMap(mapName string) bool {
	return strings.HasPrefix(mapName, "scale") || mapName == "hex"
}

// fieldTable is the StatusFieldTable of spec.md §3/§6, expressed as a
// single declarative structure per spec.md §9's "static table as data,
// not code" note. Entries marked "given" reproduce spec.md §6's
// representative definitions verbatim; the rest complete the ~40-entry
// table the distillation did not reproduce in full (see DESIGN.md).
var fieldTable = map[int]fieldDef{
	// given
	50:  {Name: "moving", Pos: 0, BitFrom: 0, BitTo: 0, MapName: "moving"},
	102: {Name: "position", Pos: 7, BitFrom: 0, BitTo: 6, InvertBase: invert(100)},
	100: {Name: "sunAutomatic", Pos: 0, BitFrom: 2, BitTo: 2, MapName: "onOff"},
	109: {Name: "runningTime", Pos: 6, BitFrom: 0, BitTo: 7},
	135: {Name: "slatPosition", Pos: 9, BitFrom: 0, BitTo: 6},
	405: {Name: "automaticClosing", Pos: 1, BitFrom: 0, BitTo: 3, MapName: "closeT"},

	// The remaining named automatics (their ordering matches the
	// automatic names in the command catalog) live at pos 2, a byte
	// position untouched by the format byte itself — unlike pos 0, whose
	// upper byte of the 16-bit window IS the format byte (spec.md §4.5
	// step 4). Placing them in pos0's own upper byte would make their
	// decoded value depend on which format is being parsed, which the
	// source never does.
	101: {Name: "timeAutomatic", Pos: 2, BitFrom: 0, BitTo: 0, MapName: "onOff"},
	104: {Name: "dawnAutomatic", Pos: 2, BitFrom: 1, BitTo: 1, MapName: "onOff"},
	105: {Name: "duskAutomatic", Pos: 2, BitFrom: 2, BitTo: 2, MapName: "onOff"},
	106: {Name: "manualAutomatic", Pos: 2, BitFrom: 3, BitTo: 3, MapName: "onOff"},
	111: {Name: "windAutomatic", Pos: 2, BitFrom: 4, BitTo: 4, MapName: "onOff"},
	112: {Name: "rainAutomatic", Pos: 2, BitFrom: 5, BitTo: 5, MapName: "onOff"},
	113: {Name: "windAlarm", Pos: 2, BitFrom: 6, BitTo: 6, MapName: "onOff"},
	114: {Name: "rainAlarm", Pos: 2, BitFrom: 7, BitTo: 7, MapName: "onOff"},

	107: {Name: "direction", Pos: 6, BitFrom: 8, BitTo: 8, MapName: "upDown"},

	140: {Name: "statusFlag140", Pos: 10, BitFrom: 0, BitTo: 0, MapName: "onOff"},
	141: {Name: "statusFlag141", Pos: 10, BitFrom: 1, BitTo: 1, MapName: "onOff"},

	400: {Name: "configValue400", Pos: 11, BitFrom: 0, BitTo: 7},
	402: {Name: "configValue402", Pos: 11, BitFrom: 8, BitTo: 15},

	404: {Name: "doorOpenSensor", Pos: 12, BitFrom: 0, BitTo: 3, MapName: "openS"},
	406: {Name: "statusFlag406", Pos: 12, BitFrom: 4, BitTo: 7},
	407: {Name: "statusFlag407", Pos: 12, BitFrom: 8, BitTo: 9},
	408: {Name: "statusFlag408", Pos: 12, BitFrom: 10, BitTo: 11},
	409: {Name: "statusFlag409", Pos: 12, BitFrom: 12, BitTo: 13},
	410: {Name: "statusFlag410", Pos: 13, BitFrom: 0, BitTo: 7},
	411: {Name: "motorType", Pos: 13, BitFrom: 8, BitTo: 9, MapName: "motor"},
}

func init() {
	for i := 115; i <= 127; i++ {
		fieldTable[i] = fieldDef{Name: "statusFlag" + strconv.Itoa(i), Pos: 8, BitFrom: i - 115, BitTo: i - 115, MapName: "onOff"}
	}
	// 128..136 share pos9 with the explicitly given slatPosition (bits
	// 0..6); the remaining ids occupy bits 7 upward in the same word.
	block9 := []int{128, 129, 130, 131, 132, 133, 134, 136}
	for i, id := range block9 {
		bit := 7 + i
		fieldTable[id] = fieldDef{Name: "statusFlag" + strconv.Itoa(id), Pos: 9, BitFrom: bit, BitTo: bit, MapName: "onOff"}
	}
}

// formatFieldIDs is the Format → ordered field ID list of spec.md §6.
var formatFieldIDs = map[string][]int{
	"21": {100, 101, 102, 104, 105, 106, 111, 112, 113, 114, 50},
	"23": concatIDs(
		[]int{102, 107, 109},
		rangeIDs(115, 127),
		rangeIDs(128, 136),
		[]int{140, 141, 50},
	),
	// 23a and 24a are unreachable: the parser dispatches on the raw
	// format byte alone (spec.md §6, §9 open question #1) and no inbound
	// frame carries a format byte value that selects these synthetic
	// "a" keys. They are kept in the table for documentation parity with
	// spec.md, not because any wire frame can reach them.
	"23a": concatIDs(
		[]int{102, 107, 109},
		rangeIDs(115, 127),
		[]int{133, 140, 141, 50},
	),
	"24": concatIDs(
		[]int{102, 107},
		rangeIDs(115, 127),
		[]int{140, 141, 400, 402, 50},
	),
	"24a": concatIDs(
		[]int{102, 107, 115, 123, 124, 400, 402},
		rangeIDs(404, 411),
		[]int{50},
	),
}

func rangeIDs(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func concatIDs(parts ...[]int) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ParseStatus extracts a {name → value} mapping from a status frame, per
// spec.md §4.5. A status frame begins "0FFF0F" (hex chars 0..6). Unknown
// format bytes yield an empty map. Fields absent from the format's ID
// list are not emitted.
func ParseStatus(f Frame) map[string]FieldValue {
	h := f.Hex()
	out := make(map[string]FieldValue)
	if !strings.HasPrefix(h, "0FFF0F") {
		return out
	}
	formatByte := h[6:8]
	ids, ok := formatFieldIDs[formatByte]
	if !ok {
		return out
	}
	for _, id := range ids {
		def, ok := fieldTable[id]
		if !ok {
			continue
		}
		raw, ok := extractWindow(h, def.Pos)
		if !ok {
			continue
		}
		val := extractBits(raw, def.BitFrom, def.BitTo)
		if def.InvertBase != nil {
			val = *def.InvertBase - val
		}
		out[def.Name] = renderValue(def.MapName, val)
	}
	return out
}

// extractWindow reads the 16-bit big-endian value at hex offset 6+2*pos.
// Per spec.md §4.5 step 4, pos=0 overlaps the format byte itself.
func extractWindow(hexStr string, pos int) (uint16, bool) {
	offset := 6 + 2*pos
	if offset < 0 || offset+4 > len(hexStr) {
		return 0, false
	}
	b, err := hex.DecodeString(hexStr[offset : offset+4])
	if err != nil || len(b) != 2 {
		return 0, false
	}
	return uint16(b[0])<<8 | uint16(b[1]), true
}

func extractBits(raw uint16, from, to int) int {
	mask := (1 << uint(to-from+1)) - 1
	return int((raw >> uint(from))) & mask
}

func renderValue(mapName string, val int) FieldValue {
	if mapName == "" || scaleOrHexMap(mapName) {
		return numberValue(val)
	}
	arr, ok := arrayMaps[mapName]
	if !ok || val < 0 || val >= len(arr) {
		return numberValue(val)
	}
	return stringValue(arr[val])
}
