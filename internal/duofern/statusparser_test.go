package duofern

import "testing"

func TestParseStatusFormat21ZeroFrame(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0FFF0F21", 0, ""))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	fields := ParseStatus(f)

	pos, ok := fields["position"]
	if !ok {
		t.Fatal("expected a position field")
	}
	if pos.Kind != FieldNumber || pos.Number != 100 {
		t.Fatalf("position = %+v, want number 100", pos)
	}

	moving, ok := fields["moving"]
	if !ok || moving.Kind != FieldString || moving.Text != "stop" {
		t.Fatalf("moving = %+v, want string \"stop\"", moving)
	}

	onOffNames := []string{
		"sunAutomatic", "timeAutomatic", "dawnAutomatic", "duskAutomatic",
		"manualAutomatic", "windAutomatic", "rainAutomatic",
		"windAlarm", "rainAlarm",
	}
	for _, name := range onOffNames {
		v, ok := fields[name]
		if !ok {
			t.Fatalf("expected field %q to be present", name)
		}
		if v.Kind != FieldString || v.Text != "off" {
			t.Fatalf("field %q = %+v, want string \"off\"", name, v)
		}
	}
}

func TestParseStatusPosition50(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0FFF0F21", 20, "0032"))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	fields := ParseStatus(f)
	pos, ok := fields["position"]
	if !ok {
		t.Fatal("expected a position field")
	}
	if pos.Kind != FieldNumber || pos.Number != 50 {
		t.Fatalf("position = %+v, want number 50", pos)
	}
}

func TestParseStatusUnknownFormatByte(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0FFF0FFF", 0, ""))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	fields := ParseStatus(f)
	if len(fields) != 0 {
		t.Fatalf("expected no fields for an unrecognized format byte, got %v", fields)
	}
}

func TestParseStatusNonStatusFrame(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0D01070100000000000000000000006F123449ABCD00", 0, ""))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	fields := ParseStatus(f)
	if len(fields) != 0 {
		t.Fatalf("expected no fields for a non-status frame, got %v", fields)
	}
}

func TestUnreachableFormatVariantsStillTabulated(t *testing.T) {
	for _, key := range []string{"23a", "24a"} {
		if _, ok := formatFieldIDs[key]; !ok {
			t.Errorf("formatFieldIDs missing documented-unreachable key %q", key)
		}
	}
}

func TestScaleAndHexMapsPassThroughAsNumbers(t *testing.T) {
	if !scaleOrHexMap("scaleTemperature") {
		t.Error("expected scaleTemperature to be treated as a scale map")
	}
	if !scaleOrHexMap("hex") {
		t.Error("expected hex to be treated as a hex map")
	}
	if scaleOrHexMap("onOff") {
		t.Error("onOff must not be treated as a scale/hex map")
	}
	if v := renderValue("scaleTemperature", 42); v.Kind != FieldNumber || v.Number != 42 {
		t.Errorf("renderValue(scaleTemperature, 42) = %+v, want raw number 42", v)
	}
}

func TestRenderValueOutOfRangePassesThrough(t *testing.T) {
	v := renderValue("onOff", 7)
	if v.Kind != FieldNumber || v.Number != 7 {
		t.Fatalf("renderValue(onOff, 7) = %+v, want raw number 7", v)
	}
}

func TestFieldValueString(t *testing.T) {
	if numberValue(5).String() != "5" {
		t.Errorf("numberValue(5).String() = %q", numberValue(5).String())
	}
	if stringValue("on").String() != "on" {
		t.Errorf("stringValue(\"on\").String() = %q", stringValue("on").String())
	}
}
