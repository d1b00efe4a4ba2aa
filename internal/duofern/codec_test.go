package duofern

import "testing"

func TestBuildCommandFrameUp(t *testing.T) {
	f, err := BuildCommandFrame("up", "6F1234", "49ABCD", 0)
	if err != nil {
		t.Fatalf("BuildCommandFrame: %v", err)
	}
	want := "0D01070100000000000000000000006F123449ABCD00"
	if got := f.Hex(); got != want {
		t.Fatalf("up frame = %q, want %q", got, want)
	}
}

func TestBuildCommandFramePosition50(t *testing.T) {
	f, err := BuildCommandFrame("position", "6F1234", "49ABCD", 50)
	if err != nil {
		t.Fatalf("BuildCommandFrame: %v", err)
	}
	want := "0D01070700320000000000000000006F123449ABCD00"
	if got := f.Hex(); got != want {
		t.Fatalf("position frame = %q, want %q", got, want)
	}
}

func TestBuildCommandFramePositionOutOfRange(t *testing.T) {
	if _, err := BuildCommandFrame("position", "6F1234", "49ABCD", 101); err == nil {
		t.Fatal("expected error for out-of-range percentage")
	}
}

func TestBuildCommandFrameUnknown(t *testing.T) {
	if _, err := BuildCommandFrame("not-a-command", "6F1234", "49ABCD", 0); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestBuildStatusRequestFrameBroadcast(t *testing.T) {
	f, err := BuildStatusRequestFrame("")
	if err != nil {
		t.Fatalf("BuildStatusRequestFrame: %v", err)
	}
	want := "0DFF0F400000000000000000000000000000FFFFFF01"
	if got := f.Hex(); got != want {
		t.Fatalf("broadcast status request = %q, want %q", got, want)
	}
}

func TestBuildStatusRequestFrameDevice(t *testing.T) {
	f, err := BuildStatusRequestFrame("49ABCD")
	if err != nil {
		t.Fatalf("BuildStatusRequestFrame: %v", err)
	}
	if got := f.Hex()[36:42]; got != "49ABCD" {
		t.Fatalf("device field = %q, want 49ABCD", got)
	}
}

func TestBuildRemotePairFrames(t *testing.T) {
	frames, err := BuildRemotePairFrames("6F1234", "49ABCD")
	if err != nil {
		t.Fatalf("BuildRemotePairFrames: %v", err)
	}
	if frames[0].Hex()[42:44] != "00" || frames[1].Hex()[42:44] != "01" {
		t.Fatalf("unexpected suffixes: %q / %q", frames[0].Hex()[42:44], frames[1].Hex()[42:44])
	}
	if frames[0].Hex()[:42] != frames[1].Hex()[:42] {
		t.Fatal("remote-pair frames should differ only in suffix")
	}
}

func TestBuildAutomaticFrame(t *testing.T) {
	on, err := BuildAutomaticFrame("sun", true, "6F1234", "49ABCD")
	if err != nil {
		t.Fatalf("BuildAutomaticFrame: %v", err)
	}
	// body is "08" + xx + yy + suffix at hex offset 4..12; sun is xx=01 yy=01.
	if got := on.Hex()[4:12]; got != "080101FD" {
		t.Fatalf("on automatic body = %q, want 080101FD", got)
	}
	off, err := BuildAutomaticFrame("rain", false, "6F1234", "49ABCD")
	if err != nil {
		t.Fatalf("BuildAutomaticFrame: %v", err)
	}
	if got := off.Hex()[4:12]; got != "080107FE" {
		t.Fatalf("off automatic body = %q, want 080107FE", got)
	}
}

func TestBuildAutomaticFrameUnknown(t *testing.T) {
	if _, err := BuildAutomaticFrame("nope", true, "6F1234", "49ABCD"); err == nil {
		t.Fatal("expected error for unknown automatic name")
	}
}

func TestBuildSetDongleFrame(t *testing.T) {
	f, err := BuildSetDongleFrame("6F1234")
	if err != nil {
		t.Fatalf("BuildSetDongleFrame: %v", err)
	}
	if got := f.Hex(); got[:12] != "0A6F12340001" {
		t.Fatalf("set-dongle body = %q, want prefix 0A6F12340001", got)
	}
	if len(f.Hex()) != FrameHexLen {
		t.Fatalf("frame hex len = %d, want %d", len(f.Hex()), FrameHexLen)
	}
}

func TestBuildSetPairsFrame(t *testing.T) {
	f, err := BuildSetPairsFrame(2, "49ABCD")
	if err != nil {
		t.Fatalf("BuildSetPairsFrame: %v", err)
	}
	want := "03" + "02" + "49ABCD" + "00"
	if got := f.Hex()[:len(want)]; got != want {
		t.Fatalf("set-pairs body = %q, want %q", got, want)
	}
}

func TestBuildSetPairsFrameCounterRange(t *testing.T) {
	if _, err := BuildSetPairsFrame(-1, "49ABCD"); err == nil {
		t.Fatal("expected error for negative counter")
	}
	if _, err := BuildSetPairsFrame(256, "49ABCD"); err == nil {
		t.Fatal("expected error for counter > 0xFF")
	}
}

func TestClassifyFrameAck(t *testing.T) {
	class, _ := ClassifyFrame(constAck)
	if class != ClassAck {
		t.Fatalf("ClassifyFrame(constAck) = %v, want ClassAck", class)
	}
}

func TestClassifyFramePairEvent(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0602", 30, "49ABCD"))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	class, dev := ClassifyFrame(f)
	if class != ClassPairEvent {
		t.Fatalf("class = %v, want ClassPairEvent", class)
	}
	if dev != "49ABCD" {
		t.Fatalf("device = %q, want 49ABCD", dev)
	}
}

func TestClassifyFrameUnpairEvent(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0603", 30, "49ABCD"))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	class, dev := ClassifyFrame(f)
	if class != ClassUnpairEvent {
		t.Fatalf("class = %v, want ClassUnpairEvent", class)
	}
	if dev != "49ABCD" {
		t.Fatalf("device = %q, want 49ABCD", dev)
	}
}

func TestClassifyFrameMessage(t *testing.T) {
	f, err := ParseFrameHex("0FFF0F21" + zeros(FrameHexLen-8))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	class, _ := ClassifyFrame(f)
	if class != ClassMessage {
		t.Fatalf("class = %v, want ClassMessage", class)
	}
}

func TestIsStatusFrameAndDeviceCode(t *testing.T) {
	f, err := ParseFrameHex(frameWithFieldAt("0FFF0F21", 30, "49ABCD"))
	if err != nil {
		t.Fatalf("ParseFrameHex: %v", err)
	}
	if !IsStatusFrame(f) {
		t.Fatal("expected IsStatusFrame to be true")
	}
	if got := StatusDeviceCode(f); got != "49ABCD" {
		t.Fatalf("StatusDeviceCode = %q, want 49ABCD", got)
	}
}

func zeros(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

// frameWithFieldAt builds a full 44-hex-char, zero-padded frame with
// prefix at offset 0 and field placed at the given hex-character offset.
func frameWithFieldAt(prefix string, offset int, field string) string {
	buf := make([]byte, FrameHexLen)
	for i := range buf {
		buf[i] = '0'
	}
	copy(buf, prefix)
	copy(buf[offset:], field)
	return string(buf)
}
