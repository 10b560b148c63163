package output

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/types"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "raw_feed")
	if err != nil {
		t.Fatalf("NewRawLogWriter: %v", err)
	}

	payloads := [][]byte{
		{0xA1, 0x64, 0x74, 0x79, 0x70, 0x65},
		{0x01},
	}
	for _, p := range payloads {
		if err := w.Record(p); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if got := w.Records(); got != 2 {
		t.Fatalf("Records = %d, want 2", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Record([]byte{0x02}); err == nil {
		t.Fatal("Record succeeded on closed writer")
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("log dir entries = %v (%v)", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	if string(data[:len(RawLogMagic)]) != RawLogMagic {
		t.Fatalf("magic = %q", data[:len(RawLogMagic)])
	}
	rest := data[len(RawLogMagic):]
	for i, want := range payloads {
		size := binary.LittleEndian.Uint32(rest[8:12])
		if int(size) != len(want) {
			t.Fatalf("record %d size = %d, want %d", i, size, len(want))
		}
		got := rest[12 : 12+size]
		if string(got) != string(want) {
			t.Fatalf("record %d payload = % X, want % X", i, got, want)
		}
		rest = rest[12+size:]
	}
	if len(rest) != 0 {
		t.Fatalf("%d trailing bytes in log", len(rest))
	}
}

func TestWriteModel(t *testing.T) {
	dir := t.TempDir()
	model := &types.FaceModel{
		SessionID: "abc123",
		Vertices:  []r3.Vec{{X: 0.01, Y: -0.02, Z: 0.03}},
	}
	if err := WriteModel(dir, "20260825_120000", model); err != nil {
		t.Fatalf("WriteModel: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "20260825_120000_facemodel_abc123.txt"))
	if err != nil {
		t.Fatalf("read model file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("model file has %d lines: %q", len(lines), lines)
	}
	if lines[0] != "index, x, y, z" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "0, 0.010000, -0.020000, 0.030000" {
		t.Fatalf("row = %q", lines[1])
	}

	if err := WriteModel(dir, "ts", &types.FaceModel{}); err == nil {
		t.Fatal("WriteModel accepted an empty model")
	}
}

func TestNormalizeJSONValue(t *testing.T) {
	in := map[any]any{
		"blob": []byte{0x01, 0x02},
		uint64(7): []any{
			map[any]any{"nested": uint64(1)},
		},
	}
	out, ok := NormalizeJSONValue(in).(map[string]any)
	if !ok {
		t.Fatalf("normalized to %T", NormalizeJSONValue(in))
	}
	if out["blob"] != "AQI=" {
		t.Fatalf("blob = %v", out["blob"])
	}
	list, ok := out["7"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("key 7 = %v", out["7"])
	}
	nested, ok := list[0].(map[string]any)
	if !ok || nested["nested"] != uint64(1) {
		t.Fatalf("nested = %v", list[0])
	}
}
