package pipeline

import (
	"bytes"
	"math"
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/dispatch"
	"facebridge-go/internal/types"
)

type fakeSender struct {
	messages []*osc.Message
}

func (s *fakeSender) Send(msg *osc.Message) {
	s.messages = append(s.messages, msg)
}

func (s *fakeSender) addresses() []string {
	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Address
	}
	return out
}

type fakeRetargeter struct {
	targets []uint64
}

func (r *fakeRetargeter) SetTarget(id uint64) {
	r.targets = append(r.targets, id)
}

var identity = quat.Number{Real: 1}

func bodies(ids ...uint64) []types.TrackedBody {
	out := make([]types.TrackedBody, len(ids))
	for i, id := range ids {
		out[i] = types.TrackedBody{
			TrackingID: id,
			Tracked:    true,
			Position:   r3.Vec{Z: float64(i+1) * 1.1},
		}
	}
	return out
}

func validFaceFrame(id uint64) *types.FaceFrame {
	return &types.FaceFrame{
		TrackingID:  id,
		Tracked:     true,
		Box:         types.BoundingBox{Left: 100, Top: 80, Right: 220, Bottom: 240},
		Points:      []types.Point2D{{X: 140, Y: 120}, {X: 180, Y: 120}},
		Orientation: identity,
		Properties: map[types.Property]types.DetectionResult{
			types.PropertyHappy:     types.DetectionYes,
			types.PropertyMouthOpen: types.DetectionNo,
		},
	}
}

func TestAcquireSubjectFromBodyFrame(t *testing.T) {
	sender := &fakeSender{}
	retarget := &fakeRetargeter{}
	c := NewController(Options{Sender: sender, Retargeter: retarget})

	c.HandleBodyFrame(bodies(6, 9))

	if got := c.CurrentID(); got != 6 {
		t.Fatalf("CurrentID = %d, want 6", got)
	}
	if len(retarget.targets) != 1 || retarget.targets[0] != 6 {
		t.Fatalf("retargets = %v, want [6]", retarget.targets)
	}
	if len(sender.messages) != 1 || sender.messages[0].Address != dispatch.AddrFaceID {
		t.Fatalf("messages = %v, want one face/id", sender.addresses())
	}
	if got := sender.messages[0].Arguments[0].(int32); got != 6 {
		t.Fatalf("face/id payload = %d, want 6", got)
	}

	// Same set again: sticky selection, no change, no messages.
	c.HandleBodyFrame(bodies(6, 9))
	if len(sender.messages) != 1 || len(retarget.targets) != 1 {
		t.Fatalf("repeat body frame produced side effects: %v %v", sender.addresses(), retarget.targets)
	}
}

func TestFaceFrameDispatchesRotationAndProperties(t *testing.T) {
	sender := &fakeSender{}
	c := NewController(Options{Sender: sender})
	c.HandleBodyFrame(bodies(6))
	sender.messages = nil

	c.HandleFaceFrame(validFaceFrame(6))

	addrs := sender.addresses()
	want := []string{
		dispatch.AddrFaceRotation,
		"/osceleton2/face/happy",
		"/osceleton2/face/mouthopen",
	}
	if len(addrs) != len(want) {
		t.Fatalf("addresses = %v, want %v", addrs, want)
	}
	for i, a := range want {
		if addrs[i] != a {
			t.Fatalf("address[%d] = %q, want %q", i, addrs[i], a)
		}
	}

	rot := sender.messages[0].Arguments
	if len(rot) != 4 || rot[0].(float32) != 1 || rot[1].(float32) != 0 {
		t.Fatalf("rotation args = %v", rot)
	}
	if got := sender.messages[1].Arguments[0].(int32); got != 2 {
		t.Fatalf("happy = %d, want 2", got)
	}
	if got := sender.messages[2].Arguments[0].(int32); got != 0 {
		t.Fatalf("mouthopen = %d, want 0", got)
	}
}

func TestInvalidFaceFramesProduceNoMessages(t *testing.T) {
	sender := &fakeSender{}
	c := NewController(Options{Sender: sender})
	c.HandleBodyFrame(bodies(6))
	sender.messages = nil

	zeroArea := validFaceFrame(6)
	zeroArea.Box = types.BoundingBox{Left: 50, Top: 50, Right: 50, Bottom: 200}
	c.HandleFaceFrame(zeroArea)

	offscreen := validFaceFrame(6)
	offscreen.Points = append(offscreen.Points, types.Point2D{X: -4, Y: 80})
	c.HandleFaceFrame(offscreen)

	untracked := validFaceFrame(6)
	untracked.Tracked = false
	c.HandleFaceFrame(untracked)

	if len(sender.messages) != 0 {
		t.Fatalf("invalid frames produced messages: %v", sender.addresses())
	}
	stats := c.Stats()
	if stats.InvalidFaces != 2 || stats.MissedFrames != 1 {
		t.Fatalf("stats = %+v, want 2 invalid, 1 missed", stats)
	}
}

func TestHDFaceFrameEncodesSingleVertexMesh(t *testing.T) {
	sender := &fakeSender{}
	model := &types.FaceModel{SessionID: "test", Vertices: []r3.Vec{{}}}
	c := NewController(Options{Sender: sender, Model: model})
	c.HandleBodyFrame(bodies(6))
	sender.messages = nil

	c.HandleHDFaceFrame(&types.HDFaceFrame{
		TrackingID:  6,
		Tracked:     true,
		Orientation: identity,
		Pivot:       r3.Vec{X: 1.234, Y: -0.5, Z: 2.0},
	})

	if len(sender.messages) != 1 || sender.messages[0].Address != dispatch.AddrHDFace {
		t.Fatalf("messages = %v, want one hdface", sender.addresses())
	}
	blob := sender.messages[0].Arguments[0].([]byte)
	want := []byte{0xD2, 0x04, 0x0C, 0xFE, 0x30, 0xF8}
	if !bytes.Equal(blob, want) {
		t.Fatalf("mesh blob = % X, want % X", blob, want)
	}
}

func TestTrackingLostResetsSubject(t *testing.T) {
	sender := &fakeSender{}
	retarget := &fakeRetargeter{}
	c := NewController(Options{Sender: sender, Retargeter: retarget})
	c.HandleBodyFrame(bodies(6))
	sender.messages = nil

	// Lost event for another id is ignored.
	c.HandleTrackingLost(99)
	if got := c.CurrentID(); got != 6 {
		t.Fatalf("CurrentID = %d after foreign lost event, want 6", got)
	}

	c.HandleTrackingLost(6)
	if got := c.CurrentID(); got != types.NoTrackingID {
		t.Fatalf("CurrentID = %d, want none", got)
	}
	if last := retarget.targets[len(retarget.targets)-1]; last != types.NoTrackingID {
		t.Fatalf("last retarget = %d, want 0", last)
	}

	// Frames for the old id arriving after the loss produce nothing.
	c.HandleFaceFrame(validFaceFrame(6))
	c.HandleHDFaceFrame(&types.HDFaceFrame{TrackingID: 6, Tracked: true, Orientation: identity})
	if len(sender.messages) != 0 {
		t.Fatalf("stale frames produced messages: %v", sender.addresses())
	}
	if stats := c.Stats(); stats.StaleFrames != 2 {
		t.Fatalf("stale frames = %d, want 2", stats.StaleFrames)
	}
}

func TestCaptureSessionCompletesAndReplacesModel(t *testing.T) {
	var built *types.FaceModel
	c := NewController(Options{
		Capture: true,
		OnModel: func(m *types.FaceModel) { built = m },
	})
	c.HandleBodyFrame(bodies(6))

	for _, deg := range []float64{0, 30, -30} {
		f := validFaceFrame(6)
		f.Orientation = yawQuat(deg)
		c.HandleFaceFrame(f)
	}
	if built != nil {
		t.Fatal("model built before all views collected")
	}

	f := validFaceFrame(6)
	f.Orientation = pitchQuat(30)
	c.HandleFaceFrame(f)

	if built == nil {
		t.Fatal("model not built after all views collected")
	}
	if built.SessionID == "" || built.SessionID == "default" {
		t.Fatalf("built model session = %q", built.SessionID)
	}
}

func TestCaptureDisposedOnTrackingLost(t *testing.T) {
	var built *types.FaceModel
	c := NewController(Options{
		Capture: true,
		OnModel: func(m *types.FaceModel) { built = m },
	})
	c.HandleBodyFrame(bodies(6))

	for _, deg := range []float64{0, 30, -30} {
		f := validFaceFrame(6)
		f.Orientation = yawQuat(deg)
		c.HandleFaceFrame(f)
	}

	c.HandleTrackingLost(6)
	c.HandleBodyFrame(bodies(6))

	// The new session starts from scratch: the final view alone must not
	// complete it.
	f := validFaceFrame(6)
	f.Orientation = pitchQuat(30)
	c.HandleFaceFrame(f)

	if built != nil {
		t.Fatal("disposed capture session still produced a model")
	}
}

func yawQuat(deg float64) quat.Number {
	half := deg * math.Pi / 180 / 2
	return quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)}
}

func pitchQuat(deg float64) quat.Number {
	half := deg * math.Pi / 180 / 2
	return quat.Number{Real: math.Cos(half), Imag: math.Sin(half)}
}
