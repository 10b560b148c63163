package selector

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/types"
)

func body(id uint64, tracked bool, x, y, z float64) types.TrackedBody {
	return types.TrackedBody{
		TrackingID: id,
		Tracked:    tracked,
		Position:   r3.Vec{X: x, Y: y, Z: z},
	}
}

func TestSelectKeepsPreviousWhileTracked(t *testing.T) {
	bodies := []types.TrackedBody{
		body(7, true, 0.1, 0, 0.5),
		body(12, true, 0, 0, 2.4),
	}

	// 12 is much farther away but was selected before.
	if got := Select(bodies, 12); got != 12 {
		t.Fatalf("Select = %d, want sticky 12", got)
	}
}

func TestSelectReselectsWhenPreviousUntracked(t *testing.T) {
	bodies := []types.TrackedBody{
		body(7, true, 0, 0, 1.5),
		body(12, false, 0, 0, 0.3),
	}

	if got := Select(bodies, 12); got != 7 {
		t.Fatalf("Select = %d, want 7 after previous lost tracking", got)
	}
}

func TestSelectClosestWins(t *testing.T) {
	bodies := []types.TrackedBody{
		body(3, true, 0, 0, 2.8),
		body(5, true, 0.2, 0, 1.1),
		body(9, true, -1.5, 0, 1.9),
	}

	if got := Select(bodies, types.NoTrackingID); got != 5 {
		t.Fatalf("Select = %d, want closest body 5", got)
	}
}

func TestSelectSkipsUntracked(t *testing.T) {
	bodies := []types.TrackedBody{
		body(3, false, 0, 0, 0.4),
		body(5, true, 0, 0, 2.0),
	}

	if got := Select(bodies, types.NoTrackingID); got != 5 {
		t.Fatalf("Select = %d, want 5 (untracked body ignored)", got)
	}
}

func TestSelectEmptyAndAllUntracked(t *testing.T) {
	if got := Select(nil, types.NoTrackingID); got != types.NoTrackingID {
		t.Fatalf("Select(nil) = %d, want none", got)
	}

	bodies := []types.TrackedBody{
		body(1, false, 0, 0, 1),
		body(2, false, 0, 0, 2),
	}
	if got := Select(bodies, types.NoTrackingID); got != types.NoTrackingID {
		t.Fatalf("Select = %d, want none for all-untracked set", got)
	}
}

func TestSelectTieFirstWins(t *testing.T) {
	bodies := []types.TrackedBody{
		body(4, true, 0, 0, 1.5),
		body(8, true, 0, 0, 1.5),
	}

	if got := Select(bodies, types.NoTrackingID); got != 4 {
		t.Fatalf("Select = %d, want first body 4 on tie", got)
	}
}
