package selector

import (
	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/types"
)

// Select chooses which body to follow this frame.
//
// Selection is sticky: if previous is set and that body is still present and
// tracked, it wins regardless of distance, so the subject does not flicker
// between bodies. Otherwise the tracked body closest to the sensor origin
// wins. Ties resolve to the first body in slice order; the upstream frame
// source does not guarantee a stable order, so equidistant bodies are
// effectively non-deterministic.
//
// Returns types.NoTrackingID when no body is tracked.
func Select(bodies []types.TrackedBody, previous uint64) uint64 {
	if previous != types.NoTrackingID {
		for _, b := range bodies {
			if b.TrackingID == previous && b.Tracked {
				return previous
			}
		}
	}

	best := types.NoTrackingID
	bestDist := 0.0
	for _, b := range bodies {
		if !b.Tracked {
			continue
		}
		d := r3.Norm(b.Position)
		if best == types.NoTrackingID || d < bestDist {
			best = b.TrackingID
			bestDist = d
		}
	}
	return best
}
