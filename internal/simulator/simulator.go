// Package simulator generates a synthetic sensor event stream for running
// the bridge without hardware. Two bodies wander in front of the sensor;
// whichever one the pipeline retargets to produces face and HD face frames
// with a slowly turning head, and tracking drops out periodically to
// exercise reacquisition.
package simulator

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/types"
)

const lossInterval = 30 * time.Second

type Simulator struct {
	rate   float64
	target atomic.Uint64
}

func New(rate float64) *Simulator {
	if rate <= 0 {
		rate = 30
	}
	return &Simulator{rate: rate}
}

// SetTarget implements the pipeline's retargeter: the simulator only emits
// face frames for the selected id, like the real sensor subsystem.
func (s *Simulator) SetTarget(trackingID uint64) {
	s.target.Store(trackingID)
}

// Stream emits events until ctx is done.
func (s *Simulator) Stream(ctx context.Context) <-chan types.Event {
	out := make(chan types.Event)
	go func() {
		defer close(out)

		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.rate))
		defer ticker.Stop()

		start := time.Now()
		lastLoss := start

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t := now.Sub(start).Seconds()
				target := s.target.Load()

				if target != types.NoTrackingID && now.Sub(lastLoss) >= lossInterval {
					lastLoss = now
					emit(ctx, out, types.Event{Kind: types.EventTrackingLost, LostID: target})
					continue
				}

				emit(ctx, out, types.Event{Kind: types.EventBody, Bodies: bodiesAt(t)})
				if target == types.NoTrackingID {
					continue
				}

				orientation := headPose(t)
				emit(ctx, out, types.Event{Kind: types.EventFace, Face: &types.FaceFrame{
					TrackingID:  target,
					Tracked:     true,
					Box:         types.BoundingBox{Left: 240, Top: 140, Right: 400, Bottom: 360},
					Points:      facePoints(t),
					Orientation: orientation,
					Properties: map[types.Property]types.DetectionResult{
						types.PropertyHappy:     happyAt(t),
						types.PropertyMouthOpen: types.DetectionNo,
					},
				}})
				emit(ctx, out, types.Event{Kind: types.EventHDFace, HDFace: &types.HDFaceFrame{
					TrackingID:  target,
					Tracked:     true,
					Orientation: orientation,
					Pivot:       r3.Vec{X: 0.05 * math.Sin(t/3), Y: 0.3, Z: 1.4},
				}})
			}
		}
	}()
	return out
}

func emit(ctx context.Context, out chan<- types.Event, ev types.Event) {
	select {
	case <-ctx.Done():
	case out <- ev:
	}
}

func bodiesAt(t float64) []types.TrackedBody {
	return []types.TrackedBody{
		{
			TrackingID: 1,
			Tracked:    true,
			Position:   r3.Vec{X: 0.2 * math.Sin(t/5), Y: 0, Z: 1.4},
		},
		{
			TrackingID: 2,
			Tracked:    true,
			Position:   r3.Vec{X: -0.6, Y: 0, Z: 2.6 + 0.3*math.Cos(t/7)},
		},
	}
}

// headPose turns the head slowly left and right, up to ~25 degrees of yaw,
// enough to walk a capture session through all of its views over time.
func headPose(t float64) quat.Number {
	yaw := 0.45 * math.Sin(t/4)
	pitch := 0.4 * math.Sin(t/9)
	qy := quat.Number{Real: math.Cos(yaw / 2), Jmag: math.Sin(yaw / 2)}
	qx := quat.Number{Real: math.Cos(pitch / 2), Imag: math.Sin(pitch / 2)}
	return quat.Mul(qy, qx)
}

func facePoints(t float64) []types.Point2D {
	dx := 10 * math.Sin(t/4)
	return []types.Point2D{
		{X: 290 + dx, Y: 210}, // left eye
		{X: 350 + dx, Y: 210}, // right eye
		{X: 320 + dx, Y: 250}, // nose
		{X: 300 + dx, Y: 300}, // mouth left
		{X: 340 + dx, Y: 300}, // mouth right
	}
}

func happyAt(t float64) types.DetectionResult {
	switch int(t/10) % 3 {
	case 0:
		return types.DetectionYes
	case 1:
		return types.DetectionMaybe
	default:
		return types.DetectionNo
	}
}
