// Package ingest consumes the sensor-side event feed: CBOR-encoded frame
// events delivered over a ZMQ PULL socket. Malformed messages are skipped
// with rate-limited logging; frames the socket misses are simply gone, there
// is no catch-up.
package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/types"
)

// RawRecorder persists raw feed messages before decoding, for offline
// replay inspection.
type RawRecorder interface {
	Record(payload []byte) error
}

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
)

// DecodeFailures returns the number of feed messages that failed to decode.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

// DecodeTiming returns cumulative decode count and nanoseconds.
func DecodeTiming() (uint64, uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

// Stream returns a channel of sensor events from the feed endpoint.
func Stream(ctx context.Context, endpoint string) (<-chan types.Event, error) {
	return StreamWithLogEveryAndRecorder(ctx, endpoint, 1, nil)
}

// StreamWithLogEveryAndRecorder is Stream with rate-limited error logging
// (every Nth) and an optional raw recorder.
func StreamWithLogEveryAndRecorder(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder) (<-chan types.Event, error) {
	if logEvery < 1 {
		logEvery = 1
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan types.Event, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				logEveryN(logEvery, "ingest recv error: %v", err)
				continue
			}
			if recorder != nil {
				if err := recorder.Record(msg); err != nil {
					logEveryN(logEvery, "ingest raw record failed: %v", err)
				}
			}

			start := time.Now()
			ev, ok := decodeEvent(msg, logEvery)
			decodeCount.Add(1)
			decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
			if !ok {
				decodeFailures.Add(1)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()

	return out, nil
}

// decodeEvent maps one CBOR feed message to a sensor event. Expected shapes:
//
//	{"type":"body","bodies":[{"tracking_id":N,"tracked":true,"position":[x,y,z]},...]}
//	{"type":"face","tracking_id":N,"tracked":true,"bbox":[l,t,r,b],
//	 "points":[[x,y],...],"rotation":[w,x,y,z],"properties":{"happy":3,...}}
//	{"type":"hdface","tracking_id":N,"tracked":true,"orientation":[w,x,y,z],"pivot":[x,y,z]}
//	{"type":"lost","tracking_id":N}
func decodeEvent(msg []byte, logEvery int) (types.Event, bool) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		logEveryN(logEvery, "ingest CBOR decode error: %v", err)
		return types.Event{}, false
	}

	msgType, _ := payload["type"].(string)
	switch msgType {
	case "body":
		return decodeBodyEvent(payload, logEvery)
	case "face":
		return decodeFaceEvent(payload, logEvery)
	case "hdface":
		return decodeHDFaceEvent(payload, logEvery)
	case "lost":
		id, err := toUint64(payload["tracking_id"])
		if err != nil {
			logEveryN(logEvery, "ingest invalid lost tracking_id: %v", err)
			return types.Event{}, false
		}
		return types.Event{Kind: types.EventTrackingLost, LostID: id}, true
	default:
		logEveryN(logEvery, "ingest ignoring message type %q", msgType)
		return types.Event{}, false
	}
}

func decodeBodyEvent(payload map[string]any, logEvery int) (types.Event, bool) {
	raw, ok := payload["bodies"].([]any)
	if !ok {
		logEveryN(logEvery, "ingest body event missing bodies")
		return types.Event{}, false
	}
	bodies := make([]types.TrackedBody, 0, len(raw))
	for _, item := range raw {
		entry, ok := toStringMap(item)
		if !ok {
			continue
		}
		id, err := toUint64(entry["tracking_id"])
		if err != nil {
			continue
		}
		tracked, _ := entry["tracked"].(bool)
		pos, err := toVec3(entry["position"])
		if err != nil {
			continue
		}
		bodies = append(bodies, types.TrackedBody{
			TrackingID: id,
			Tracked:    tracked,
			Position:   pos,
		})
	}
	return types.Event{Kind: types.EventBody, Bodies: bodies}, true
}

func decodeFaceEvent(payload map[string]any, logEvery int) (types.Event, bool) {
	id, err := toUint64(payload["tracking_id"])
	if err != nil {
		logEveryN(logEvery, "ingest invalid face tracking_id: %v", err)
		return types.Event{}, false
	}
	tracked, _ := payload["tracked"].(bool)

	frame := &types.FaceFrame{TrackingID: id, Tracked: tracked}

	if box, err := toFloats(payload["bbox"], 4); err == nil {
		frame.Box = types.BoundingBox{Left: box[0], Top: box[1], Right: box[2], Bottom: box[3]}
	} else if tracked {
		logEveryN(logEvery, "ingest invalid face bbox: %v", err)
		return types.Event{}, false
	}

	if rawPoints, ok := payload["points"].([]any); ok {
		frame.Points = make([]types.Point2D, 0, len(rawPoints))
		for _, rp := range rawPoints {
			pt, err := toFloats(rp, 2)
			if err != nil {
				continue
			}
			frame.Points = append(frame.Points, types.Point2D{X: pt[0], Y: pt[1]})
		}
	}

	if rot, err := toQuat(payload["rotation"]); err == nil {
		frame.Orientation = rot
	}

	if rawProps, ok := toStringMap(payload["properties"]); ok {
		frame.Properties = make(map[types.Property]types.DetectionResult, len(rawProps))
		for name, v := range rawProps {
			prop, ok := types.PropertyByName(name)
			if !ok {
				continue
			}
			val, err := toUint64(v)
			if err != nil {
				continue
			}
			frame.Properties[prop] = types.DetectionResult(val)
		}
	}

	return types.Event{Kind: types.EventFace, Face: frame}, true
}

func decodeHDFaceEvent(payload map[string]any, logEvery int) (types.Event, bool) {
	id, err := toUint64(payload["tracking_id"])
	if err != nil {
		logEveryN(logEvery, "ingest invalid hdface tracking_id: %v", err)
		return types.Event{}, false
	}
	tracked, _ := payload["tracked"].(bool)

	frame := &types.HDFaceFrame{TrackingID: id, Tracked: tracked}
	if rot, err := toQuat(payload["orientation"]); err == nil {
		frame.Orientation = rot
	} else if tracked {
		logEveryN(logEvery, "ingest invalid hdface orientation: %v", err)
		return types.Event{}, false
	}
	if pivot, err := toVec3(payload["pivot"]); err == nil {
		frame.Pivot = pivot
	}

	return types.Event{Kind: types.EventHDFace, HDFace: frame}, true
}

func toVec3(v any) (r3.Vec, error) {
	vals, err := toFloats(v, 3)
	if err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func toQuat(v any) (quat.Number, error) {
	vals, err := toFloats(v, 4)
	if err != nil {
		return quat.Number{}, err
	}
	return quat.Number{Real: vals[0], Imag: vals[1], Jmag: vals[2], Kmag: vals[3]}, nil
}

var logCounter atomic.Uint64

func logEveryN(n int, format string, args ...any) {
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Printf(format, args...)
	}
}
