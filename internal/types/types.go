package types

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// NoTrackingID is the sentinel for "no subject".
const NoTrackingID uint64 = 0

// TrackedBody is one body reported by the sensor on a body frame.
// Position is the root joint in sensor camera space (meters).
type TrackedBody struct {
	TrackingID uint64
	Tracked    bool
	Position   r3.Vec
}

// DetectionResult is a tri-state face attribute classification, carried on
// the feed in the sensor SDK's integer encoding.
type DetectionResult int

const (
	DetectionUnknown DetectionResult = 0
	DetectionNo      DetectionResult = 1
	DetectionMaybe   DetectionResult = 2
	DetectionYes     DetectionResult = 3
)

// Property identifies one discrete face attribute.
type Property int

const (
	PropertyHappy Property = iota
	PropertyEngaged
	PropertyWearingGlasses
	PropertyLeftEyeClosed
	PropertyRightEyeClosed
	PropertyMouthOpen
	PropertyMouthMoved
	PropertyLookingAway
	propertyCount
)

var propertyNames = [propertyCount]string{
	PropertyHappy:          "happy",
	PropertyEngaged:        "engaged",
	PropertyWearingGlasses: "wearingglasses",
	PropertyLeftEyeClosed:  "lefteyeclosed",
	PropertyRightEyeClosed: "righteyeclosed",
	PropertyMouthOpen:      "mouthopen",
	PropertyMouthMoved:     "mouthmoved",
	PropertyLookingAway:    "lookingaway",
}

func (p Property) String() string {
	if p < 0 || p >= propertyCount {
		return "unknown"
	}
	return propertyNames[p]
}

// PropertyByName resolves a feed attribute key to a Property.
func PropertyByName(name string) (Property, bool) {
	for p, n := range propertyNames {
		if n == name {
			return Property(p), true
		}
	}
	return 0, false
}

// Properties lists all face attributes in wire order.
func Properties() []Property {
	out := make([]Property, propertyCount)
	for i := range out {
		out[i] = Property(i)
	}
	return out
}

// FaceAlignment is the per-frame pose and attribute result for the current
// subject. Orientation is a unit quaternion (w,x,y,z), Pivot the head pivot
// translation in sensor camera space.
type FaceAlignment struct {
	Orientation quat.Number
	Pivot       r3.Vec
	Properties  map[Property]DetectionResult
}

// Point2D is a published face point in screen space (pixels).
type Point2D struct {
	X float64
	Y float64
}

// BoundingBox is a face bounding box in screen space (pixels).
type BoundingBox struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// FaceFrame is a coarse face-tracking result for one subject.
type FaceFrame struct {
	TrackingID  uint64
	Tracked     bool
	Box         BoundingBox
	Points      []Point2D
	Orientation quat.Number
	Properties  map[Property]DetectionResult
}

// HDFaceFrame is a high-definition face result carrying the pose used to
// deform the current face model into a full mesh.
type HDFaceFrame struct {
	TrackingID  uint64
	Tracked     bool
	Orientation quat.Number
	Pivot       r3.Vec
}

// EventKind discriminates sensor frame events.
type EventKind int

const (
	EventBody EventKind = iota
	EventFace
	EventHDFace
	EventTrackingLost
)

func (k EventKind) String() string {
	switch k {
	case EventBody:
		return "body"
	case EventFace:
		return "face"
	case EventHDFace:
		return "hdface"
	case EventTrackingLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Event is one sensor frame event flowing from the feed to the pipeline.
// Exactly one payload field is set, according to Kind.
type Event struct {
	Kind   EventKind
	Bodies []TrackedBody
	Face   *FaceFrame
	HDFace *HDFaceFrame
	LostID uint64
}
