// Package pipeline owns the tracking lifecycle: acquire subject, track face,
// lose tracking, reacquire. It is the single owner of all mutable pipeline
// state; every handler runs under one lock and absorbs its own failures, so
// nothing ever propagates back across the sensor-event boundary.
package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"
	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/capture"
	"facebridge-go/internal/codec"
	"facebridge-go/internal/dispatch"
	"facebridge-go/internal/selector"
	"facebridge-go/internal/types"
)

// State is the lifecycle position of the pipeline.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Sender consumes outgoing messages. Implemented by dispatch.Dispatcher.
type Sender interface {
	Send(msg *osc.Message)
}

// Retargeter narrows the upstream face trackers (coarse and HD) to one
// tracking id. Zero clears the target.
type Retargeter interface {
	SetTarget(trackingID uint64)
}

// Options configures a Controller. Sender and Retargeter may be nil, in
// which case the corresponding side effects are skipped.
type Options struct {
	Sender     Sender
	Retargeter Retargeter
	// Model is the initial base shape; nil selects the neutral default.
	Model *types.FaceModel
	// Capture enables the multi-view scan on subject acquisition.
	Capture bool
	// OnModel is invoked (under the pipeline lock) when a scan completes.
	OnModel func(*types.FaceModel)
}

// Stats are cumulative pipeline counters.
type Stats struct {
	SubjectsAcquired uint64
	InvalidFaces     uint64
	StaleFrames      uint64
	MissedFrames     uint64
	TrackingLosses   uint64
}

// Controller drives selection, encoding and dispatch for each incoming
// frame event. Handlers are safe for concurrent use; the sensor subsystem
// does not guarantee callbacks are mutually exclusive across frame kinds.
type Controller struct {
	opts Options

	mu        sync.Mutex
	state     State
	currentID uint64
	alignment types.FaceAlignment
	mesh      []r3.Vec
	model     *types.FaceModel
	builder   *capture.Builder

	subjectsAcquired atomic.Uint64
	invalidFaces     atomic.Uint64
	staleFrames      atomic.Uint64
	missedFrames     atomic.Uint64
	trackingLosses   atomic.Uint64
}

func NewController(opts Options) *Controller {
	model := opts.Model
	if model == nil {
		model = types.DefaultFaceModel()
	}
	return &Controller{
		opts:  opts,
		state: StateIdle,
		model: model,
	}
}

// HandleEvent routes one sensor event to its handler.
func (c *Controller) HandleEvent(ev types.Event) {
	switch ev.Kind {
	case types.EventBody:
		c.HandleBodyFrame(ev.Bodies)
	case types.EventFace:
		c.HandleFaceFrame(ev.Face)
	case types.EventHDFace:
		c.HandleHDFaceFrame(ev.HDFace)
	case types.EventTrackingLost:
		c.HandleTrackingLost(ev.LostID)
	}
}

// HandleBodyFrame runs subject selection. A selection change commits the new
// id, retargets both upstream face trackers, and announces the id on the
// wire. Keeping the current subject produces no messages.
func (c *Controller) HandleBodyFrame(bodies []types.TrackedBody) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sel := selector.Select(bodies, c.currentID)
	if sel == types.NoTrackingID || sel == c.currentID {
		return
	}

	c.currentID = sel
	c.state = StateAcquiring
	c.alignment = types.FaceAlignment{}
	c.mesh = nil
	if c.opts.Capture {
		c.builder = capture.NewBuilder()
	}
	c.subjectsAcquired.Add(1)

	if c.opts.Retargeter != nil {
		c.opts.Retargeter.SetTarget(sel)
	}
	c.send(osc.NewMessage(dispatch.AddrFaceID, int32(uint32(sel))))
}

// HandleFaceFrame refreshes the alignment from a coarse face result and
// dispatches rotation and tri-state attribute messages. Frames for a stale
// id, untracked frames, and frames failing geometry validation are dropped
// whole: prior state is neither reused nor overwritten.
func (c *Controller) HandleFaceFrame(f *types.FaceFrame) {
	if f == nil {
		c.missedFrames.Add(1)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentID == types.NoTrackingID || f.TrackingID != c.currentID {
		c.staleFrames.Add(1)
		return
	}
	if !f.Tracked {
		c.missedFrames.Add(1)
		return
	}
	if !validFace(f) {
		c.invalidFaces.Add(1)
		return
	}

	c.alignment.Orientation = f.Orientation
	c.alignment.Properties = f.Properties

	o := f.Orientation
	c.send(osc.NewMessage(dispatch.AddrFaceRotation,
		float32(o.Real), float32(o.Imag), float32(o.Jmag), float32(o.Kmag)))
	for _, p := range types.Properties() {
		d, ok := f.Properties[p]
		if !ok {
			continue
		}
		c.send(osc.NewMessage(dispatch.FaceAddr(p.String()), codec.TriState(d)))
	}

	if c.builder != nil && c.builder.Observe(c.alignment) {
		c.model = c.builder.Build()
		c.builder = nil
		if c.opts.OnModel != nil {
			c.opts.OnModel(c.model)
		}
	}
}

// HandleHDFaceFrame refreshes the pose, deforms the current face model into
// this frame's mesh, and dispatches it as one blob message.
func (c *Controller) HandleHDFaceFrame(h *types.HDFaceFrame) {
	if h == nil {
		c.missedFrames.Add(1)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentID == types.NoTrackingID || h.TrackingID != c.currentID {
		c.staleFrames.Add(1)
		return
	}
	if !h.Tracked {
		c.missedFrames.Add(1)
		return
	}

	c.alignment.Orientation = h.Orientation
	c.alignment.Pivot = h.Pivot
	c.mesh = c.model.Deform(c.alignment)
	c.state = StateTracking

	c.send(osc.NewMessage(dispatch.AddrHDFace, codec.EncodeMesh(c.mesh)))
}

// HandleTrackingLost resets the subject if the lost id is current: clears
// the id to the sentinel, disposes any in-flight capture session, and
// retargets upstream to none, all before returning, so stale frames arriving
// right after are rejected by the id mismatch.
func (c *Controller) HandleTrackingLost(trackingID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if trackingID == types.NoTrackingID || trackingID != c.currentID {
		return
	}

	c.currentID = types.NoTrackingID
	c.state = StateIdle
	c.alignment = types.FaceAlignment{}
	c.mesh = nil
	c.builder = nil
	c.trackingLosses.Add(1)

	if c.opts.Retargeter != nil {
		c.opts.Retargeter.SetTarget(types.NoTrackingID)
	}
}

// Status is the human-readable tracking summary for the display surface.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle:
		return "idle: no subject"
	default:
		s := fmt.Sprintf("%s id=%d", c.state, c.currentID)
		if c.builder != nil {
			s += ", " + c.builder.Progress()
		} else if c.model != nil {
			s += fmt.Sprintf(", model=%s (%d vertices)", c.model.SessionID, len(c.model.Vertices))
		}
		return s
	}
}

// CurrentID returns the current subject id (0 = none).
func (c *Controller) CurrentID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

// Stats snapshots the cumulative counters.
func (c *Controller) Stats() Stats {
	return Stats{
		SubjectsAcquired: c.subjectsAcquired.Load(),
		InvalidFaces:     c.invalidFaces.Load(),
		StaleFrames:      c.staleFrames.Load(),
		MissedFrames:     c.missedFrames.Load(),
		TrackingLosses:   c.trackingLosses.Load(),
	}
}

func (c *Controller) send(msg *osc.Message) {
	if c.opts.Sender != nil {
		c.opts.Sender.Send(msg)
	}
}

// validFace rejects results whose bounding box collapsed to zero area or
// that publish any 2D point outside the non-negative screen quadrant.
func validFace(f *types.FaceFrame) bool {
	if f.Box.Right-f.Box.Left <= 0 || f.Box.Bottom-f.Box.Top <= 0 {
		return false
	}
	for _, p := range f.Points {
		if p.X < 0 || p.Y < 0 {
			return false
		}
	}
	return true
}
