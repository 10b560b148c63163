package ingest

import (
	"log"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
)

// Control pushes retarget commands back to the sensor host so the upstream
// face trackers narrow their attention to the selected subject. Like the
// dispatcher, a Control that failed to connect degrades to a logged no-op
// for the process lifetime.
type Control struct {
	mu       sync.Mutex
	socket   *zmq4.Socket
	logEvery int
	errCount uint64
}

// NewControl connects the command channel. An empty endpoint or a connect
// failure yields a disabled Control.
func NewControl(endpoint string, logEvery int) *Control {
	c := &Control{logEvery: logEvery}
	if c.logEvery < 1 {
		c.logEvery = 1
	}
	if endpoint == "" {
		return c
	}

	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		log.Printf("control disabled: %v", err)
		return c
	}
	if err := socket.Connect(endpoint); err != nil {
		log.Printf("control disabled: connect %s: %v", endpoint, err)
		_ = socket.Close()
		return c
	}
	c.socket = socket
	return c
}

// Enabled reports whether the command channel is connected.
func (c *Control) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket != nil
}

// SetTarget narrows the upstream trackers to one id (0 clears the target).
// The send never blocks the frame loop; failures are rate-limit logged.
func (c *Control) SetTarget(trackingID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return
	}

	payload, err := cbor.Marshal(map[string]any{
		"type":        "set_target",
		"tracking_id": trackingID,
	})
	if err != nil {
		c.fail("control marshal: %v", err)
		return
	}
	if _, err := c.socket.SendBytes(payload, zmq4.DONTWAIT); err != nil {
		c.fail("control send target %d: %v", trackingID, err)
	}
}

func (c *Control) fail(format string, args ...any) {
	c.errCount++
	if c.errCount%uint64(c.logEvery) == 0 {
		log.Printf(format, args...)
	}
}

// Close releases the command channel. Safe on a disabled Control.
func (c *Control) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		_ = c.socket.Close()
		c.socket = nil
	}
}
