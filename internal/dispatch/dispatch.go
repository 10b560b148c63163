// Package dispatch transmits encoded frame results as OSC messages over a
// single connectionless UDP sink. Sends are best-effort and fire-and-forget:
// no acknowledgment, no retry, no backpressure.
package dispatch

import (
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// OSC addresses of the fixed wire contract.
const (
	AddrHDFace       = "/osceleton2/hdface"
	AddrFaceRotation = "/osceleton2/face/rotation"
	AddrFaceID       = "/osceleton2/face/id"
	addrFacePrefix   = "/osceleton2/face/"
)

// FaceAddr returns the address for a named face attribute, e.g.
// FaceAddr("happy") = "/osceleton2/face/happy".
func FaceAddr(name string) string {
	return addrFacePrefix + name
}

// Config is the dispatcher's startup-time surface. Nothing is
// reconfigurable at runtime.
type Config struct {
	IP          string
	Port        int
	LocalPort   int
	SendBuffer  int
	SendTimeout time.Duration
	LogEvery    int
}

// Dispatcher owns the UDP sink. A Dispatcher that failed to initialize is
// permanently disabled: Send becomes a counted no-op so the frame loop
// keeps running with no network present.
type Dispatcher struct {
	conn     *net.UDPConn
	timeout  time.Duration
	logEvery int

	sent       atomic.Uint64
	sendErrors atomic.Uint64
	skipped    atomic.Uint64
	errCount   atomic.Uint64
}

// New opens the UDP sink. Initialization failure is logged once and yields
// a disabled dispatcher rather than an error; callers never need to handle
// a missing network.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		timeout:  cfg.SendTimeout,
		logEvery: cfg.LogEvery,
	}
	if d.logEvery < 1 {
		d.logEvery = 1
	}

	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.IP, cfg.Port))
	if err != nil {
		log.Printf("dispatch disabled: resolve %s:%d: %v", cfg.IP, cfg.Port, err)
		return d
	}
	var laddr *net.UDPAddr
	if cfg.LocalPort > 0 {
		laddr = &net.UDPAddr{Port: cfg.LocalPort}
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		log.Printf("dispatch disabled: dial %v: %v", raddr, err)
		return d
	}
	if cfg.SendBuffer > 0 {
		if err := conn.SetWriteBuffer(cfg.SendBuffer); err != nil {
			log.Printf("dispatch: set send buffer %d: %v", cfg.SendBuffer, err)
		}
	}
	d.conn = conn
	return d
}

// Enabled reports whether the sink was opened.
func (d *Dispatcher) Enabled() bool {
	return d.conn != nil
}

// Send transmits one message as a single UDP datagram. Errors are counted
// and rate-limit logged, never returned; a disabled dispatcher skips the
// send entirely.
func (d *Dispatcher) Send(msg *osc.Message) {
	if d.conn == nil {
		d.skipped.Add(1)
		return
	}
	payload, err := msg.MarshalBinary()
	if err != nil {
		d.fail("dispatch marshal %s: %v", msg.Address, err)
		return
	}
	if d.timeout > 0 {
		_ = d.conn.SetWriteDeadline(time.Now().Add(d.timeout))
	}
	if _, err := d.conn.Write(payload); err != nil {
		d.fail("dispatch send %s: %v", msg.Address, err)
		return
	}
	d.sent.Add(1)
}

func (d *Dispatcher) fail(format string, args ...any) {
	d.sendErrors.Add(1)
	if d.errCount.Add(1)%uint64(d.logEvery) == 0 {
		log.Printf(format, args...)
	}
}

// Stats returns cumulative send counters for the status surface.
func (d *Dispatcher) Stats() (sent, errors, skipped uint64) {
	return d.sent.Load(), d.sendErrors.Load(), d.skipped.Load()
}

// Close releases the sink. Safe on a disabled dispatcher.
func (d *Dispatcher) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
