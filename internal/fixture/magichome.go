package fixture

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/logging"
)

// DefaultPort is the TCP control port of Magic Home bulbs.
const DefaultPort = 5577

// Command opcodes, shared with the official app. Every frame ends with an
// additive checksum byte.
const (
	cmdSetColor = 0x31
	cmdSetQuick = 0x41 // like cmdSetColor but not persisted to bulb flash
	cmdPower    = 0x71
	powerOn     = 0x23
	powerOff    = 0x24
	cmdTail     = 0x0f
)

// ErrBackoff is returned when a write is refused because the previous
// connection attempt failed and the reconnect backoff has not elapsed.
// Callers should treat it like any other transient device error: drop the
// value and move on, the next one supersedes it.
var ErrBackoff = errors.New("fixture: reconnect backoff in effect")

// BulbConfig configures a Bulb.
type BulbConfig struct {
	// Addr is the bulb's address, host or host:port. Required.
	Addr string

	// Persist writes colors to the bulb's flash. Off by default: a 40 Hz
	// stream would wear the flash out.
	Persist bool

	// DialTimeout bounds connection attempts. Defaults to 2s.
	DialTimeout time.Duration

	// WriteTimeout bounds each command write. Defaults to 500ms, short
	// enough that a wedged bulb cannot stall the sender for a full frame
	// interval worth of updates.
	WriteTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Bulb drives a single Magic Home RGB bulb over TCP. It owns the
// reconnect policy: a failed dial or write closes the connection and the
// next call redials, gated by exponential backoff so an unplugged bulb
// doesn't turn every frame into a blocking dial.
//
// Bulb is safe for concurrent use, though the bridge only ever drives it
// from one goroutine.
type Bulb struct {
	cfg BulbConfig
	log logging.LeveledLogger

	mu       sync.Mutex
	conn     net.Conn
	boff     *backoff.ExponentialBackOff
	nextDial time.Time
}

// NewBulb creates a client for the bulb at cfg.Addr. No connection is made
// until the first command.
func NewBulb(cfg BulbConfig) (*Bulb, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("fixture: no address configured")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		cfg.Addr = net.JoinHostPort(cfg.Addr, fmt.Sprintf("%d", DefaultPort))
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 500 * time.Millisecond
	boff.MaxInterval = 10 * time.Second
	boff.MaxElapsedTime = 0 // never give up, the bulb may come back

	b := &Bulb{cfg: cfg, boff: boff}
	if cfg.LoggerFactory != nil {
		b.log = cfg.LoggerFactory.NewLogger("fixture")
	}
	return b, nil
}

// Addr returns the resolved bulb address.
func (b *Bulb) Addr() string {
	return b.cfg.Addr
}

// ApplyRGB sets the bulb color. Only pixel 0 exists on a plain bulb.
func (b *Bulb) ApplyRGB(pixel int, red, green, blue uint8) error {
	if pixel != 0 {
		return fmt.Errorf("fixture: pixel %d out of range for a single bulb", pixel)
	}
	op := byte(cmdSetQuick)
	if b.cfg.Persist {
		op = cmdSetColor
	}
	// opcode R G B warm-white, color/white mode selector, tail
	return b.send([]byte{op, red, green, blue, 0x00, 0x00, cmdTail})
}

// PowerOn turns the bulb on.
func (b *Bulb) PowerOn() error {
	return b.send([]byte{cmdPower, powerOn, cmdTail})
}

// PowerOff turns the bulb off.
func (b *Bulb) PowerOff() error {
	return b.send([]byte{cmdPower, powerOff, cmdTail})
}

// Close drops the connection. The bulb is left in whatever state it is in.
func (b *Bulb) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// send frames the command with its checksum and writes it, reconnecting
// first if needed. A write failure tears the connection down so the next
// command redials.
func (b *Bulb) send(cmd []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.ensureConn()
	if err != nil {
		return err
	}

	frame := appendChecksum(cmd)
	if err := conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout)); err == nil {
		_, err = conn.Write(frame)
	}
	if err != nil {
		if b.log != nil {
			b.log.Warnf("write to %s failed: %v", b.cfg.Addr, err)
		}
		conn.Close()
		b.conn = nil
		return fmt.Errorf("fixture: write: %w", err)
	}
	return nil
}

func (b *Bulb) ensureConn() (net.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}
	if time.Now().Before(b.nextDial) {
		return nil, ErrBackoff
	}

	conn, err := net.DialTimeout("tcp", b.cfg.Addr, b.cfg.DialTimeout)
	if err != nil {
		b.nextDial = time.Now().Add(b.boff.NextBackOff())
		if b.log != nil {
			b.log.Warnf("dial %s failed, next attempt after %s: %v", b.cfg.Addr, time.Until(b.nextDial).Round(time.Millisecond), err)
		}
		return nil, fmt.Errorf("fixture: dial: %w", err)
	}

	b.boff.Reset()
	b.nextDial = time.Time{}
	b.conn = conn
	if b.log != nil {
		b.log.Infof("connected to bulb at %s", b.cfg.Addr)
	}
	return conn, nil
}

// appendChecksum returns cmd with the Magic Home additive checksum byte
// (sum of all bytes, truncated to 8 bits) appended.
func appendChecksum(cmd []byte) []byte {
	var sum byte
	for _, c := range cmd {
		sum += c
	}
	return append(cmd, sum)
}
