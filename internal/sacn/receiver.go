package sacn

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pion/logging"
	"golang.org/x/net/ipv4"
)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Universe is the multicast group to join. Unicast and broadcast
	// traffic on the port is received regardless.
	Universe uint16

	// Port is the UDP port to listen on. Defaults to E131Port.
	Port int

	// Interface restricts the multicast join to one interface. If nil,
	// every up, multicast-capable interface is joined.
	Interface *net.Interface

	// OnMalformed is invoked for every datagram Parse rejects. Optional.
	OnMalformed func(*ParseError)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Receiver listens for sACN packets on multicast, unicast, and broadcast
// and delivers parsed packets on a buffered channel. Datagrams that fail
// to parse are dropped; a full channel drops the oldest-unread behavior
// of UDP itself applies (the packet is discarded).
type Receiver struct {
	cfg     ReceiverConfig
	packets chan *Packet
	conn    *ipv4.PacketConn
	rawConn net.PacketConn
	log     logging.LeveledLogger
	mu      sync.Mutex
	started bool
}

// NewReceiver creates a new sACN receiver for a single universe.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.Port == 0 {
		cfg.Port = E131Port
	}
	r := &Receiver{
		cfg:     cfg,
		packets: make(chan *Packet, 1000),
	}
	if cfg.LoggerFactory != nil {
		r.log = cfg.LoggerFactory.NewLogger("sacn")
	}
	return r
}

// Packets returns the channel of received packets. The channel is closed
// when the receiver stops.
func (r *Receiver) Packets() <-chan *Packet {
	return r.packets
}

// Start binds the UDP socket, joins the universe's multicast group and
// begins delivering packets.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("receiver already started")
	}
	r.started = true
	r.mu.Unlock()

	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", r.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", r.cfg.Port, err)
	}
	r.rawConn = conn
	r.conn = ipv4.NewPacketConn(conn)

	if err := r.conn.SetControlMessage(ipv4.FlagDst, true); err != nil {
		// Non-fatal on some platforms
		if r.log != nil {
			r.log.Debugf("could not set control message: %v", err)
		}
	}

	r.joinMulticastGroup(r.cfg.Universe)

	if r.log != nil {
		r.log.Infof("listening on %s for universe %d", conn.LocalAddr(), r.cfg.Universe)
	}

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	go r.readPackets(ctx)

	return nil
}

// joinMulticastGroup joins the universe's multicast group on each eligible
// interface. Join failures are per-interface and non-fatal: unicast still
// works, and some interfaces simply don't support multicast.
func (r *Receiver) joinMulticastGroup(universe uint16) {
	group := &net.UDPAddr{IP: multicastAddressForUniverse(universe)}

	if r.cfg.Interface != nil {
		if err := r.conn.JoinGroup(r.cfg.Interface, group); err != nil && r.log != nil {
			r.log.Warnf("could not join %s on %s: %v", group.IP, r.cfg.Interface.Name, err)
		}
		return
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		if r.log != nil {
			r.log.Warnf("could not get network interfaces: %v", err)
		}
		return
	}

	for i := range interfaces {
		iface := &interfaces[i]
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := r.conn.JoinGroup(iface, group); err != nil && r.log != nil {
			r.log.Debugf("could not join %s on %s: %v", group.IP, iface.Name, err)
		}
	}
}

// multicastAddressForUniverse returns the multicast address for a universe.
// sACN multicast addresses are 239.255.{high}.{low} where universe = high*256 + low.
func multicastAddressForUniverse(universe uint16) net.IP {
	return net.IPv4(239, 255, byte(universe>>8), byte(universe))
}

// readPackets continuously reads datagrams from the UDP socket.
func (r *Receiver) readPackets(ctx context.Context) {
	defer close(r.packets)

	buf := make([]byte, 1500) // Ethernet MTU, comfortably above MaxPacketSize

	for {
		n, _, src, err := r.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				if r.log != nil {
					r.log.Warnf("read error, stopping: %v", err)
				}
			}
			return
		}

		packet, perr := Parse(buf[:n])
		if perr != nil {
			// Unrelated multicast traffic on the port is expected
			if r.log != nil {
				r.log.Tracef("dropping datagram from %s: %v", src, perr)
			}
			if pe, ok := perr.(*ParseError); ok && r.cfg.OnMalformed != nil {
				r.cfg.OnMalformed(pe)
			}
			continue
		}
		packet.SourceAddr = src

		select {
		case r.packets <- packet:
		default:
			// Channel full, drop packet: the next frame supersedes it anyway
		}
	}
}

// Stop closes the socket, which unblocks and terminates the read loop.
func (r *Receiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawConn != nil {
		r.rawConn.Close()
		r.rawConn = nil
	}
	r.started = false
}
