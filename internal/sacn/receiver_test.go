package sacn

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

// freeUDPPort asks the kernel for an unused port.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not find a free port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func TestReceiver_UnicastDelivery(t *testing.T) {
	port := freeUDPPort(t)

	malformedCh := make(chan struct{}, 1)
	r := NewReceiver(ReceiverConfig{
		Universe: 1,
		Port:     port,
		OnMalformed: func(*ParseError) {
			select {
			case malformedCh <- struct{}{}:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer r.Stop()

	conn, err := net.Dial("udp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// One junk datagram, then a valid frame
	if _, err := conn.Write([]byte("not sacn")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := conn.Write(buildValidPacket(1, 7, "loopback", []byte{10, 20, 30})); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case packet := <-r.Packets():
		if packet.Universe != 1 || packet.Sequence != 7 {
			t.Errorf("got universe %d seq %d, want 1/7", packet.Universe, packet.Sequence)
		}
		if packet.SourceAddr == nil {
			t.Error("SourceAddr not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no packet received")
	}

	select {
	case <-malformedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("malformed hook never fired")
	}
}

func TestReceiver_DoubleStart(t *testing.T) {
	port := freeUDPPort(t)
	r := NewReceiver(ReceiverConfig{Universe: 1, Port: port})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer r.Stop()

	if err := r.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}
