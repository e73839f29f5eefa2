// sacn-send is a minimal E1.31 test source. It streams a fixed color or a
// hue cycle to one universe, via unicast or the universe's multicast group,
// so the bridge can be exercised without a lighting console.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mfalme0/open-zengee/internal/sacn"
)

func main() {
	var (
		target   = flag.String("target", "", "destination host (default: the universe's multicast group)")
		universe = flag.Uint("universe", 1, "E1.31 universe to send on (1-63999)")
		pixels   = flag.Int("pixels", 1, "number of RGB pixels to fill")
		color    = flag.String("color", "", "fixed color as #RRGGBB (default: hue cycle)")
		fps      = flag.Int("fps", 40, "frames per second")
		name     = flag.String("name", "sacn-send", "source name to advertise")
	)
	flag.Parse()

	if *fps < 1 {
		fmt.Fprintln(os.Stderr, "fps must be at least 1")
		os.Exit(1)
	}

	var fixed *[3]uint8
	if *color != "" {
		var r, g, b uint8
		if _, err := fmt.Sscanf(*color, "#%02x%02x%02x", &r, &g, &b); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid color %q: %v\n", *color, err)
			os.Exit(1)
		}
		fixed = &[3]uint8{r, g, b}
	}

	host := *target
	if host == "" {
		host = fmt.Sprintf("239.255.%d.%d", byte(*universe>>8), byte(*universe))
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", sacn.E131Port))
	conn, err := net.Dial("udp4", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error dialing %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	packet := sacn.Packet{
		CID:         [16]byte(uuid.New()),
		SourceName:  *name,
		Priority:    100,
		Universe:    uint16(*universe),
		ChannelData: make([]byte, *pixels*3),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	fmt.Printf("Sending universe %d to %s at %d fps\n", *universe, addr, *fps)

	hue := 0.0
	for {
		select {
		case <-sigCh:
			return
		case <-ticker.C:
		}

		var r, g, b uint8
		if fixed != nil {
			r, g, b = fixed[0], fixed[1], fixed[2]
		} else {
			r, g, b = hueToRGB(hue)
			hue += 0.5
			if hue >= 360 {
				hue = 0
			}
		}
		for i := 0; i < *pixels; i++ {
			packet.ChannelData[3*i] = r
			packet.ChannelData[3*i+1] = g
			packet.ChannelData[3*i+2] = b
		}

		wire, err := sacn.Marshal(&packet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding frame: %v\n", err)
			os.Exit(1)
		}
		if _, err := conn.Write(wire); err != nil {
			fmt.Fprintf(os.Stderr, "Error sending frame: %v\n", err)
			os.Exit(1)
		}
		packet.Sequence++
	}
}

// hueToRGB converts a hue in degrees to a fully saturated RGB color.
func hueToRGB(h float64) (uint8, uint8, uint8) {
	for h < 0 {
		h += 360
	}
	for h >= 360 {
		h -= 360
	}
	c := 255.0
	x := c * (1 - abs(mod2(h/60)-1))

	switch {
	case h < 60:
		return uint8(c), uint8(x), 0
	case h < 120:
		return uint8(x), uint8(c), 0
	case h < 180:
		return 0, uint8(c), uint8(x)
	case h < 240:
		return 0, uint8(x), uint8(c)
	case h < 300:
		return uint8(x), 0, uint8(c)
	default:
		return uint8(c), 0, uint8(x)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func mod2(f float64) float64 {
	for f >= 2 {
		f -= 2
	}
	return f
}
