package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/logging"

	"github.com/mfalme0/open-zengee/internal/bridge"
	"github.com/mfalme0/open-zengee/internal/fixture"
	"github.com/mfalme0/open-zengee/internal/sacn"
	"github.com/mfalme0/open-zengee/internal/stats"
	"github.com/mfalme0/open-zengee/internal/tui"
)

func main() {
	var (
		device    = flag.String("device", "", "bulb address (host or host:port); see -discover")
		universe  = flag.Uint("universe", 1, "E1.31 universe to listen to (1-63999)")
		pixels    = flag.Int("pixels", 1, "number of RGB pixels mapped from the start of the universe")
		port      = flag.Int("port", sacn.E131Port, "UDP port to listen on")
		persist   = flag.Bool("persist", false, "write colors to the bulb's flash")
		discover  = flag.Bool("discover", false, "scan the LAN for Magic Home bulbs and exit")
		dashboard = flag.Bool("dashboard", false, "show the live terminal dashboard")
		debug     = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.DefaultLogLevel = logging.LogLevelInfo
	if *debug {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}
	if *dashboard {
		// The dashboard owns the terminal
		loggerFactory.DefaultLogLevel = logging.LogLevelError
	}
	log := loggerFactory.NewLogger("main")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle system signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *discover {
		if err := runDiscovery(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := bridge.Config{
		DeviceAddr: *device,
		Universe:   uint16(*universe),
		PixelCount: *pixels,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// Create components
	tracker := stats.NewTracker(cfg.PixelCount)

	bulb, err := fixture.NewBulb(fixture.BulbConfig{
		Addr:          cfg.DeviceAddr,
		Persist:       *persist,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating fixture client: %v\n", err)
		os.Exit(1)
	}

	sender, err := bridge.NewSender(bridge.SenderConfig{
		Fixture:       bulb,
		PixelCount:    cfg.PixelCount,
		Tracker:       tracker,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating sender: %v\n", err)
		os.Exit(1)
	}

	pipeline := bridge.NewPipeline(cfg, sender, tracker, loggerFactory)

	receiver := sacn.NewReceiver(sacn.ReceiverConfig{
		Universe:      cfg.Universe,
		Port:          *port,
		OnMalformed:   func(*sacn.ParseError) { tracker.RecordMalformed() },
		LoggerFactory: loggerFactory,
	})

	// Power the bulb on; a failure is not fatal, the sender's reconnect
	// picks the bulb up when it appears.
	if err := bulb.PowerOn(); err != nil {
		log.Warnf("could not power on bulb: %v", err)
		tracker.SetDeviceState(false)
	} else {
		tracker.SetDeviceState(true)
	}

	if err := sender.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting sender: %v\n", err)
		os.Exit(1)
	}
	if err := receiver.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting receiver: %v\n", err)
		os.Exit(1)
	}

	// Process incoming frames, serialized through this single goroutine
	go func() {
		for packet := range receiver.Packets() {
			if err := pipeline.Dispatch(packet); err != nil {
				log.Warnf("dispatch: %v", err)
			}
		}
	}()

	if *dashboard {
		model := tui.NewModel(tracker, cfg)
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		}
		cancel()
	} else {
		log.Infof("bridging universe %d to %s (%d pixel(s))", cfg.Universe, bulb.Addr(), cfg.PixelCount)
		<-ctx.Done()
	}

	// Shutdown: stop receiving, let the sender drain its final flush,
	// then leave the bulb dark.
	receiver.Stop()
	cancel()
	sender.Wait()
	if err := bulb.PowerOff(); err != nil {
		log.Warnf("could not power off bulb: %v", err)
	}
	bulb.Close()
}

func runDiscovery(ctx context.Context) error {
	fmt.Println("Scanning for Magic Home devices...")
	devices, err := fixture.Discover(ctx, 5*time.Second)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("  %-15s  id=%s  model=%s\n", d.Addr, d.ID, d.Model)
	}
	return nil
}
