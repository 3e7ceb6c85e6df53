// conmouse - Console mouse daemon
// Translates evdev pointer events into xterm mouse-reporting sequences
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"conmouse/internal/api"
	"conmouse/internal/autostart"
	"conmouse/internal/config"
	"conmouse/internal/evdev"
	"conmouse/internal/pipeline"
	"conmouse/internal/protocol"
	"conmouse/internal/session"
	"conmouse/internal/term"
	"conmouse/internal/tracking"
)

var (
	version    = "1.0.0"
	devicePath = pflag.String("device", "", "Input device node to read (default: first pointer device)")
	termPath   = pflag.String("terminal", "", "Terminal to write encoded events to (default: standard output)")
	protoName  = pflag.String("protocol", "", "Wire protocol: sgr, normal or x10")
	track      = pflag.Bool("track", false, "Deliver only while the terminal has requested mouse tracking")
	multi      = pflag.Bool("multi", false, "Monitor all consoles and route events to the foreground one")
	noGrab     = pflag.Bool("no-grab", false, "Do not grab the input device exclusively")
	listDevs   = pflag.Bool("list-devices", false, "List input devices and exit")
	install    = pflag.Bool("install", false, "Install the systemd unit and exit")
	uninstall  = pflag.Bool("uninstall", false, "Remove the systemd unit and exit")
	apiOn      = pflag.Bool("api", false, "Enable the HTTP monitor server")
	apiPort    = pflag.Int("api-port", 0, "Monitor server port (default: 18089)")
	showVer    = pflag.Bool("version", false, "Show version")
)

func main() {
	// Unknown flags are ignored rather than fatal, so wrapper scripts
	// written for other console mouse daemons keep working.
	pflag.CommandLine.ParseErrorsWhitelist.UnknownFlags = true
	pflag.Parse()

	if *showVer {
		fmt.Printf("conmouse version %s\n", version)
		return
	}

	if runtime.GOOS != "linux" {
		log.Fatalf("conmouse requires Linux: there is no evdev or virtual console subsystem on %s", runtime.GOOS)
	}

	// Initialize config
	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	applyFlags(cfgMgr)

	// Handle --list-devices flag
	if *listDevs {
		listDevices()
		return
	}

	// Handle --install / --uninstall flags
	if *install {
		if err := autostart.Enable(); err != nil {
			log.Fatalf("Failed to install systemd unit: %v", err)
		}
		fmt.Println("Installed systemd unit; enable it with: systemctl enable conmouse")
		return
	}
	if *uninstall {
		if err := autostart.Disable(); err != nil {
			log.Fatalf("Failed to remove systemd unit: %v", err)
		}
		fmt.Println("Removed systemd unit")
		return
	}

	runService(cfgMgr)
}

// applyFlags overrides file configuration with explicitly set CLI flags
// for this run. Flags left at their defaults change nothing.
func applyFlags(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	set := pflag.CommandLine.Changed

	if set("device") {
		cfg.General.DevicePath = *devicePath
	}
	if set("terminal") {
		cfg.General.TerminalPath = *termPath
	}
	if set("protocol") {
		cfg.General.Protocol = *protoName
	}
	if set("track") {
		cfg.General.HonorTracking = *track
	}
	if set("multi") {
		cfg.General.MultiSession = *multi
	}
	if set("no-grab") {
		cfg.General.Grab = !*noGrab
	}
	if set("api") {
		cfg.General.APIEnabled = *apiOn
	}
	if set("api-port") {
		cfg.General.APIPort = *apiPort
	}
}

func listDevices() {
	devices, err := evdev.ListDevices()
	if err != nil {
		log.Fatalf("Failed to scan input devices: %v", err)
	}
	if len(devices) == 0 {
		fmt.Println("No accessible input devices found (try running as root)")
		return
	}

	fmt.Println("Input Devices:")
	fmt.Println("--------------")
	for _, dev := range devices {
		fmt.Printf("%s\n", dev.Path)
		fmt.Printf("  Name: %s\n", dev.Capabilities.Name)
		if dev.Capabilities.IsPointer() {
			fmt.Printf("  Pointer: ✓ Qualifies\n")
		} else {
			fmt.Printf("  Pointer: ✗ Not a pointer device\n")
		}
		fmt.Println()
	}
}

func runService(cfgMgr *config.Manager) {
	log.Println("conmouse daemon starting...")
	cfg := cfgMgr.Get()

	proto, err := protocol.Parse(cfg.General.Protocol)
	if err != nil {
		log.Fatalf("Bad protocol selection: %v", err)
	}

	// Open the input device
	devPath := cfg.General.DevicePath
	if devPath == "" {
		devPath, err = evdev.FindPointer()
		if err != nil {
			log.Fatalf("Device discovery failed: %v", err)
		}
	}
	dev, err := evdev.Open(devPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", devPath, err)
	}
	defer dev.Close()
	log.Printf("Device: %s (%s)", dev.Path(), dev.Capabilities().Name)

	if cfg.General.Grab {
		if err := dev.Grab(true); err != nil {
			if grabDenied(err) {
				dev.Close()
				log.Fatalf("Exclusive grab denied on %s: %v", devPath, err)
			}
			// EBUSY: another process holds the grab. The daemon still
			// works, it just shares the event stream.
			log.Printf("Warning: exclusive grab failed, other readers still see events: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup

	// Routing target: a session router across all consoles, or one
	// fixed terminal.
	var target pipeline.Target
	var router *session.Router
	if cfg.General.MultiSession {
		gateFor := func(s *session.Session) pipeline.Gate {
			if cfg.General.HonorTracking {
				return pipeline.TrackingGate{Tracker: s.Tracker}
			}
			return pipeline.RawModeGate{Fd: s.Sink.Fd()}
		}
		router = session.NewRouter(gateFor)
		target = router

		wg.Add(1)
		go func() {
			defer wg.Done()
			router.Run(ctx)
		}()
	} else {
		sink, err := term.OpenSink(cfg.General.TerminalPath)
		if err != nil {
			// log.Fatalf skips deferred closes; release the grab first.
			dev.Close()
			log.Fatalf("Failed to open output terminal: %v", err)
		}
		defer sink.Close()

		var gate pipeline.Gate
		if cfg.General.HonorTracking {
			// The foreground application's output must pass through
			// stdin for the tracker to see its enable/disable
			// sequences.
			tracker := tracking.NewTracker()
			tracker.SetOnChange(func(enabled bool) {
				if enabled {
					log.Println("Tracking: terminal requested mouse reporting")
				} else {
					log.Println("Tracking: terminal released mouse reporting")
				}
			})
			// Not on the WaitGroup: a blocking stdin read cannot be
			// interrupted and ends with the process.
			go feedTracker(tracker)
			gate = pipeline.TrackingGate{Tracker: tracker}
		} else {
			if !sink.IsTerminal() {
				sink.Close()
				dev.Close()
				log.Fatalf("Raw-mode gating needs a terminal output, %s is not one", sink.Path())
			}
			gate = pipeline.RawModeGate{Fd: sink.Fd()}
		}
		target = pipeline.FixedTarget{Out: sink, Gate: gate}
	}

	pipe := pipeline.New(dev, target, proto)

	// Start API server if enabled
	if cfg.General.APIEnabled {
		apiServer := api.NewServer(cfgMgr, func() api.Status {
			st := api.Status{
				Device:     dev.Path(),
				DeviceName: dev.Capabilities().Name,
				Protocol:   proto.String(),
				Gating:     gatingName(cfg),
				Sessions:   1,
				Delivered:  pipe.Delivered(),
			}
			if router != nil {
				st.ActiveTerminal = router.ActivePath()
				st.Sessions = router.SessionCount()
			}
			return st
		})

		pipe.SetOnDeliver(func(ev pipeline.DeliveredEvent) {
			apiServer.BroadcastEvent(ev)
		})
		if router != nil {
			router.SetOnActiveChange(func(path string) {
				apiServer.BroadcastActive(path)
			})
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx, cfg.General.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	log.Println("conmouse running. Press Ctrl+C to stop.")
	pipe.Run(ctx)

	wg.Wait()

	// Release the grab before any descriptor closes; Close would also
	// release it, but the ordering here is the contract.
	if err := dev.Grab(false); err != nil {
		log.Printf("Warning: grab release failed: %v", err)
	}
	log.Println("conmouse stopped")
}

// grabDenied distinguishes an access-rights grab failure, which is
// fatal at startup, from a contended device.
func grabDenied(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}

func gatingName(cfg *config.Config) string {
	if cfg.General.HonorTracking {
		return "tracking"
	}
	return "raw-mode"
}

// feedTracker pumps standard input into the mode tracker.
func feedTracker(t *tracking.Tracker) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			t.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
