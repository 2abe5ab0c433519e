// InputShare - share the host keyboard and mouse with an Android device
// over a UHID control connection
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inputshare/internal/api"
	"inputshare/internal/clipboard"
	"inputshare/internal/config"
	"inputshare/internal/controller"
	"inputshare/internal/hotkey"
	"inputshare/internal/input"
	"inputshare/internal/network"
	"inputshare/internal/osutils"
	"inputshare/internal/pacer"
	"inputshare/internal/portal"
	"inputshare/internal/protocol"
	"inputshare/internal/reporter"
	"inputshare/internal/tray"
)

var (
	version    = "0.1.0"
	showVer    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "", "Configuration file (.json, .toml or .yaml)")
	noTray     = flag.Bool("no-tray", false, "Run without the system tray")
	checkAddr  = flag.String("check-addr", "", "Validate a device ip:port address and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("inputshare version %s\n", version)
		return
	}

	if *checkAddr != "" {
		if !network.IsValidIPPort(*checkAddr) {
			fmt.Fprintf(os.Stderr, "%s is not a valid ip:port address\n", *checkAddr)
			os.Exit(1)
		}
		fmt.Printf("%s is valid (host %s)\n", *checkAddr, network.HostFromIPPort(*checkAddr))
		if local, err := network.LocalIPFor(*checkAddr); err != nil {
			fmt.Printf("no local route: %v\n", err)
		} else {
			fmt.Printf("reached through local address %s\n", local)
		}
		return
	}

	// Initialize config
	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	if err := cfgMgr.Watch(); err != nil {
		log.Printf("Warning: config changes will not be picked up: %v", err)
	}

	err = runSession(cfgMgr)
	cfgMgr.Close()
	if err != nil {
		log.Printf("Session ended: %v", err)
		os.Exit(1)
	}
	log.Println("Session ended")
}

// edgeNotifier forwards reporter opcodes to the portal and publishes the
// pause state change.
type edgeNotifier struct {
	*portal.Portal
	notify func()
}

func (e edgeNotifier) PauseEdgeToggling() {
	e.Portal.PauseEdgeToggling()
	e.notify()
}

func (e edgeNotifier) ResumeEdgeToggling() {
	e.Portal.ResumeEdgeToggling()
	e.notify()
}

func runSession(cfgMgr *config.Manager) error {
	cfg := cfgMgr.Get()
	log.Println("InputShare starting...")
	if !osutils.IsAdmin() {
		log.Println("Note: input capture may require administrator privileges")
	}

	device := network.NewDevice(cfg.Device.Addr)
	if err := device.Connect(); err != nil {
		return fmt.Errorf("connect to device: %w", err)
	}
	defer device.Close()

	local := &clipboard.System{}
	received := &clipboard.Received{}
	trap := input.NewTrap()

	var t *tray.Tray
	var overlay controller.Overlay
	if !*noTray {
		t = tray.New("InputShare - share input with your device")
		overlay = t
	}

	ctrl := controller.New(controller.Options{
		Device:    device,
		Capture:   trap,
		Overlay:   overlay,
		Clipboard: local,
		Received:  received,
		Settings: func() controller.Settings {
			g := cfgMgr.Get().General
			return controller.Settings{ShareKeyboardOnly: g.ShareKeyboardOnly, SyncClipboard: g.SyncClipboard}
		},
	})

	edge := portal.New(portal.Config{
		Enabled:  cfg.EdgePortal.EdgeToggling,
		Position: portal.Position(cfg.EdgePortal.DevicePosition),
		Margin:   cfg.EdgePortal.TriggerMargin,
	}, input.NewPointer(), input.NewScreen(cfg.EdgePortal.ScreenWidth, cfg.EdgePortal.ScreenHeight), ctrl)
	ctrl.AttachPortal(edge)

	// Control API
	var apiServer *api.Server
	notify := func() {
		if apiServer != nil {
			apiServer.BroadcastStatus()
		}
	}
	if cfg.API.Enabled {
		apiServer = api.NewServer(api.Options{
			Controller: ctrl,
			Config:     cfgMgr,
			Token:      cfg.API.Token,
			Status: func() protocol.StatusPayload {
				return protocol.StatusPayload{
					Redirecting:        ctrl.Redirecting(),
					EdgeTogglingPaused: edge.EdgeTogglingPaused(),
					DeviceConnected:    device.Connected(),
				}
			},
		})
		go func() {
			if err := apiServer.Start(cfg.API.Port); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			apiServer.Shutdown(ctx)
		}()
	}
	ctrl.OnChange(func(bool) { notify() })

	// Hotkeys
	hkMgr := hotkey.NewManager()
	registerHotkeys(hkMgr, cfg.Hotkeys, ctrl)

	// Input pipeline: capture -> handlers -> pacer -> device
	handlers := controller.NewHandlers(ctrl, hkMgr)
	mover := pacer.New(ctrl, pacer.Options{
		MouseSpeed:  func() float64 { return cfgMgr.Get().General.MouseSpeed },
		KeepAwake:   func() bool { return cfgMgr.Get().General.KeepWakeup },
		ManualSleep: ctrl.Session().ManualSleep,
		Buttons:     handlers.Buttons,
		OnFatal:     ctrl.RequestExit,
	})
	handlers.SetMover(mover)
	defer mover.Stop()

	// Device receive loop
	go func() {
		err := device.ReadLoop(func(m *protocol.DeviceMessage) {
			if m.Type != protocol.DeviceMsgClipboard {
				return
			}
			received.Store(m.Text)
			if cfgMgr.Get().General.SyncClipboard {
				if err := local.Write(m.Text); err != nil {
					log.Printf("Clipboard: %v", err)
				}
			}
		})
		if err != nil {
			ctrl.RequestExit(fmt.Errorf("device read: %w", err))
		}
	}()

	edge.Start()
	defer edge.Close()

	rep := (&reporter.Receiver{
		Addr:         cfg.Device.ReporterAddr,
		Toggler:      ctrl,
		Edge:         edgeNotifier{Portal: edge, notify: notify},
		EdgeToggling: cfg.EdgePortal.EdgeToggling,
	}).Start()
	defer rep.Stop()

	// The pacer and capture wait for the device's virtual keyboard and mouse.
	ctrl.OnReady(func() {
		mover.Start()
		if err := trap.Start(handlers); err != nil {
			log.Printf("Warning: input capture unavailable: %v", err)
		}
	})
	defer trap.Stop()

	cfgMgr.RegisterChangeCallback(func(c config.Config) {
		hkMgr.Clear()
		registerHotkeys(hkMgr, c.Hotkeys, ctrl)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	log.Println("InputShare running. Press Ctrl+C to stop.")
	if t != nil {
		buildMenu(t, cfgMgr, ctrl)
		go func() {
			<-ctrl.Session().Done()
			t.Stop()
		}()
		t.Run()
		ctrl.RequestExit(nil)
	}
	return <-runErr
}

func registerHotkeys(hkMgr *hotkey.Manager, hk config.HotkeyConfig, ctrl *controller.Controller) {
	toggle, exit := hk.Toggle, hk.Exit
	if toggle == "" {
		toggle = hotkey.DefaultToggle
	}
	if exit == "" {
		exit = hotkey.DefaultExit
	}
	if err := hkMgr.Register(toggle, func() { ctrl.RequestToggle() }); err != nil {
		log.Printf("Warning: failed to register toggle hotkey: %v", err)
	}
	if err := hkMgr.Register(exit, func() { ctrl.RequestExit(nil) }); err != nil {
		log.Printf("Warning: failed to register exit hotkey: %v", err)
	}
	log.Printf("Shortcuts: toggle %s, exit %s", toggle, exit)
}

func buildMenu(t *tray.Tray, cfgMgr *config.Manager, ctrl *controller.Controller) {
	cfg := cfgMgr.Get()

	save := func(fn func(*config.Config)) {
		if err := cfgMgr.Update(fn); err != nil {
			log.Printf("Config: %v", err)
			return
		}
		if err := cfgMgr.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
	}

	enable := t.AddCheckbox("Enable sharing", ctrl.Redirecting(), func(bool) {
		if err := ctrl.Toggle(""); err != nil {
			log.Printf("Tray: %v", err)
		}
	})
	t.SetSharingItem(enable)

	t.AddMenuItem("Send clipboard text", func() {
		if err := ctrl.SendClipboard(); err != nil {
			log.Printf("Tray: send clipboard: %v", err)
		}
	})

	t.AddSeparator()

	keyboardOnly := t.AddCheckbox("Share keyboard only", cfg.General.ShareKeyboardOnly, func(on bool) {
		save(func(c *config.Config) { c.General.ShareKeyboardOnly = on })
	})
	syncClip := t.AddCheckbox("Sync clipboard", cfg.General.SyncClipboard, func(on bool) {
		save(func(c *config.Config) { c.General.SyncClipboard = on })
	})
	cfgMgr.RegisterChangeCallback(func(c config.Config) {
		t.SetItemChecked(keyboardOnly, c.General.ShareKeyboardOnly)
		t.SetItemChecked(syncClip, c.General.SyncClipboard)
	})

	t.AddMenuItem("Settings...", func() {
		if _, err := os.Stat(cfgMgr.Path()); os.IsNotExist(err) {
			if err := cfgMgr.Save(); err != nil {
				log.Printf("Failed to save config: %v", err)
				return
			}
		}
		if err := osutils.OpenFile(cfgMgr.Path()); err != nil {
			log.Printf("Failed to open settings: %v", err)
		}
	})

	t.AddSeparator()

	t.AddMenuItem("Exit", func() {
		ctrl.RequestExit(nil)
	})
}
