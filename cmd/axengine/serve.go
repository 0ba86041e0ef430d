package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/corvidlabs/axengine/internal/axport"
	"github.com/corvidlabs/axengine/internal/bridge"
	"github.com/corvidlabs/axengine/internal/config"
	"github.com/corvidlabs/axengine/internal/dispatcher"
	"github.com/corvidlabs/axengine/internal/locator"
	"github.com/corvidlabs/axengine/internal/logging"
	"github.com/corvidlabs/axengine/internal/metrics"
	"github.com/corvidlabs/axengine/internal/model"
	"github.com/corvidlabs/axengine/internal/observer"
	"github.com/corvidlabs/axengine/internal/resolver"
	"github.com/corvidlabs/axengine/internal/value"
)

type serveOptions struct {
	metricsAddr string
	bridgeAddr  string
	demoTree    bool
}

// responseEnvelope correlates a Response back to the request that
// produced it; the dispatcher's Response itself carries no command id
// (that belongs to transport framing, not the response payload, §6).
type responseEnvelope struct {
	CommandID string `json:"commandId"`
	model.Response
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "axengine",
		FilePath:  cfg.LogFilePath,
	})
	log.Info().Msg("axengine: starting")

	watcher, err := config.NewConfigWatcher(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("axengine: failed to start config watcher, .env changes require restart")
	} else {
		defer watcher.Stop()
	}

	port, demoPID := buildPort(opts.demoTree)

	res := resolver.New(port, resolver.BundlePolicy{Allow: cfg.BundleAllow, Deny: cfg.BundleDeny}, log.Logger)
	unwrapper := value.NewUnwrapper(port, cfg.MaxValueDepth)
	loc := locator.New(port, res, unwrapper, log.Logger)
	center := observer.New(port, log.Logger)
	go center.Run()
	defer center.Stop()

	var m *metrics.Metrics
	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		m = metrics.New(Version, log.Logger)
		if err := m.Start(metricsAddr); err != nil {
			log.Warn().Err(err).Str("addr", metricsAddr).Msg("axengine: failed to start metrics server")
			m = nil
		} else {
			defer m.Shutdown(context.Background())
		}
	}

	schema, err := compileEnvelopeSchema(cfg.EnvelopeSchemaPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.EnvelopeSchemaPath).Msg("axengine: ignoring invalid envelope schema")
	}

	var metricsIface dispatcher.Metrics
	if m != nil {
		metricsIface = m
	}
	disp := dispatcher.New(port, res, loc, center, unwrapper, log.Logger, metricsIface, schema)

	var hub *bridge.Hub
	if opts.bridgeAddr != "" {
		var stopBridge func()
		hub, stopBridge = startBridge(opts.bridgeAddr, center, demoPID)
		defer stopBridge()
	}

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	go pollPermission(pollCtx, port, cfg.PermissionPollInterval, hub)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("axengine: shutting down")
		cancel()
	}()

	return serveLoop(runCtx, disp, os.Stdin, os.Stdout)
}

// serveLoop reads one NDJSON CommandEnvelope per line from in and
// writes one NDJSON responseEnvelope per line to out, until EOF or ctx
// is cancelled. A malformed line is logged and skipped.
func serveLoop(ctx context.Context, disp *dispatcher.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			var envelope model.CommandEnvelope
			if err := json.Unmarshal([]byte(line), &envelope); err != nil {
				log.Warn().Err(err).Msg("axengine: malformed command envelope")
				continue
			}
			resp := disp.Run(ctx, envelope)
			if err := enc.Encode(responseEnvelope{CommandID: envelope.CommandID, Response: resp}); err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
		}
	}
}

// demoNotifications are the lifecycle notifications the bridge relays
// for the seeded demo application; a real embedder wires whatever
// notifications its own UI cares about instead.
var demoNotifications = []string{"AXFocusedUIElementChanged", "AXValueChanged", "AXUIElementDestroyed"}

// buildPort wires a demo AXPort: gopsutil-backed process enumeration
// layered over a fake element tree, since a real platform backend
// requires cgo bindings this module never implements (§6). When
// demoTree is set it also returns the pid of the seeded fake
// application, for the bridge to subscribe notifications on.
func buildPort(demoTree bool) (axport.AXPort, *int) {
	fake := axport.NewFakeAXPort()
	var pid *int
	if demoTree {
		p := seedDemoTree(fake)
		pid = &p
	}
	return axport.NewProcessEnumerator(fake), pid
}

func seedDemoTree(fake *axport.FakeAXPort) int {
	pid := os.Getpid()
	window := axport.NewFakeElement(pid, map[string]any{
		"AXRole":  "AXWindow",
		"AXTitle": "axengine demo window",
	})
	button := axport.NewFakeElement(pid, map[string]any{
		"AXRole":    "AXButton",
		"AXTitle":   "Demo Button",
		"AXEnabled": true,
	}, "AXPress")
	window.AddChild(button)
	fake.AddApp(axport.AppInfo{PID: pid, BundleID: "dev.axengine.demo", Name: "axengine-demo", Frontmost: true}, window)
	return pid
}

// pollPermission watches AXPort.IsProcessTrusted at interval and logs
// (and, if hub is non-nil, relays) transitions. This is the
// "permission_changes stream" the core only defines an interface for
// (§4.7); the core itself implements no timer, so any consumer that
// wants it builds one — the demo CLI is one such external consumer.
func pollPermission(ctx context.Context, port axport.AXPort, interval time.Duration, hub *bridge.Hub) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	trusted := port.IsProcessTrusted()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := port.IsProcessTrusted()
			if now == trusted {
				continue
			}
			trusted = now
			log.Info().Bool("trusted", trusted).Msg("axengine: accessibility permission state changed")
			if hub != nil {
				hub.Publish("permissionChanged", map[string]bool{"trusted": trusted})
			}
		}
	}
}

func startBridge(addr string, center *observer.Center, demoPID *int) (*bridge.Hub, func()) {
	hub := bridge.NewHub(log.Logger)
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("axengine: bridge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Debug().Err(err).Msg("axengine: bridge server stopped")
		}
	}()

	relay := bridge.NewRelay(hub, log.Logger)
	if lb := logging.Broadcaster(); lb != nil {
		lines, _ := lb.Subscribe("bridge")
		go relay.RelayLogLines(lines)
	}
	if demoPID != nil {
		relay.ObserveNotifications(center, demoPID, demoNotifications)
	}

	return hub, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
