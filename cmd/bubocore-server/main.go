// Command bubocore-server runs the collaborative live-coding music session
// server: Clock, Device Registry, Scene Model, Language Center, Scheduler,
// Dispatcher, and Session Server wired together over a single TCP listener.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/zurustar/bubocore/internal/clock"
	"github.com/zurustar/bubocore/internal/device"
	"github.com/zurustar/bubocore/internal/dispatcher"
	"github.com/zurustar/bubocore/internal/lang"
	"github.com/zurustar/bubocore/internal/lang/filly"
	"github.com/zurustar/bubocore/internal/lang/stub"
	"github.com/zurustar/bubocore/internal/project"
	"github.com/zurustar/bubocore/internal/relay"
	"github.com/zurustar/bubocore/internal/scene"
	"github.com/zurustar/bubocore/internal/scheduler"
	"github.com/zurustar/bubocore/internal/session"
	"github.com/zurustar/bubocore/pkg/cli"
	"github.com/zurustar/bubocore/pkg/logger"
)

const (
	schedulerInboxSize = 256
	schedulerNotifSize = 256
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "bubocore-server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	if cfg.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.GetLogger()

	store := project.New(cfg.ProjectsDir, log)

	langs := lang.NewRegistry()
	langs.Register(filly.New())
	langs.Register(stub.New())

	devices := device.New(log)

	var scn *scene.Scene
	var deviceSnap device.Snapshot
	var haveDeviceSnap bool
	if cfg.ProjectName != "" {
		scn, deviceSnap, haveDeviceSnap, err = loadProject(store, cfg.ProjectName, langs, log)
		if err != nil {
			return err
		}
	}
	if scn == nil {
		scn = scene.New(int(cfg.DefaultQuantum) * 4)
	}

	clk := clock.New(cfg.DefaultTempo, cfg.DefaultQuantum, log)

	disp := dispatcher.New(log)
	go disp.Run()
	defer disp.Stop()

	sched := scheduler.New(scn, clk, langs, devices, disp, log, schedulerInboxSize, schedulerNotifSize)
	go sched.Run()
	defer sched.Stop()

	srv := session.New(sched, devices, clk, langs, log, cfg.HandshakeTimeout)
	if haveDeviceSnap {
		srv.SetDeviceSnapshot(deviceSnap)
	}

	if cfg.RelayAddr != "" {
		relayClient, err := relay.Dial(cfg.RelayAddr, cfg.ListenAddr, log)
		if err != nil {
			log.Warn("bubocore-server: relay connection failed, continuing in local-only mode", "error", err)
		} else {
			defer relayClient.Close()
			go forwardTempoChangesToRelay(sched, relayClient, log)
		}
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}
	log.Info("bubocore-server: listening", "addr", cfg.ListenAddr, "project", cfg.ProjectName)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("bubocore-server: serve failed", "error", err)
		}
	case sig := <-sigc:
		log.Info("bubocore-server: shutting down", "signal", sig.String())
	}

	srv.Stop()
	ln.Close()

	if cfg.ProjectName != "" {
		if err := saveProject(store, cfg.ProjectName, sched, devices); err != nil {
			log.Error("bubocore-server: saving project on shutdown failed", "error", err)
		}
	}
	return nil
}

func loadProject(store *project.Store, name string, langs *lang.Registry, log *slog.Logger) (*scene.Scene, device.Snapshot, bool, error) {
	snap, scripts, err := store.Load(name)
	if err != nil {
		return nil, device.Snapshot{}, false, fmt.Errorf("loading project %q: %w", name, err)
	}
	scn := project.Build(snap, scripts, langs)
	deviceSnap := device.Snapshot{Outputs: snap.Devices}
	log.Info("bubocore-server: loaded project", "name", name, "lines", scn.LineCount())
	return scn, deviceSnap, true, nil
}

func saveProject(store *project.Store, name string, sched *scheduler.Scheduler, devices *device.Registry) error {
	snapshot := sched.Snapshot()
	projSnap, scripts := project.ToSnapshot(snapshot.Scene, snapshot.Tempo, snapshot.Beat, snapshot.Micros, snapshot.Quantum, devices.Snapshot().Outputs)
	return store.Save(name, projSnap, scripts)
}

// forwardTempoChangesToRelay mirrors this instance's tempo/quantum changes to
// peer session server instances through the relay, as the opaque StateUpdate
// payload §4.H describes. The relay never interprets it; only peer
// bubocore-server instances decode it.
func forwardTempoChangesToRelay(sched *scheduler.Scheduler, relayClient *relay.Client, log *slog.Logger) {
	for n := range sched.Notifications() {
		var payload map[string]any
		switch n.Kind {
		case scheduler.NotifyTempoChanged:
			bpm, _ := n.Payload.(float64)
			payload = map[string]any{"kind": "tempo", "bpm": bpm}
		case scheduler.NotifyQuantumChanged:
			q, _ := n.Payload.(float64)
			payload = map[string]any{"kind": "quantum", "quantum": q}
		default:
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		if err := relayClient.Send(data); err != nil {
			log.Warn("bubocore-server: relay send failed", "error", err)
			return
		}
	}
}
