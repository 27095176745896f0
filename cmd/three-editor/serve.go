package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/khudiiash/three-ediitor/pkg/aggregator"
	"github.com/khudiiash/three-ediitor/pkg/bridge"
	"github.com/khudiiash/three-ediitor/pkg/surface"
)

type serveOptions struct {
	configPath string
	envFile    string
	project    string
	logFile    string
	headless   bool
}

func runServe(opts serveOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logOut, closeLog, err := logWriter(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	log, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	b, err := bridge.New(cfg, bridge.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	sub := b.Notifications().Subscribe(surface.Editor, 256)
	defer b.Notifications().Unsubscribe(sub)

	if err := b.OpenSurface(surface.Editor); err != nil {
		return err
	}

	if opts.project != "" {
		if err := b.OpenProject(opts.project); err != nil {
			return err
		}
	}

	if err := b.Start(ctx); err != nil {
		return err
	}

	if opts.headless {
		runHeadless(ctx, b, sub.C, log)
	} else if err := runMonitor(ctx, b, sub.C); err != nil {
		return err
	}

	// Closing the editor surface stops the engine and ends the aggregator.
	b.Surfaces().Close(surface.Editor)

	if n := sub.Missed(); n > 0 {
		log.Debug("editor notifications missed", "count", n)
	}

	return nil
}

// logWriter picks the log destination: stderr when headless, otherwise the
// log file if one was given, otherwise nowhere so the monitor owns the
// terminal.
func logWriter(opts serveOptions) (io.Writer, func(), error) {
	if opts.headless {
		return os.Stderr, func() {}, nil
	}

	if opts.logFile == "" {
		return io.Discard, func() {}, nil
	}

	f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is a CLI flag
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}

func runHeadless(ctx context.Context, b *bridge.Bridge, notes <-chan surface.Notification, log *slog.Logger) {
	log.Info("running headless", "relay", b.RelayAddr(), "projects", b.Projects().Root())

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			switch n.Name {
			case aggregator.FrameStatsNotification:
				if fs, ok := n.Payload.(aggregator.FrameStats); ok {
					log.Debug("frame stats", "fps", fs.FPS, "entities", fs.EntityCount)
				}
			case aggregator.EngineMessageNotification:
				log.Debug("engine message", "payload", n.Payload)
			}
		}
	}
}

func runMonitor(ctx context.Context, b *bridge.Bridge, notes <-chan surface.Notification) error {
	p := tea.NewProgram(newMonitorModel(b, notes), tea.WithContext(ctx), tea.WithAltScreen())

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}
