package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/latchlab/latchd/internal/console"
	"github.com/latchlab/latchd/internal/ctrl"
	"github.com/latchlab/latchd/internal/latch/access"
	"github.com/latchlab/latchd/internal/latch/door"
	"github.com/latchlab/latchd/internal/latch/event"
	"github.com/latchlab/latchd/internal/latch/trigger"
	"github.com/latchlab/latchd/internal/logging"
	"github.com/latchlab/latchd/internal/wire"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run starts the event engine, one state machine per configured door,
and the management port if a control device is configured.

With the console enabled (the default) the terminal becomes the field
hardware: keys feed the active door's reader and the panel rows show
each door's output lines. Headless runs log line changes instead.`,
	RunE: runController,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The console owns the terminal, so a consoled run without a log
	// file keeps quiet instead of tearing the screen.
	log, logCloser, err := logging.Open(cfg.Log.File, cfg.Log.Level, cfg.Console.Enabled)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	table := access.NewTable(cfg.Access.Capacity)
	if cfg.Access.Provision != "" {
		recs, err := access.ReadProvisionFile(cfg.Access.Provision)
		if err != nil {
			return err
		}
		if err := table.Load(recs); err != nil {
			return fmt.Errorf("load access list: %w", err)
		}
		log.Info("access list loaded", "path", cfg.Access.Provision, "records", len(recs))
	}

	var cons *console.Console
	engineOpts := []event.Option{
		event.WithDepth(cfg.Engine.QueueDepth),
		event.WithLogger(log),
	}
	if cfg.Console.Enabled {
		ids := make([]uint8, len(cfg.Doors))
		for i, dc := range cfg.Doors {
			ids[i] = dc.ID
		}
		cons = console.New(ids, cfg.Console.Card, log)
		engineOpts = append(engineOpts, event.WithIdleHook(cons.Activity))
	}
	engine := event.New(engineOpts...)

	doors := make([]*door.Door, 0, len(cfg.Doors))
	wireDoors := make([]wire.DoorConfig, 0, len(cfg.Doors))
	for i, dc := range cfg.Doors {
		dcfg := &door.Config{
			DoorID:      dc.ID,
			OpenTime:    dc.OpenTime,
			IdleTimeout: dc.IdleTimeout,
			CheckKey:    table.Check,
			OpenButton:  dc.OpenButton,
			Sense:       dc.Sense,
			Logger:      log,
		}
		if cons != nil {
			dcfg.Open = cons.RelayLine(i)
			dcfg.LED = cons.LEDLine(i)
			dcfg.Buzzer = cons.BuzzerLine(i)
		} else {
			dcfg.Open = logLine(log, dc.ID, "relay")
			dcfg.LED = logLine(log, dc.ID, "led")
			dcfg.Buzzer = logLine(log, dc.ID, "buzzer")
		}
		d, err := door.New(engine, dcfg)
		if err != nil {
			return fmt.Errorf("door %d: %w", dc.ID, err)
		}
		defer d.Close()
		doors = append(doors, d)
		wireDoors = append(wireDoors, wire.DoorConfig{
			OpenTime: uint16(d.OpenTime() / time.Millisecond),
		})
	}
	if cons != nil {
		if err := cons.Attach(engine, doors); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = engine.Run(ctx)
	}()

	if cfg.Ctrl.Device != "" {
		port, err := ctrl.NewPort(ctrl.Dependencies{
			Logger: log,
			Table:  table,
			Doors:  wireDoors,
		})
		if err != nil {
			return err
		}
		dev, err := os.OpenFile(cfg.Ctrl.Device, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("open control device: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer dev.Close()
			if err := port.Serve(ctx, dev); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("control port failed", "error", err)
			}
		}()
		log.Info("control port up", "device", cfg.Ctrl.Device)
	}

	log.Info("controller up", "doors", len(doors), "records", table.Capacity())

	var runErr error
	if cons != nil {
		runErr = cons.Run(ctx)
	} else {
		<-ctx.Done()
	}

	cancel()
	wg.Wait()
	log.Info("controller down")

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// logLine is the headless stand-in for an output line: level changes
// go to the log instead of a pin.
func logLine(log *slog.Logger, doorID uint8, name string) trigger.Line {
	return trigger.LineFunc(func(on bool) {
		log.Debug("line", "door", doorID, "name", name, "on", on)
	})
}
