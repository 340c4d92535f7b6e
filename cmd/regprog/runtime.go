// cmd/regprog/runtime.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/register-programmer/internal/config"
	"github.com/tamzrod/register-programmer/internal/firmware"
	"github.com/tamzrod/register-programmer/internal/link"
	"github.com/tamzrod/register-programmer/internal/monitor"
	"github.com/tamzrod/register-programmer/internal/preset"
	"github.com/tamzrod/register-programmer/internal/register"
	"github.com/tamzrod/register-programmer/internal/session"
	"github.com/tamzrod/register-programmer/internal/writer"
)

// ---- values ----

// parseSets turns NAME=VALUE pairs into values.
// Flags also accept true/false and on/off.
func parseSets(sets []string) (register.Values, error) {
	vals := register.Values{}
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want NAME=VALUE", s)
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", name, err)
		}
		vals[strings.ToUpper(name)] = v
	}
	return vals, nil
}

func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "true", "on":
		return 1, nil
	case "false", "off":
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

// resolveValues starts from a stored preset, if named, and applies sets on top.
func resolveValues(ctx context.Context, presetName string, sets []string) (register.Values, preset.Preset, error) {
	vals := register.Values{}
	var p preset.Preset

	if presetName != "" {
		store, closeStore, err := openStore(ctx, cfg.Presets)
		if err != nil {
			return nil, p, err
		}
		defer closeStore()

		p, err = store.Load(ctx, presetName)
		if err != nil {
			return nil, p, err
		}
		for k, v := range p.Values {
			vals[k] = v
		}
	}

	over, err := parseSets(sets)
	if err != nil {
		return nil, p, err
	}
	for k, v := range over {
		vals[k] = v
	}
	return vals, p, nil
}

// ---- presets ----

func openStore(ctx context.Context, pc config.PresetsConfig) (preset.Store, func(), error) {
	switch pc.Backend {
	case "redis":
		s, err := preset.NewRedisStore(ctx, preset.RedisConfig{
			Addr:     pc.Redis.Addr,
			Password: pc.Redis.Password,
			DB:       pc.Redis.DB,
			Prefix:   pc.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := preset.NewFileStore(pc.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

// ---- ports ----

// resolvePort picks the port for a request: flag or config first, then the
// preferred port found on the host.
func resolvePort(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if cfg.Serial.Port != "" {
		return cfg.Serial.Port, nil
	}

	ports, preferred, err := link.Discover(nil)
	if err != nil {
		return "", err
	}
	if preferred == "" {
		return "", fmt.Errorf("no target board among %d serial ports: set --port or serial.port", len(ports))
	}
	log.WithField("port", preferred).Info("using discovered port")
	return preferred, nil
}

// ---- controller ----

// programmer bundles a controller with the sinks it feeds.
type programmer struct {
	ctl     *session.Controller
	metrics *monitor.Metrics
	mirror  *writer.Mirror
	sim     *link.Simulator

	closers []func()
}

// extra sinks see every event after the log, metrics and mirror.
func newProgrammer(ctx context.Context, extra ...session.Sink) (*programmer, error) {
	p := &programmer{
		metrics: monitor.New(),
		sim:     link.NewSimulator(nil),
	}

	tmpl := ""
	if cfg.Firmware.Template != "" {
		t, err := firmware.LoadTemplate(cfg.Firmware.Template)
		if err != nil {
			return nil, err
		}
		tmpl = t
	}

	// toolchain output goes to the log at debug level
	tee := log.WriterLevel(logrus.DebugLevel)
	p.closers = append(p.closers, func() { _ = tee.Close() })

	sinks := []session.Sink{session.LogSink(log), p.metrics}

	// ---- status mirror (optional) ----
	if cfg.Status.Enabled() {
		plan := statusPlan()
		sw, closeWriter, err := writer.BuildStatusWriter(plan, config.Ms(cfg.Status.TimeoutMs))
		if err != nil {
			p.close()
			return nil, fmt.Errorf("status writer: %w", err)
		}
		p.closers = append(p.closers, func() { _ = closeWriter() })
		p.mirror = writer.NewMirror(sw, log)
		sinks = append(sinks, p.mirror)
	}

	// ---- metrics endpoint (optional) ----
	if cfg.Metrics.Listen != "" {
		mctx, cancel := context.WithCancel(ctx)
		p.closers = append(p.closers, cancel)
		go func() {
			if err := p.metrics.Serve(mctx, cfg.Metrics.Listen, log); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	sinks = append(sinks, extra...)

	ctl, err := session.NewController(session.Config{
		Catalog: chip(),
		Link: link.Config{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
			Settle:   config.Ms(cfg.Serial.SettleMs),
		},
		Opener:       p.open,
		AckTimeout:   config.Ms(cfg.Serial.AckTimeoutMs),
		ResetTimeout: config.Ms(cfg.Serial.ResetTimeoutMs),
		Toolchain: &firmware.ArduinoCLI{
			Path:    cfg.Firmware.CLI,
			FQBN:    cfg.Firmware.FQBN,
			Verbose: log.IsLevelEnabled(logrus.DebugLevel),
			Run:     firmware.ExecRunner(tee),
		},
		Template:         tmpl,
		SketchDir:        cfg.Firmware.SketchDir,
		Pins:             cfg.Firmware.Pins,
		ToolchainTimeout: config.Ms(cfg.Firmware.TimeoutMs),
		DumpPath:         cfg.Transfer.DumpTo,
	}, session.Fanout(sinks...))
	if err != nil {
		p.close()
		return nil, err
	}
	p.ctl = ctl
	return p, nil
}

// open routes the simulator port name to the in-process target.
func (p *programmer) open(lc link.Config) (link.Port, error) {
	if lc.Port == link.SimulatorPort {
		return p.sim.Opener()(lc)
	}
	return link.OpenSerial(lc)
}

// close drains pending events before releasing the sinks.
func (p *programmer) close() {
	if p.ctl != nil {
		p.ctl.Close()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func statusPlan() writer.StatusPlan {
	return writer.StatusPlan{
		Endpoint:   cfg.Status.Endpoint,
		UnitID:     cfg.Status.UnitID,
		BaseSlot:   *cfg.Status.Slot,
		DeviceName: cfg.Status.DeviceName,
	}
}

// printEvent is the console sink of the interactive commands.
func printEvent(w io.Writer) session.Sink {
	return session.SinkFunc(func(e session.Event) {
		switch {
		case e.Session == 0:
			fmt.Fprintf(w, "rejected: %v\n", e.Err)
		case e.State == session.Failed:
			fmt.Fprintf(w, "#%d %s failed after %s: %v\n", e.Session, e.Mode, e.Elapsed.Round(time.Millisecond), e.Err)
		case e.State == session.Completed:
			fmt.Fprintf(w, "#%d %s completed in %s\n", e.Session, e.Mode, e.Elapsed.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "#%d %s %s\n", e.Session, e.Mode, e.State)
		}
	})
}

var errNoSession = errors.New("no session running")
