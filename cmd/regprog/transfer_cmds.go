// cmd/regprog/transfer_cmds.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/register-programmer/internal/config"
	"github.com/tamzrod/register-programmer/internal/link"
	"github.com/tamzrod/register-programmer/internal/poller"
	"github.com/tamzrod/register-programmer/internal/register"
	"github.com/tamzrod/register-programmer/internal/session"
	"github.com/tamzrod/register-programmer/internal/status"
	"github.com/tamzrod/register-programmer/internal/writer"
)

var watchFlag time.Duration

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Fast transfer the register to running firmware",
	Long: `Send the encoded register as one framed serial transfer to firmware that
is already running on the target, then wait for DATA_UPDATED and
TRANSFER_COMPLETE. Ctrl-C cancels between steps.`,
	Args: cobra.NoArgs,
	RunE: runSession(session.FastTransfer),
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Regenerate, compile and flash the firmware with the register embedded",
	Args:  cobra.NoArgs,
	RunE:  runSession(session.FullUpload),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Ask the running firmware to pulse the chip reset",
	Args:  cobra.NoArgs,
	RunE:  runSession(session.Reset),
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and the one that would be used",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read back the Modbus status block",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(transferCmd, uploadCmd, resetCmd, portsCmd, statusCmd)

	for _, c := range []*cobra.Command{transferCmd, uploadCmd} {
		valueFlags(c)
	}
	statusCmd.Flags().DurationVar(&watchFlag, "watch", 0, "poll the block at this interval until Ctrl-C")
	uploadCmd.Flags().IntVar(&clockFlag, "clock-hz", 0, "shift clock in Hz (default transfer.clock_hz)")
}

// runSession runs one session in the foreground until it ends or Ctrl-C.
func runSession(mode session.Mode) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		req := session.Request{Mode: mode}

		if mode != session.Reset {
			vals, p, err := resolveValues(ctx, presetFlag, setFlags)
			if err != nil {
				return err
			}
			req.Values = vals
			req.ClockHz = pickClock(clockFlag, p.ClockHz)
			req.Port = p.Port
		}

		port, err := resolvePort(firstNonEmpty(portFlag, req.Port))
		if err != nil {
			return err
		}
		req.Port = port

		p, err := newProgrammer(ctx, printEvent(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		defer p.close()

		_, err = p.ctl.Run(ctx, req)
		return err
	}
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, preferred, err := link.Discover(nil)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, p := range ports {
		mark := " "
		if p.Name == preferred {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\n", mark, p.Label())
	}
	return tw.Flush()
}

func runStatus(cmd *cobra.Command, args []string) error {
	if !cfg.Status.Enabled() {
		return fmt.Errorf("status mirror not configured (status.slot)")
	}
	if watchFlag > 0 {
		return watchStatus(cmd)
	}

	regs, err := writer.ReadStatus(statusPlan(), config.Ms(cfg.Status.TimeoutMs))
	if err != nil {
		return err
	}
	snap, name, err := status.Decode(regs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "device:     %s\n", name)
	fmt.Fprintf(out, "health:     %s\n", healthName(snap.Health))
	if snap.LastErrorCode != 0 {
		fmt.Fprintf(out, "last error: %d %s\n", snap.LastErrorCode, session.Kind(snap.LastErrorCode))
	} else {
		fmt.Fprintln(out, "last error: none")
	}
	fmt.Fprintf(out, "sessions:   %d\n", snap.Sessions)
	fmt.Fprintf(out, "image:      %s\n", register.FromWords(snap.Image[:]))
	return nil
}

// watchStatus prints one line per poll until Ctrl-C.
func watchStatus(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p, err := poller.Build(poller.BuildConfig{
		Endpoint: cfg.Status.Endpoint,
		UnitID:   uint8(cfg.Status.UnitID),
		BaseSlot: *cfg.Status.Slot,
		Interval: watchFlag,
		Timeout:  config.Ms(cfg.Status.TimeoutMs),
	})
	if err != nil {
		return err
	}
	defer p.Close()

	results := make(chan poller.PollResult)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, results)
		close(done)
	}()
	defer func() { <-done }()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-results:
			if res.Err != nil {
				log.WithError(res.Err).Warn("status poll failed")
				continue
			}
			fmt.Fprintf(out, "%s %s health=%s last_error=%d sessions=%d image=%s\n",
				res.At.Format("15:04:05"), res.DeviceName, healthName(res.Snapshot.Health),
				res.Snapshot.LastErrorCode, res.Snapshot.Sessions, register.FromWords(res.Snapshot.Image[:]))
		}
	}
}

func healthName(h uint16) string {
	switch h {
	case status.HealthOK:
		return "ok"
	case status.HealthError:
		return "error"
	case status.HealthBusy:
		return "busy"
	default:
		return "unknown"
	}
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
