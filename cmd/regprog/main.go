// cmd/regprog/main.go
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/register-programmer/internal/catalog"
	"github.com/tamzrod/register-programmer/internal/config"
	"github.com/tamzrod/register-programmer/internal/session"
)

var (
	// Global flags
	cfgPath  string
	logLevel string
	portFlag string

	// Filled by the root pre-run for every subcommand.
	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "regprog",
	Short: "128-bit configuration register programmer",
	Long: `Encode the 128-bit configuration register of the chip and program it
through an ESP32 bridge, either by fast serial transfer to firmware that is
already running or by regenerating, compiling and flashing the firmware.

Examples:
  regprog fields --group "PI CTRL"                     # List the fields of a group
  regprog encode --set CSH_EN_1=1 --set PI_ICTRL=5     # Print the register as hex
  regprog transfer --preset bench --port /dev/ttyUSB0  # Fast transfer a preset
  regprog upload --preset bench --clock-hz 200000      # Rebuild and flash firmware
  regprog shell --port sim                             # Interactive, simulated target`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.WithField("code", session.CodeOf(err)).Error(err)
		} else {
			fmt.Fprintln(os.Stderr, "regprog:", err)
		}
		os.Exit(int(session.CodeOf(err)))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "", `serial port ("sim" for the simulator)`)
}

// setup loads, validates and normalizes the config, then builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	// --------------------
	// Load + validate config
	// --------------------

	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	if portFlag != "" {
		c.Serial.Port = portFlag
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}

	if err := config.Validate(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(c)

	l, err := newLogger(c.Log)
	if err != nil {
		return err
	}

	cfg, log = c, l
	return nil
}

func newLogger(lc config.LogConfig) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	l.SetLevel(lvl)

	if lc.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// chip is the only catalog the binary programs.
func chip() *catalog.Catalog { return catalog.Chip() }
