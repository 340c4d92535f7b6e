// cmd/regprog/preset_cmds.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tamzrod/register-programmer/internal/preset"
	"github.com/tamzrod/register-programmer/internal/register"
)

var importName string

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage named presets",
}

var presetSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Store the given values under NAME",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetSave,
}

var presetLoadCmd = &cobra.Command{
	Use:   "load NAME",
	Short: "Show a stored preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetLoad,
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored presets",
	Args:  cobra.NoArgs,
	RunE:  runPresetList,
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a stored preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetDelete,
}

var presetImportCmd = &cobra.Command{
	Use:   "import FILE.state",
	Short: "Import a saved state file of the old GUI tool",
	Long: `Import a .state file written by the old GUI tool. GUI-only keys are
dropped, the stored clock frequency (kHz) and serial port are kept, and any
value that does not convert cleanly fails the import.`,
	Args: cobra.ExactArgs(1),
	RunE: runPresetImport,
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetSaveCmd, presetLoadCmd, presetListCmd, presetDeleteCmd, presetImportCmd)

	valueFlags(presetSaveCmd)
	presetSaveCmd.Flags().IntVar(&clockFlag, "clock-hz", 0, "shift clock in Hz stored with the preset")
	presetImportCmd.Flags().StringVar(&importName, "name", "", "preset name (default: file name)")
}

func runPresetSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	vals, base, err := resolveValues(ctx, presetFlag, setFlags)
	if err != nil {
		return err
	}

	p := preset.Preset{
		Name:    args[0],
		Values:  vals,
		ClockHz: clockFlag,
		Port:    firstNonEmpty(portFlag, base.Port),
		Saved:   time.Now().UTC(),
	}
	if p.ClockHz == 0 {
		p.ClockHz = base.ClockHz
	}
	if err := p.Check(chip()); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.Presets)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Save(ctx, p); err != nil {
		return err
	}
	log.WithField("preset", p.Name).Info("preset saved")
	return nil
}

func runPresetLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, cfg.Presets)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:  %s\n", p.Name)
	fmt.Fprintf(out, "saved: %s\n", p.Saved.Format(time.RFC3339))
	if p.ClockHz != 0 {
		fmt.Fprintf(out, "clock: %d Hz\n", p.ClockHz)
	}
	if p.Port != "" {
		fmt.Fprintf(out, "port:  %s\n", p.Port)
	}
	if img, err := register.Encode(chip(), p.Values); err == nil {
		fmt.Fprintf(out, "image: %s\n", img)
	} else {
		fmt.Fprintf(out, "image: (%v)\n", err)
	}
	printValues(out, p.Values)
	return nil
}

func runPresetList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, cfg.Presets)
	if err != nil {
		return err
	}
	defer closeStore()

	names, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func runPresetDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, cfg.Presets)
	if err != nil {
		return err
	}
	defer closeStore()

	return store.Delete(ctx, args[0])
}

func runPresetImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name := importName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	imp, err := preset.ImportLegacy(f, name, chip())
	if err != nil {
		return err
	}
	for _, k := range imp.Skipped {
		log.WithField("key", k).Warn("state key has no field, skipped")
	}

	if imp.Preset.Saved.IsZero() {
		imp.Preset.Saved = time.Now().UTC()
	}

	store, closeStore, err := openStore(ctx, cfg.Presets)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Save(ctx, imp.Preset); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"preset": imp.Preset.Name,
		"fields": len(imp.Preset.Values),
	}).Info("state file imported")
	return nil
}
