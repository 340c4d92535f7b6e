// cmd/regprog/register_cmds.go
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tamzrod/register-programmer/internal/firmware"
	"github.com/tamzrod/register-programmer/internal/register"
)

var (
	setFlags   []string
	presetFlag string
	clockFlag  int
	groupFlag  string
	dumpFlag   string
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the register fields",
	Args:  cobra.NoArgs,
	RunE:  runFields,
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode field values and print the register as hex",
	Long: `Encode field values into the 128-bit register and print it as 32 hex
digits, most significant byte first. Fields left out encode as zero.`,
	Args: cobra.NoArgs,
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode HEX32",
	Short: "Decode a register image into field values",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the firmware sketch for the given values",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(fieldsCmd, encodeCmd, decodeCmd, renderCmd)

	fieldsCmd.Flags().StringVarP(&groupFlag, "group", "g", "", "only fields of this group")

	for _, c := range []*cobra.Command{encodeCmd, renderCmd} {
		valueFlags(c)
	}
	encodeCmd.Flags().StringVar(&dumpFlag, "dump", "", "also write the bit dump CSV to this file")
	renderCmd.Flags().IntVar(&clockFlag, "clock-hz", 0, "shift clock in Hz (default transfer.clock_hz)")
}

// valueFlags adds the flags that select field values.
func valueFlags(c *cobra.Command) {
	c.Flags().StringArrayVarP(&setFlags, "set", "s", nil, "field value NAME=VALUE (repeatable)")
	c.Flags().StringVar(&presetFlag, "preset", "", "start from a stored preset")
}

func runFields(cmd *cobra.Command, args []string) error {
	cat := chip()

	groups := cat.Groups()
	if groupFlag != "" {
		if len(cat.FieldsInGroup(groupFlag)) == 0 {
			return fmt.Errorf("unknown group %q", groupFlag)
		}
		groups = []string{groupFlag}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tFIELD\tBITS\tDOMAIN\tDESCRIPTION")
	for _, g := range groups {
		for _, f := range cat.FieldsInGroup(g) {
			bits := fmt.Sprintf("%d", f.Offset)
			if f.Width > 1 {
				bits = fmt.Sprintf("%d..%d", f.High(), f.Offset)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", g, f.Name, bits, f.Domain, f.Help)
		}
	}
	return tw.Flush()
}

func runEncode(cmd *cobra.Command, args []string) error {
	vals, _, err := resolveValues(cmd.Context(), presetFlag, setFlags)
	if err != nil {
		return err
	}

	img, err := register.Encode(chip(), vals)
	if err != nil {
		return err
	}

	if dumpFlag != "" {
		if err := register.SaveBitDump(dumpFlag, img); err != nil {
			return err
		}
		log.WithField("file", dumpFlag).Info("bit dump written")
	}

	fmt.Fprintln(cmd.OutOrStdout(), img)
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	img, err := register.ParseHex(args[0])
	if err != nil {
		return err
	}

	cat := chip()
	if stray := register.Stray(cat, img); len(stray) > 0 {
		log.WithField("bits", stray).Warn("bits set outside every field")
	}

	vals, err := register.Decode(cat, img)
	if err != nil {
		return err
	}
	printValues(cmd.OutOrStdout(), vals)
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	vals, p, err := resolveValues(cmd.Context(), presetFlag, setFlags)
	if err != nil {
		return err
	}

	img, err := register.Encode(chip(), vals)
	if err != nil {
		return err
	}

	tmpl := firmware.DefaultTemplate()
	if cfg.Firmware.Template != "" {
		if tmpl, err = firmware.LoadTemplate(cfg.Firmware.Template); err != nil {
			return err
		}
	}

	src, err := firmware.Render(tmpl, firmware.Params{
		Image:   img,
		ClockHz: pickClock(clockFlag, p.ClockHz),
		Pins:    cfg.Firmware.Pins,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), src)
	return err
}

// pickClock prefers the flag, then the preset, then the config.
func pickClock(flag, fromPreset int) int {
	switch {
	case flag != 0:
		return flag
	case fromPreset != 0:
		return fromPreset
	default:
		return cfg.Transfer.ClockHz
	}
}

// printValues lists values in catalog order.
func printValues(w io.Writer, vals register.Values) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range chip().Fields() {
		if v, ok := vals[f.Name]; ok {
			fmt.Fprintf(tw, "%s\t%g\t%s\n", f.Name, v, f.Group)
		}
	}
	tw.Flush()
}
