// cmd/regprog/shell.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/tamzrod/register-programmer/internal/preset"
	"github.com/tamzrod/register-programmer/internal/register"
	"github.com/tamzrod/register-programmer/internal/session"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session: edit values and program in the background",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `commands:
  set NAME VALUE      set a field (also NAME=VALUE)
  unset NAME          drop a field (encodes as zero)
  get NAME            show one field
  show                show all set fields and the encoded image
  clear               drop all fields
  fields [GROUP]      list fields
  clock [HZ]          show or set the shift clock
  port [NAME]         show or set the serial port
  transfer            fast transfer in the background
  upload              rebuild and flash in the background
  reset               pulse the chip reset
  cancel              cancel the running session
  wait                wait for the running session
  status              show the running session and the status mirror
  save NAME           store the values as a preset
  load NAME           replace the values with a preset
  presets             list presets
  quit                leave (cancels a running session)`

var shellCommands = []string{
	"set", "unset", "get", "show", "clear", "fields", "clock", "port",
	"transfer", "upload", "reset", "cancel", "wait", "status",
	"save", "load", "presets", "help", "quit", "exit",
}

// shell is the interactive caller. It never blocks on a session: programming
// runs in the background and reports through the event sink.
type shell struct {
	out   io.Writer
	prog  *programmer
	store preset.Store

	values register.Values
	clock  int
	port   string
	last   *session.Session // most recently started
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, closeStore, err := openStore(ctx, cfg.Presets)
	if err != nil {
		return err
	}
	defer closeStore()

	prog, err := newProgrammer(ctx, printEvent(out))
	if err != nil {
		return err
	}
	defer prog.close()

	sh := &shell{
		out:    out,
		prog:   prog,
		store:  store,
		values: register.Values{},
		clock:  cfg.Transfer.ClockHz,
		port:   cfg.Serial.Port,
	}
	defer sh.stop()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(sh.complete)

	history := historyPath()
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, `regprog shell, "help" for commands`)
	for {
		input, err := line.Prompt("regprog> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			// Ctrl-C cancels the running session, not the shell
			if s := prog.ctl.Current(); s != nil {
				s.Cancel()
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		quit, err := sh.exec(ctx, input)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
		if quit {
			return nil
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".regprog_history"
	}
	return filepath.Join(home, ".regprog_history")
}

// exec runs one command line.
func (sh *shell) exec(ctx context.Context, input string) (quit bool, err error) {
	args := strings.Fields(input)
	if len(args) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "set":
		return false, sh.set(args)
	case "unset":
		if len(args) != 1 {
			return false, errors.New("usage: unset NAME")
		}
		delete(sh.values, strings.ToUpper(args[0]))
	case "get":
		return false, sh.get(args)
	case "show":
		sh.show()
	case "clear":
		sh.values = register.Values{}
	case "fields":
		sh.fields(args)
	case "clock":
		return false, sh.setClock(args)
	case "port":
		if len(args) == 0 {
			fmt.Fprintf(sh.out, "port: %s\n", firstNonEmpty(sh.port, "(discover)"))
			return false, nil
		}
		sh.port = args[0]
	case "transfer":
		return false, sh.start(session.FastTransfer)
	case "upload":
		return false, sh.start(session.FullUpload)
	case "reset":
		return false, sh.start(session.Reset)
	case "cancel":
		s := sh.prog.ctl.Current()
		if s == nil {
			return false, errNoSession
		}
		s.Cancel()
	case "wait":
		if sh.last == nil {
			return false, errNoSession
		}
		select {
		case <-sh.last.Done():
		case <-ctx.Done():
			return true, ctx.Err()
		}
		return false, sh.last.Err()
	case "status":
		sh.status()
	case "save":
		return false, sh.save(ctx, args)
	case "load":
		return false, sh.load(ctx, args)
	case "presets":
		names, err := sh.store.List(ctx)
		if err != nil {
			return false, err
		}
		for _, n := range names {
			fmt.Fprintln(sh.out, n)
		}
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

// ---- values ----

func (sh *shell) set(args []string) error {
	var name, raw string
	switch {
	case len(args) == 1 && strings.Contains(args[0], "="):
		name, raw, _ = strings.Cut(args[0], "=")
	case len(args) == 2:
		name, raw = args[0], args[1]
	default:
		return errors.New("usage: set NAME VALUE")
	}

	f, err := chip().FieldByName(strings.ToUpper(name))
	if err != nil {
		return err
	}
	v, err := parseValue(raw)
	if err != nil {
		return err
	}
	if _, ok := f.Encode(v); !ok {
		return &register.OutOfRangeError{Field: f.Name, Value: v, Domain: f.Domain.String()}
	}
	sh.values[f.Name] = v
	return nil
}

func (sh *shell) get(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get NAME")
	}
	f, err := chip().FieldByName(strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	v, ok := sh.values[f.Name]
	if !ok {
		fmt.Fprintf(sh.out, "%s unset (%s)\n", f.Name, f.Domain)
		return nil
	}
	fmt.Fprintf(sh.out, "%s = %g (%s)\n", f.Name, v, f.Domain)
	return nil
}

func (sh *shell) show() {
	img, err := register.Encode(chip(), sh.values)
	if err != nil {
		fmt.Fprintf(sh.out, "image: (%v)\n", err)
	} else {
		fmt.Fprintf(sh.out, "image: %s\n", img)
	}
	fmt.Fprintf(sh.out, "clock: %d Hz\n", sh.clock)
	printValues(sh.out, sh.values)
}

func (sh *shell) fields(args []string) {
	cat := chip()
	groups := cat.Groups()
	if len(args) > 0 {
		groups = []string{strings.Join(args, " ")}
	}
	for _, g := range groups {
		for _, f := range cat.FieldsInGroup(g) {
			fmt.Fprintf(sh.out, "%-14s %s\n", g, f)
		}
	}
}

func (sh *shell) setClock(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(sh.out, "clock: %d Hz\n", sh.clock)
		return nil
	}
	hz, err := strconv.Atoi(args[0])
	if err != nil || hz <= 0 {
		return fmt.Errorf("clock: want a positive number of Hz, got %q", args[0])
	}
	sh.clock = hz
	return nil
}

// ---- sessions ----

func (sh *shell) start(mode session.Mode) error {
	port, err := resolvePort(sh.port)
	if err != nil {
		return err
	}

	req := session.Request{Mode: mode, ClockHz: sh.clock, Port: port}
	if mode != session.Reset {
		req.Values = make(register.Values, len(sh.values))
		for k, v := range sh.values {
			req.Values[k] = v
		}
	}

	// the sink reports progress and the busy rejection
	s, err := sh.prog.ctl.Start(req)
	if errors.Is(err, session.ErrBusy) {
		return nil
	}
	if err != nil {
		return err
	}
	sh.last = s
	return nil
}

func (sh *shell) status() {
	if s := sh.prog.ctl.Current(); s != nil {
		fmt.Fprintf(sh.out, "session #%d %s on %s: %s\n", s.ID(), s.Mode(), s.Port(), s.State())
	} else {
		fmt.Fprintln(sh.out, "idle")
	}
	if sh.prog.mirror != nil {
		snap := sh.prog.mirror.Snapshot()
		fmt.Fprintf(sh.out, "mirror: health=%s last_error=%d sessions=%d\n",
			healthName(snap.Health), snap.LastErrorCode, snap.Sessions)
	}
}

// stop cancels a running session and waits for it so its events are logged.
func (sh *shell) stop() {
	s := sh.prog.ctl.Current()
	if s == nil {
		return
	}
	s.Cancel()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
	}
}

// ---- presets ----

func (sh *shell) save(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: save NAME")
	}
	p := preset.Preset{
		Name:    args[0],
		Values:  sh.values,
		ClockHz: sh.clock,
		Port:    sh.port,
		Saved:   time.Now().UTC(),
	}
	if err := p.Check(chip()); err != nil {
		return err
	}
	return sh.store.Save(ctx, p)
}

func (sh *shell) load(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: load NAME")
	}
	p, err := sh.store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	sh.values = register.Values{}
	for k, v := range p.Values {
		sh.values[k] = v
	}
	if p.ClockHz != 0 {
		sh.clock = p.ClockHz
	}
	if p.Port != "" {
		sh.port = p.Port
	}
	return nil
}

// complete offers commands first, then field names for set/get/unset.
func (sh *shell) complete(line string) []string {
	fields := strings.Fields(line)
	var out []string

	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(line, " ")) {
		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	}

	switch strings.ToLower(fields[0]) {
	case "set", "get", "unset":
	default:
		return nil
	}
	prefix := ""
	if len(fields) > 1 && !strings.HasSuffix(line, " ") {
		prefix = strings.ToUpper(fields[len(fields)-1])
	}
	for _, f := range chip().Fields() {
		if strings.HasPrefix(f.Name, prefix) {
			out = append(out, fields[0]+" "+f.Name+" ")
		}
	}
	sort.Strings(out)
	return out
}
