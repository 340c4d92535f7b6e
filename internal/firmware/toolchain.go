// internal/firmware/toolchain.go
package firmware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Outcome is the toolchain failure bucket.
type Outcome int

const (
	CompileFailure Outcome = iota + 1
	FlashFailure
	ToolchainUnavailable
)

func (o Outcome) String() string {
	switch o {
	case CompileFailure:
		return "compile failure"
	case FlashFailure:
		return "flash failure"
	case ToolchainUnavailable:
		return "toolchain unavailable"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ToolchainError carries the raw diagnostic text of a failed step.
type ToolchainError struct {
	Outcome  Outcome
	Step     string // compile or upload
	ExitCode int    // -1 when the process never ran to completion
	Output   string
	Err      error
}

func (e *ToolchainError) Error() string {
	msg := fmt.Sprintf("firmware: %s: %s", e.Step, e.Outcome)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// Toolchain builds and flashes a sketch folder.
type Toolchain interface {
	Compile(ctx context.Context, sketch string) error
	Upload(ctx context.Context, sketch, port string) error
}

// Runner runs one external command and returns its combined output.
// A nil error with a non-zero exit code is a normal completed run.
type Runner func(ctx context.Context, name string, args ...string) (output []byte, exitCode int, err error)

// ExecRunner runs the command with os/exec. Output is also copied to tee
// when tee is not nil.
func ExecRunner(tee io.Writer) Runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, int, error) {
		buf := new(bytes.Buffer)
		var w io.Writer = buf
		if tee != nil {
			w = io.MultiWriter(buf, tee)
		}

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = w
		cmd.Stderr = w

		err := cmd.Run()
		var exit *exec.ExitError
		switch {
		case err == nil:
			return buf.Bytes(), 0, nil
		case ctx.Err() != nil:
			return buf.Bytes(), -1, ctx.Err()
		case errors.As(err, &exit):
			return buf.Bytes(), exit.ExitCode(), nil
		default:
			return buf.Bytes(), -1, err
		}
	}
}

// ArduinoCLI drives arduino-cli.
type ArduinoCLI struct {
	Path    string // executable, default "arduino-cli"
	FQBN    string // board, default "esp32:esp32:esp32"
	Verbose bool
	Run     Runner // default ExecRunner(nil)
}

const (
	DefaultCLI  = "arduino-cli"
	DefaultFQBN = "esp32:esp32:esp32"
)

// Messages arduino-cli prints when the tool is there but the board
// support it needs is not.
var unavailableHints = []string{
	"platform not installed",
	"platform 'esp32:esp32' not found",
	"unknown fqbn",
	"invalid fqbn",
}

func (a *ArduinoCLI) Compile(ctx context.Context, sketch string) error {
	args := []string{"compile", "--fqbn", a.fqbn()}
	if a.Verbose {
		args = append(args, "-v")
	}
	args = append(args, sketch)
	return a.invoke(ctx, "compile", CompileFailure, args)
}

func (a *ArduinoCLI) Upload(ctx context.Context, sketch, port string) error {
	if port == "" {
		return &ToolchainError{Outcome: FlashFailure, Step: "upload", ExitCode: -1, Err: errors.New("no port")}
	}
	args := []string{"upload", "-p", port, "--fqbn", a.fqbn()}
	if a.Verbose {
		args = append(args, "-v")
	}
	args = append(args, sketch)
	return a.invoke(ctx, "upload", FlashFailure, args)
}

func (a *ArduinoCLI) invoke(ctx context.Context, step string, onExit Outcome, args []string) error {
	run := a.Run
	if run == nil {
		run = ExecRunner(nil)
	}

	out, code, err := run(ctx, a.path(), args...)
	text := string(out)

	switch {
	case err != nil && ctx.Err() != nil:
		// timeout or cancel: the caller classifies it
		return fmt.Errorf("firmware: %s: %w", step, ctx.Err())
	case err != nil:
		// not found, not executable, or killed before exit
		return &ToolchainError{Outcome: ToolchainUnavailable, Step: step, ExitCode: -1, Output: text, Err: err}
	case code != 0:
		outcome := onExit
		lower := strings.ToLower(text)
		for _, hint := range unavailableHints {
			if strings.Contains(lower, hint) {
				outcome = ToolchainUnavailable
				break
			}
		}
		return &ToolchainError{Outcome: outcome, Step: step, ExitCode: code, Output: text}
	}
	return nil
}

func (a *ArduinoCLI) path() string {
	if a.Path == "" {
		return DefaultCLI
	}
	return a.Path
}

func (a *ArduinoCLI) fqbn() string {
	if a.FQBN == "" {
		return DefaultFQBN
	}
	return a.FQBN
}
