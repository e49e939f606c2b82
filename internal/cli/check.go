package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scripthost/internal/interp"
)

// CheckResult is the outcome of checking one file.
type CheckResult struct {
	File    string `json:"file"`
	OK      bool   `json:"ok"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Check scripts for syntax errors",
		Long: `Parse each script without running it.

Syntax errors are reported as file:line:column: message.

Exit codes:
  0 - All files parsed
  1 - One or more files have syntax errors
  2 - A file could not be read

Examples:
  scripthost check main.js lib/*.js
  scripthost check --format json door.js`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, files []string, cmd *cobra.Command) error {
	out := newOutputFormatter(cmd, opts)
	checker := interp.NewGoja()

	results := make([]CheckResult, 0, len(files))
	failed := 0
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", file), err)
		}

		res := CheckResult{File: file, OK: true}
		if err := checker.CheckSyntax(string(src), file); err != nil {
			res.OK = false
			res.Message = err.Error()
			var syn *interp.SyntaxError
			if errors.As(err, &syn) {
				res.Line, res.Column, res.Message = syn.Line, syn.Column, syn.Message
			}
			failed++
		}
		results = append(results, res)

		if !out.JSON() && !res.OK {
			fmt.Fprintf(out.Writer, "%s:%d:%d: %s\n", res.File, res.Line, res.Column, res.Message)
		}
	}
	out.VerboseLog("%d file(s) checked, %d with errors", len(files), failed)

	if failed > 0 {
		msg := fmt.Sprintf("%d file(s) have syntax errors", failed)
		if out.JSON() {
			if err := out.Failure(results, "E_SYNTAX", msg); err != nil {
				return err
			}
		}
		return NewExitError(ExitFailure, msg)
	}
	if out.JSON() {
		return out.Success(results)
	}
	return nil
}
