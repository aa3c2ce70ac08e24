package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lifetimes/internal/classdef"
)

// ValidationError is one problem reported by the validate command.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ValidateOutput is the JSON payload of the validate command.
type ValidateOutput struct {
	Valid   bool                  `json:"valid"`
	Classes []*classdef.ClassSpec `json:"classes,omitempty"`
	Errors  []ValidationError     `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <classes-dir>",
		Short: "Validate CUE class definitions",
		Long: `Load the CUE package in a directory and check every class definition:
field kinds must be strong, weak or unowned, and every field type must name
a class in the package.

Exit codes:
  0 - All classes valid
  1 - One or more classes invalid
  2 - Command error (directory missing, CUE syntax errors, etc.)

Examples:
  lifetimes validate testdata/classes
  lifetimes validate ./classes --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	reg, errs := classdef.LoadDir(dir)
	f := opts.formatter(cmd)

	out := ValidateOutput{Valid: len(errs) == 0}
	for _, err := range errs {
		out.Errors = append(out.Errors, toValidationError(err))
	}
	if reg != nil {
		for _, name := range reg.Names() {
			c, _ := reg.Class(name)
			out.Classes = append(out.Classes, c)
		}
	}
	opts.logger().Debug("classes validated", "dir", dir, "classes", len(out.Classes), "errors", len(out.Errors))

	code := ExitSuccess
	if reg == nil && len(errs) > 0 {
		code = ExitCommandError
	} else if len(errs) > 0 {
		code = ExitFailure
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out}
		if !out.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_VALIDATION", Message: fmt.Sprintf("%d error(s)", len(out.Errors))}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		writeValidateText(f.Writer, out)
	}

	if code != ExitSuccess {
		return NewExitError(code, fmt.Sprintf("validation failed: %d error(s)", len(out.Errors)))
	}
	return nil
}

func toValidationError(err error) ValidationError {
	var ce *classdef.CompileError
	if !errors.As(err, &ce) {
		return ValidationError{Code: classdef.ErrCodeInvalidClass, Message: err.Error()}
	}
	ve := ValidationError{Code: ce.Code, Field: ce.Field, Message: ce.Message}
	if ce.Pos.IsValid() {
		ve.File = ce.Pos.Filename()
		ve.Line = ce.Pos.Line()
	}
	return ve
}

func writeValidateText(w io.Writer, out ValidateOutput) {
	for _, e := range out.Errors {
		loc := e.Field
		if e.File != "" {
			loc = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
		fmt.Fprintf(w, "✗ [%s] %s: %s\n", e.Code, loc, e.Message)
	}
	if out.Valid {
		fmt.Fprintf(w, "✓ %d class(es) valid\n", len(out.Classes))
		for _, c := range out.Classes {
			fmt.Fprintf(w, "  %s (%d field(s))\n", c.Name, len(c.Fields))
		}
	}
}
