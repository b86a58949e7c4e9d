package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/tui/theme"
	"github.com/spf13/cobra"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(cmd *cobra.Command, err error) error {
	w := cmd.ErrOrStderr()
	t := theme.DefaultTheme
	hint := func(format string, args ...interface{}) {
		fmt.Fprintln(w, t.Muted.Render(fmt.Sprintf(format, args...)))
	}

	PrintError(cmd, err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		hint("Create appshelf.yml or pass --config. See 'appshelf config schema' for the format.")
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		hint("Check the file against 'appshelf config schema'.")
	case errors.ErrCodeValidation:
		if fields := detail(err, "fields"); fields != "" {
			hint("Missing: %s", fields)
		}
	case errors.ErrCodePermissionDenied:
		hint("This needs admin mode. Start the command with --path /admin/<user>/<pass> (see 'appshelf admin login').")
	case errors.ErrCodeNotFound:
		hint("List what exists with 'appshelf apps list' or 'appshelf messages list'.")
	case errors.ErrCodeDaemonNotFound, errors.ErrCodeStoreClosed:
		hint("Start the store with 'appshelf daemon start'.")
	case errors.ErrCodeDaemonRunning:
		hint("Stop it first with 'appshelf daemon stop', or check 'appshelf daemon status'.")
	case errors.ErrCodeProvider:
		hint("Check identity.token and identity.token_secret in your config.")
	}

	if h.Verbose {
		writeDetails(w, err)
	}
	return err
}

func detail(err error, key string) string {
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Details == nil {
		return ""
	}
	switch v := appErr.Details[key].(type) {
	case []string:
		return strings.Join(v, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func writeDetails(w io.Writer, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		fmt.Fprintf(w, "\nError details:\n%s\n", appErr.ToJSON())
	}
}
