// Package cli implements the gosession command line: the HTTP server, key
// generation and a session store load test.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

// NewRootCmd returns the gosession command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "gosession",
		Short: "Google login, rotating refresh sessions and RS256 access tokens",
		Long: `gosession runs the credential and session API: Google OAuth login,
rotating refresh sessions in SQLite or Redis, and short-lived signed access
tokens verified against a published JWKS.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "gosession version %s\n" .Version}}`)
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "log format: json or text")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newKeygenCmd())
	root.AddCommand(newLoadtestCmd())
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func (o *rootOptions) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(o.logFormat) {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want json or text", o.logFormat)
	}
}
