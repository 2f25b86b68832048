package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/internal/logger"
)

// Version is set at build time with -ldflags "-X .../commands.Version=..."
var Version = "dev"

var (
	requestPath string
	logLevel    string
)

// Execute runs the CLI with os.Args
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dewater",
		Short:         "Estimate construction dewatering water tables",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// keep stdout for results
			logger.SetOutput(cmd.ErrOrStderr())
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&requestPath, "request", "r", "", "path to a JSON request file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	root.AddCommand(gridCmd(), pointCmd(), versionCmd())
	return root
}

// loadRequest reads a dewater.Request from --request
func loadRequest() (dewater.Request, error) {
	var req dewater.Request
	if requestPath == "" {
		return req, fmt.Errorf("--request is required")
	}

	b, err := os.ReadFile(requestPath)
	if err != nil {
		return req, fmt.Errorf("failed to read request: %w", err)
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("failed to parse request %s: %w", requestPath, err)
	}
	return req, nil
}
