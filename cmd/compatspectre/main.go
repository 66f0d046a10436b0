package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/compatspectre/internal/app"
	"github.com/ppiankov/compatspectre/internal/checker"
	"github.com/ppiankov/compatspectre/internal/logging"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	verbose    bool
	isFirstRun bool
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitNetwork    = 5
	ExitFindings   = 6
)

// FindingsError indicates the analysis completed but findings were detected.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d findings detected", e.Count)
}

func main() {
	logging.Init(false)
	isFirstRun = app.IsFirstRun()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		exitCode := classifyError(err)
		var fe *FindingsError
		if errors.As(err, &fe) {
			slog.Info("findings detected", slog.Int("count", fe.Count))
		} else {
			slog.Error("command failed", slog.String("error", err.Error()))
		}
		os.Exit(exitCode)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "compatspectre",
		Short: "Microservice compatibility analyzer",
		Long: `CompatSpectre checks a set of deployed services against a service registry,
reports version, API and dependency incompatibilities, maps cross-service
dependencies and recommends a rollout strategy.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(verbose)
			if isFirstRun && cmd.Name() != "version" {
				fmt.Fprintln(cmd.ErrOrStderr(), "👋 First run: put defaults in .compatspectre.yaml (see `compatspectre analyze --help`).")
				isFirstRun = false
			}
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewAnalyzeCmd())
	root.AddCommand(NewStrategyCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewVersionCmd())
	return root
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}

	if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) || errors.Is(err, registry.ErrNotFound) {
		return ExitNotFound
	}

	if errors.Is(err, checker.ErrCircuitOpen) {
		return ExitNetwork
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "not a directory") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") ||
		strings.Contains(msg, "unsupported") {
		return ExitInvalidArg
	}

	return ExitInternal
}
