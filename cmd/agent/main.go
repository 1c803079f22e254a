// Package main provides the logtower agent, a log forwarder that tails
// local files and streams them to a logtower server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/logtower/logtower/internal/agent"
	"github.com/logtower/logtower/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	machineID  string
	serverURL  string
	token      string
	source     string
	severities string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "agent [files...]",
	Short: "Forward local log files to a logtower server",
	Long: `The logtower agent tails one or more log files and forwards new lines
to a logtower server over WebSocket. Severity is inferred from the line
content when not present, and the agent reconnects automatically with
exponential backoff when the server is unreachable.

Examples:
  agent /var/log/app.log
  agent --server ws://logtower:8000/ws/logs --machine-id web-1 /var/log/app.log
  agent --config agent.yaml`,
	RunE: runAgent,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVar(&machineID, "machine-id", "", "machine identifier (default: hostname)")
	rootCmd.Flags().StringVar(&serverURL, "server", "", "server WebSocket URL (default: ws://localhost:8000/ws/logs)")
	rootCmd.Flags().StringVar(&token, "token", "", "bearer token for authenticated servers")
	rootCmd.Flags().StringVar(&source, "source", "", "source label for forwarded records")
	rootCmd.Flags().StringVar(&severities, "severities", "", "forward only these severities (comma-separated)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "agent log level: debug, info, warn, error")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := agent.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	// Flags override the config file.
	if machineID != "" {
		cfg.MachineID = machineID
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if token != "" {
		cfg.Token = token
	}
	if source != "" {
		cfg.Source = source
	}
	if severities != "" {
		cfg.Severities = strings.Split(severities, ",")
	}
	if len(args) > 0 {
		cfg.Files = append(cfg.Files, args...)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(logger.ParseLevel(logLevel), false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", "signal", sig)
		cancel()
	}()

	log.Info("starting agent",
		"machine_id", cfg.MachineID,
		"server", cfg.ServerURL,
		"files", cfg.Files,
	)

	tailer := agent.NewTailer(cfg.Files, log.Logger)
	forwarder := agent.NewForwarder(cfg, tailer.Lines(), log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- tailer.Run(ctx)
	}()

	if err := forwarder.Run(ctx); err != nil {
		return err
	}
	return <-errCh
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
