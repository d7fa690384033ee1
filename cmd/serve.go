package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipway-io/slipway/credentials"
	"github.com/slipway-io/slipway/kube"
	"github.com/slipway-io/slipway/runner"
	"github.com/slipway-io/slipway/server"
	"github.com/slipway-io/slipway/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger API",
	Long: "Serve exposes the engine to schedulers and CI systems: POST a pipeline\n" +
		"definition to /api/v1/runs to launch it, poll the run, cancel it.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings, else :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	resolver, err := credentials.FromEnv()
	if err != nil {
		return err
	}
	log.SetScrubber(credentials.NewRedactor(resolver.SecretValues()...).Redact)

	if err := kube.CheckInstalled(); err != nil {
		log.Warn("kubectl not found, remote deploys will fail", map[string]any{"error": err.Error()})
	}

	cmdRunner := &runner.DefaultRunner{}
	controller := newEngine(cfg, "", cmdRunner, resolver, log)
	srv := server.New(controller, store.New(cfg.DataDirOrDefault()), log)

	addr := serveAddr
	if addr == "" {
		addr = cfg.AddrOrDefault()
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("serving", map[string]any{
		"addr": addr, "version": appVersion, "data_dir": cfg.DataDirOrDefault(),
	})

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}
