package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/jrsteele09/go-session-guard/server"
	fakeuserrepo "github.com/jrsteele09/go-session-guard/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const maintenanceInterval = time.Minute

func serveCmd(c config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long:  `Serve the login, refresh, logout, current-user, students and metrics endpoints from an in-memory user store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(c)
		},
	}
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())
	backend, err := server.New(c, fakeuserrepo.NewFakeUserRepo())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go backend.RunMaintenance(ctx, maintenanceInterval)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: backend, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
