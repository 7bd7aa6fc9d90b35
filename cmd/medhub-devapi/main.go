// Command medhub-devapi serves a demo clinic backend on MEDHUB_DEVAPI_ADDR
// with the seeded staff accounts (password "password").
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/config"
	"github.com/nexusmedic/medhub/internal/devapi"
	"github.com/nexusmedic/medhub/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.Console(cfg.LogLevel)

	api, err := devapi.New(devapi.Config{
		Secret: []byte(cfg.DevAPISecret),
		Logger: log,
	})
	if err != nil {
		return err
	}

	displayAppname("medhub devapi")
	srv := &http.Server{
		Addr:              cfg.DevAPIAddr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+cfg.DevAPIAddr+devapi.APIPrefix).Msg("listening")
		log.Info().Msg("demo accounts: doctor@example.com, lab@example.com, admin@example.com, nurse@example.com")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case err := <-errCh:
			return err
		case <-hup:
			// SIGHUP expires access tokens so clients exercise refresh.
			api.ExpireAccessTokens()
		case <-stop:
			return shutdown(srv, log)
		}
	}
}

func shutdown(srv *http.Server, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
