package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bz888/cognix/internal/api/server"
	"github.com/bz888/cognix/internal/identity"
	"github.com/bz888/cognix/internal/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a chat session over HTTP",
	Long: `Serve runs one chat session for the local user and exposes it as a JSON API.

Set server.token (or COGNIX_SERVER_TOKEN) to require "Authorization: Bearer <token>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddress != "" {
			cfg.Server.Address = serveAddress
		}
		if err := initLogger(cfg, nil); err != nil {
			return err
		}

		d, err := wire(cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		defer logger.Close()
		d.discover(cmd.Context())

		ctl, err := d.open(identity.User{ID: "local", Name: "local"}, nil)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return runUntilDone(ctx, ctl) })
		g.Go(func() error {
			defer ctl.Close()
			return server.New(ctl, cfg.Server.Token).Run(ctx, cfg.Server.Address)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "addr", "", "Listen address, overrides server.address")
}
