package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bz888/cognix/internal/api"
	"github.com/bz888/cognix/internal/api/server"
	"github.com/spf13/cobra"
)

var (
	askTimeout time.Duration
	askModel   string
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Send one message to a running \"cognix serve\" and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := initLogger(cfg, nil); err != nil {
			return err
		}

		client, err := api.NewClient(cfg.Server.Address, cfg.Server.Token)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		if askModel != "" {
			if _, err := client.SetPreferences(ctx, server.PreferencesUpdate{SelectedModel: &askModel}); err != nil {
				return fmt.Errorf("selecting %s: %w", askModel, err)
			}
		}

		reply, err := client.Chat(ctx, strings.Join(args, " "))
		var status *api.StatusError
		switch {
		case errors.As(err, &status):
			return errors.New(status.Message)
		case err != nil:
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
		return nil
	},
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "How long to wait for the reply")
	askCmd.Flags().StringVar(&askModel, "model", "", "Model ID to select before asking")
}
