package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bz888/cognix/internal/config"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/ui"
	"github.com/spf13/cobra"
)

var flags config.Flags

var rootCmd = &cobra.Command{
	Use:   "cognix",
	Short: "COGNIX - a terminal chat assistant with voice input and read-aloud",
	Long: `COGNIX is a chat assistant for the terminal.

Sign in, pick a model with /models and type or speak your messages.
Replies can be read aloud with /speak or automatically with /autospeak.

Run "cognix serve" to drive the same session over HTTP.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		d, err := wire(cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		app := ui.New(d.provider(), d.open, cfg.Dev)
		if err := initLogger(cfg, app.DebugConsole()); err != nil {
			return err
		}
		defer logger.Close()
		d.discover(cmd.Context())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.Run(ctx)
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	flags.Register(rootCmd)
	rootCmd.AddCommand(serveCmd, askCmd, devicesCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	flags.Apply(cfg)
	return cfg, nil
}

// initLogger sends dev output to console, or to stderr when console is nil.
func initLogger(cfg *config.Config, console io.Writer) error {
	if err := logger.InitLogger(cfg.Dev, cfg.LogPath, console); err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	return nil
}
