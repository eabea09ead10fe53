package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowbaker/weave/internal/initialization"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editor API",
		Long:  `Start the editor API. Without a runner URL, jobs run in an in-process job runner.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateEditor(); err != nil {
		return err
	}

	container := initialization.NewContainer(cfg)
	defer closeContainer(container)

	deps, err := container.BuildEditorDependencies(ctx)
	if err != nil {
		return err
	}

	if deps.Runner != nil {
		if err := deps.Runner.Start(ctx); err != nil {
			return err
		}
		defer deps.Runner.Stop()
	}

	if err := deps.Sessions.Start(); err != nil {
		return err
	}
	defer deps.Sessions.Stop()

	log.Info().Str("address", cfg.HTTPAddress).Msg("Starting editor API")

	if err := deps.Server.Listen(cfg.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("Editor API stopped")

	return nil
}

func closeContainer(container *initialization.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := container.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close connections")
	}
}
