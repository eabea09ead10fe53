package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowbaker/weave/internal/initialization"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRunnerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runner",
		Short: "Start the job runner API",
		Long:  `Start the job runner that executes run-llm-task and extract-video-frame jobs for remote editors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunner(cmd)
		},
	}

	return cmd
}

func runRunner(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateRunner(); err != nil {
		return err
	}

	container := initialization.NewContainer(cfg)
	defer closeContainer(container)

	deps, err := container.BuildRunnerDependencies(ctx)
	if err != nil {
		return err
	}

	if err := deps.Runner.Start(ctx); err != nil {
		return err
	}
	defer deps.Runner.Stop()

	log.Info().
		Str("address", cfg.Runner.HTTPAddress).
		Int("workers", cfg.Runner.Workers).
		Msg("Starting job runner API")

	if err := deps.Server.Listen(cfg.Runner.HTTPAddress, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("Job runner server failed")
		return err
	}

	log.Info().Msg("Job runner stopped")

	return nil
}
