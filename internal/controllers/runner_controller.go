package controllers

import (
	"time"

	runnerclient "github.com/flowbaker/weave/pkg/clients/jobrunner"
	"github.com/flowbaker/weave/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// RunnerController serves the trigger-and-poll API consumed by
// pkg/clients/jobrunner.
type RunnerController struct {
	runner domain.JobRunner
}

type RunnerControllerDependencies struct {
	Runner domain.JobRunner
}

func NewRunnerController(deps RunnerControllerDependencies) *RunnerController {
	return &RunnerController{
		runner: deps.Runner,
	}
}

func (c *RunnerController) TriggerTask(ctx fiber.Ctx) error {
	var req runnerclient.TriggerRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	kind := domain.JobKind(ctx.Params("kind"))

	id, err := c.runner.Trigger(ctx.Context(), kind, req.Payload, ctx.Get(runnerclient.IdempotencyKeyHeader))
	if err != nil {
		return toFiberError(err)
	}

	log.Debug().Str("run_id", id).Str("kind", string(kind)).Msg("Task triggered")

	return ctx.Status(fiber.StatusCreated).JSON(runnerclient.TriggerResponse{ID: id})
}

func (c *RunnerController) GetRun(ctx fiber.Ctx) error {
	run, err := c.runner.Retrieve(ctx.Context(), ctx.Params("runID"))
	if err != nil {
		return toFiberError(err)
	}

	return ctx.JSON(toRunResponse(run))
}

func toRunResponse(run domain.JobRun) runnerclient.RunResponse {
	resp := runnerclient.RunResponse{
		ID:        run.ID,
		TaskID:    string(run.Kind),
		Status:    string(run.Status),
		Output:    run.Output,
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: run.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	if run.Error != "" {
		resp.Error = &runnerclient.RunError{Message: run.Error}
	}

	if run.CompletedAt != nil {
		resp.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	return resp
}
