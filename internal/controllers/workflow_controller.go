package controllers

import (
	"strconv"

	"github.com/flowbaker/weave/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

type WorkflowController struct {
	workflows domain.WorkflowRepository
}

type WorkflowControllerDependencies struct {
	Workflows domain.WorkflowRepository
}

func NewWorkflowController(deps WorkflowControllerDependencies) *WorkflowController {
	return &WorkflowController{
		workflows: deps.Workflows,
	}
}

type SaveWorkflowRequest struct {
	Name     string          `json:"name"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

func (c *WorkflowController) CreateWorkflow(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	var req SaveWorkflowRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	workflow, err := c.workflows.Create(ctx.Context(), domain.Workflow{
		Name:     req.Name,
		UserID:   userID,
		Snapshot: req.Snapshot,
	})
	if err != nil {
		return toFiberError(err)
	}

	log.Info().Str("workflow_id", workflow.ID).Str("user_id", userID).Msg("Workflow created")

	return ctx.Status(fiber.StatusCreated).JSON(workflow)
}

func (c *WorkflowController) ListWorkflows(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))

	workflows, err := c.workflows.ListByUser(ctx.Context(), domain.ListWorkflowsParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return toFiberError(err)
	}

	return ctx.JSON(fiber.Map{"workflows": workflows})
}

func (c *WorkflowController) GetWorkflow(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	workflow, err := c.workflows.GetByID(ctx.Context(), userID, ctx.Params("workflowID"))
	if err != nil {
		return toFiberError(err)
	}

	return ctx.JSON(workflow)
}

func (c *WorkflowController) UpdateWorkflow(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	var req SaveWorkflowRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	workflow, err := c.workflows.Update(ctx.Context(), domain.Workflow{
		ID:       ctx.Params("workflowID"),
		Name:     req.Name,
		UserID:   userID,
		Snapshot: req.Snapshot,
	})
	if err != nil {
		return toFiberError(err)
	}

	return ctx.JSON(workflow)
}

func (c *WorkflowController) DeleteWorkflow(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := c.workflows.Delete(ctx.Context(), userID, ctx.Params("workflowID")); err != nil {
		return toFiberError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}
