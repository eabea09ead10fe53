package controllers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/editor"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	sessions  *editor.SessionManager
	workflows domain.WorkflowRepository
}

type SessionControllerDependencies struct {
	Sessions  *editor.SessionManager
	Workflows domain.WorkflowRepository
}

func NewSessionController(deps SessionControllerDependencies) *SessionController {
	return &SessionController{
		sessions:  deps.Sessions,
		workflows: deps.Workflows,
	}
}

type CreateSessionRequest struct {
	WorkflowID string `json:"workflow_id"`
}

type SaveSessionRequest struct {
	Name string `json:"name"`
}

type UndoRedoResponse struct {
	Applied bool                `json:"applied"`
	State   editor.SessionState `json:"state"`
}

type ConnectResponse struct {
	Edge     domain.Edge  `json:"edge"`
	Replaced *domain.Edge `json:"replaced,omitempty"`
}

type RunNodeResponse struct {
	NodeID    string               `json:"node_id"`
	Execution domain.NodeExecution `json:"execution"`
	Output    map[string]any       `json:"output,omitempty"`
}

func (c *SessionController) CreateSession(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	var req CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	session, err := c.sessions.Create(ctx.Context(), editor.CreateSessionParams{
		UserID:     userID,
		WorkflowID: req.WorkflowID,
	})
	if err != nil {
		return toFiberError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(session.State())
}

func (c *SessionController) GetSession(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(session.State())
}

func (c *SessionController) CloseSession(ctx fiber.Ctx) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := c.sessions.Close(userID, ctx.Params("sessionID")); err != nil {
		return toFiberError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *SessionController) AddNode(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	var node domain.Node
	if err := json.Unmarshal(ctx.Body(), &node); err != nil {
		if errors.Is(err, domain.ErrUnknownNodeKind) {
			return toFiberError(err)
		}

		return fiber.NewError(fiber.StatusBadRequest, "Invalid node")
	}

	added, err := session.AddNode(node)
	if err != nil {
		return toFiberError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(added)
}

func (c *SessionController) RemoveNode(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	if err := session.RemoveNode(ctx.Params("nodeID")); err != nil {
		return toFiberError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// UpdateNodeData decodes the body as the data of the node's own kind.
func (c *SessionController) UpdateNodeData(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	nodeID := ctx.Params("nodeID")

	node, ok := session.Node(nodeID)
	if !ok {
		return toFiberError(domain.ErrNodeNotFound)
	}

	data, err := domain.DecodeNodeData(node.Kind, ctx.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := session.UpdateNodeData(nodeID, data); err != nil {
		return toFiberError(err)
	}

	updated, _ := session.Node(nodeID)

	return ctx.JSON(updated)
}

func (c *SessionController) MoveNode(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	var position domain.Position
	if err := ctx.Bind().Body(&position); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid position")
	}

	if err := session.MoveNode(ctx.Params("nodeID"), position); err != nil {
		return toFiberError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *SessionController) Connect(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	var edge domain.Edge
	if err := ctx.Bind().Body(&edge); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid edge")
	}

	created, replaced, err := session.Connect(edge)
	if err != nil {
		return toFiberError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(ConnectResponse{
		Edge:     created,
		Replaced: replaced,
	})
}

func (c *SessionController) RemoveEdge(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	if err := session.RemoveEdge(ctx.Params("edgeID")); err != nil {
		return toFiberError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *SessionController) Undo(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	applied := session.Undo()

	return ctx.JSON(UndoRedoResponse{Applied: applied, State: session.State()})
}

func (c *SessionController) Redo(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	applied := session.Redo()

	return ctx.JSON(UndoRedoResponse{Applied: applied, State: session.State()})
}

// RunNode starts a node run. With wait=true the response is held until the
// run finishes or the request is cancelled.
func (c *SessionController) RunNode(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	nodeID := ctx.Params("nodeID")

	run, err := session.Run(ctx.Context(), nodeID)
	if err != nil {
		return toFiberError(err)
	}

	if ctx.Query("wait") != "true" {
		return ctx.Status(fiber.StatusAccepted).JSON(RunNodeResponse{
			NodeID:    nodeID,
			Execution: session.Execution(nodeID),
		})
	}

	output, err := run.Wait(ctx.Context())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctx.Status(fiber.StatusAccepted).JSON(RunNodeResponse{
			NodeID:    nodeID,
			Execution: session.Execution(nodeID),
		})
	}

	return ctx.JSON(RunNodeResponse{
		NodeID:    nodeID,
		Execution: session.Execution(nodeID),
		Output:    output,
	})
}

func (c *SessionController) UploadMedia(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "File is required")
	}

	file, err := header.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to read file")
	}
	defer file.Close()

	media, err := session.Upload(ctx.Context(), ctx.Params("nodeID"), editor.UploadParams{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	})
	if err != nil {
		return toFiberError(err)
	}

	return ctx.JSON(media)
}

// SaveSession persists the session graph to its workflow, creating a new
// workflow when the session was opened without one.
func (c *SessionController) SaveSession(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	if c.workflows == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "Workflow storage is not configured")
	}

	var req SaveSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	workflow := domain.Workflow{
		ID:       session.WorkflowID(),
		Name:     req.Name,
		UserID:   session.UserID,
		Snapshot: session.Snapshot(),
	}

	if workflow.ID == "" {
		workflow, err = c.workflows.Create(ctx.Context(), workflow)
		if err == nil {
			session.BindWorkflow(workflow.ID)
		}
	} else {
		workflow, err = c.workflows.Update(ctx.Context(), workflow)
	}
	if err != nil {
		return toFiberError(err)
	}

	log.Info().Str("session_id", session.ID).Str("workflow_id", workflow.ID).Msg("Session saved")

	return ctx.JSON(workflow)
}

func (c *SessionController) RunHistory(ctx fiber.Ctx) error {
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"runs": session.RunHistory()})
}

func (c *SessionController) session(ctx fiber.Ctx) (*editor.Session, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	session, err := c.sessions.Get(userID, ctx.Params("sessionID"))
	if err != nil {
		return nil, toFiberError(err)
	}

	return session, nil
}
