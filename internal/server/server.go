package server

import (
	"errors"
	"time"

	"github.com/flowbaker/weave/internal/controllers"
	"github.com/flowbaker/weave/internal/middlewares"
	"github.com/flowbaker/weave/internal/version"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
)

type HTTPServerDependencies struct {
	TokenVerifier      *middlewares.TokenVerifier
	SessionController  *controllers.SessionController
	WorkflowController *controllers.WorkflowController
}

// NewHTTPServer builds the editor API.
func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	router := newRouter("weave")

	identity := middlewares.IdentityMiddleware(deps.TokenVerifier)

	workflows := router.Group("/workflows", identity)
	workflows.Post("/", deps.WorkflowController.CreateWorkflow)
	workflows.Get("/", deps.WorkflowController.ListWorkflows)
	workflows.Get("/:workflowID", deps.WorkflowController.GetWorkflow)
	workflows.Put("/:workflowID", deps.WorkflowController.UpdateWorkflow)
	workflows.Delete("/:workflowID", deps.WorkflowController.DeleteWorkflow)

	sessions := router.Group("/sessions", identity)
	sessions.Post("/", deps.SessionController.CreateSession)

	session := sessions.Group("/:sessionID")
	session.Get("/", deps.SessionController.GetSession)
	session.Get("/state", deps.SessionController.GetSession)
	session.Get("/runs", deps.SessionController.RunHistory)
	session.Delete("/", deps.SessionController.CloseSession)
	session.Post("/save", deps.SessionController.SaveSession)
	session.Post("/undo", deps.SessionController.Undo)
	session.Post("/redo", deps.SessionController.Redo)

	session.Post("/nodes", deps.SessionController.AddNode)
	session.Delete("/nodes/:nodeID", deps.SessionController.RemoveNode)
	session.Put("/nodes/:nodeID/data", deps.SessionController.UpdateNodeData)
	session.Put("/nodes/:nodeID/position", deps.SessionController.MoveNode)
	session.Post("/nodes/:nodeID/run", deps.SessionController.RunNode)
	session.Post("/nodes/:nodeID/upload", deps.SessionController.UploadMedia)

	session.Post("/edges", deps.SessionController.Connect)
	session.Delete("/edges/:edgeID", deps.SessionController.RemoveEdge)

	return router
}

type RunnerServerDependencies struct {
	RunnerController *controllers.RunnerController
	// Verifier and APIKey are optional. When set, every API request must be
	// signed or carry the key.
	Verifier middlewares.RequestVerifier
	APIKey   string
}

// NewRunnerServer builds the job runner API.
func NewRunnerServer(deps RunnerServerDependencies) *fiber.App {
	router := newRouter("weave-runner")

	api := router.Group("/api/v1")

	if deps.APIKey != "" {
		api.Use(middlewares.APIKeyMiddleware(deps.APIKey))
	}

	if deps.Verifier != nil {
		api.Use(middlewares.SignatureMiddleware(deps.Verifier))
	} else {
		log.Warn().Msg("Runner API signature verification is disabled")
	}

	api.Post("/tasks/:kind/trigger", deps.RunnerController.TriggerTask)
	api.Get("/runs/:runID", deps.RunnerController.GetRun)

	return router
}

func newRouter(service string) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName:      service,
		ErrorHandler: errorHandler,
	})

	router.Use(cors.New())
	router.Use(logger.New())

	// Health check endpoint (no authentication required)
	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   service,
			"version":   version.Short(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	return router
}

// errorHandler renders every error as {"error": message}.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
