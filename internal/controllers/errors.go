package controllers

import (
	"errors"

	"github.com/flowbaker/weave/internal/middlewares"
	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/editor"
	"github.com/flowbaker/weave/pkg/jobrunner"
	"github.com/flowbaker/weave/pkg/storage"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrUnauthenticated, fiber.StatusUnauthorized},
	{domain.ErrValidation, fiber.StatusUnprocessableEntity},
	{domain.ErrInvalidConnection, fiber.StatusUnprocessableEntity},
	{domain.ErrNodeDataMismatch, fiber.StatusBadRequest},
	{domain.ErrUnknownNodeKind, fiber.StatusBadRequest},
	{domain.ErrNodeNotRunnable, fiber.StatusBadRequest},
	{storage.ErrWorkflowNameRequired, fiber.StatusBadRequest},
	{domain.ErrNodeNotFound, fiber.StatusNotFound},
	{domain.ErrEdgeNotFound, fiber.StatusNotFound},
	{domain.ErrWorkflowNotFound, fiber.StatusNotFound},
	{editor.ErrSessionNotFound, fiber.StatusNotFound},
	{jobrunner.ErrRunNotFound, fiber.StatusNotFound},
	{jobrunner.ErrUnknownTask, fiber.StatusNotFound},
	{domain.ErrDuplicateID, fiber.StatusConflict},
	{domain.ErrDuplicateTarget, fiber.StatusConflict},
	{domain.ErrAlreadyRunning, fiber.StatusConflict},
	{jobrunner.ErrQueueFull, fiber.StatusServiceUnavailable},
	{jobrunner.ErrRunnerStopped, fiber.StatusServiceUnavailable},
	{jobrunner.ErrNotStarted, fiber.StatusServiceUnavailable},
}

// toFiberError maps domain errors to HTTP errors. Unknown errors become 500
// and are logged; their message is not exposed.
func toFiberError(err error) error {
	for _, mapping := range errorStatuses {
		if errors.Is(err, mapping.err) {
			return fiber.NewError(mapping.status, err.Error())
		}
	}

	log.Error().Err(err).Msg("Unhandled request error")

	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
}

func callerID(c fiber.Ctx) (string, error) {
	identity, ok := middlewares.CallerIdentity(c)
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, domain.ErrUnauthenticated.Error())
	}

	return identity.UserID, nil
}
