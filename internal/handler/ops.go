package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/civiclens/civiclens-go/internal/middleware"
	"github.com/civiclens/civiclens-go/internal/service"
)

type OpsHandler struct {
	svc *service.OpsService
}

func NewOpsHandler(svc *service.OpsService) *OpsHandler {
	return &OpsHandler{svc: svc}
}

// QueueStats handles GET /api/ops/queue. Pending counts are split so an
// operator can tell a healthy backlog from one stuck on exhausted retries.
func (h *OpsHandler) QueueStats(c fiber.Ctx) error {
	stats, err := h.svc.QueueStats(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load queue stats")
	}
	return c.JSON(stats)
}

// Requeue handles POST /api/ops/queue/requeue. An empty ids list means the
// whole backlog.
func (h *OpsHandler) Requeue(c fiber.Ctx) error {
	var req struct {
		IDs           []string `json:"ids"`
		IncludeFailed bool     `json:"includeFailed"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	for _, id := range req.IDs {
		if _, errMsg := middleware.ValidateSubmissionID(id); errMsg != "" {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
		}
	}

	n, err := h.svc.Requeue(c.Context(), req.IDs, req.IncludeFailed)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to requeue submissions")
	}
	return c.JSON(fiber.Map{"success": true, "requeued": n})
}
