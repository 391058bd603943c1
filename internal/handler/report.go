package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/civiclens/civiclens-go/internal/middleware"
	"github.com/civiclens/civiclens-go/internal/service"
)

type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Get handles GET /api/reports/:id — the public record of a verified
// submission. Anything not verified is a plain 404; rejected and failed
// submissions are never exposed here.
func (h *ReportHandler) Get(c fiber.Ctx) error {
	id, errMsg := middleware.ValidateSubmissionID(c.Params("id"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	rep, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load report")
	}
	if rep == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Report not found")
	}

	return c.JSON(rep)
}
