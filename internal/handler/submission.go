package handler

import (
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/civiclens/civiclens-go/internal/middleware"
	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/service"
	"github.com/civiclens/civiclens-go/pkg/hash"
)

type SubmissionHandler struct {
	svc    *service.AdmissionService
	ipSalt string
}

func NewSubmissionHandler(svc *service.AdmissionService, ipSalt string) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, ipSalt: ipSalt}
}

// Submit handles POST /api/submissions (multipart/form-data).
func (h *SubmissionHandler) Submit(c fiber.Ctx) error {
	userID, errMsg := middleware.ValidateUserID(c.FormValue("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	description, errMsg := middleware.ValidateDescription(c.FormValue("description"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	category, errMsg := middleware.ValidateCategory(c.FormValue("category"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_FIELDS", "image file is required")
	}
	if fileHeader.Size > middleware.MaxImageBytes {
		return middleware.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE",
			"image must be at most 10 MiB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_IMAGE", "could not read image upload")
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(io.LimitReader(file, middleware.MaxImageBytes+1))
	if err != nil || len(imageBytes) == 0 || len(imageBytes) > middleware.MaxImageBytes {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_IMAGE", "could not read image upload")
	}

	decision, err := h.svc.Submit(c.Context(), &service.AdmissionRequest{
		UserID:      userID,
		IPHash:      hash.HashIP(c.IP(), h.ipSalt),
		Description: description,
		Category:    category,
		ImageBytes:  imageBytes,
	})
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process submission")
	}

	if Metrics.AdmissionDecisions != nil {
		reason := decision.Reason
		if reason == "" {
			reason = "none"
		}
		Metrics.AdmissionDecisions.WithLabelValues(decision.Outcome, reason).Inc()
	}

	switch decision.Outcome {
	case service.OutcomeAdmit, service.OutcomeShadowAccept:
		// Shadow-accepted submissions are indistinguishable from admitted
		// ones here.
		return c.Status(fiber.StatusAccepted).JSON(model.SubmitResponse{
			Accepted:     true,
			SubmissionID: decision.SubmissionID,
		})
	default:
		status := fiber.StatusUnprocessableEntity
		switch decision.Reason {
		case service.ReasonRateLimited:
			status = fiber.StatusTooManyRequests
		case service.ReasonIPBanned, service.ReasonAccountSuspended:
			status = fiber.StatusForbidden
		}
		return c.Status(status).JSON(model.SubmitResponse{
			Accepted:   false,
			Reason:     decision.Reason,
			Message:    decision.Message,
			RetryAfter: decision.RetryAfter,
		})
	}
}

// Get handles GET /api/submissions/:id — the submitter's view of queue
// progress. Rejection reasons are included; internal retry state is not.
func (h *SubmissionHandler) Get(c fiber.Ctx) error {
	id, errMsg := middleware.ValidateSubmissionID(c.Params("id"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	sub, err := h.svc.Status(c.Context(), id)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load submission")
	}
	if sub == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Submission not found")
	}

	resp := fiber.Map{
		"submissionId": sub.ID,
		"status":       sub.Status,
		"createdAt":    sub.CreatedAt,
	}
	if sub.RejectionReason != nil {
		resp["reason"] = *sub.RejectionReason
	}
	if sub.ProcessedAt != nil {
		resp["processedAt"] = *sub.ProcessedAt
	}
	return c.JSON(resp)
}
