package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/civiclens/civiclens-go/internal/middleware"
	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/service"
)

type AdminHandler struct {
	svc *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func adminID(c fiber.Ctx) (string, error) {
	id, errMsg := middleware.ValidateAdminID(c.Get("X-Admin-ID"))
	if errMsg != "" {
		return "", middleware.ErrorResponse(c, fiber.StatusUnauthorized, "MISSING_ADMIN_ID", errMsg)
	}
	return id, nil
}

// ClearShadowBan handles POST /api/admin/users/:userId/clear-shadow-ban.
func (h *AdminHandler) ClearShadowBan(c fiber.Ctx) error {
	admin, err := adminID(c)
	if err != nil {
		return err
	}
	userID, errMsg := middleware.ValidateUserID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if err := h.svc.ClearShadowBan(c.Context(), userID, admin); err != nil {
		if err.Error() == "unknown user" {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "User not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear shadow ban")
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetTrustScore handles PUT /api/admin/users/:userId/trust-score.
func (h *AdminHandler) SetTrustScore(c fiber.Ctx) error {
	admin, err := adminID(c)
	if err != nil {
		return err
	}
	userID, errMsg := middleware.ValidateUserID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	var req struct {
		TrustScore int `json:"trustScore"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if req.TrustScore < model.TrustScoreMin || req.TrustScore > model.TrustScoreMax {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "trustScore must be between 0 and 100")
	}

	got, err := h.svc.AdjustTrustScore(c.Context(), userID, req.TrustScore, admin)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to set trust score")
	}
	return c.JSON(fiber.Map{"success": true, "trustScore": got})
}

// Suspend handles POST /api/admin/users/:userId/suspend.
func (h *AdminHandler) Suspend(c fiber.Ctx) error {
	admin, err := adminID(c)
	if err != nil {
		return err
	}
	userID, errMsg := middleware.ValidateUserID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if err := h.svc.Suspend(c.Context(), userID, admin); err != nil {
		if err.Error() == "unknown user" {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "User not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to suspend user")
	}
	return c.JSON(fiber.Map{"success": true})
}

// UserHistory handles GET /api/admin/users/:userId/history.
func (h *AdminHandler) UserHistory(c fiber.Ctx) error {
	if _, err := adminID(c); err != nil {
		return err
	}
	userID, errMsg := middleware.ValidateUserID(c.Params("userId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	hist, err := h.svc.UserHistory(c.Context(), userID, 50)
	if err != nil {
		if err.Error() == "unknown user" {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "User not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user history")
	}
	return c.JSON(fiber.Map{
		"reputation":     hist.Reputation,
		"shadowBanned":   hist.Reputation.IsShadowBanned,
		"rejectionCount": hist.RejectionCount,
		"penalties":      hist.Penalties,
		"abuseEvents":    hist.AbuseEvents,
	})
}

// RemoveIPBan handles DELETE /api/admin/ip-bans/:ipHash.
func (h *AdminHandler) RemoveIPBan(c fiber.Ctx) error {
	admin, err := adminID(c)
	if err != nil {
		return err
	}
	ipHash := c.Params("ipHash")
	if ipHash == "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "ipHash is required")
	}

	if err := h.svc.RemoveIPBan(c.Context(), ipHash, admin); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove IP ban")
	}
	return c.JSON(fiber.Map{"success": true})
}
