package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits matching database schema constraints.
const (
	MaxUserIDLen      = 64   // user_reputation.user_id VARCHAR(64)
	MaxDescriptionLen = 2000 // submissions.description TEXT, capped at the edge
	MaxCategoryLen    = 32   // submissions.category VARCHAR(32)
	MaxAdminIDLen     = 64

	// MaxImageBytes caps the uploaded photo size at 10 MiB.
	MaxImageBytes = 10 << 20
)

var (
	// userIDRe matches user IDs: hex hashes (64 chars) or shorter hashed IDs.
	userIDRe = regexp.MustCompile(`^[0-9a-f]+$`)
	// categoryRe matches category slugs: lowercase with underscores.
	categoryRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	// uuidRe matches canonical lowercase UUIDs.
	uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateUserID checks that a user ID is a valid hex hash.
func ValidateUserID(id string) (string, string) {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return "", "userId is required"
	}
	if len(id) > MaxUserIDLen {
		return "", "userId must be at most 64 characters"
	}
	if !userIDRe.MatchString(id) {
		return "", "userId must be a hexadecimal hash"
	}
	return id, ""
}

// ValidateSubmissionID checks that a submission ID is a canonical UUID.
func ValidateSubmissionID(id string) (string, string) {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return "", "submissionId is required"
	}
	if !uuidRe.MatchString(id) {
		return "", "submissionId must be a UUID"
	}
	return id, ""
}

// ValidateDescription trims and bounds the free-text description.
func ValidateDescription(desc string) (string, string) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "", "description is required"
	}
	if len(desc) > MaxDescriptionLen {
		return "", "description must be at most 2000 characters"
	}
	return desc, ""
}

// ValidateCategory checks an optional category slug.
func ValidateCategory(cat string) (string, string) {
	cat = strings.TrimSpace(strings.ToLower(cat))
	if cat == "" {
		return "", ""
	}
	if len(cat) > MaxCategoryLen {
		return "", "category must be at most 32 characters"
	}
	if !categoryRe.MatchString(cat) {
		return "", "category contains invalid characters"
	}
	return cat, ""
}

// ValidateAdminID checks the X-Admin-ID header value on override routes.
func ValidateAdminID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "X-Admin-ID header is required"
	}
	if len(id) > MaxAdminIDLen {
		return "", "admin id must be at most 64 characters"
	}
	return id, ""
}
