package api

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"

	"github.com/p-blackswan/pressroom/internal/errors"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func problemResponse(c *fiber.Ctx, status int, typ, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     typ,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// storeProblem translates the error taxonomy into a problem response:
// not-found to 404, invalid input to 400, everything else to 500.
func storeProblem(c *fiber.Ctx, err error) error {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case stderrors.Is(err, errors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	case stderrors.Is(err, errors.ErrConflict):
		return problemResponse(c, fiber.StatusConflict,
			"conflict", "Conflict", err.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError,
			"storage_error", "Internal Server Error",
			"Storage operation failed")
	}
}
