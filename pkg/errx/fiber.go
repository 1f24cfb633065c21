package errx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// HTTPErrorResponse is the JSON body rendered for a classified error
type HTTPErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToHTTPResponse converts an Error to its HTTP body
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Type:    string(e.Type),
		Details: e.Details,
	}
}

// FiberErrorHandler renders classified errors as JSON and hides everything
// else behind a generic 500. Plug into fiber.Config.ErrorHandler.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return c.Status(typed.HTTPStatus).JSON(typed.ToHTTPResponse())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(HTTPErrorResponse{
			Code:    "HTTP_ERROR",
			Message: fiberErr.Message,
			Type:    string(TypeInternal),
		})
	}

	// Never leak raw internal errors to the client
	return c.Status(fiber.StatusInternalServerError).JSON(HTTPErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Type:    string(TypeInternal),
	})
}
