package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/diamond-portal/internal/domain"
)

const (
	MessageReadFailed  = "Error reading database"
	MessageWriteFailed = "Error writing to database"
	MessageCorrupt     = "Invalid JSON format in registry"
	MessageAdded       = "Entry added successfully"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func Text(c echo.Context, msg string) error {
	return c.String(http.StatusOK, msg)
}

func BadRequest(c echo.Context, err error) error {
	slog.Info("Bad request", slog.String("error", err.Error()), slog.String("module", "presenter"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.Info("Bad request", slog.String("error", msg), slog.String("module", "presenter"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// BadRequestText answers with a plain text body, like every other /data failure.
func BadRequestText(c echo.Context, msg string) error {
	slog.Info("Bad request", slog.String("error", msg), slog.String("module", "presenter"))
	return c.String(http.StatusBadRequest, msg)
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: msg})
}

// TooLarge answers in plain text, like the other POST /data rejections.
func TooLarge(c echo.Context) error {
	return c.String(http.StatusRequestEntityTooLarge, "Request body too large")
}

func Forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Conflict(c echo.Context, err error) error {
	return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
}

func InternalError(c echo.Context, err error) error {
	slog.Error("Internal error", slog.String("error", err.Error()), slog.String("module", "presenter"))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// RegistryError maps a registry failure onto its HTTP answer. Storage failures
// get coarse plain text messages; details only go to the log.
func RegistryError(c echo.Context, err error) error {
	var unavailable domain.StorageUnavailableError
	switch {
	case errors.Is(err, domain.ErrCorruptFormat):
		slog.Error("Registry is corrupt", slog.String("error", err.Error()), slog.String("module", "presenter"))
		return c.String(http.StatusInternalServerError, MessageCorrupt)
	case errors.As(err, &unavailable):
		slog.Error("Registry unavailable", slog.String("error", err.Error()), slog.String("module", "presenter"))
		if unavailable.Op == "write" {
			return c.String(http.StatusInternalServerError, MessageWriteFailed)
		}
		return c.String(http.StatusInternalServerError, MessageReadFailed)
	case errors.Is(err, domain.ErrConflict):
		return Conflict(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidRecord):
		return BadRequest(c, err)
	default:
		return InternalError(c, err)
	}
}
