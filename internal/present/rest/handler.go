package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/present/rest/presenter"
	"github.com/totegamma/diamond-portal/internal/usecase"
)

const maxBodySize = "1M"

// EventStream feeds every registry event to output until ctx is done.
type EventStream interface {
	Realtime(ctx context.Context, output chan<- domain.RegistryEvent)
}

type Handler struct {
	config   domain.Config
	registry *usecase.RegistryUsecase
	events   EventStream
}

// NewHandler builds the registry HTTP surface. events may be nil, in which
// case /realtime answers 503.
func NewHandler(
	config domain.Config,
	registry *usecase.RegistryUsecase,
	events EventStream,
) *Handler {
	return &Handler{
		config:   config,
		registry: registry,
		events:   events,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)
	e.GET("/data", h.handleList)
	e.POST("/data", h.handleAppend, middleware.BodyLimit(maxBodySize))
	e.DELETE("/data/:id", h.handleDelete)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

// ownerScope resolves whose records a request addresses: the authenticated
// requester if any, otherwise the owner_id query parameter.
func (h *Handler) ownerScope(c echo.Context) string {
	if requester := domain.RequesterID(c.Request().Context()); requester != "" {
		return requester
	}
	return c.QueryParam(domain.OwnerIDQueryParam)
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	owner := h.ownerScope(c)
	if owner == "" && h.config.RequireOwnerScope {
		return presenter.BadRequestMessage(c, "owner_id parameter is required")
	}

	snapshot, err := h.registry.List(ctx, owner)
	if err != nil {
		return presenter.RegistryError(c, err)
	}

	etag := quoteETag(snapshot.Version)
	c.Response().Header().Set("ETag", etag)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && matchETag(match, snapshot.Version) {
		return c.NoContent(http.StatusNotModified)
	}

	return presenter.OK(c, snapshot.Records)
}

func (h *Handler) handleAppend(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			return presenter.TooLarge(c)
		}
		return presenter.BadRequestText(c, "Error reading request body")
	}

	var rec diamond.CollectionRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return presenter.BadRequestText(c, "Request body must be a JSON object")
	}

	if requester := domain.RequesterID(ctx); requester != "" {
		if rec.OwnerID == "" {
			rec.OwnerID = requester
		} else if rec.OwnerID != requester {
			return presenter.Forbidden(c, "owner_id does not match the authenticated user")
		}
	}

	ifVersion := ""
	if match := c.Request().Header.Get("If-Match"); match != "" {
		ifVersion = unquoteETag(match)
	}

	version, err := h.registry.Append(ctx, rec, ifVersion)
	if err != nil {
		return presenter.RegistryError(c, err)
	}

	c.Response().Header().Set("ETag", quoteETag(version))
	return presenter.Text(c, presenter.MessageAdded)
}

func (h *Handler) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()

	if h.config.AuthEnabled && domain.RequesterID(ctx) == "" {
		return presenter.Unauthorized(c, "authentication is required to delete records")
	}

	owner := h.ownerScope(c)
	if owner == "" {
		return presenter.BadRequestMessage(c, "owner_id parameter is required")
	}

	removed, err := h.registry.Delete(ctx, c.Param("id"), owner)
	if err != nil {
		return presenter.RegistryError(c, err)
	}

	return presenter.OK(c, echo.Map{"deleted": removed})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.events == nil {
		return c.String(http.StatusServiceUnavailable, "realtime events are not configured")
	}

	owner := h.ownerScope(c)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	output := make(chan domain.RegistryEvent)
	go h.events.Realtime(ctx, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			if owner != "" && event.OwnerID != owner {
				continue
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

func quoteETag(version string) string {
	return `"` + version + `"`
}

func unquoteETag(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "W/")
	return strings.Trim(value, `"`)
}

func matchETag(header, version string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || unquoteETag(candidate) == version {
			return true
		}
	}
	return false
}
