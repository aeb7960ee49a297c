package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/quibble-ai/quibble/internal/acquire"
	"github.com/quibble-ai/quibble/internal/intent"
	"github.com/quibble-ai/quibble/internal/negotiate"
	"github.com/quibble-ai/quibble/internal/session"
	"github.com/quibble-ai/quibble/internal/telemetry"
	"github.com/quibble-ai/quibble/provider"
)

// Acquirer is the offer acquisition dependency of the thread handlers.
type Acquirer interface {
	AcquireOffers(ctx context.Context, spec intent.Spec) ([]acquire.Offer, *acquire.Trace)
}

// ThreadsHandler serves thread creation and negotiation messages.
type ThreadsHandler struct {
	Acquirer         Acquirer
	Classifier       provider.Classifier // nil means heuristic-only
	Codec            *session.Codec
	Metrics          *telemetry.Metrics
	Logger           *log.Logger
	MockFallback     bool
	DebugDiagnostics bool
}

// Register mounts the thread routes on a group.
func (h *ThreadsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.POST("/messages", h.message)
}

func (h *ThreadsHandler) create(c echo.Context) error {
	var req ThreadCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	ctx := c.Request().Context()
	spec := h.classify(ctx, req.Text)

	offers, tr := h.Acquirer.AcquireOffers(ctx, spec)
	mocked := false
	if len(offers) == 0 && h.MockFallback {
		offers = negotiate.MockOffers(spec, 3)
		mocked = true
	}

	state := session.State{
		ThreadID:  uuid.New().String(),
		Stage:     session.StagePresenting,
		Intent:    spec,
		Offers:    offers,
		CreatedAt: time.Now().UTC(),
	}
	if len(offers) == 0 {
		// terminal: the buyer sees a clear "no matches" state, not a spinner
		state.Stage = session.StageAbandoned
	}
	token, err := h.Codec.Encode(state)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.Metrics != nil {
		h.Metrics.ThreadsCreated.Inc()
	}
	resp := ThreadCreateResponse{
		ThreadID: state.ThreadID,
		Summary:  spec.Summary,
		Offers:   offers,
		Mocked:   mocked,
	}
	if req.Debug && h.DebugDiagnostics {
		resp.Diagnostics = tr
	}
	c.Response().Header().Set(SessionHeader, token)
	return c.JSON(http.StatusCreated, resp)
}

func (h *ThreadsHandler) message(c echo.Context) error {
	token := c.Request().Header.Get(SessionHeader)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
	}
	state, err := h.Codec.Decode(token)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
	}

	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	reply := negotiate.Advance(&state, req.Text)
	fresh, err := h.Codec.Encode(state)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(SessionHeader, fresh)
	return c.JSON(http.StatusOK, MessageResponse{
		ThreadID: state.ThreadID,
		Stage:    string(state.Stage),
		Reply:    reply,
	})
}

// classify prefers the LLM provider and falls back to the keyword heuristic
// on any provider fault.
func (h *ThreadsHandler) classify(ctx context.Context, text string) intent.Spec {
	if h.Classifier != nil {
		plan, err := h.Classifier.ClassifyIntent(ctx, text)
		if err == nil {
			return intent.Normalize(plan)
		}
		h.Logger.Printf("classification failed, using heuristic: %v", err)
	}
	return intent.Normalize(intent.Heuristic(text))
}
