package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/quibble-ai/quibble/internal/acquire"
	"github.com/quibble-ai/quibble/internal/intent"
	"github.com/quibble-ai/quibble/internal/session"
)

type stubAcquirer struct {
	offers []acquire.Offer
	trace  *acquire.Trace
	spec   intent.Spec
}

func (s *stubAcquirer) AcquireOffers(_ context.Context, spec intent.Spec) ([]acquire.Offer, *acquire.Trace) {
	s.spec = spec
	if s.trace == nil {
		s.trace = &acquire.Trace{Category: spec.Category, Query: spec.Query}
	}
	return s.offers, s.trace
}

func newHandler(t *testing.T, acq Acquirer) (*echo.Echo, *ThreadsHandler) {
	t.Helper()
	codec, err := session.NewCodec([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	h := &ThreadsHandler{
		Acquirer:         acq,
		Codec:            codec,
		Logger:           log.New(log.Writer(), "[TEST] ", log.LstdFlags),
		MockFallback:     false,
		DebugDiagnostics: true,
	}
	e := echo.New()
	h.Register(e.Group("/api/threads"))
	return e, h
}

func doJSON(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateThread(t *testing.T) {
	acq := &stubAcquirer{offers: []acquire.Offer{{
		SellerID: "velo-depot", SellerName: "Velo Depot",
		Headline: "Commuter Helmet", PriceText: "£45",
		ProductURL: "https://velo.example/products/helmet",
	}}}
	e, h := newHandler(t, acq)

	rec := doJSON(e, http.MethodPost, "/api/threads", `{"text":"I need a commuter helmet"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ThreadCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ThreadID)
	require.Len(t, resp.Offers, 1)
	require.False(t, resp.Mocked)
	require.Nil(t, resp.Diagnostics, "diagnostics only on request")

	// the heuristic classifier should have produced a cycling spec
	require.Equal(t, "cycling", string(acq.spec.Category))

	token := rec.Header().Get(SessionHeader)
	require.NotEmpty(t, token)
	state, err := h.Codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, session.StagePresenting, state.Stage)
	require.Equal(t, resp.ThreadID, state.ThreadID)
}

func TestCreateThreadDebugDiagnostics(t *testing.T) {
	acq := &stubAcquirer{trace: &acquire.Trace{Contacted: []string{"velo-depot"}}}
	e, _ := newHandler(t, acq)

	rec := doJSON(e, http.MethodPost, "/api/threads", `{"text":"helmet","debug":true}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ThreadCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Diagnostics)
	require.Equal(t, []string{"velo-depot"}, resp.Diagnostics.Contacted)
}

func TestCreateThreadMockFallback(t *testing.T) {
	acq := &stubAcquirer{} // zero live offers
	e, h := newHandler(t, acq)
	h.MockFallback = true

	rec := doJSON(e, http.MethodPost, "/api/threads", `{"text":"I need a commuter helmet"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ThreadCreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Mocked)
	require.NotEmpty(t, resp.Offers)
}

func TestCreateThreadNoOffersIsTerminal(t *testing.T) {
	acq := &stubAcquirer{}
	e, h := newHandler(t, acq)

	rec := doJSON(e, http.MethodPost, "/api/threads", `{"text":"helmet"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	state, err := h.Codec.Decode(rec.Header().Get(SessionHeader))
	require.NoError(t, err)
	require.Equal(t, session.StageAbandoned, state.Stage, "empty result must be a terminal state, not a spinner")
}

func TestCreateThreadValidation(t *testing.T) {
	e, _ := newHandler(t, &stubAcquirer{})
	rec := doJSON(e, http.MethodPost, "/api/threads", `{"text":"  "}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageAdvancesNegotiation(t *testing.T) {
	acq := &stubAcquirer{offers: []acquire.Offer{{
		SellerID: "velo-depot", SellerName: "Velo Depot",
		Headline: "Commuter Helmet", PriceText: "£45",
	}}}
	e, _ := newHandler(t, acq)

	created := doJSON(e, http.MethodPost, "/api/threads", `{"text":"helmet"}`, nil)
	token := created.Header().Get(SessionHeader)

	rec := doJSON(e, http.MethodPost, "/api/threads/messages", `{"text":"offer 1"}`,
		map[string]string{SessionHeader: token})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(session.StageNegotiating), resp.Stage)
	require.Contains(t, resp.Reply, "£45")
	require.NotEmpty(t, rec.Header().Get(SessionHeader), "replacement token must be issued")
	require.NotEqual(t, token, rec.Header().Get(SessionHeader))
}

func TestMessageRejectsBadTokens(t *testing.T) {
	e, _ := newHandler(t, &stubAcquirer{})

	rec := doJSON(e, http.MethodPost, "/api/threads/messages", `{"text":"hi"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/threads/messages", `{"text":"hi"}`,
		map[string]string{SessionHeader: "not.a.token"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
