package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	appconfig "github.com/quibble-ai/quibble/config"
	"github.com/quibble-ai/quibble/internal/acquire"
	"github.com/quibble-ai/quibble/internal/mcpclient"
	"github.com/quibble-ai/quibble/internal/registry"
	"github.com/quibble-ai/quibble/internal/session"
	"github.com/quibble-ai/quibble/internal/telemetry"
	"github.com/quibble-ai/quibble/internal/toolcache"
	"github.com/quibble-ai/quibble/provider"
)

// Run wires every dependency and serves HTTP until the listener fails.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", SessionHeader},
		// the session header must be readable by browser clients
		ExposeHeaders: []string{SessionHeader},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	metrics := telemetry.New()
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return err
	}
	if errs := reg.Validate(); len(errs) > 0 {
		for _, verr := range errs {
			baseLogger.Printf("registry: %v", verr)
		}
		return fmt.Errorf("registry %s has %d invalid records", cfg.Registry.Path, len(errs))
	}

	var cache mcpclient.ToolCache
	if cfg.Cache.RedisAddr != "" {
		client, err := toolcache.Conn(context.Background(), cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.General.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		cache = toolcache.NewRedis(client, cfg.Cache.TTL, nil)
	} else {
		cache = toolcache.NewMemory(cfg.Cache.TTL)
	}

	mcpLogger := log.New(log.Writer(), "[MCP] ", log.LstdFlags)
	acqLogger := log.New(log.Writer(), "[ACQ] ", log.LstdFlags)
	orch := acquire.New(cfg.Acquire, reg, mcpclient.New(mcpLogger, cache), metrics, acqLogger)

	if cfg.Server.SessionSecret == "" {
		return fmt.Errorf("session secret not configured (server.session_secret)")
	}
	codec, err := session.NewCodec([]byte(cfg.Server.SessionSecret), cfg.Server.SessionTTL)
	if err != nil {
		return err
	}

	classifier, err := provider.New(cfg.Providers.OpenAI)
	if err != nil {
		if !errors.Is(err, provider.ErrNotConfigured) {
			return err
		}
		baseLogger.Printf("no LLM provider configured, intent classification uses the keyword heuristic")
	}

	th := &ThreadsHandler{
		Acquirer:         orch,
		Classifier:       classifier,
		Codec:            codec,
		Metrics:          metrics,
		Logger:           baseLogger,
		MockFallback:     cfg.Server.MockFallback,
		DebugDiagnostics: cfg.Server.DebugDiagnostics || cfg.General.Debug,
	}
	api := e.Group("/api")
	th.Register(api.Group("/threads"))

	return e.Start(cfg.Server.Address)
}
