// Package server wires the HTTP surface over the ingestion and chat pipelines.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/docassist/docassist/config"
	"github.com/docassist/docassist/internal/booking"
	"github.com/docassist/docassist/internal/extract"
	"github.com/docassist/docassist/internal/history"
	"github.com/docassist/docassist/internal/ingest"
	"github.com/docassist/docassist/internal/provider"
	"github.com/docassist/docassist/internal/rag"
	"github.com/docassist/docassist/internal/store"
	"github.com/docassist/docassist/internal/telemetry"
	"github.com/docassist/docassist/internal/vector"
)

func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
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
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	metrics := telemetry.New()
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	redisAddr := cfg.Storage.Redis.Host + ":" + cfg.Storage.Redis.Port
	redisClient, err := history.Conn(ctx, redisAddr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
	if err != nil {
		return err
	}
	chatLog := history.New(redisClient, cfg.Storage.Redis.HistoryTTL)

	index, err := vector.Dial(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return err
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx, cfg.Embedding.Dim); err != nil {
		return err
	}

	embedder, err := provider.NewEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}
	generator, err := provider.NewGenerator(cfg.LLM)
	if err != nil {
		return err
	}

	ingestor := ingest.New(st, index, embedder, cfg.Embedding.Model, cfg.Embedding.Dim, cfg.Qdrant.Collection)
	booker := booking.New(st, time.Local)
	orch := rag.New(chatLog, embedder, generator, index, booker)

	api := e.Group("/api")
	ih := &IngestHandler{Ingest: ingestor, Extract: &extract.Extractor{}, Metrics: metrics}
	ih.Register(api)
	ch := &ChatHandler{Orchestrator: orch, Metrics: metrics}
	ch.Register(api)

	return e.Start(cfg.Server.Address)
}
