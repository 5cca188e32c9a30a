package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/docassist/docassist/internal/extract"
	"github.com/docassist/docassist/internal/ingest"
	"github.com/docassist/docassist/internal/telemetry"
	"github.com/docassist/docassist/models"
)

// Ingestor runs the ingestion pipeline for one uploaded document.
type Ingestor interface {
	Run(ctx context.Context, req ingest.Request) (models.IngestResult, error)
}

type IngestHandler struct {
	Ingest  Ingestor
	Extract *extract.Extractor
	Metrics *telemetry.Metrics
}

func (h *IngestHandler) Register(g *echo.Group) {
	g.POST("/ingest", h.ingest)
}

func (h *IngestHandler) ingest(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	strategy := c.FormValue("chunk_strategy")
	if strategy == "" {
		strategy = models.StrategySemantic
	}
	chunkSize, _ := strconv.Atoi(c.FormValue("chunk_size"))
	if chunkSize <= 0 {
		chunkSize = 500
	}
	overlap, err := strconv.Atoi(c.FormValue("overlap"))
	if err != nil || overlap < 0 {
		overlap = 50
	}
	useOCR := true
	if raw := c.FormValue("use_ocr"); raw != "" {
		useOCR, _ = strconv.ParseBool(raw)
	}

	// Malformed metadata is ignored rather than rejected.
	var metadata map[string]interface{}
	if raw := c.FormValue("metadata"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &metadata)
	}

	contentType := fh.Header.Get("Content-Type")
	extracted, err := h.Extract.FromFile(fh.Filename, contentType, data, useOCR)
	if err != nil {
		h.Metrics.IngestTotal.WithLabelValues("error").Inc()
		return httpError(err)
	}

	res, err := h.Ingest.Run(c.Request().Context(), ingest.Request{
		Data:      data,
		Filename:  fh.Filename,
		MimeType:  contentType,
		Strategy:  strategy,
		ChunkSize: chunkSize,
		Overlap:   overlap,
		Text:      extracted.Text,
		UsedOCR:   extracted.UsedOCR,
		Metadata:  metadata,
	})
	if err != nil {
		h.Metrics.IngestTotal.WithLabelValues("error").Inc()
		return httpError(err)
	}
	if res.SkippedDuplicate {
		h.Metrics.IngestTotal.WithLabelValues("duplicate").Inc()
	} else {
		h.Metrics.IngestTotal.WithLabelValues("ok").Inc()
	}
	return c.JSON(http.StatusOK, res)
}

// httpError maps pipeline sentinel errors to HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrEmptyInput), errors.Is(err, models.ErrBookingValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrBookingConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrExtractionFailed), errors.Is(err, models.ErrNoChunks):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrEmbeddingProvider), errors.Is(err, models.ErrVectorStore), errors.Is(err, models.ErrLLMProvider):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, models.ErrEmbeddingDimension), errors.Is(err, models.ErrCatalogWrite):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
