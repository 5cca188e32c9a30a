// Package ingest turns extracted document text into indexed, searchable chunks.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/docassist/docassist/internal/chunker"
	"github.com/docassist/docassist/internal/provider"
	"github.com/docassist/docassist/internal/vector"
	"github.com/docassist/docassist/models"
)

// Texts shorter than this after extraction are rejected as unusable.
const minExtractedChars = 10

// Catalog is the relational side of the dual write.
type Catalog interface {
	DocumentIDByChecksum(ctx context.Context, checksum string) (string, error)
	CountChunks(ctx context.Context, docID string) (int, error)
	SaveDocumentWithChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) error
}

// Index is the vector side of the dual write.
type Index interface {
	Upsert(ctx context.Context, points []vector.Point) error
	Delete(ctx context.Context, ids []string) error
}

// Coordinator runs the ingestion pipeline: dedupe, chunk, embed and a
// vector-first dual write with compensation.
type Coordinator struct {
	catalog        Catalog
	index          Index
	embedder       provider.Embedder
	tokenizer      chunker.Tokenizer
	embeddingModel string
	dim            int
	collection     string
	logger         *log.Logger
}

func New(catalog Catalog, index Index, embedder provider.Embedder, embeddingModel string, dim int, collection string) *Coordinator {
	return &Coordinator{
		catalog:        catalog,
		index:          index,
		embedder:       embedder,
		tokenizer:      chunker.Approx(),
		embeddingModel: embeddingModel,
		dim:            dim,
		collection:     collection,
		logger:         log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
	}
}

// Request is one document to ingest, already extracted to text.
type Request struct {
	Data      []byte
	Filename  string
	MimeType  string
	Strategy  string
	ChunkSize int
	Overlap   int
	Text      string
	UsedOCR   bool
	Metadata  map[string]interface{}
}

// Run ingests one document. Duplicate uploads (same content checksum)
// are skipped and reported with the existing document's chunk count.
func (c *Coordinator) Run(ctx context.Context, req Request) (models.IngestResult, error) {
	if len(req.Data) == 0 {
		return models.IngestResult{}, models.ErrEmptyInput
	}
	if req.Strategy == "" {
		req.Strategy = models.StrategySemantic
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = 500
	}
	if req.Overlap < 0 {
		req.Overlap = 0
	}

	sum := sha256.Sum256(req.Data)
	checksum := hex.EncodeToString(sum[:])

	if docID, err := c.catalog.DocumentIDByChecksum(ctx, checksum); err == nil {
		count, err := c.catalog.CountChunks(ctx, docID)
		if err != nil {
			return models.IngestResult{}, fmt.Errorf("%w: %v", models.ErrCatalogWrite, err)
		}
		c.logger.Printf("skipping duplicate upload %q (document %s)", req.Filename, docID)
		// No extraction happened for this reply, so used_ocr stays false.
		return models.IngestResult{
			DocumentID:       docID,
			Chunks:           count,
			ChunkStrategy:    req.Strategy,
			EmbeddingModel:   c.embeddingModel,
			VectorCollection: c.collection,
			SkippedDuplicate: true,
		}, nil
	} else if !errors.Is(err, models.ErrDocumentNotFound) {
		return models.IngestResult{}, fmt.Errorf("%w: %v", models.ErrCatalogWrite, err)
	}

	text := strings.TrimSpace(req.Text)
	if len([]rune(text)) < minExtractedChars {
		return models.IngestResult{}, fmt.Errorf("%w: extracted text too short", models.ErrExtractionFailed)
	}

	var pieces []chunker.Chunk
	switch req.Strategy {
	case models.StrategySemantic:
		overlapSentences := req.Overlap / 50
		if overlapSentences < 0 {
			overlapSentences = 0
		}
		pieces = chunker.Semantic(c.tokenizer, text, req.ChunkSize, overlapSentences)
	default:
		pieces = chunker.Fixed(c.tokenizer, text, req.ChunkSize, req.Overlap)
	}
	if len(pieces) == 0 {
		return models.IngestResult{}, models.ErrNoChunks
	}

	docID := uuid.NewString()
	chunks := make([]models.Chunk, len(pieces))
	points := make([]vector.Point, len(pieces))
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		chunkID := uuid.NewString()
		chunks[i] = models.Chunk{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: i,
			TokenCount: p.TokenCount,
			VectorID:   chunkID,
		}
		payload := map[string]interface{}{}
		for k, v := range req.Metadata {
			payload[k] = v
		}
		payload["doc_id"] = docID
		payload["chunk_index"] = i
		payload["filename"] = req.Filename
		payload["token_count"] = p.TokenCount
		payload["mime_type"] = req.MimeType
		payload["source"] = req.Filename
		payload["text"] = p.Text
		points[i] = vector.Point{ID: chunkID, Payload: payload}
		texts[i] = p.Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return models.IngestResult{}, err
	}
	if len(vectors) != len(texts) {
		return models.IngestResult{}, fmt.Errorf("%w: got %d vectors for %d chunks", models.ErrEmbeddingProvider, len(vectors), len(texts))
	}
	for i, vec := range vectors {
		if len(vec) != c.dim {
			return models.IngestResult{}, fmt.Errorf("%w: vector %d has dimension %d, expected %d", models.ErrEmbeddingDimension, i, len(vec), c.dim)
		}
		points[i].Vector = vec
	}

	// Vector store first, catalog second. If the catalog write fails
	// the already indexed points are deleted so search cannot return
	// chunks the catalog never recorded.
	// TODO: a pending-status catalog row written before the upsert would
	// also cover a crash between the two writes.
	if err := c.index.Upsert(ctx, points); err != nil {
		return models.IngestResult{}, err
	}

	doc := models.Document{
		ID:       docID,
		Title:    req.Filename,
		MimeType: req.MimeType,
		Checksum: checksum,
	}
	if err := c.catalog.SaveDocumentWithChunks(ctx, doc, chunks); err != nil {
		ids := make([]string, len(points))
		for i, p := range points {
			ids[i] = p.ID
		}
		if derr := c.index.Delete(ctx, ids); derr != nil {
			c.logger.Printf("compensating delete of %d points failed: %v", len(ids), derr)
		}
		return models.IngestResult{}, fmt.Errorf("%w: %v", models.ErrCatalogWrite, err)
	}

	return models.IngestResult{
		DocumentID:       docID,
		Chunks:           len(chunks),
		ChunkStrategy:    req.Strategy,
		EmbeddingModel:   c.embeddingModel,
		VectorCollection: c.collection,
		UsedOCR:          req.UsedOCR,
	}, nil
}
