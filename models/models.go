package models

import (
	"errors"
	"time"
)

// Sentinel errors shared across coordinators. Handlers map these to HTTP
// statuses with errors.Is, so wrap them rather than replacing them.
var (
	ErrEmptyInput         = errors.New("empty input")
	ErrExtractionFailed   = errors.New("text extraction failed")
	ErrNoChunks           = errors.New("no chunks produced")
	ErrEmbeddingProvider  = errors.New("embedding provider error")
	ErrEmbeddingDimension = errors.New("embedding dimension mismatch")
	ErrVectorStore        = errors.New("vector store error")
	ErrCatalogWrite       = errors.New("catalog write error")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrBookingValidation  = errors.New("booking validation failed")
	ErrBookingConflict    = errors.New("booking conflict")
	ErrBookingPersistence = errors.New("booking persistence failed")
	ErrLLMProvider        = errors.New("llm provider error")
)

// Chunking strategies accepted by the ingest endpoint.
const (
	StrategyFixed    = "fixed"
	StrategySemantic = "semantic"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one entry of a conversation log.
type ConversationMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Document is a catalog row. Identity is the content checksum: the same bytes
// ingested twice resolve to one Document.
type Document struct {
	ID        string
	Title     string
	SourceURI string
	MimeType  string
	Checksum  string
}

// Chunk is a catalog row paired one-to-one with a vector index point.
// VectorID equals ID by convention.
type Chunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	TokenCount int
	VectorID   string
}

// Citation points at a retrieved document, derived per chat turn.
type Citation struct {
	DocID    string  `json:"doc_id"`
	Filename string  `json:"filename,omitempty"`
	Score    float64 `json:"score"`
}

// Booking is an immutable committed interview slot.
type Booking struct {
	ID                   string
	Name                 string
	Email                string
	StartTimeUTC         time.Time
	EndTimeUTC           time.Time
	SourceConversationID string
}

// IngestResult is the response of a document ingestion.
type IngestResult struct {
	DocumentID       string `json:"document_id"`
	Chunks           int    `json:"chunks"`
	ChunkStrategy    string `json:"chunk_strategy"`
	EmbeddingModel   string `json:"embedding_model"`
	VectorCollection string `json:"vector_collection"`
	UsedOCR          bool   `json:"used_ocr"`
	SkippedDuplicate bool   `json:"skipped_duplicate"`
}

// BookingInfo is the serialized form of a confirmed booking in a chat reply.
type BookingInfo struct {
	BookingID    string    `json:"booking_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	StartTimeUTC time.Time `json:"start_time_utc"`
	EndTimeUTC   time.Time `json:"end_time_utc"`
}

// ChatResult is the response of one conversational turn.
type ChatResult struct {
	Answer         string       `json:"answer"`
	ConversationID string       `json:"conversation_id"`
	Citations      []Citation   `json:"citations"`
	Booking        *BookingInfo `json:"booking_info,omitempty"`
}
