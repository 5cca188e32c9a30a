// Package rag answers questions over the indexed document corpus and
// routes booking requests the model emits as tool calls.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/docassist/docassist/internal/booking"
	"github.com/docassist/docassist/internal/provider"
	"github.com/docassist/docassist/internal/vector"
	"github.com/docassist/docassist/models"
)

// historyWindow is how many recent messages feed condensation.
const historyWindow = 10

const condensePrompt = `Given the conversation history below, rephrase the user's latest message into a single standalone question that can be understood without the history. Reply with the question only, no preamble.`

const answerPromptFormat = `You are a helpful assistant answering questions about the provided documents.

Use ONLY the context below to answer. If the context does not contain the answer, say you don't know. Do not make up information.

Context:
%s

You can also book job interviews. When the user wants to book an interview and has provided their name, email, a date and a time, reply with ONLY this JSON object and nothing else:
{"tool_name": "book_interview", "arguments": {"name": "...", "email": "...", "date": "...", "time": "..."}}
If any of those details are missing, ask for them instead of emitting the JSON.`

// History is the conversation log the orchestrator reads and appends to.
type History interface {
	Append(ctx context.Context, conversationID string, msg models.ConversationMessage) error
	Recent(ctx context.Context, conversationID string, limit int) ([]models.ConversationMessage, error)
}

// Searcher finds the nearest indexed chunks for a query vector.
type Searcher interface {
	Search(ctx context.Context, vec []float32, k int) ([]vector.Hit, error)
}

// Booker creates interview bookings from tool-call arguments.
type Booker interface {
	Create(ctx context.Context, args booking.Args, conversationID string) (models.Booking, error)
}

// Orchestrator wires history, retrieval, generation and booking into
// one conversational turn.
type Orchestrator struct {
	history  History
	embedder provider.Embedder
	llm      provider.Generator
	index    Searcher
	booker   Booker
	logger   *log.Logger
}

func New(history History, embedder provider.Embedder, llm provider.Generator, index Searcher, booker Booker) *Orchestrator {
	return &Orchestrator{
		history:  history,
		embedder: embedder,
		llm:      llm,
		index:    index,
		booker:   booker,
		logger:   log.New(log.Writer(), "[RAG] ", log.LstdFlags),
	}
}

// Chat runs one conversational turn and returns the assistant's answer
// with citations, or booking details when the turn booked an interview.
func (o *Orchestrator) Chat(ctx context.Context, message, conversationID string, k int) (models.ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return models.ChatResult{}, models.ErrEmptyInput
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if k <= 0 {
		k = 4
	}

	userMsg := models.ConversationMessage{Role: models.RoleUser, Content: message}
	if err := o.history.Append(ctx, conversationID, userMsg); err != nil {
		o.logger.Printf("append user message: %v", err)
	}

	recent, err := o.history.Recent(ctx, conversationID, historyWindow)
	if err != nil {
		o.logger.Printf("read history: %v", err)
	}
	if len(recent) == 0 {
		recent = []models.ConversationMessage{userMsg}
	}

	// The condensed question drives retrieval only; generation sees the
	// retained history with the raw latest message as the last turn.
	question := o.condense(ctx, recent, message)

	vecs, err := o.embedder.Embed(ctx, []string{question})
	if err != nil {
		return models.ChatResult{}, err
	}
	if len(vecs) != 1 {
		return models.ChatResult{}, fmt.Errorf("%w: got %d vectors for one query", models.ErrEmbeddingProvider, len(vecs))
	}

	hits, err := o.index.Search(ctx, vecs[0], k)
	if err != nil {
		return models.ChatResult{}, err
	}

	contextText, citations := buildContext(hits)

	prompt := make([]models.ConversationMessage, 0, len(recent)+1)
	prompt = append(prompt, models.ConversationMessage{Role: models.RoleSystem, Content: fmt.Sprintf(answerPromptFormat, contextText)})
	prompt = append(prompt, recent...)
	reply, err := o.llm.Generate(ctx, prompt)
	if err != nil {
		return models.ChatResult{}, err
	}

	result := models.ChatResult{ConversationID: conversationID, Citations: citations}
	if args, ok := parseToolCall(reply); ok {
		result.Answer, result.Booking = o.book(ctx, args, conversationID)
		// A booking turn is not grounded in the documents.
		result.Citations = nil
	} else {
		result.Answer = reply
	}

	assistantMsg := models.ConversationMessage{Role: models.RoleAssistant, Content: result.Answer}
	if err := o.history.Append(ctx, conversationID, assistantMsg); err != nil {
		o.logger.Printf("append assistant message: %v", err)
	}
	return result, nil
}

// condense rewrites the latest message as a standalone question when
// there is prior history. Any failure falls back to the raw message.
func (o *Orchestrator) condense(ctx context.Context, recent []models.ConversationMessage, message string) string {
	if len(recent) <= 1 {
		return message
	}
	raw, err := json.Marshal(recent)
	if err != nil {
		return message
	}
	standalone, err := o.llm.Generate(ctx, []models.ConversationMessage{
		{Role: models.RoleSystem, Content: condensePrompt},
		{Role: models.RoleUser, Content: string(raw)},
	})
	if err != nil {
		o.logger.Printf("condense question: %v", err)
		return message
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return message
	}
	return standalone
}

func (o *Orchestrator) book(ctx context.Context, args booking.Args, conversationID string) (string, *models.BookingInfo) {
	b, err := o.booker.Create(ctx, args, conversationID)
	if err != nil {
		o.logger.Printf("booking failed: %v", err)
		return fmt.Sprintf("I tried to book the interview, but there was a problem. Reason: %v", err), nil
	}
	when := b.StartTimeUTC.Format("Monday, January 2 at 15:04 UTC")
	answer := fmt.Sprintf("Success! Your interview is confirmed for %s. Booking ID: %s", when, b.ID)
	return answer, &models.BookingInfo{
		BookingID:    b.ID,
		Name:         b.Name,
		Email:        b.Email,
		StartTimeUTC: b.StartTimeUTC,
		EndTimeUTC:   b.EndTimeUTC,
	}
}

// buildContext joins retrieved chunk texts into one prompt context and
// derives deduplicated citations ordered by descending score.
func buildContext(hits []vector.Hit) (string, []models.Citation) {
	var parts []string
	var citations []models.Citation
	seen := map[models.Citation]bool{}
	for _, h := range hits {
		if text, ok := h.Payload["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
		docID, _ := h.Payload["doc_id"].(string)
		filename, _ := h.Payload["filename"].(string)
		if docID == "" {
			continue
		}
		// Dedupe on the full (doc, filename, score) triple: two chunks of
		// one document with different scores are two citations.
		cite := models.Citation{DocID: docID, Filename: filename, Score: float64(h.Score)}
		if seen[cite] {
			continue
		}
		seen[cite] = true
		citations = append(citations, cite)
	}
	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Score > citations[j].Score
	})
	return strings.Join(parts, "\n---\n"), citations
}
