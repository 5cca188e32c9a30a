package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docassist/docassist/internal/booking"
	"github.com/docassist/docassist/internal/vector"
	"github.com/docassist/docassist/models"
)

type fakeHistory struct {
	logs      map[string][]models.ConversationMessage
	appendErr error
	recentErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{logs: map[string][]models.ConversationMessage{}}
}

func (f *fakeHistory) Append(_ context.Context, id string, msg models.ConversationMessage) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.logs[id] = append(f.logs[id], msg)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, id string, limit int) ([]models.ConversationMessage, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	msgs := f.logs[id]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

type fakeEmbedder struct {
	err     error
	queries []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.queries = append(f.queries, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

// scriptedLLM returns its replies in order, one per Generate call.
type scriptedLLM struct {
	replies []string
	errs    []error
	calls   [][]models.ConversationMessage
}

func (s *scriptedLLM) Generate(_ context.Context, msgs []models.ConversationMessage) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, msgs)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var reply string
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return reply, err
}

type fakeSearcher struct {
	hits []vector.Hit
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, _ int) ([]vector.Hit, error) {
	return f.hits, f.err
}

type fakeBooker struct {
	err    error
	args   booking.Args
	convID string
}

func (f *fakeBooker) Create(_ context.Context, args booking.Args, conversationID string) (models.Booking, error) {
	f.args = args
	f.convID = conversationID
	if f.err != nil {
		return models.Booking{}, f.err
	}
	return models.Booking{
		ID:           "bk-1",
		Name:         args.Name,
		Email:        args.Email,
		StartTimeUTC: time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
		EndTimeUTC:   time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC),
	}, nil
}

func hit(docID, filename, text string, score float32) vector.Hit {
	return vector.Hit{
		ID:    docID + "-chunk",
		Score: score,
		Payload: map[string]interface{}{
			"doc_id":   docID,
			"filename": filename,
			"text":     text,
		},
	}
}

func TestChatAnswersWithCitations(t *testing.T) {
	hist := newFakeHistory()
	llm := &scriptedLLM{replies: []string{"Grace Hopper wrote the first compiler."}}
	idx := &fakeSearcher{hits: []vector.Hit{
		hit("d1", "history.pdf", "Hopper built A-0 in 1952.", 0.91),
	}}
	orch := New(hist, &fakeEmbedder{}, llm, idx, &fakeBooker{})

	res, err := orch.Chat(context.Background(), "Who wrote the first compiler?", "", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.ConversationID == "" {
		t.Fatal("expected generated conversation id")
	}
	if res.Answer != "Grace Hopper wrote the first compiler." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if len(res.Citations) != 1 || res.Citations[0].DocID != "d1" {
		t.Fatalf("citations = %+v", res.Citations)
	}
	if res.Booking != nil {
		t.Fatal("unexpected booking info")
	}

	msgs := hist.logs[res.ConversationID]
	if len(msgs) != 2 || msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Fatalf("history = %+v", msgs)
	}

	system := llm.calls[0][0]
	if system.Role != models.RoleSystem || !strings.Contains(system.Content, "Hopper built A-0 in 1952.") {
		t.Fatalf("system prompt missing retrieved context: %q", system.Content)
	}
}

func TestChatCondensesFollowUps(t *testing.T) {
	hist := newFakeHistory()
	hist.logs["conv-1"] = []models.ConversationMessage{
		{Role: models.RoleUser, Content: "Tell me about the Apollo program."},
		{Role: models.RoleAssistant, Content: "Apollo landed twelve people on the Moon."},
	}
	llm := &scriptedLLM{replies: []string{
		"When did the Apollo program end?",
		"It ended in 1972.",
	}}
	emb := &fakeEmbedder{}
	orch := New(hist, emb, llm, &fakeSearcher{}, &fakeBooker{})

	res, err := orch.Chat(context.Background(), "When did it end?", "conv-1", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Answer != "It ended in 1972." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("llm called %d times", len(llm.calls))
	}
	// Retrieval embeds the standalone question.
	if len(emb.queries) != 1 || emb.queries[0] != "When did the Apollo program end?" {
		t.Fatalf("embedded queries = %q", emb.queries)
	}
	// Generation sees the system prompt plus the full retained history,
	// ending with the raw follow-up.
	answerCall := llm.calls[1]
	if len(answerCall) != 4 {
		t.Fatalf("answer call has %d messages, want system + 3 history", len(answerCall))
	}
	if answerCall[0].Role != models.RoleSystem {
		t.Fatalf("first message role = %q", answerCall[0].Role)
	}
	if answerCall[1].Content != "Tell me about the Apollo program." || answerCall[2].Content != "Apollo landed twelve people on the Moon." {
		t.Fatalf("history missing from answer call: %+v", answerCall[1:])
	}
	last := answerCall[len(answerCall)-1]
	if last.Role != models.RoleUser || last.Content != "When did it end?" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestChatCondensationFailureFallsBackToRawMessage(t *testing.T) {
	hist := newFakeHistory()
	hist.logs["conv-1"] = []models.ConversationMessage{
		{Role: models.RoleUser, Content: "earlier"},
		{Role: models.RoleAssistant, Content: "reply"},
	}
	llm := &scriptedLLM{
		replies: []string{"", "Final answer."},
		errs:    []error{models.ErrLLMProvider, nil},
	}
	emb := &fakeEmbedder{}
	orch := New(hist, emb, llm, &fakeSearcher{}, &fakeBooker{})

	res, err := orch.Chat(context.Background(), "When did it end?", "conv-1", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Answer != "Final answer." {
		t.Fatalf("answer = %q", res.Answer)
	}
	// Retrieval falls back to embedding the raw message.
	if len(emb.queries) != 1 || emb.queries[0] != "When did it end?" {
		t.Fatalf("embedded queries = %q", emb.queries)
	}
	// Generation still carries the full history.
	answerCall := llm.calls[1]
	if len(answerCall) != 4 {
		t.Fatalf("answer call has %d messages, want system + 3 history", len(answerCall))
	}
	if answerCall[len(answerCall)-1].Content != "When did it end?" {
		t.Fatalf("fallback question = %q", answerCall[len(answerCall)-1].Content)
	}
}

func TestChatRoutesToolCallToBooker(t *testing.T) {
	hist := newFakeHistory()
	llm := &scriptedLLM{replies: []string{
		`{"tool_name": "book_interview", "arguments": {"name": "Ada", "email": "ada@example.com", "date": "2025-06-02", "time": "14:30"}}`,
	}}
	booker := &fakeBooker{}
	idx := &fakeSearcher{hits: []vector.Hit{hit("d1", "f.txt", "irrelevant", 0.5)}}
	orch := New(hist, &fakeEmbedder{}, llm, idx, booker)

	res, err := orch.Chat(context.Background(), "Book me for June 2nd at 2:30pm. I'm Ada, ada@example.com.", "conv-9", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Booking == nil || res.Booking.BookingID != "bk-1" {
		t.Fatalf("booking = %+v", res.Booking)
	}
	if !strings.Contains(res.Answer, "Success!") || !strings.Contains(res.Answer, "bk-1") {
		t.Fatalf("answer = %q", res.Answer)
	}
	if booker.args.Email != "ada@example.com" {
		t.Fatalf("booker args = %+v", booker.args)
	}
	if booker.convID != "conv-9" {
		t.Fatalf("booker conversation id = %q", booker.convID)
	}
	if res.Citations != nil {
		t.Fatal("citations should be suppressed on booking turns")
	}
}

func TestChatTreatsEmbeddedJSONAsPlainAnswer(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`Sure, the answer is {"x":1}`}}
	booker := &fakeBooker{err: errors.New("should not be called")}
	orch := New(newFakeHistory(), &fakeEmbedder{}, llm, &fakeSearcher{}, booker)

	res, err := orch.Chat(context.Background(), "what is x?", "", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Answer != `Sure, the answer is {"x":1}` {
		t.Fatalf("answer = %q", res.Answer)
	}
	if res.Booking != nil {
		t.Fatal("prose with embedded JSON treated as tool call")
	}
}

func TestChatNarratesBookingFailure(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"tool_name": "book_interview", "arguments": {"name": "Ada", "email": "ada@example.com", "date": "2025-06-02", "time": "14:30"}}`,
	}}
	booker := &fakeBooker{err: models.ErrBookingConflict}
	orch := New(newFakeHistory(), &fakeEmbedder{}, llm, &fakeSearcher{}, booker)

	res, err := orch.Chat(context.Background(), "book it", "", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Booking != nil {
		t.Fatal("failed booking should not return booking info")
	}
	if !strings.Contains(res.Answer, "there was a problem") {
		t.Fatalf("answer = %q", res.Answer)
	}
}

func TestChatCitationOrderingAndDedupe(t *testing.T) {
	// Two chunks of d1/a.txt at different scores are distinct citations;
	// only the exact (doc, filename, score) repeat collapses.
	idx := &fakeSearcher{hits: []vector.Hit{
		hit("d2", "b.txt", "two", 0.82),
		hit("d1", "a.txt", "one", 0.95),
		hit("d1", "a.txt", "one repeated", 0.95),
		hit("d1", "a.txt", "one again", 0.71),
	}}
	llm := &scriptedLLM{replies: []string{"ok"}}
	orch := New(newFakeHistory(), &fakeEmbedder{}, llm, idx, &fakeBooker{})

	res, err := orch.Chat(context.Background(), "question", "", 4)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(res.Citations) != 3 {
		t.Fatalf("citations = %+v", res.Citations)
	}
	want := []struct {
		docID string
		score float64
	}{
		{"d1", 0.95},
		{"d2", 0.82},
		{"d1", 0.71},
	}
	for i, w := range want {
		c := res.Citations[i]
		if c.DocID != w.docID || !almostEqual(c.Score, w.score) {
			t.Fatalf("citation %d = %+v, want %s@%.2f", i, c, w.docID, w.score)
		}
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}

func TestChatGenerateFailureIsTerminal(t *testing.T) {
	llm := &scriptedLLM{errs: []error{models.ErrLLMProvider}}
	orch := New(newFakeHistory(), &fakeEmbedder{}, llm, &fakeSearcher{}, &fakeBooker{})

	_, err := orch.Chat(context.Background(), "question", "", 4)
	if !errors.Is(err, models.ErrLLMProvider) {
		t.Fatalf("error %v is not ErrLLMProvider", err)
	}
}

func TestChatEmptyMessageRejected(t *testing.T) {
	orch := New(newFakeHistory(), &fakeEmbedder{}, &scriptedLLM{}, &fakeSearcher{}, &fakeBooker{})
	_, err := orch.Chat(context.Background(), "   ", "", 4)
	if !errors.Is(err, models.ErrEmptyInput) {
		t.Fatalf("error %v is not ErrEmptyInput", err)
	}
}

func TestParseToolCall(t *testing.T) {
	args, ok := parseToolCall(` {"tool_name":"book_interview","arguments":{"name":"A","email":"a@b.c","date":"d","time":"t"}} `)
	if !ok {
		t.Fatal("valid tool call not recognized")
	}
	if args.Name != "A" || args.Time != "t" {
		t.Fatalf("args = %+v", args)
	}

	for _, reply := range []string{
		`{"tool_name":"other_tool","arguments":{}}`,
		`not json at all`,
		`{"tool_name":"book_interview"`,
		``,
	} {
		if _, ok := parseToolCall(reply); ok {
			t.Fatalf("reply %q misparsed as tool call", reply)
		}
	}
}
