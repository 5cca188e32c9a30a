// Package chunker splits extracted document text into overlapping
// token-bounded segments. Token counting is pluggable; both strategies use
// the tokenizer they are handed for every count within one invocation.
package chunker

import (
	"strings"
	"unicode"
)

// Chunk is one emitted segment with its token count.
type Chunk struct {
	Text       string
	TokenCount int
}

// Tokenizer maps text to a token sequence and back.
type Tokenizer interface {
	Encode(text string) []string
	Decode(tokens []string) string
	Count(text string) int
}

// approxTokenizer treats a token as a group of four runes, which keeps the
// usual ~4 characters per token heuristic and makes Encode/Count consistent.
type approxTokenizer struct{}

// Approx returns the fallback tokenizer used when no exact tokenizer is wired.
func Approx() Tokenizer { return approxTokenizer{} }

func (approxTokenizer) Encode(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	tokens := make([]string, 0, (len(runes)+3)/4)
	for i := 0; i < len(runes); i += 4 {
		j := i + 4
		if j > len(runes) {
			j = len(runes)
		}
		tokens = append(tokens, string(runes[i:j]))
	}
	return tokens
}

func (approxTokenizer) Decode(tokens []string) string { return strings.Join(tokens, "") }

func (t approxTokenizer) Count(text string) int { return len(t.Encode(text)) }

// Fixed emits windows of size tokens, advancing the start by size-overlap
// each step. The last window may be shorter. Empty input yields no chunks.
func Fixed(tok Tokenizer, text string, size, overlap int) []Chunk {
	tokens := tok.Encode(text)
	n := len(tokens)
	if n == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	var chunks []Chunk
	i := 0
	for {
		j := i + size
		if j > n {
			j = n
		}
		window := tokens[i:j]
		chunks = append(chunks, Chunk{Text: tok.Decode(window), TokenCount: len(window)})
		if j == n {
			break
		}
		i = j - overlap
		if i < 0 {
			i = 0
		}
	}
	return chunks
}

// Semantic greedily packs whole sentences into chunks of at most maxTokens,
// seeding each new chunk with the last overlapSentences sentences of the one
// it just closed. A single sentence longer than maxTokens is emitted whole.
func Semantic(tok Tokenizer, text string, maxTokens, overlapSentences int) []Chunk {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}

	var chunks []Chunk
	var curr []string
	currTokens := 0

	flush := func() {
		joined := strings.TrimSpace(strings.Join(curr, " "))
		if joined == "" {
			return
		}
		chunks = append(chunks, Chunk{Text: joined, TokenCount: tok.Count(joined)})
	}

	for _, sent := range sentences {
		st := tok.Count(sent)
		if len(curr) > 0 && currTokens+st > maxTokens {
			flush()
			if overlapSentences > 0 {
				keep := overlapSentences
				if keep > len(curr) {
					keep = len(curr)
				}
				curr = append([]string(nil), curr[len(curr)-keep:]...)
				currTokens = tok.Count(strings.Join(curr, " "))
			} else {
				curr = nil
				currTokens = 0
			}
		}
		curr = append(curr, sent)
		currTokens += st
	}
	if len(curr) > 0 {
		flush()
	}
	return chunks
}

// SplitSentences breaks text at whitespace following '.', '!' or '?'.
// The punctuation stays with its sentence; surrounding whitespace is dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
