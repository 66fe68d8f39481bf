package answer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/medkb/medqa-go/internal/medrag"
)

// User-visible degraded answers. The query path always produces text;
// recoverable failures never surface as raised errors.
const (
	// InsufficientMessage is returned when retrieval produced no usable
	// records; the generation service is not called at all.
	InsufficientMessage = "I don't have enough information in the medical knowledge base to answer that question."

	// UnavailableMessage is returned when the generation service failed or
	// timed out.
	UnavailableMessage = "The answer service is currently unavailable. Please try again in a moment."
)

// defaultGenerateTimeout bounds a single generation call.
const defaultGenerateTimeout = 2 * time.Minute

// Answer is the externally observable result of one question.
type Answer struct {
	// Text is the answer body, or a degradation notice.
	Text string `json:"text"`

	// Citations lists the sources the answer is grounded in, in retrieval
	// order. Empty when the answer is not grounded.
	Citations []medrag.Citation `json:"citations"`

	// Grounded is false when no usable context was retrieved or the
	// generation service failed.
	Grounded bool `json:"grounded"`
}

// Synthesizer turns a question plus assembled context into a grounded
// Answer via a single generation call.
type Synthesizer struct {
	// gen is the text-completion backend.
	gen medrag.Generator

	// timeout bounds each generation call.
	timeout time.Duration

	// log receives degradation events.
	log *slog.Logger
}

// NewSynthesizer constructs a Synthesizer. timeout <= 0 selects the
// default of two minutes.
func NewSynthesizer(gen medrag.Generator, timeout time.Duration, log *slog.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{gen: gen, timeout: timeout, log: log}
}

// Synthesize answers the question from the context block. When the block
// is empty it short-circuits with the insufficient-information answer
// without calling the generation service. A generation failure or timeout
// degrades to an ungrounded failure notice, never propagated as an
// error.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, block ContextBlock) Answer {
	if block.Empty() {
		return Answer{Text: InsufficientMessage, Grounded: false}
	}

	prompt := BuildPrompt(block.Text, question)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.gen.Generate(genCtx, prompt)
	if err != nil {
		s.log.Warn("synthesize: generation failed, degrading",
			slog.Any("error", err),
		)
		return Answer{Text: UnavailableMessage, Grounded: false}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.log.Warn("synthesize: generation returned empty text, degrading")
		return Answer{Text: UnavailableMessage, Grounded: false}
	}

	return Answer{Text: text, Citations: block.Citations, Grounded: true}
}
