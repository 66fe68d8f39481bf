// Package generator adapts a pluggable LLM backend to the pipeline's
// Generator contract: one prompt in, one completion out, no conversation
// state. Backends (Ollama, OpenAI, Azure OpenAI, Gemini, Ark) are selected
// at runtime via the MODEL_PROVIDER environment variable and constructed
// through the Eino model components.
package generator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/medkb/medqa-go/internal/medrag"
)

// ChatModelGenerator implements medrag.Generator over an Eino chat model.
// Each Generate call is a fresh single-turn conversation.
type ChatModelGenerator struct {
	// chatModel is the backend constructed by the factory.
	chatModel model.ToolCallingChatModel
}

// NewChatModelGenerator wraps an Eino chat model as a Generator.
func NewChatModelGenerator(chatModel model.ToolCallingChatModel) (*ChatModelGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("generator: chat model must not be nil")
	}
	return &ChatModelGenerator{chatModel: chatModel}, nil
}

// Generate sends the prompt as a single user message and returns the
// model's completion text. Backend failures are reported as ServiceError
// so callers can degrade instead of crashing.
func (g *ChatModelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", &medrag.ServiceError{Service: "generation", Err: err}
	}
	if msg == nil {
		return "", &medrag.ServiceError{Service: "generation", Err: fmt.Errorf("backend returned no message")}
	}
	return msg.Content, nil
}
