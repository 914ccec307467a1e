package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kayphi/kayphi/internal/conversation"
	"github.com/kayphi/kayphi/internal/knowledge"
)

// StreamCallback receives each model chunk as it arrives.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// ConversationStore persists conversation turns.
type ConversationStore interface {
	Append(ctx context.Context, conversationID uuid.UUID, role, content string, tokensUsed *int32) error
}

// Retriever serves knowledge base lookups for grounding.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]knowledge.Chunk, error)
}

// Config holds the dependencies for a chat Service.
type Config struct {
	Conversations ConversationStore
	Knowledge     Retriever
	Genkit        *genkit.Genkit
	ModelName     string // provider-qualified, e.g. "openai/gpt-4o-mini"
	BusinessName  string
	TopK          int
	RateLimiter   *rate.Limiter // nil = use default
	Logger        *slog.Logger
}

// Service runs the retrieval-augmented chat pipeline: persist the user
// turn, retrieve grounding context, stream the model response, then
// persist the assistant turn best-effort.
type Service struct {
	conversations ConversationStore
	knowledge     Retriever
	g             *genkit.Genkit
	modelName     string
	businessName  string
	topK          int
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// New creates a Service from cfg.
func New(cfg Config) (*Service, error) {
	if cfg.Conversations == nil {
		return nil, errors.New("chat: conversation store is required")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("chat: knowledge retriever is required")
	}
	if cfg.Genkit == nil {
		return nil, errors.New("chat: genkit instance is required")
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		// Provider-side throttle, separate from per-client admission.
		limiter = rate.NewLimiter(10, 30)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	return &Service{
		conversations: cfg.Conversations,
		knowledge:     cfg.Knowledge,
		g:             cfg.Genkit,
		modelName:     cfg.ModelName,
		businessName:  cfg.BusinessName,
		topK:          topK,
		limiter:       limiter,
		logger:        logger,
	}, nil
}

// Stream executes one chat turn against an existing conversation.
// Retrieval failures degrade to an uncontexted prompt rather than
// failing the request, and both turns are persisted best-effort so a
// failing insert cannot lose a response the client already received.
func (s *Service) Stream(ctx context.Context, conversationID uuid.UUID, messages []Message, callback StreamCallback) (*Result, error) {
	userText := LastUserText(messages)

	// History persistence must never block the response; the in-memory
	// transcript carries the turn regardless.
	if err := s.conversations.Append(ctx, conversationID, conversation.RoleUser, userText, nil); err != nil {
		s.logger.Warn("persisting user message failed", "error", err,
			"conversation_id", conversationID)
	}

	chunks, err := s.knowledge.Retrieve(ctx, userText, s.topK)
	if err != nil {
		s.logger.Warn("knowledge retrieval failed, continuing without context", "error", err)
		chunks = nil
	}
	systemPrompt := BuildSystemPrompt(s.businessName, chunks)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	opts := []ai.GenerateOption{
		ai.WithSystem(systemPrompt),
		ai.WithMessages(toModelMessages(messages)...),
	}
	if s.modelName != "" {
		opts = append(opts, ai.WithModelName(s.modelName))
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(callback))
	}

	resp, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	result := &Result{Text: resp.Text()}
	if resp.Usage != nil && resp.Usage.OutputTokens > 0 {
		tokens := int32(resp.Usage.OutputTokens)
		result.TokensUsed = &tokens
	}

	if err := s.conversations.Append(ctx, conversationID, conversation.RoleAssistant, result.Text, result.TokensUsed); err != nil {
		s.logger.Warn("persisting assistant message failed", "error", err,
			"conversation_id", conversationID)
	}

	return result, nil
}

// toModelMessages converts the inbound transcript to genkit messages.
// Assistant turns map to model messages; anything else is a user turn.
func toModelMessages(messages []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		text := ExtractText(m.Parts)
		if text == "" {
			continue
		}
		switch m.Role {
		case "assistant":
			out = append(out, ai.NewModelMessage(ai.NewTextPart(text)))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(text)))
		}
	}
	return out
}
