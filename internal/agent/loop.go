// Package agent implements the core orchestration loop: one user
// message in, one assistant reply out, with bounded tool-calling
// rounds in between.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/adavila/ada/internal/conversation"
	"github.com/adavila/ada/internal/facts"
	"github.com/adavila/ada/internal/llm"
	"github.com/adavila/ada/internal/prompts"
	"github.com/adavila/ada/internal/tools"
)

// Fixed user-visible replies. The loop never surfaces raw errors or an
// empty string to the user.
const (
	ErrorReply    = "Lo siento, ha habido un problema al procesar tu mensaje. Inténtalo de nuevo en un momento."
	FallbackReply = "Hecho."
	RoundCapReply = "Me he liado con demasiadas llamadas a herramientas seguidas. ¿Puedes pedírmelo de otra forma?"
)

// DefaultMaxToolRounds bounds model calls per turn. Each round is one
// model call; a round that requests tools consumes the next round for
// the follow-up. Past the cap the turn fails closed with RoundCapReply.
const DefaultMaxToolRounds = 5

// DefaultCallTimeout bounds each individual model call.
const DefaultCallTimeout = 120 * time.Second

// Recorder observes completed turns, for status reporting. Token
// counts are summed across every model call the turn made.
type Recorder interface {
	RecordTurn(inputTokens, outputTokens int)
}

// Loop runs conversation turns against the model and the tool registry.
type Loop struct {
	logger   *slog.Logger
	llm      llm.Client
	registry *tools.Registry
	store    *conversation.Store
	facts    *facts.Store
	prompts  *prompts.Builder

	owner         string
	model         string
	maxTokens     int
	maxToolRounds int
	callTimeout   time.Duration
	recorder      Recorder
}

// Options configures a Loop beyond its collaborators.
type Options struct {
	Owner         string
	Model         string
	MaxTokens     int
	MaxToolRounds int
	CallTimeout   time.Duration
	Recorder      Recorder
}

// NewLoop creates the orchestration loop.
func NewLoop(logger *slog.Logger, client llm.Client, registry *tools.Registry, store *conversation.Store, factStore *facts.Store, builder *prompts.Builder, opts Options) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Loop{
		logger:        logger,
		llm:           client,
		registry:      registry,
		store:         store,
		facts:         factStore,
		prompts:       builder,
		owner:         opts.Owner,
		model:         opts.Model,
		maxTokens:     opts.MaxTokens,
		maxToolRounds: opts.MaxToolRounds,
		callTimeout:   opts.CallTimeout,
		recorder:      opts.Recorder,
	}
}

// Respond runs one full turn for a conversation and returns the reply
// text. Turns for the same conversation id are serialized; the reply is
// never empty. Model failures produce ErrorReply with the user message
// left in history.
func (l *Loop) Respond(ctx context.Context, conversationID string, userMsg llm.Message) string {
	release := l.store.Begin(conversationID)
	defer release()

	ctx = tools.WithConversationID(ctx, conversationID)
	if m := tools.MessengerFromContext(ctx); m != nil {
		_ = m.SendTyping(ctx, conversationID)
	}

	start := time.Now()
	l.logger.Info("turn started", "conversation", conversationID)

	l.store.Append(conversationID, userMsg)
	l.store.Trim(conversationID)
	defer l.persist(conversationID)

	var inTokens, outTokens int
	if l.recorder != nil {
		defer func() { l.recorder.RecordTurn(inTokens, outTokens) }()
	}

	system := l.buildSystemPrompt()

	for round := 0; round < l.maxToolRounds; round++ {
		resp, err := l.chat(ctx, system, conversationID)
		if err != nil {
			l.logger.Error("model call failed",
				"conversation", conversationID,
				"round", round,
				"error", err,
			)
			return ErrorReply
		}
		inTokens += resp.InputTokens
		outTokens += resp.OutputTokens

		toolUses := resp.ToolUses()
		if resp.StopReason != llm.StopToolUse || len(toolUses) == 0 {
			text := resp.Text()
			if text == "" {
				text = FallbackReply
			}
			l.store.Append(conversationID, llm.AssistantText(text))
			l.logger.Info("turn completed",
				"conversation", conversationID,
				"rounds", round+1,
				"duration", time.Since(start).Round(time.Millisecond),
			)
			return text
		}

		// Append the tool-requesting assistant message, then one user
		// message bundling every tool result, ids paired one to one.
		l.store.Append(conversationID, resp.AssistantMessage())

		results := make([]llm.Block, 0, len(toolUses))
		for _, tu := range toolUses {
			l.logger.Debug("executing tool",
				"conversation", conversationID,
				"tool", tu.Name,
				"id", tu.ID,
			)
			out := l.registry.Execute(ctx, tu.Name, tu.Input)
			results = append(results, llm.ToolResultBlock(tu.ID, out))
		}
		l.store.Append(conversationID, llm.Message{Role: llm.RoleUser, Content: results})
	}

	l.logger.Warn("tool round cap reached",
		"conversation", conversationID,
		"max_rounds", l.maxToolRounds,
	)
	l.store.Append(conversationID, llm.AssistantText(RoundCapReply))
	return RoundCapReply
}

func (l *Loop) chat(ctx context.Context, system, conversationID string) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	return l.llm.Chat(callCtx, &llm.Request{
		Model:     l.model,
		System:    system,
		Messages:  l.store.Get(conversationID),
		Tools:     l.registry.Defs(),
		MaxTokens: l.maxTokens,
	})
}

// buildSystemPrompt is recomputed every turn so a fact saved in one
// turn shows up in the next model call.
func (l *Loop) buildSystemPrompt() string {
	var ownerFacts []*facts.Fact
	if l.facts != nil {
		var err error
		ownerFacts, err = l.facts.GetAll(l.owner)
		if err != nil {
			l.logger.Error("loading facts for prompt", "error", err)
		}
	}
	return l.prompts.Build(ownerFacts)
}

// persist failures are logged, never surfaced: the user already has
// their answer, the turn just isn't durable.
func (l *Loop) persist(conversationID string) {
	if err := l.store.Persist(); err != nil {
		l.logger.Error("persisting conversations",
			"conversation", conversationID,
			"error", err,
		)
	}
}
