package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopwright/drover/llm"
)

// Sentinel errors returned by Run. Hosts match them with errors.Is; the
// wrapped message carries guidance the host can show to the user.
var (
	// ErrTruncationExhausted means the model hit the output ceiling on too
	// many consecutive calls and the loop gave up rather than burn tokens
	// on output it would discard again.
	ErrTruncationExhausted = errors.New("truncation retries exhausted")

	// ErrToolRoundsExceeded means a single input consumed the whole tool
	// round budget without the model finishing its answer.
	ErrToolRoundsExceeded = errors.New("tool round limit exceeded")
)

// heartbeatInterval is how often a waiting event is emitted while a model
// call is in flight.
const heartbeatInterval = time.Second

// ModelClient is the slice of the llm client the loop depends on. The
// concrete *llm.Client satisfies it; tests substitute scripted fakes.
type ModelClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Loop drives one conversation: it alternates model calls with tool
// execution until the model stops asking for tools, keeping the full
// message history as the single source of truth. A Loop is not safe for
// concurrent use; a host drives it from one goroutine. Subagent loops
// spawned by the Task tool run nested inside the parent's tool round and
// share the parent's environment, skills, and todo list, but nothing else.
type Loop struct {
	id           string
	cfg          Config
	client       ModelClient
	registry     *Registry
	dispatcher   *Dispatcher
	todos        *TodoList
	budget       *Budget
	emitter      *Emitter
	log          *zap.Logger
	systemPrompt string
	retryMessage string
	depth        int
	history      []llm.Message
}

// loopDeps holds the collaborators a host may inject at construction.
type loopDeps struct {
	env        Environment
	emitter    *Emitter
	agentTypes []AgentType
}

// LoopOption customizes loop construction beyond what Config covers.
type LoopOption func(*loopDeps)

// WithEnvironment substitutes the execution environment. The default is a
// Workspace rooted at cfg.Workdir.
func WithEnvironment(env Environment) LoopOption {
	return func(d *loopDeps) { d.env = env }
}

// WithEmitter attaches a progress event emitter. Without one, events are
// silently dropped.
func WithEmitter(e *Emitter) LoopOption {
	return func(d *loopDeps) { d.emitter = e }
}

// WithAgentTypes replaces the built-in subagent type catalog.
func WithAgentTypes(types ...AgentType) LoopOption {
	return func(d *loopDeps) { d.agentTypes = types }
}

// New builds a top-level loop: it normalizes the config, roots the
// workspace, loads skills, registers the toolset, and assembles the system
// prompt. The prompt is assembled once here; it does not change between
// turns.
func New(cfg Config, client ModelClient, opts ...LoopOption) (*Loop, error) {
	if client == nil {
		return nil, errors.New("model client is required")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	var deps loopDeps
	for _, opt := range opts {
		opt(&deps)
	}
	if deps.agentTypes == nil {
		deps.agentTypes = BuiltinAgentTypes()
	}

	env := deps.env
	if env == nil {
		ws, err := NewWorkspace(cfg.Workdir)
		if err != nil {
			return nil, err
		}
		env = ws
	}

	skills, err := LoadSkills(cfg.SkillsDir)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	log := cfg.Logger.With(zap.String("loop_id", id))
	emitter := deps.emitter
	todos := NewTodoList()

	// Core tools shared by the parent and every subagent. Subagent
	// registries are filtered views of this set.
	base := NewRegistry()
	RegisterCoreTools(base, env, todos, emitter, id)

	full := base.Filter([]string{"*"})
	RegisterSkillTool(full, skills)

	newChild := func(t AgentType) (*Loop, error) {
		childID := uuid.NewString()
		childLog := cfg.Logger.With(zap.String("loop_id", childID))
		childReg := base.Filter(t.Tools)
		RegisterSkillTool(childReg, skills)
		child := &Loop{
			id:           childID,
			cfg:          cfg,
			client:       client,
			registry:     childReg,
			todos:        todos,
			budget:       NewBudget(subagentMaxOutputTokens, subagentTruncationRetries),
			emitter:      emitter,
			log:          childLog,
			systemPrompt: fmt.Sprintf(subagentPromptTemplate, t.Name, env.WorkingDirectory(), t.Prompt),
			retryMessage: subagentRetryMessage,
			depth:        1,
		}
		child.dispatcher = NewDispatcher(childReg, NewLoopGuard(cfg.LoopDetection), emitter, childID, child.depth, childLog)
		return child, nil
	}
	spawner := NewSpawner(deps.agentTypes, 0, cfg.MaxSubagentDepth, id, emitter, log, newChild)
	RegisterTaskTool(full, spawner)

	loop := &Loop{
		id:           id,
		cfg:          cfg,
		client:       client,
		registry:     full,
		todos:        todos,
		budget:       NewBudget(cfg.MaxOutputTokens, cfg.MaxTruncationRetries),
		emitter:      emitter,
		log:          log,
		systemPrompt: BuildSystemPrompt(env, cfg.Model, cfg.Provider, skills.Descriptions(), spawner.Descriptions()),
		retryMessage: retryMessage,
		depth:        0,
	}
	loop.dispatcher = NewDispatcher(full, NewLoopGuard(cfg.LoopDetection), emitter, id, 0, log)
	return loop, nil
}

// Run feeds one user input through the loop and blocks until the model
// finishes its answer or a fatal condition stops the turn. The returned
// string is the text of the final assistant message. Messages appended
// before a fatal error stay in the history; a later Run continues from
// that state.
func (l *Loop) Run(ctx context.Context, input string) (string, error) {
	l.history = append(l.history, llm.UserMessage(input))
	l.emitter.Emit(EventTurnStart, l.id, l.depth, map[string]any{
		"input_chars": len(input),
	})
	l.log.Info("turn start", zap.Int("history_len", len(l.history)))

	rounds := 0
	for {
		if rounds >= l.cfg.MaxToolRounds {
			return "", l.fatal(fmt.Errorf(
				"%w: %d tool rounds without completion; break the task into smaller inputs or raise DROVER_MAX_TOOL_ROUNDS",
				ErrToolRoundsExceeded, rounds))
		}
		if err := ctx.Err(); err != nil {
			return "", l.fatal(fmt.Errorf("run cancelled: %w", err))
		}

		// Recomputed before every call: history has grown since last time.
		maxTokens := l.budget.MaxOutput(l.history, l.systemPrompt)

		resp, err := l.callModel(ctx, maxTokens)
		if err != nil {
			return "", l.fatal(fmt.Errorf("model call: %w", err))
		}

		if resp.StopReason == llm.StopMaxTokens {
			if done, ferr := l.handleTruncation(resp); done {
				return "", ferr
			}
			continue
		}

		l.budget.ResetTruncations()
		assistant := resp.AssistantMessage()
		l.history = append(l.history, assistant)
		if text := assistant.TextContent(); text != "" {
			l.emitter.Emit(EventAssistantText, l.id, l.depth, map[string]any{
				"text": text,
			})
		}

		uses := resp.ToolUses()
		if resp.StopReason.Terminal() || len(uses) == 0 {
			l.log.Info("turn done", zap.Int("rounds", rounds))
			l.emitter.Emit(EventDone, l.id, l.depth, map[string]any{
				"rounds": rounds,
			})
			return assistant.TextContent(), nil
		}

		rounds++
		results := make([]llm.ContentBlock, 0, len(uses))
		for _, use := range uses {
			results = append(results, l.runTool(ctx, use))
		}
		l.history = append(l.history, llm.UserBlocks(results...))
	}
}

// handleTruncation records a max_tokens stop. When the retry budget still
// has room it keeps the partial output and appends the retry nudge, and
// the caller goes around again. When the budget is spent it returns
// done=true with the fatal error; no further model call is made.
func (l *Loop) handleTruncation(resp *llm.Response) (bool, error) {
	count := l.budget.RecordTruncation()
	l.log.Warn("response truncated",
		zap.Int("attempt", count),
		zap.Int("limit", l.budget.MaxTruncationRetries))
	l.emitter.Emit(EventTruncationRetry, l.id, l.depth, map[string]any{
		"attempt": count,
		"limit":   l.budget.MaxTruncationRetries,
	})

	if l.budget.Exhausted() {
		guidance := truncationGuidance(count, l.budget.MaxOutputTokens)
		return true, l.fatal(fmt.Errorf("%w: %s", ErrTruncationExhausted, guidance))
	}

	l.history = append(l.history, resp.AssistantMessage())
	l.history = append(l.history, llm.UserMessage(l.retryMessage))
	return false, nil
}

// runTool dispatches one tool call and wraps its output as a result block.
func (l *Loop) runTool(ctx context.Context, use llm.ToolUse) llm.ContentBlock {
	l.emitter.Emit(EventToolStart, l.id, l.depth, map[string]any{
		"tool":        use.Name,
		"tool_use_id": use.ID,
	})
	start := time.Now()
	output := l.dispatcher.Dispatch(ctx, use.Name, use.Input)
	l.emitter.Emit(EventToolEnd, l.id, l.depth, map[string]any{
		"tool":        use.Name,
		"tool_use_id": use.ID,
		"duration_ms": time.Since(start).Milliseconds(),
		"is_error":    strings.HasPrefix(output, "Error:"),
	})
	return llm.ToolResultBlock(use.ID, output, false)
}

// callModel is the loop's single suspension point: one model call bounded
// by the configured timeout. While the call is in flight it emits waiting
// heartbeats so hosts can show progress.
func (l *Loop) callModel(ctx context.Context, maxTokens int) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout)
	defer cancel()

	req := llm.Request{
		Model:     l.cfg.Model,
		Provider:  l.cfg.Provider,
		System:    l.systemPrompt,
		Messages:  append([]llm.Message(nil), l.history...),
		Tools:     l.registry.Definitions(),
		MaxTokens: maxTokens,
	}
	l.log.Debug("model call",
		zap.Int("messages", len(req.Messages)),
		zap.Int("max_tokens", maxTokens))

	type completion struct {
		resp *llm.Response
		err  error
	}
	done := make(chan completion, 1)
	go func() {
		resp, err := l.client.Complete(callCtx, req)
		done <- completion{resp, err}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case c := <-done:
			return c.resp, c.err
		case <-ticker.C:
			l.emitter.Emit(EventModelWaiting, l.id, l.depth, map[string]any{
				"elapsed_ms": time.Since(start).Milliseconds(),
			})
		case <-callCtx.Done():
			return nil, callCtx.Err()
		}
	}
}

// fatal logs and emits a fatal error, then returns it unchanged.
func (l *Loop) fatal(err error) error {
	l.log.Error("loop fatal", zap.Error(err))
	l.emitter.Emit(EventFatal, l.id, l.depth, map[string]any{
		"error": err.Error(),
	})
	return err
}

// ID returns the loop's unique identifier.
func (l *Loop) ID() string { return l.id }

// SystemPrompt returns the prompt assembled at construction.
func (l *Loop) SystemPrompt() string { return l.systemPrompt }

// Todos returns the loop's todo list. Subagents share the parent's list.
func (l *Loop) Todos() *TodoList { return l.todos }

// History returns a copy of the conversation so far.
func (l *Loop) History() []llm.Message {
	out := make([]llm.Message, len(l.history))
	copy(out, l.history)
	return out
}
