package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicAdapter implements ProviderAdapter on the official Anthropic SDK.
// Tool use is native: tool schemas go out on the request, tool_use blocks
// come back in the response, and stop reasons map one to one.
type AnthropicAdapter struct {
	client anthropic.Client
}

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*anthropicConfig)

type anthropicConfig struct {
	apiKey    string
	baseURL   string
	extraOpts []option.RequestOption
}

// WithAnthropicAPIKey sets the API key. When empty the SDK reads
// ANTHROPIC_API_KEY from the environment.
func WithAnthropicAPIKey(key string) AnthropicOption {
	return func(c *anthropicConfig) {
		c.apiKey = key
	}
}

// WithAnthropicBaseURL overrides the API endpoint.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *anthropicConfig) {
		c.baseURL = url
	}
}

// WithAnthropicRequestOptions adds extra SDK request options.
func WithAnthropicRequestOptions(opts ...option.RequestOption) AnthropicOption {
	return func(c *anthropicConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewAnthropicAdapter creates an adapter backed by the official SDK client.
func NewAnthropicAdapter(opts ...AnthropicOption) *AnthropicAdapter {
	cfg := &anthropicConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var requestOpts []option.RequestOption
	if cfg.apiKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.baseURL))
	}
	requestOpts = append(requestOpts, cfg.extraOpts...)

	return &AnthropicAdapter{client: anthropic.NewClient(requestOpts...)}
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Complete sends a blocking request and returns the full response.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  convertMessages(req.Messages),
	}

	if req.System != "" {
		// The trailing cache_control marks the stable prompt prefix so the
		// provider can reuse it across turns.
		params.System = []anthropic.TextBlockParam{{
			Text:         req.System,
			CacheControl: anthropic.NewCacheControlEphemeralParam(),
		}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.translateError(err)
	}

	return convertResponse(msg), nil
}

// convertMessages translates the neutral history into SDK message params.
// Roles are preserved as-is: the history already satisfies the provider's
// alternation and tool_result grouping requirements.
func convertMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Kind {
			case BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case BlockToolUse:
				input := map[string]any{}
				if len(b.ToolUse.Input) > 0 {
					if err := json.Unmarshal(b.ToolUse.Input, &input); err != nil {
						input = map[string]any{}
					}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    b.ToolUse.ID,
						Name:  b.ToolUse.Name,
						Input: input,
					},
				})
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(
					b.ToolResult.ToolUseID, b.ToolResult.Content, b.ToolResult.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

// convertTools translates tool declarations into SDK tool params. The
// schema map round-trips through JSON into the SDK's schema type.
func convertTools(tools []Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolParam, len(tools))
	for i, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			_ = json.Unmarshal(raw, &schema)
		}
		params[i] = anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}
	}
	out := make([]anthropic.ToolUnionParam, len(params))
	for i := range params {
		out[i] = anthropic.ToolUnionParam{OfTool: &params[i]}
	}
	return out
}

func convertResponse(msg *anthropic.Message) *Response {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, cb := range msg.Content {
		switch v := cb.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, TextBlock(v.Text))
		case anthropic.ToolUseBlock:
			input := json.RawMessage(v.Input)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, ToolUseBlock(v.ID, v.Name, input))
		}
	}

	usage := Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	if n := int(msg.Usage.CacheReadInputTokens); n > 0 {
		usage.CacheReadTokens = &n
	}
	if n := int(msg.Usage.CacheCreationInputTokens); n > 0 {
		usage.CacheWriteTokens = &n
	}

	return &Response{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Provider:   "anthropic",
		Content:    blocks,
		StopReason: convertStopReason(string(msg.StopReason)),
		Usage:      usage,
	}
}

func convertStopReason(raw string) StopReason {
	switch raw {
	case "end_turn":
		return StopEndTurn
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	case "stop_sequence":
		return StopStopSequence
	default:
		// Unknown or absent stop reasons end the turn normally.
		return StopEndTurn
	}
}

// translateError converts SDK errors into the typed hierarchy.
func (a *AnthropicAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message, raw := parseAnthropicError(apiErr)

		// Context overflow comes back as a generic 400; only the message
		// distinguishes it.
		if apiErr.StatusCode == http.StatusBadRequest && isContextLengthMessage(message) {
			return &ContextLengthError{ProviderError: ProviderError{
				ClientError: ClientError{Message: message, Cause: err},
				Provider:    "anthropic",
				StatusCode:  apiErr.StatusCode,
				Raw:         raw,
			}}
		}

		return ErrorFromStatusCode(apiErr.StatusCode, message, "anthropic", "", raw, nil)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{ClientError: ClientError{Message: "request timed out", Cause: err}}
	}
	if errors.Is(err, context.Canceled) {
		return &AbortError{ClientError: ClientError{Message: "request cancelled", Cause: err}}
	}

	return &NetworkError{ClientError: ClientError{Message: err.Error(), Cause: err}}
}

// parseAnthropicError extracts the structured error body from an SDK error.
func parseAnthropicError(apiErr *anthropic.Error) (string, map[string]any) {
	var raw map[string]any
	rawJSON := apiErr.RawJSON()
	if rawJSON != "" {
		_ = json.Unmarshal([]byte(rawJSON), &raw)
	}

	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if rawJSON != "" && json.Unmarshal([]byte(rawJSON), &body) == nil && body.Error.Message != "" {
		return body.Error.Message, raw
	}
	return apiErr.Error(), raw
}

func isContextLengthMessage(msg string) bool {
	return strings.Contains(msg, "prompt is too long") ||
		strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "context length") ||
		strings.Contains(msg, "maximum context")
}
