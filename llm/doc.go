// Package llm is a provider-agnostic client for tool-using chat models.
// It defines neutral message, tool and stop-reason types, a typed error
// hierarchy with retry classification, and a Client that routes requests
// to registered provider adapters through a middleware chain.
//
// # Architecture
//
//   - Types: Message/ContentBlock/Tool/Request/Response shared by all adapters
//   - Adapters: ProviderAdapter implementations (AnthropicAdapter, GollmAdapter)
//   - Client: provider routing, middleware, optional transport retry
//   - Errors: ClientError/ProviderError hierarchy, ErrorFromStatusCode, IsRetryable
//
// # Quick Start
//
//	adapter := llm.NewAnthropicAdapter(llm.WithAnthropicAPIKey(key))
//	client := llm.NewClient(llm.WithProvider("anthropic", adapter))
//
//	resp, err := client.Complete(ctx, llm.Request{
//	    Model:     "claude-sonnet-4-5",
//	    System:    "You are a helpful assistant.",
//	    Messages:  []llm.Message{llm.UserMessage("Hello")},
//	    MaxTokens: 1024,
//	})
//	fmt.Println(resp.Text())
//
// # Tool Use
//
// Tools are declared on the request; the model answers with tool_use blocks
// and StopToolUse. The caller executes each tool and appends one user message
// holding a matching tool_result block per tool_use, then calls Complete
// again:
//
//	for _, use := range resp.ToolUses() {
//	    out := run(use.Name, use.Input)
//	    results = append(results, llm.ToolResultBlock(use.ID, out, false))
//	}
//	history = append(history, resp.AssistantMessage(), llm.UserBlocks(results...))
//
// # Adapters
//
// AnthropicAdapter speaks the Messages API natively: tool schemas go out on
// the request and stop reasons map one to one. GollmAdapter reaches any
// provider gollm supports by flattening the conversation into a single
// prompt; it reports end_turn unless tool-call JSON is recognizable in the
// generated text.
package llm
