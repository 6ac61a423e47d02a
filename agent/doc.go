// Package agent implements a bounded multi-turn agent loop that drives a
// large language model through tool execution.
//
// The loop alternates model calls with tool dispatch until the model stops
// asking for tools, holding the full message history as the single source
// of truth. Output budgets, truncation retries, and tool round limits keep
// every turn bounded; a constrained todo list and progressively disclosed
// skills give the model working memory and task-specific instructions
// without bloating the base prompt.
//
// The loop uses the llm package's Client.Complete method directly,
// implementing its own turn sequencing to interleave tool execution with
// truncation recovery, subagent delegation, and repeated-call detection.
//
// # Architecture
//
// The package is organized around these core concepts:
//
//   - Loop: The orchestrator holding conversation state, enforcing
//     budgets and limits, and sequencing model calls with tool rounds.
//   - Registry/Dispatcher: Tool registration, schema reflection, and
//     the dispatch pipeline every tool call passes through.
//   - Environment: Abstraction for where tools act (files, commands,
//     web search); Workspace is the local, path-confined implementation.
//   - TodoList: The model's plan, replaced wholesale on every update and
//     validated before anything is committed.
//   - SkillSet: Markdown skill documents discovered on disk and loaded
//     into context only when the model asks for one by name.
//   - Spawner: Delegation of scoped tasks to isolated subagent loops
//     with restricted toolsets.
//   - Emitter: Typed progress event stream for host integration.
//
// # Quick Start
//
//	client := llm.NewClient(
//	    llm.WithProvider("anthropic", llm.NewAnthropicAdapter()),
//	    llm.WithRetry(llm.DefaultRetryPolicy()),
//	)
//
//	cfg, err := agent.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loop, err := agent.New(cfg, client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	answer, err := loop.Run(ctx, "Summarize the README and list open TODOs")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(answer)
package agent
