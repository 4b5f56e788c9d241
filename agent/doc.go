// Package agent contains the agent implementations of agentpipe and the
// sequential pipeline that composes them. The package focuses on three
// concerns:
//
//  1. Shared identity plumbing (BaseAgent)
//  2. Sequential composition (Sequential), which runs participants strictly in
//     order and streams one OutputEvent per completed stage
//  3. Concrete participants: ModelAgent (LLM backed), FuncAgent (plain Go
//     function) and RemoteAgent (a task server reached over HTTP)
//
// Every participant implements core.Handle. A Sequential is itself a
// core.Handle, so pipelines nest.
package agent
