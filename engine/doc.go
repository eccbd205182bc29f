// Package engine implements the conversation orchestration layer of Trekka.
//
// The Engine accepts user turns tied to a thread id, classifies each turn's
// intent, routes it to exactly one capability handler, and keeps the growing
// per-thread history in a threadstate.Store. When a conversation is closed
// it produces a durable summary record and resets the thread.
//
// # Core Responsibilities
//
// Turn handling:
//   - Input validation before any state is touched
//   - Lazy thread initialization with a rendered system preamble
//   - Keyword intent classification and handler dispatch
//   - Failure containment: handler panics and malformed replies become apologies
//
// Conversation close:
//   - Summary generation followed by a title conditioned on the summary
//   - Idempotent upsert of the conversation record keyed by (user, thread)
//   - Unconditional reset, so a failed close never leaves a thread half-closed
//
// # Usage
//
//	states := threadstate.New()
//	registry, _ := handler.NewDefaultRegistry(handler.Services{Model: llm})
//	eng, err := engine.New(states, registry, llm, func(o *engine.Options) {
//	    o.Conversations = sqliteStore
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := eng.HandleTurn(ctx, engine.TurnRequest{Text: "weather in Pokhara"})
//	// res.ThreadID identifies the new thread
//	_, err = eng.Close(ctx, engine.CloseRequest{ThreadID: res.ThreadID})
//
// # Concurrency Model
//
//   - Turns and closes on the same thread are mutually exclusive
//   - Different threads never block each other, even during slow service calls
//   - Lock waits are bounded; a timed out wait returns core.ErrBusy
//   - External calls are bounded by per-call timeouts so a lock is never held indefinitely
//
// # Error Handling
//
//   - *core.ValidationError: rejected input, no state mutated
//   - core.ErrBusy: lock not obtained in time, no state mutated
//   - Service failures: absorbed into replies (turns) or CloseResult.Error (close)
//
// # Extensibility
//
// Callbacks registered on the CallbackManager observe completed turns and
// closes (auditing, analytics) without being able to alter their outcome.
package engine
