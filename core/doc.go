// Package core provides the foundational domain types and collaborator
// contracts used by Trekka. It defines:
//
//   - Messages (role-tagged, immutable conversation entries)
//   - Intents (the closed set of capabilities a turn can be routed to)
//   - ThreadState (the per-thread checkpoint: history plus lifecycle flags)
//   - ConversationRecord / FavoriteDestination (durable entities owned by the
//     persistence collaborator)
//   - Small interfaces for the external capability services (retrieval,
//     encyclopedic lookup, web search, weather) and the persistence store
//
// The package intentionally keeps implementation concerns (HTTP clients,
// storage engines, orchestration) out of scope so higher level packages can
// depend on contracts rather than concrete backends.
package core
