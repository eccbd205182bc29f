// Package store contains core.ConversationStore implementations: a SQLite
// backed store for servers and an in-memory store for tests and demos.
package store
