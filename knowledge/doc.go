// Package knowledge contains core.Retriever implementations backing the
// "local information" intent. Depend on core.Retriever in your code and
// select an implementation (like the in-memory index below) at wiring time.
package knowledge
