// Package threadstate holds live conversation state keyed by thread id.
//
// A Store pairs an expiring in-memory map (states idle longer than IdleTTL
// are evicted) with a per-thread lock. Callers acquire the lock for the whole
// read-modify-write of a turn or close so that concurrent requests on one
// thread are serialized, while different threads proceed in parallel.
//
// All reads return clones and all writes store clones, so a caller can never
// mutate state it has not explicitly put back.
package threadstate
