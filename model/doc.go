// Package model defines the provider-agnostic abstraction for the language
// model that drives chat replies, summaries, titles and small extraction
// tasks (such as pulling a city name out of a weather request).
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (handlers, engine) remain decoupled from vendor SDKs.
// Most callers only need a single completed string and use Complete.
package model
