// Package llm defines the contract between the service and LLM providers.
// A provider turns an ordered message sequence plus generation parameters
// into a finite, non-restartable stream of text fragments delivered over a
// channel. The consumer drives the iteration; the provider performs no
// buffering beyond what its transport requires and never retries.
package llm
