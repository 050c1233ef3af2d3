// Package chat holds the conversation domain model and the streaming
// orchestrator. The model types (Message, Hyperparameters, Request) validate
// their constraints at construction so nothing invalid ever reaches the
// upstream provider; the Orchestrator drives a single completion request from
// context resolution through streaming to persistence.
package chat
