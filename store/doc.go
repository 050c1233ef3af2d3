// Package store defines the conversation persistence contract.
//
// Two interchangeable backends implement it: store/memory (volatile,
// process-lifetime entries, no TTL) and store/mongo (durable, sliding TTL
// expiry enforced by the backend). The asymmetry is deliberate: the volatile
// backend exists for development and tests where expiry adds nothing.
//
// Unknown conversation ids are never an error on this contract. Reads return
// empty results and Append recreates the conversation in place — a chat
// request must never hard-fail because the client references an expired or
// fabricated id.
package store
