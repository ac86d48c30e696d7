// Package protocol implements the JSON-RPC 2.0 task protocol used to
// delegate work to remote worker agents. It provides the wire envelope,
// the task lifecycle model, a state manager holding the authoritative
// local copy of every known task, and an HTTP client with bounded
// polling and retry on transient transport failures.
package protocol
