// Package state keeps per-user conversation sessions for Telegram bots.
// It is domain-agnostic: the session payload is a type parameter.
package state
