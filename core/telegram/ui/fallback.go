// Package ui holds contracts shared between bot features and the router.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies the handlers the registry falls back to: text
// that no active conversation claims, and callbacks with no registered key.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
