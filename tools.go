//go:build tools
// +build tools

// Package tools tracks the code generators run by go generate (mockgen)
// as module dependencies, so go.sum stays complete on a fresh checkout.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
