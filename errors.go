package scribe

import (
	"errors"

	"github.com/xraph/scribe/backend"
	"github.com/xraph/scribe/entry"
	"github.com/xraph/scribe/handler"
	"github.com/xraph/scribe/store"
)

var (
	// Lifecycle errors.
	ErrConfigLocked   = errors.New("scribe: configuration locked after first declare")
	ErrRecorderClosed = errors.New("scribe: recorder closed")

	// Caller misuse errors, re-exported from the owning packages so
	// errors.Is works against either name.
	ErrDuplicateEntry   = entry.ErrDuplicate
	ErrUnknownEntry     = entry.ErrNotFound
	ErrNoHandler        = handler.ErrNotRegistered
	ErrEntryNotDeclared = store.ErrEntryNotDeclared

	// Delivery errors (async dispatch only).
	ErrDeliverySerialization = backend.ErrNotSerializable
	ErrUnnamedHandler        = backend.ErrUnnamedHandler
	ErrBackendClosed         = backend.ErrClosed
)
