// Package session persists per-session conversations. A conversation is an
// append-only, ordered log of messages keyed by an opaque session id.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ziadkadry99/policyvoice/internal/llm"
)

// Store is a durable per-session message log.
type Store interface {
	// Load returns the conversation for sessionID in append order. An unseen
	// id yields an empty conversation and no error.
	Load(ctx context.Context, sessionID string) ([]llm.Message, error)
	// Append atomically adds msgs to the end of the conversation, creating the
	// session if needed. Appends to the same session never interleave.
	Append(ctx context.Context, sessionID string, msgs ...llm.Message) error
	// ListSessions returns up to limit sessions, most recently updated first.
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	// CountSessions returns the number of stored sessions.
	CountSessions(ctx context.Context) (int, error)
}

// Session summarizes a stored conversation.
type Session struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const defaultListLimit = 50

func validate(sessionID string, msgs []llm.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	return nil
}

// KeyedMutex hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until the lock for key is held and returns its release func.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
