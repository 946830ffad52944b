package queueaccess

import (
	"errors"
	"fmt"

	"visionrecall/internal/ipc"
	"visionrecall/internal/queue"
)

// Session pairs an Access with whatever must be released when the command
// finishes: the IPC connection or the journal handle.
type Session struct {
	Access  Access
	release func() error
}

// Close releases the connection or store behind the session.
func (s Session) Close() error {
	if s.release == nil {
		return nil
	}
	return s.release()
}

// OpenWithFallback prefers the running daemon so that changes flow through
// its workflow manager. When dial fails the journal is opened directly.
func OpenWithFallback(dial func() (*ipc.Client, error), openStore func() (*queue.Store, error)) (Session, error) {
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), release: client.Close}, nil
		}
	}
	if openStore == nil {
		return Session{}, errors.New("open queue journal: daemon unreachable and no journal opener")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue journal: %w", err)
	}
	return Session{Access: NewStoreAccess(store), release: store.Close}, nil
}
