// Package session tracks backend-scoped session identifiers so follow-up
// tasks can resume prior context. Sessions never migrate across backends.
package session

import (
	"fmt"
	"sync"
)

// Entry pairs a backend name with the opaque session id it issued.
type Entry struct {
	Backend   string
	SessionID string
}

// BackendMismatchError reports a resume attempt against a session that was
// issued by a different backend.
type BackendMismatchError struct {
	SessionID string
	Want      string // backend that issued the session
	Got       string // backend the caller asked for
}

func (e *BackendMismatchError) Error() string {
	return fmt.Sprintf("session %q was created by backend %q, cannot resume with %q", e.SessionID, e.Want, e.Got)
}

// Registry maps task ids to the session each task produced. It lives for the
// orchestrating process only; durability is the caller's concern.
type Registry struct {
	mu        sync.RWMutex
	byTask    map[string]Entry
	bySession map[string]string // session id -> issuing backend
}

func NewRegistry() *Registry {
	return &Registry{
		byTask:    make(map[string]Entry),
		bySession: make(map[string]string),
	}
}

// Put records the session a task produced. The scheduler guarantees one
// writer per task id, so last-writer-wins is safe here.
func (r *Registry) Put(taskID, backend, sessionID string) {
	if taskID == "" || sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTask[taskID] = Entry{Backend: backend, SessionID: sessionID}
	r.bySession[sessionID] = backend
}

// Get returns the session entry recorded for a task, if any.
func (r *Registry) Get(taskID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byTask[taskID]
	return entry, ok
}

// Validate checks that resuming sessionID with the given backend does not
// cross a backend boundary. Session ids are opaque strings with no embedded
// backend tag, so only sessions this registry has seen can be verified;
// unknown ids pass through for the backend itself to accept or reject.
func (r *Registry) Validate(backend, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	r.mu.RLock()
	issuer, known := r.bySession[sessionID]
	r.mu.RUnlock()
	if !known || issuer == backend {
		return nil
	}
	return &BackendMismatchError{SessionID: sessionID, Want: issuer, Got: backend}
}

// Len reports how many task entries the registry holds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTask)
}
