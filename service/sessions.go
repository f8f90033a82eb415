package service

import (
	"fmt"
	"sync"
)

// VoiceRegistry is the explicit-lifetime session store: id -> live session,
// with create/lookup/destroy owned by the caller. No hidden package state.
type VoiceRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*VoiceSession
	reason   ReasoningFunc
}

func NewVoiceRegistry(reason ReasoningFunc) *VoiceRegistry {
	return &VoiceRegistry{
		sessions: make(map[string]*VoiceSession),
		reason:   reason,
	}
}

// Create connects a new duplex session and registers it.
func (r *VoiceRegistry) Create(config VoiceConfig, hooks VoiceHooks) (*VoiceSession, error) {
	if config.ConversationId == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	session, err := connectVoice(config, hooks, r.reason)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
	return session, nil
}

func (r *VoiceRegistry) Get(id string) (*VoiceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Destroy stops the session and removes it. Safe to call repeatedly.
func (r *VoiceRegistry) Destroy(id string) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		session.Stop()
	}
}

// Len reports the number of live sessions (for the ops digest).
func (r *VoiceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
