// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package client

import "sync"

// Session holds the bearer credential for one signed-in user.
//
// It is created by the caller and injected into [Client]; nothing in this
// package stores credentials globally.
type Session struct {
	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// NewSession returns a closed session.
func NewSession() *Session {
	return &Session{}
}

// Open starts the session with token.
func (session *Session) Open(token string) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.token = token
}

// Close forgets the credential.
func (session *Session) Close() {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.token = ""
}

// Token returns the current credential and whether the session is open.
func (session *Session) Token() (string, bool) {
	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.token, session.token != ""
}

// OnUnauthorized registers fn to run whenever the server answers 401.
// Deciding whether to refresh or sign out is up to fn.
func (session *Session) OnUnauthorized(fn func()) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.onUnauthorized = fn
}

func (session *Session) unauthorized() {
	session.mu.RLock()
	hook := session.onUnauthorized
	session.mu.RUnlock()

	if hook != nil {
		hook()
	}
}
