/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sessionRegistry manages the session map inside the shared document. It
// holds no state of its own beyond the TTL; callers own the document and
// the locking around it.
type sessionRegistry struct {
	ttl time.Duration
}

func newSessionRegistry(ttl time.Duration) sessionRegistry {
	return sessionRegistry{ttl: ttl}
}

// create claims a participant slot for an alias and registers the session.
func (r sessionRegistry) create(doc *Document, userName, playerName string) *Session {
	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		UserName:     strings.TrimSpace(userName),
		PlayerName:   playerName,
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}

	doc.ActiveSessions[session.ID] = session

	return session
}

// current looks up a session by id and refreshes its activity timestamp.
// Inactive or unknown ids return nil.
func (r sessionRegistry) current(doc *Document, sessionID string) *Session {
	session, ok := doc.ActiveSessions[sessionID]
	if !ok || !session.IsActive {
		return nil
	}

	session.LastActivity = time.Now()

	return session
}

// isPlayerTaken is the authoritative uniqueness check for claiming a slot:
// live sessions decide, not the participant's cached userName binding.
func (r sessionRegistry) isPlayerTaken(doc *Document, playerName string) bool {
	for _, session := range doc.ActiveSessions {
		if session.IsActive && session.PlayerName == playerName {
			return true
		}
	}

	return false
}

// logout deactivates and removes the session. The participant's userName
// binding in the game is left alone until the game is reset.
func (r sessionRegistry) logout(doc *Document, sessionID string) bool {
	session, ok := doc.ActiveSessions[sessionID]
	if !ok {
		return false
	}

	session.IsActive = false
	delete(doc.ActiveSessions, sessionID)

	return true
}

// sweepExpired removes every session idle longer than the TTL and reports
// how many were dropped.
func (r sessionRegistry) sweepExpired(doc *Document) int {
	cutoff := time.Now().Add(-r.ttl)

	removed := 0
	for id, session := range doc.ActiveSessions {
		if session.LastActivity.Before(cutoff) {
			delete(doc.ActiveSessions, id)
			removed++
		}
	}

	return removed
}

// revokeAll clears the registry. Open tabs only find out on their next
// poll, when their session id no longer resolves.
func (r sessionRegistry) revokeAll(doc *Document) int {
	revoked := len(doc.ActiveSessions)
	for id, session := range doc.ActiveSessions {
		session.IsActive = false
		delete(doc.ActiveSessions, id)
	}

	return revoked
}

// connected lists active sessions for the administrator view, aliases
// masked, ordered by join time.
func (r sessionRegistry) connected(doc *Document) []ConnectedPlayer {
	players := make([]ConnectedPlayer, 0, len(doc.ActiveSessions))
	for _, session := range doc.ActiveSessions {
		if !session.IsActive {
			continue
		}
		players = append(players, ConnectedPlayer{
			PlayerName: session.PlayerName,
			UserName:   maskUserName(session.UserName),
			JoinedAt:   session.CreatedAt,
		})
	}

	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})

	return players
}

func (r sessionRegistry) activeCount(doc *Document) int {
	count := 0
	for _, session := range doc.ActiveSessions {
		if session.IsActive {
			count++
		}
	}

	return count
}

// maskUserName hides all but the first and last character of an alias
// before it reaches administrator-facing views. A privacy affordance, not
// a security control.
func maskUserName(name string) string {
	runes := []rune(name)
	if len(runes) < 3 {
		return "***"
	}

	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
