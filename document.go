/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"
)

// GameState tracks where a game is in its lifecycle. Transitions are
// linear; the only way back is resetting the game entirely.
type GameState string

const (
	StateSetup      GameState = "setup"
	StateReady      GameState = "ready"
	StateInProgress GameState = "in_progress"
	StateAssigned   GameState = "assigned"

	// StateCompleted is a terminal placeholder; no transition produces it.
	StateCompleted GameState = "completed"
)

// Participant is a named character slot inside a game. UserName is bound
// when a session claims the slot and stays bound until the game is reset,
// even if the claiming session later expires.
type Participant struct {
	Name             string     `json:"name"`
	UserName         string     `json:"userName,omitempty"`
	JoinedAt         *time.Time `json:"joinedAt,omitempty"`
	Assigned         bool       `json:"assigned"`
	AssignedItem     string     `json:"assignedItem,omitempty"`
	AssignedLocation string     `json:"assignedLocation,omitempty"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty"`
}

// Game is the single active game instance.
type Game struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	State           GameState     `json:"state"`
	Participants    []Participant `json:"participants"`
	Items           []string      `json:"items"`
	Locations       []string      `json:"locations"`
	CreatedAt       time.Time     `json:"createdAt"`
	LastStateChange time.Time     `json:"lastStateChange"`
}

// Assignments returns the participants that have committed assignments.
func (g *Game) Assignments() []Participant {
	out := make([]Participant, 0, len(g.Participants))
	for _, p := range g.Participants {
		if p.Assigned {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) participant(name string) *Participant {
	for i := range g.Participants {
		if g.Participants[i].Name == name {
			return &g.Participants[i]
		}
	}
	return nil
}

// Session binds a human-chosen alias to a claimed participant slot for one
// browser tab. IsActive false marks a logged-out session that has not been
// swept yet.
type Session struct {
	ID           string    `json:"id"`
	UserName     string    `json:"userName"`
	PlayerName   string    `json:"playerName"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `json:"isActive"`
}

// Document is the whole persisted state: the current game plus the shared
// session registry. Version increments on every save so an external reader
// of the shared bin can detect concurrent change.
type Document struct {
	CurrentGame    *Game               `json:"currentGame"`
	ActiveSessions map[string]*Session `json:"activeSessions"`
	LastUpdated    time.Time           `json:"lastUpdated"`
	Version        uint64              `json:"version"`
}

func newDocument() *Document {
	return &Document{
		ActiveSessions: make(map[string]*Session),
		LastUpdated:    time.Now(),
	}
}

// GameStats is the administrator dashboard summary. JoinedPlayers counts
// live sessions, not userName bindings, since sessions are the authority
// on who is connected.
type GameStats struct {
	TotalPlayers     int       `json:"totalPlayers"`
	JoinedPlayers    int       `json:"joinedPlayers"`
	AssignedPlayers  int       `json:"assignedPlayers"`
	AvailablePlayers int       `json:"availablePlayers"`
	State            GameState `json:"state"`
}

// ConnectedPlayer is the admin view of one active session. UserName is
// already masked by the registry before it gets here.
type ConnectedPlayer struct {
	PlayerName string    `json:"playerName"`
	UserName   string    `json:"userName"`
	JoinedAt   time.Time `json:"joinedAt"`
}
