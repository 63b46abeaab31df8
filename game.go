/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GameKeeper owns the authoritative document. Every operation is a full
// load, mutate, save under one mutex, making the keeper the single-writer
// serialization point: two concurrent claims on the same slot can never
// both pass the uniqueness check.
type GameKeeper struct {
	cfg      *Config
	store    Store
	sessions sessionRegistry

	mu sync.Mutex
}

func NewGameKeeper(cfg *Config, store Store) *GameKeeper {
	return &GameKeeper{
		cfg:      cfg,
		store:    store,
		sessions: newSessionRegistry(cfg.sessionTTL),
	}
}

func (k *GameKeeper) load() (*Document, error) {
	return k.store.Load()
}

func (k *GameKeeper) persist(doc *Document) error {
	doc.LastUpdated = time.Now()
	doc.Version++

	return k.store.Save(doc)
}

func (k *GameKeeper) touchState(game *Game, state GameState) {
	game.State = state
	game.LastStateChange = time.Now()
}

// CreateGame validates the full setup and replaces any previous game.
// Upstream form validation is not trusted; everything is re-checked here.
func (k *GameKeeper) CreateGame(name string, participants, items, locations []string) (*Game, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("game name must not be empty")
	}
	if len(participants) == 0 {
		return nil, validationErrorf("at least one participant is required")
	}
	if len(items) == 0 {
		return nil, validationErrorf("at least one item is required")
	}
	if len(locations) == 0 {
		return nil, validationErrorf("at least one location is required")
	}
	if len(items) < len(participants) {
		return nil, validationErrorf("need at least %d items for %d participants, have %d",
			len(participants), len(participants), len(items))
	}
	if len(locations) < len(participants) {
		return nil, validationErrorf("need at least %d locations for %d participants, have %d",
			len(participants), len(participants), len(locations))
	}

	seen := make(map[string]bool, len(participants))
	normalized := make([]Participant, 0, len(participants))
	for _, raw := range participants {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, validationErrorf("participant names must not be blank")
		}
		folded := strings.ToLower(trimmed)
		if seen[folded] {
			return nil, validationErrorf("duplicate participant name %q", trimmed)
		}
		seen[folded] = true
		normalized = append(normalized, Participant{Name: trimmed})
	}

	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return nil, validationErrorf("items must not be blank")
		}
	}
	for _, location := range locations {
		if strings.TrimSpace(location) == "" {
			return nil, validationErrorf("locations must not be blank")
		}
	}

	doc, err := k.load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	game := &Game{
		ID:              uuid.NewString(),
		Name:            name,
		State:           StateSetup,
		Participants:    normalized,
		Items:           append([]string(nil), items...),
		Locations:       append([]string(nil), locations...),
		CreatedAt:       now,
		LastStateChange: now,
	}

	doc.CurrentGame = game
	if err := k.persist(doc); err != nil {
		return nil, err
	}

	logf(k.cfg, "GAMES: Created game %q with %d participants", name, len(normalized))

	return game, nil
}

// StartGame opens the game for joining: setup becomes ready.
func (k *GameKeeper) StartGame() (*Game, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}
	if doc.CurrentGame.State != StateSetup {
		return nil, validationErrorf("game is %s, only a game in setup can be started", doc.CurrentGame.State)
	}

	k.touchState(doc.CurrentGame, StateReady)
	if err := k.persist(doc); err != nil {
		return nil, err
	}

	logf(k.cfg, "GAMES: Game %q is ready for players", doc.CurrentGame.Name)

	return doc.CurrentGame, nil
}

// CanUserJoin reports whether a game exists and accepts new players.
func (k *GameKeeper) CanUserJoin() (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return false, err
	}

	return doc.CurrentGame != nil && doc.CurrentGame.State == StateReady, nil
}

// IsGameInProgress reports whether assignments are underway or committed.
func (k *GameKeeper) IsGameInProgress() (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return false, err
	}

	return doc.CurrentGame != nil &&
		(doc.CurrentGame.State == StateInProgress || doc.CurrentGame.State == StateAssigned), nil
}

// Game returns the current game, or a NotFoundError when none exists.
func (k *GameKeeper) Game() (*Game, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}

	return doc.CurrentGame, nil
}

// AssignPlayerToUser claims a character slot for an alias and creates the
// backing session. Live sessions are the authority on whether a slot is
// taken; expired ones are swept first so stale claims do not block anyone.
func (k *GameKeeper) AssignPlayerToUser(playerName, userName string) (*Participant, *Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if strings.TrimSpace(userName) == "" {
		return nil, nil, validationErrorf("user name must not be empty")
	}

	doc, err := k.load()
	if err != nil {
		return nil, nil, err
	}
	if doc.CurrentGame == nil {
		return nil, nil, &NotFoundError{Kind: "game"}
	}

	k.sessions.sweepExpired(doc)

	participant := doc.CurrentGame.participant(playerName)
	if participant == nil {
		return nil, nil, &NotFoundError{Kind: "participant", Name: playerName}
	}
	if k.sessions.isPlayerTaken(doc, playerName) {
		return nil, nil, &AlreadyTakenError{PlayerName: playerName}
	}
	if participant.Assigned {
		return nil, nil, &AlreadyTakenError{PlayerName: playerName}
	}

	session := k.sessions.create(doc, userName, playerName)

	now := time.Now()
	participant.UserName = session.UserName
	participant.JoinedAt = &now

	if err := k.persist(doc); err != nil {
		return nil, nil, err
	}

	logf(k.cfg, "GAMES: %q claimed character %q", maskUserName(session.UserName), playerName)

	return participant, session, nil
}

// BeginAssignments marks the game in progress. Advisory bookkeeping, not
// a lock.
func (k *GameKeeper) BeginAssignments() (*Game, error) {
	return k.transition(StateInProgress)
}

// CompleteAssignments marks the assignment phase done.
func (k *GameKeeper) CompleteAssignments() (*Game, error) {
	return k.transition(StateAssigned)
}

func (k *GameKeeper) transition(state GameState) (*Game, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}

	k.touchState(doc.CurrentGame, state)
	if err := k.persist(doc); err != nil {
		return nil, err
	}

	return doc.CurrentGame, nil
}

// PerformRandomAssignments runs the engine over the joined, unassigned
// participants and commits the results atomically with the state change.
// On any engine error nothing is persisted.
func (k *GameKeeper) PerformRandomAssignments() (*Game, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}

	game := doc.CurrentGame
	k.touchState(game, StateInProgress)

	results, err := randomAssignments(game.Participants, game.Items, game.Locations)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		participant := game.participant(result.PlayerName)
		assignedAt := result.AssignedAt
		participant.AssignedItem = result.Item
		participant.AssignedLocation = result.Location
		participant.Assigned = true
		participant.AssignedAt = &assignedAt
	}

	k.touchState(game, StateAssigned)
	if err := k.persist(doc); err != nil {
		return nil, err
	}

	logf(k.cfg, "GAMES: Committed %d assignments for game %q", len(results), game.Name)

	return game, nil
}

// ResetGame discards the game and every session. Idempotent.
func (k *GameKeeper) ResetGame() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return err
	}

	doc.CurrentGame = nil
	k.sessions.revokeAll(doc)

	if err := k.persist(doc); err != nil {
		return err
	}

	logf(k.cfg, "GAMES: Game reset")

	return nil
}

// GameStats summarizes the game for the administrator dashboard.
func (k *GameKeeper) GameStats() (*GameStats, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}

	if k.sessions.sweepExpired(doc) > 0 {
		if err := k.persist(doc); err != nil {
			return nil, err
		}
	}

	game := doc.CurrentGame
	joined := k.sessions.activeCount(doc)
	assigned := 0
	for _, p := range game.Participants {
		if p.Assigned {
			assigned++
		}
	}

	return &GameStats{
		TotalPlayers:     len(game.Participants),
		JoinedPlayers:    joined,
		AssignedPlayers:  assigned,
		AvailablePlayers: len(game.Participants) - joined,
		State:            game.State,
	}, nil
}

// AvailableParticipants lists slots not claimed by any live session.
func (k *GameKeeper) AvailableParticipants() ([]Participant, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}

	if k.sessions.sweepExpired(doc) > 0 {
		if err := k.persist(doc); err != nil {
			return nil, err
		}
	}

	taken := make(map[string]bool)
	for _, session := range doc.ActiveSessions {
		if session.IsActive {
			taken[session.PlayerName] = true
		}
	}

	available := make([]Participant, 0, len(doc.CurrentGame.Participants))
	for _, p := range doc.CurrentGame.Participants {
		if !taken[p.Name] {
			available = append(available, p)
		}
	}

	return available, nil
}

// ConnectedPlayers lists live sessions for the administrator, aliases
// masked.
func (k *GameKeeper) ConnectedPlayers() ([]ConnectedPlayer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}

	return k.sessions.connected(doc), nil
}

// CurrentSession resolves a session id, refreshing its activity clock.
func (k *GameKeeper) CurrentSession(sessionID string) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}

	k.sessions.sweepExpired(doc)

	session := k.sessions.current(doc, sessionID)
	if session == nil {
		return nil, &NotFoundError{Kind: "session"}
	}

	if err := k.persist(doc); err != nil {
		return nil, err
	}

	return session, nil
}

// Logout ends a session. The participant's userName binding survives until
// the game is reset.
func (k *GameKeeper) Logout(sessionID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return err
	}

	if !k.sessions.logout(doc, sessionID) {
		return &NotFoundError{Kind: "session"}
	}

	return k.persist(doc)
}

// UserAssignment returns the calling session's own committed assignment.
func (k *GameKeeper) UserAssignment(sessionID string) (*Participant, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}

	session := k.sessions.current(doc, sessionID)
	if session == nil {
		return nil, &NotFoundError{Kind: "session"}
	}
	if doc.CurrentGame == nil {
		return nil, &NotFoundError{Kind: "game"}
	}

	participant := doc.CurrentGame.participant(session.PlayerName)
	if participant == nil || !participant.Assigned {
		return nil, &NotFoundError{Kind: "assignment", Name: session.PlayerName}
	}

	if err := k.persist(doc); err != nil {
		return nil, err
	}

	return participant, nil
}

// CleanupExpiredSessions sweeps the registry, persisting only when
// something was removed. Run by the periodic sweeper and safe to call from
// anywhere.
func (k *GameKeeper) CleanupExpiredSessions() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return 0, err
	}

	removed := k.sessions.sweepExpired(doc)
	if removed == 0 {
		return 0, nil
	}

	if err := k.persist(doc); err != nil {
		return removed, err
	}

	return removed, nil
}

// ForceLogoutAllUsers revokes every session. Open tabs discover this on
// their next poll.
func (k *GameKeeper) ForceLogoutAllUsers() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return 0, err
	}

	revoked := k.sessions.revokeAll(doc)
	if err := k.persist(doc); err != nil {
		return revoked, err
	}

	logf(k.cfg, "GAMES: Force-logged out %d sessions", revoked)

	return revoked, nil
}

// AddItem appends an item to the pool. Pools are only editable during
// setup.
func (k *GameKeeper) AddItem(item string) error {
	return k.editSetup(func(game *Game) error {
		item = strings.TrimSpace(item)
		if item == "" {
			return validationErrorf("item must not be blank")
		}
		game.Items = append(game.Items, item)
		return nil
	})
}

// RemoveItem removes one occurrence of an item from the pool.
func (k *GameKeeper) RemoveItem(item string) error {
	return k.editSetup(func(game *Game) error {
		for i, existing := range game.Items {
			if existing == item {
				game.Items = append(game.Items[:i], game.Items[i+1:]...)
				return nil
			}
		}
		return &NotFoundError{Kind: "item", Name: item}
	})
}

// AddLocation appends a location to the pool.
func (k *GameKeeper) AddLocation(location string) error {
	return k.editSetup(func(game *Game) error {
		location = strings.TrimSpace(location)
		if location == "" {
			return validationErrorf("location must not be blank")
		}
		game.Locations = append(game.Locations, location)
		return nil
	})
}

// RemoveLocation removes one occurrence of a location from the pool.
func (k *GameKeeper) RemoveLocation(location string) error {
	return k.editSetup(func(game *Game) error {
		for i, existing := range game.Locations {
			if existing == location {
				game.Locations = append(game.Locations[:i], game.Locations[i+1:]...)
				return nil
			}
		}
		return &NotFoundError{Kind: "location", Name: location}
	})
}

// AddParticipant registers another character slot during setup.
func (k *GameKeeper) AddParticipant(name string) error {
	return k.editSetup(func(game *Game) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return validationErrorf("participant name must not be blank")
		}
		for _, p := range game.Participants {
			if strings.EqualFold(p.Name, name) {
				return validationErrorf("duplicate participant name %q", name)
			}
		}
		game.Participants = append(game.Participants, Participant{Name: name})
		return nil
	})
}

// RemoveParticipant drops a character slot during setup.
func (k *GameKeeper) RemoveParticipant(name string) error {
	return k.editSetup(func(game *Game) error {
		for i, p := range game.Participants {
			if p.Name == name {
				game.Participants = append(game.Participants[:i], game.Participants[i+1:]...)
				return nil
			}
		}
		return &NotFoundError{Kind: "participant", Name: name}
	})
}

func (k *GameKeeper) editSetup(edit func(game *Game) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return err
	}
	if doc.CurrentGame == nil {
		return &NotFoundError{Kind: "game"}
	}
	if doc.CurrentGame.State != StateSetup {
		return validationErrorf("game is %s, pools can only be edited during setup", doc.CurrentGame.State)
	}

	if err := edit(doc.CurrentGame); err != nil {
		return err
	}

	return k.persist(doc)
}
