package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	sessionHeader = "X-Session-Id"
	adminHeader   = "X-Admin-Key"
)

type apiMessage struct {
	Error string `json:"error"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes. Session
// lookups that miss read as 401 so clients know to discard their stored
// session id.
func writeError(cfg *Config, w http.ResponseWriter, err error) {
	var (
		validation   *ValidationError
		notFound     *NotFoundError
		alreadyTaken *AlreadyTakenError
		supply       *InsufficientSupplyError
		noCandidates *NoCandidatesError
	)

	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		if notFound.Kind == "session" {
			status = http.StatusUnauthorized
		} else {
			status = http.StatusNotFound
		}
	case errors.As(err, &alreadyTaken):
		status = http.StatusConflict
	case errors.As(err, &supply), errors.As(err, &noCandidates):
		status = http.StatusConflict
	}

	writeJSON(cfg, w, status, apiMessage{Error: err.Error()})
}

func readJSON(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return validationErrorf("malformed request body: %v", err)
	}
	return nil
}

// requireAdmin gates a handler behind the shared admin passcode. An empty
// configured passcode disables the whole admin surface.
func requireAdmin(cfg *Config, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if cfg.adminKey == "" || r.Header.Get(adminHeader) != cfg.adminKey {
			writeJSON(cfg, w, http.StatusForbidden, apiMessage{Error: "admin access denied"})
			return
		}
		next(w, r, p)
	}
}

type participantView struct {
	Name     string `json:"name"`
	Joined   bool   `json:"joined"`
	Assigned bool   `json:"assigned"`
}

type gameView struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	State           GameState         `json:"state"`
	CanJoin         bool              `json:"canJoin"`
	Participants    []participantView `json:"participants"`
	CreatedAt       time.Time         `json:"createdAt"`
	LastStateChange time.Time         `json:"lastStateChange"`
}

// serveGame is the public lifecycle view polled by participant tabs. It
// never exposes other players' assignments or aliases.
func serveGame(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		game, err := keeper.Game()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		view := gameView{
			ID:              game.ID,
			Name:            game.Name,
			State:           game.State,
			CanJoin:         game.State == StateReady,
			Participants:    make([]participantView, 0, len(game.Participants)),
			CreatedAt:       game.CreatedAt,
			LastStateChange: game.LastStateChange,
		}
		for _, p := range game.Participants {
			view.Participants = append(view.Participants, participantView{
				Name:     p.Name,
				Joined:   p.UserName != "",
				Assigned: p.Assigned,
			})
		}

		writeJSON(cfg, w, http.StatusOK, view)
	}
}

func serveAvailableParticipants(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		available, err := keeper.AvailableParticipants()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		names := make([]string, 0, len(available))
		for _, p := range available {
			names = append(names, p.Name)
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{"available": names})
	}
}

type joinRequest struct {
	UserName   string `json:"userName"`
	PlayerName string `json:"playerName"`
}

type joinResponse struct {
	Session     *Session     `json:"session"`
	Participant *Participant `json:"participant"`
}

// serveJoin claims a character slot. The returned session id is the
// client's credential; tabs keep it in sessionStorage so each tab holds
// its own session.
func serveJoin(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req joinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(cfg, w, err)
			return
		}

		canJoin, err := keeper.CanUserJoin()
		if err != nil {
			writeError(cfg, w, err)
			return
		}
		if !canJoin {
			writeError(cfg, w, validationErrorf("the game is not accepting players right now"))
			return
		}

		participant, session, err := keeper.AssignPlayerToUser(req.PlayerName, req.UserName)
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusCreated, joinResponse{
			Session:     session,
			Participant: participant,
		})
	}
}

func serveSession(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		session, err := keeper.CurrentSession(r.Header.Get(sessionHeader))
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, session)
	}
}

func serveLogout(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := keeper.Logout(r.Header.Get(sessionHeader)); err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]string{"status": "logged out"})
	}
}

func serveAssignment(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		participant, err := keeper.UserAssignment(r.Header.Get(sessionHeader))
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, participant)
	}
}

type createGameRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
	Items        []string `json:"items"`
	Locations    []string `json:"locations"`
}

func serveCreateGame(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(cfg, w, err)
			return
		}

		game, err := keeper.CreateGame(req.Name, req.Participants, req.Items, req.Locations)
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusCreated, game)
	}
}

func serveStartGame(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		game, err := keeper.StartGame()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, game)
	}
}

func servePerformAssignments(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		game, err := keeper.PerformRandomAssignments()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, game)
	}
}

func serveResetGame(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := keeper.ResetGame(); err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

func serveStats(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		stats, err := keeper.GameStats()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, stats)
	}
}

func serveConnectedPlayers(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		players, err := keeper.ConnectedPlayers()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{"players": players})
	}
}

func serveForceLogoutAll(cfg *Config, keeper *GameKeeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		revoked, err := keeper.ForceLogoutAllUsers()
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]int{"revoked": revoked})
	}
}

type poolEntryRequest struct {
	Value string `json:"value"`
}

func servePoolAdd(cfg *Config, add func(string) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req poolEntryRequest
		if err := readJSON(r, &req); err != nil {
			writeError(cfg, w, err)
			return
		}

		if err := add(req.Value); err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusCreated, map[string]string{"status": "added"})
	}
}

func servePoolRemove(cfg *Config, param string, remove func(string) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := remove(p.ByName(param)); err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

func registerAPI(cfg *Config, keeper *GameKeeper, mux *httprouter.Router) {
	prefix := cfg.prefix

	// Participant surface, polled by player tabs.
	mux.GET(prefix+"/api/game", serveGame(cfg, keeper))
	mux.GET(prefix+"/api/participants/available", serveAvailableParticipants(cfg, keeper))
	mux.POST(prefix+"/api/join", serveJoin(cfg, keeper))
	mux.GET(prefix+"/api/session", serveSession(cfg, keeper))
	mux.POST(prefix+"/api/logout", serveLogout(cfg, keeper))
	mux.GET(prefix+"/api/assignment", serveAssignment(cfg, keeper))

	// Administrator surface, gated by the shared passcode.
	mux.POST(prefix+"/api/admin/game", requireAdmin(cfg, serveCreateGame(cfg, keeper)))
	mux.POST(prefix+"/api/admin/game/start", requireAdmin(cfg, serveStartGame(cfg, keeper)))
	mux.POST(prefix+"/api/admin/game/assign", requireAdmin(cfg, servePerformAssignments(cfg, keeper)))
	mux.POST(prefix+"/api/admin/game/reset", requireAdmin(cfg, serveResetGame(cfg, keeper)))
	mux.GET(prefix+"/api/admin/stats", requireAdmin(cfg, serveStats(cfg, keeper)))
	mux.GET(prefix+"/api/admin/players", requireAdmin(cfg, serveConnectedPlayers(cfg, keeper)))
	mux.POST(prefix+"/api/admin/logout-all", requireAdmin(cfg, serveForceLogoutAll(cfg, keeper)))

	mux.POST(prefix+"/api/admin/game/items", requireAdmin(cfg, servePoolAdd(cfg, keeper.AddItem)))
	mux.DELETE(prefix+"/api/admin/game/items/:item", requireAdmin(cfg, servePoolRemove(cfg, "item", keeper.RemoveItem)))
	mux.POST(prefix+"/api/admin/game/locations", requireAdmin(cfg, servePoolAdd(cfg, keeper.AddLocation)))
	mux.DELETE(prefix+"/api/admin/game/locations/:location", requireAdmin(cfg, servePoolRemove(cfg, "location", keeper.RemoveLocation)))
	mux.POST(prefix+"/api/admin/game/participants", requireAdmin(cfg, servePoolAdd(cfg, keeper.AddParticipant)))
	mux.DELETE(prefix+"/api/admin/game/participants/:participant", requireAdmin(cfg, servePoolRemove(cfg, "participant", keeper.RemoveParticipant)))
}
