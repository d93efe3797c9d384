package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"mafia-server/internal/auth"
	"mafia-server/internal/core"
	"mafia-server/internal/entities"
)

type CreateGameRequest struct {
	HostName       string                  `json:"hostName"`
	PlayerID       string                  `json:"playerId"`
	TownNamingMode entities.TownNamingMode `json:"townNamingMode"`
}

type JoinGameRequest struct {
	Name     string `json:"name"`
	PlayerID string `json:"playerId"`
}

// SessionResponse hands a player the token for every later request.
type SessionResponse struct {
	Code     string    `json:"code"`
	PlayerID string    `json:"playerId"`
	Token    string    `json:"token"`
	Game     core.View `json:"game"`
}

func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.game.CreateRoom(r.Context(), core.CreateRoomRequest{
		HostName: req.HostName,
		PlayerID: req.PlayerID,
		Mode:     req.TownNamingMode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sessionResponse(w, r, created)
}

func (s *Server) JoinGameHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinGameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	joined, err := s.game.Join(r.Context(), mux.Vars(r)["code"], req.PlayerID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sessionResponse(w, r, joined)
}

func (s *Server) sessionResponse(w http.ResponseWriter, r *http.Request, m core.Membership) {
	token, err := s.signer.GenerateToken(auth.Identity{Room: m.Room.Code, PlayerID: m.Player.PlayerID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.game.Snapshot(r.Context(), m.Room.Code, m.Player.PlayerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{
		Code:     m.Room.Code,
		PlayerID: m.Player.PlayerID,
		Token:    token,
		Game:     view,
	})
}
