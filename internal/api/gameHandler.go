package api

import (
	"net/http"

	"mafia-server/internal/core"
	"mafia-server/internal/entities"
)

type modeRequest struct {
	Mode entities.TownNamingMode `json:"mode"`
}

type townNameRequest struct {
	Name string `json:"name"`
}

type suggestionRequest struct {
	Suggestion string `json:"suggestion"`
}

type townVoteRequest struct {
	SuggestionID string `json:"suggestionId"`
}

type nightActionRequest struct {
	ActionType entities.ActionType `json:"actionType"`
	TargetID   string              `json:"targetId"`
	Data       map[string]string   `json:"data"`
}

type nominateRequest struct {
	TargetID string `json:"targetId"`
}

type voteRequest struct {
	Vote string `json:"vote"`
}

type advanceRequest struct {
	Phase entities.Phase `json:"phase"`
}

type connectionRequest struct {
	Status string `json:"status"`
}

// act decodes the body into req when given, runs fn as the caller and
// answers with the room as the caller now sees it.
func act[T any](s *Server, w http.ResponseWriter, r *http.Request, req *T, fn func(id string) error) {
	if req != nil {
		if err := decode(r, req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	id := identity(r)
	if err := fn(id.PlayerID); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.game.Snapshot(r.Context(), id.Room, id.PlayerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) GameHandler(w http.ResponseWriter, r *http.Request) {
	act[struct{}](s, w, r, nil, func(string) error { return nil })
}

func (s *Server) StartHandler(w http.ResponseWriter, r *http.Request) {
	act[struct{}](s, w, r, nil, func(player string) error {
		_, err := s.game.Start(r.Context(), identity(r).Room, player)
		return err
	})
}

func (s *Server) TownNamingModeHandler(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.SetTownNamingMode(r.Context(), identity(r).Room, player, req.Mode)
		return err
	})
}

func (s *Server) TownNameHandler(w http.ResponseWriter, r *http.Request) {
	var req townNameRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.SetTownName(r.Context(), identity(r).Room, player, req.Name)
		return err
	})
}

func (s *Server) SuggestTownNameHandler(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.SubmitTownName(r.Context(), identity(r).Room, player, req.Suggestion)
		return err
	})
}

func (s *Server) VoteTownNameHandler(w http.ResponseWriter, r *http.Request) {
	var req townVoteRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.VoteTownName(r.Context(), identity(r).Room, player, req.SuggestionID)
		return err
	})
}

func (s *Server) AcknowledgeRoleHandler(w http.ResponseWriter, r *http.Request) {
	act[struct{}](s, w, r, nil, func(player string) error {
		_, err := s.game.AcknowledgeRole(r.Context(), identity(r).Room, player)
		return err
	})
}

func (s *Server) StartGameplayHandler(w http.ResponseWriter, r *http.Request) {
	act[struct{}](s, w, r, nil, func(player string) error {
		_, err := s.game.StartGameplay(r.Context(), identity(r).Room, player)
		return err
	})
}

func (s *Server) NightActionHandler(w http.ResponseWriter, r *http.Request) {
	var req nightActionRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.SubmitNightAction(r.Context(), identity(r).Room, core.NightActionRequest{
			PlayerID:   player,
			ActionType: req.ActionType,
			TargetID:   req.TargetID,
			Data:       req.Data,
		})
		return err
	})
}

func (s *Server) NominateHandler(w http.ResponseWriter, r *http.Request) {
	var req nominateRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.Nominate(r.Context(), identity(r).Room, player, req.TargetID)
		return err
	})
}

func (s *Server) VoteHandler(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	act(s, w, r, &req, func(player string) error {
		_, err := s.game.CastVote(r.Context(), identity(r).Room, player, req.Vote)
		return err
	})
}

// AdvanceHandler is the time's up signal of a client timer. The phase in the
// body guards against advancing twice.
func (s *Server) AdvanceHandler(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	act(s, w, r, &req, func(string) error {
		_, err := s.game.TimeElapsed(r.Context(), identity(r).Room, req.Phase)
		return err
	})
}

func (s *Server) ConnectionHandler(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	act(s, w, r, &req, func(player string) error {
		return s.game.SetConnectionStatus(r.Context(), identity(r).Room, player, req.Status)
	})
}
