package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"mafia-server/internal/core"
	"mafia-server/internal/entities"
)

var ws = websocket.Upgrader{
	// origins are checked by the CORS layer
	CheckOrigin: func(*http.Request) bool { return true },
}

// WsHandler serves the same commands as the REST routes over one socket.
// Every message gets exactly one answer carrying the caller's view.
func (s *Server) WsHandler(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	socket, err := ws.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer socket.Close()

	l := log.With().Str("room", id.Room).Str("player", id.PlayerID).Logger()
	ctx := context.WithoutCancel(r.Context())
	s.setConnection(ctx, id.Room, id.PlayerID, "online")
	defer s.setConnection(ctx, id.Room, id.PlayerID, "offline")

	for {
		mt, bytes, err := socket.ReadMessage()
		if err != nil {
			break
		}

		response := make(map[string]interface{})
		var msg map[string]interface{}
		if err := json.Unmarshal(bytes, &msg); err != nil {
			response["Error"] = core.Kind(core.ErrValidation)
			response["Message"] = "message is not a JSON object"
		} else {
			msgType := cast.ToString(msg["Type"])
			response["Type"] = msgType
			if err := s.dispatch(ctx, id.Room, id.PlayerID, msgType, msg); err != nil {
				response["Error"] = core.Kind(err)
				response["Message"] = err.Error()
			}
			if view, err := s.game.Snapshot(ctx, id.Room, id.PlayerID); err == nil {
				response["Game"] = view
			}
		}

		output, err := json.Marshal(response)
		if err != nil {
			l.Error().Err(err).Msg("encode websocket response")
			break
		}
		if err := socket.WriteMessage(mt, output); err != nil {
			break
		}
	}

	l.Debug().Msg("Conn destroyed")
}

func (s *Server) dispatch(ctx context.Context, room, player, msgType string, msg map[string]interface{}) error {
	var err error
	switch msgType {
	case "GetGame":
	case "Start":
		_, err = s.game.Start(ctx, room, player)
	case "SetTownNamingMode":
		mode := entities.TownNamingMode(cast.ToString(msg["Mode"]))
		_, err = s.game.SetTownNamingMode(ctx, room, player, mode)
	case "SetTownName":
		_, err = s.game.SetTownName(ctx, room, player, cast.ToString(msg["Name"]))
	case "SuggestTownName":
		_, err = s.game.SubmitTownName(ctx, room, player, cast.ToString(msg["Suggestion"]))
	case "VoteTownName":
		_, err = s.game.VoteTownName(ctx, room, player, cast.ToString(msg["SuggestionId"]))
	case "AcknowledgeRole":
		_, err = s.game.AcknowledgeRole(ctx, room, player)
	case "StartGameplay":
		_, err = s.game.StartGameplay(ctx, room, player)
	case "NightAction":
		_, err = s.game.SubmitNightAction(ctx, room, core.NightActionRequest{
			PlayerID:   player,
			ActionType: entities.ActionType(cast.ToString(msg["ActionType"])),
			TargetID:   cast.ToString(msg["TargetId"]),
			Data:       cast.ToStringMapString(msg["Data"]),
		})
	case "Nominate":
		_, err = s.game.Nominate(ctx, room, player, cast.ToString(msg["TargetId"]))
	case "Vote":
		_, err = s.game.CastVote(ctx, room, player, voteValue(msg["Vote"]))
	case "Advance":
		_, err = s.game.TimeElapsed(ctx, room, entities.Phase(cast.ToString(msg["Phase"])))
	default:
		err = fmt.Errorf("%w: unknown message type %q", core.ErrValidation, msgType)
	}
	return err
}

// voteValue accepts "yes"/"no" as well as booleans.
func voteValue(v interface{}) string {
	if b, ok := v.(bool); ok {
		if b {
			return core.VoteYes
		}
		return core.VoteNo
	}
	return cast.ToString(v)
}

func (s *Server) setConnection(ctx context.Context, room, player, status string) {
	if err := s.game.SetConnectionStatus(ctx, room, player, status); err != nil {
		log.Debug().Err(err).Str("room", room).Str("player", player).Msg("connection status")
	}
}
