package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"mafia-server/internal/auth"
	"mafia-server/internal/core"
)

type Options struct {
	RateLimit rate.Limit
	Burst     int
	// AllowedOrigins defaults to every origin.
	AllowedOrigins []string
}

// Server exposes the game controller over HTTP and websocket.
type Server struct {
	game    *core.Controller
	signer  *auth.Signer
	limiter *clientLimiter
	origins []string
}

func NewServer(game *core.Controller, signer *auth.Signer, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		game:    game,
		signer:  signer,
		limiter: newClientLimiter(opts.RateLimit, opts.Burst),
		origins: origins,
	}
}

// Router wires every route and the middleware chain.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)

	games := r.PathPrefix("/api/games").Subrouter()
	games.Use(s.limiter.middleware)
	games.HandleFunc("", s.CreateGameHandler).Methods(http.MethodPost)
	games.HandleFunc("/{code}/join", s.JoinGameHandler).Methods(http.MethodPost)

	player := games.PathPrefix("/{code}").Subrouter()
	player.Use(s.authenticate)
	player.HandleFunc("", s.GameHandler).Methods(http.MethodGet)
	player.HandleFunc("/ws", s.WsHandler).Methods(http.MethodGet)
	player.HandleFunc("/start", s.StartHandler).Methods(http.MethodPost)
	player.HandleFunc("/town-naming-mode", s.TownNamingModeHandler).Methods(http.MethodPost)
	player.HandleFunc("/town-name", s.TownNameHandler).Methods(http.MethodPost)
	player.HandleFunc("/town-name/suggestions", s.SuggestTownNameHandler).Methods(http.MethodPost)
	player.HandleFunc("/town-name/vote", s.VoteTownNameHandler).Methods(http.MethodPost)
	player.HandleFunc("/acknowledge-role", s.AcknowledgeRoleHandler).Methods(http.MethodPost)
	player.HandleFunc("/start-gameplay", s.StartGameplayHandler).Methods(http.MethodPost)
	player.HandleFunc("/night-action", s.NightActionHandler).Methods(http.MethodPost)
	player.HandleFunc("/nominate", s.NominateHandler).Methods(http.MethodPost)
	player.HandleFunc("/vote", s.VoteHandler).Methods(http.MethodPost)
	player.HandleFunc("/advance", s.AdvanceHandler).Methods(http.MethodPost)
	player.HandleFunc("/connection", s.ConnectionHandler).Methods(http.MethodPost)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = accessLog(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}), handlers.PrintRecoveryStack(false))(h)
	return h
}

// Serve listens on addr until ctx is done, then drains open requests.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
