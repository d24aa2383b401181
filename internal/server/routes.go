package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ticket-to-ride-server/internal/ticket"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "ttr_token"

const maxBodyBytes = 64 << 10

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /board", s.boardHandler)

	mux.HandleFunc("GET /games", s.listGamesHandler)
	mux.HandleFunc("POST /games", s.createGameHandler)
	mux.HandleFunc("POST /games/{code}/join", s.joinGameHandler)
	mux.HandleFunc("PUT /games/{code}/player/ready", s.setReadyHandler)
	mux.HandleFunc("PUT /games/{code}/player/color", s.setColorHandler)
	mux.HandleFunc("PUT /games/{code}/player/name", s.setNameHandler)
	mux.HandleFunc("DELETE /games/{code}/player", s.leaveGameHandler)
	mux.HandleFunc("POST /games/{code}/start", s.startGameHandler)
	mux.HandleFunc("POST /games/{code}/actions", s.applyActionHandler)
	mux.HandleFunc("GET /games/{code}/state", s.stateHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(s.loggingMiddleware(s.rateLimitMiddleware(mux)))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]string{"status": "up", "database": "disabled"}
	if s.db != nil {
		stats = s.db.Health()
		stats["database"] = "enabled"
	}
	stats["games"] = strconv.Itoa(len(s.gameManager.Games()))
	stats["sessions"] = strconv.Itoa(s.sessionManager.Count())
	stats["connections"] = strconv.Itoa(s.connectionManager.Count())
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) boardHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.gameManager.Board())
}

func (s *Server) listGamesHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ListGamesResponse{Games: s.gameManager.ListGames()})
}

func (s *Server) createGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	game, session, err := s.gameManager.CreateGame(req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)
	s.saveSession(r.Context(), session)

	setTokenCookie(w, session.Token)
	s.writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (s *Server) joinGameHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	game, session, err := s.gameManager.JoinGame(r.PathValue("code"), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)
	s.saveSession(r.Context(), session)

	setTokenCookie(w, session.Token)
	s.writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *Server) setReadyHandler(w http.ResponseWriter, r *http.Request) {
	var req SetReadyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	game, allReady, err := s.gameManager.SetReady(r.PathValue("code"), requestToken(r), req.Ready)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)

	s.writeJSON(w, http.StatusOK, SetReadyResponse{Ready: req.Ready, AllReady: allReady})
}

func (s *Server) setColorHandler(w http.ResponseWriter, r *http.Request) {
	var req SetColorRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	game, err := s.gameManager.SetColor(r.PathValue("code"), requestToken(r), req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)
	s.writeState(w, r, game)
}

func (s *Server) setNameHandler(w http.ResponseWriter, r *http.Request) {
	var req SetNameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	token := requestToken(r)
	game, err := s.gameManager.SetName(r.PathValue("code"), token, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)
	if session, err := s.sessionManager.GetSession(token); err == nil {
		s.saveSession(r.Context(), session)
	}
	s.writeState(w, r, game)
}

func (s *Server) leaveGameHandler(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	game, err := s.gameManager.LeaveGame(r.PathValue("code"), token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.connectionManager.UnbindToken(token)
	s.deleteSession(r.Context(), token)
	s.saveGame(r.Context(), game)

	http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: "", Path: "/", MaxAge: -1})
	s.writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) startGameHandler(w http.ResponseWriter, r *http.Request) {
	game, err := s.gameManager.StartGame(r.PathValue("code"), requestToken(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)
	s.writeState(w, r, game)
}

func (s *Server) applyActionHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, ErrInvalidBody)
		return
	}
	action, err := ticket.DecodeAction(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	code, token := r.PathValue("code"), requestToken(r)
	game, entry, err := s.gameManager.ApplyAction(code, token, action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.saveGame(r.Context(), game)

	view, err := s.gameManager.Snapshot(code, token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ActionResponse{Entry: entry, State: view})
}

// stateHandler serves the requester's view, or the spectator view when no
// token is supplied.
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	code := NormalizeRoomCode(r.PathValue("code"))
	game, err := s.gameManager.GetGame(code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, r, game)
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, game *ActiveGame) {
	var (
		view ticket.View
		err  error
	)
	if token := requestToken(r); token != "" {
		view, err = s.gameManager.Snapshot(game.RoomCode, token)
	} else {
		view = game.Game.PublicSnapshot()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, StateResponse{
		RoomCode: game.RoomCode,
		Status:   statusOf(view.Phase),
		State:    view,
	})
}

func sessionResponse(session SessionInfo) SessionResponse {
	return SessionResponse{
		RoomCode: session.RoomCode,
		Token:    session.Token,
		PlayerID: session.PlayerID,
		Username: session.Username,
	}
}

// requestToken reads a bearer token, falling back to the session cookie.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return ErrInvalidBody
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, errorMessage(err))
}
