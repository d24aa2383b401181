package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"ticket-to-ride-server/internal/ticket"
)

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("Failed to open websocket", "error", err)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	s.logger.Debug("New connection", "connection", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)
	defer func() {
		s.connectionManager.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.logger.Debug("Connection closed", "connection", connectionID)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			s.logger.Debug("Connection read ended", "connection", connectionID, "error", err)
			return
		}
		s.connectionHealth.UpdateActivity(connectionID)

		if msgType != websocket.MessageText {
			s.logger.Debug("Non-text input", "connection", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(ctx, socket, ErrRateLimited)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ctx, socket, ErrInvalidBody)
			continue
		}
		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(ctx, socket, err)
			continue
		}

		s.logger.Debug("Message", "type", msg.Type, "connection", connectionID)
		s.handleMessage(ctx, socket, connectionID, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, socket *websocket.Conn, connectionID string, msg ClientMessage) {
	var (
		reply any
		kind  string
		err   error
	)

	switch msg.Type {
	case "ping":
		kind, reply = "pong", struct{}{}
	case "create_game":
		kind = "game_created"
		reply, err = s.handleCreateGame(ctx, connectionID, msg.Payload)
	case "join_game":
		kind = "game_joined"
		reply, err = s.handleJoinGame(ctx, connectionID, msg.Payload)
	case "reconnect":
		kind = "reconnected"
		reply, err = s.handleReconnect(ctx, connectionID, msg.Payload)
	case "set_ready":
		kind = "ready_set"
		reply, err = s.handleSetReady(ctx, connectionID, msg.Payload)
	case "set_color":
		kind = "state"
		reply, err = s.handleSetColor(ctx, connectionID, msg.Payload)
	case "set_name":
		kind = "state"
		reply, err = s.handleSetName(ctx, connectionID, msg.Payload)
	case "leave_game":
		kind = "left_game"
		reply, err = s.handleLeaveGame(ctx, connectionID)
	case "start_game":
		kind = "state"
		reply, err = s.handleStartGame(ctx, connectionID)
	case "apply_action":
		kind = "action_applied"
		reply, err = s.handleApplyAction(ctx, connectionID, msg.Payload)
	case "get_state":
		kind = "state"
		reply, err = s.handleGetState(connectionID)
	}

	if err != nil {
		s.sendError(ctx, socket, err)
		return
	}
	if err := s.sendMessage(ctx, socket, ServerMessage{Type: kind, Payload: reply}); err != nil {
		s.logger.Debug("Failed to send reply", "type", kind, "connection", connectionID, "error", err)
	}
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return ErrInvalidBody
	}
	return nil
}

// boundSession is the session attached to a connection by create, join or
// reconnect.
func (s *Server) boundSession(connectionID string) (SessionInfo, error) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		return SessionInfo{}, ErrMissingToken
	}
	return s.sessionManager.GetSession(token)
}

func (s *Server) handleCreateGame(ctx context.Context, connectionID string, payload json.RawMessage) (SessionResponse, error) {
	var req CreateGameRequest
	if err := decodePayload(payload, &req); err != nil {
		return SessionResponse{}, err
	}

	game, session, err := s.gameManager.CreateGame(req.Username)
	if err != nil {
		return SessionResponse{}, err
	}
	s.saveGame(ctx, game)
	s.saveSession(ctx, session)

	s.connectionManager.BindToken(connectionID, session.Token)
	return sessionResponse(session), nil
}

func (s *Server) handleJoinGame(ctx context.Context, connectionID string, payload json.RawMessage) (SessionResponse, error) {
	var req JoinGameRequest
	if err := decodePayload(payload, &req); err != nil {
		return SessionResponse{}, err
	}

	game, session, err := s.gameManager.JoinGame(req.RoomCode, req.Username)
	if err != nil {
		return SessionResponse{}, err
	}
	s.saveGame(ctx, game)
	s.saveSession(ctx, session)

	s.connectionManager.BindToken(connectionID, session.Token)
	return sessionResponse(session), nil
}

// handleReconnect moves a session onto this connection. A connection that
// held the session before is told so and closed.
func (s *Server) handleReconnect(ctx context.Context, connectionID string, payload json.RawMessage) (StateResponse, error) {
	var req ReconnectRequest
	if err := decodePayload(payload, &req); err != nil {
		return StateResponse{}, err
	}
	if req.Token == "" {
		return StateResponse{}, ErrMissingToken
	}

	game, session, err := s.gameManager.GetGameByToken(req.Token)
	if err != nil {
		return StateResponse{}, err
	}
	view, err := game.Game.Snapshot(session.PlayerID)
	if err != nil {
		return StateResponse{}, err
	}

	if previous := s.connectionManager.BindToken(connectionID, session.Token); previous != "" && previous != connectionID {
		if old := s.connectionManager.GetConnection(previous); old != nil {
			_ = s.sendMessage(ctx, old, ServerMessage{
				Type:    "disconnected_elsewhere",
				Payload: ErrorMessage{Code: "SESSION_MOVED", Message: "SESSION_MOVED: Session resumed on another connection"},
			})
			go old.Close(websocket.StatusPolicyViolation, "Session resumed elsewhere")
		}
	}

	s.logger.Info("Player reconnected", "room", game.RoomCode, "player", session.Username)
	return StateResponse{RoomCode: game.RoomCode, Status: statusOf(view.Phase), State: view}, nil
}

func (s *Server) handleSetReady(ctx context.Context, connectionID string, payload json.RawMessage) (SetReadyResponse, error) {
	var req SetReadyRequest
	if err := decodePayload(payload, &req); err != nil {
		return SetReadyResponse{}, err
	}
	session, err := s.boundSession(connectionID)
	if err != nil {
		return SetReadyResponse{}, err
	}

	game, allReady, err := s.gameManager.SetReady(session.RoomCode, session.Token, req.Ready)
	if err != nil {
		return SetReadyResponse{}, err
	}
	s.saveGame(ctx, game)
	return SetReadyResponse{Ready: req.Ready, AllReady: allReady}, nil
}

func (s *Server) handleSetColor(ctx context.Context, connectionID string, payload json.RawMessage) (StateResponse, error) {
	var req SetColorRequest
	if err := decodePayload(payload, &req); err != nil {
		return StateResponse{}, err
	}
	session, err := s.boundSession(connectionID)
	if err != nil {
		return StateResponse{}, err
	}

	game, err := s.gameManager.SetColor(session.RoomCode, session.Token, req.Color)
	if err != nil {
		return StateResponse{}, err
	}
	s.saveGame(ctx, game)
	return s.stateFor(session)
}

func (s *Server) handleSetName(ctx context.Context, connectionID string, payload json.RawMessage) (StateResponse, error) {
	var req SetNameRequest
	if err := decodePayload(payload, &req); err != nil {
		return StateResponse{}, err
	}
	session, err := s.boundSession(connectionID)
	if err != nil {
		return StateResponse{}, err
	}

	game, err := s.gameManager.SetName(session.RoomCode, session.Token, req.Name)
	if err != nil {
		return StateResponse{}, err
	}
	s.saveGame(ctx, game)
	if updated, err := s.sessionManager.GetSession(session.Token); err == nil {
		s.saveSession(ctx, updated)
	}
	return s.stateFor(session)
}

func (s *Server) handleLeaveGame(ctx context.Context, connectionID string) (OKResponse, error) {
	session, err := s.boundSession(connectionID)
	if err != nil {
		return OKResponse{}, err
	}

	game, err := s.gameManager.LeaveGame(session.RoomCode, session.Token)
	if err != nil {
		return OKResponse{}, err
	}
	s.connectionManager.UnbindToken(session.Token)
	s.deleteSession(ctx, session.Token)
	s.saveGame(ctx, game)
	return OKResponse{OK: true}, nil
}

func (s *Server) handleStartGame(ctx context.Context, connectionID string) (StateResponse, error) {
	session, err := s.boundSession(connectionID)
	if err != nil {
		return StateResponse{}, err
	}

	game, err := s.gameManager.StartGame(session.RoomCode, session.Token)
	if err != nil {
		return StateResponse{}, err
	}
	s.saveGame(ctx, game)
	return s.stateFor(session)
}

func (s *Server) handleApplyAction(ctx context.Context, connectionID string, payload json.RawMessage) (ActionResponse, error) {
	session, err := s.boundSession(connectionID)
	if err != nil {
		return ActionResponse{}, err
	}
	action, err := ticket.DecodeAction(payload)
	if err != nil {
		return ActionResponse{}, err
	}

	game, entry, err := s.gameManager.ApplyAction(session.RoomCode, session.Token, action)
	if err != nil {
		return ActionResponse{}, err
	}
	s.saveGame(ctx, game)

	view, err := s.gameManager.Snapshot(session.RoomCode, session.Token)
	if err != nil {
		return ActionResponse{}, err
	}
	return ActionResponse{Entry: entry, State: view}, nil
}

func (s *Server) handleGetState(connectionID string) (StateResponse, error) {
	session, err := s.boundSession(connectionID)
	if err != nil {
		return StateResponse{}, err
	}
	return s.stateFor(session)
}

func (s *Server) stateFor(session SessionInfo) (StateResponse, error) {
	view, err := s.gameManager.Snapshot(session.RoomCode, session.Token)
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{RoomCode: session.RoomCode, Status: statusOf(view.Phase), State: view}, nil
}

func (s *Server) sendMessage(ctx context.Context, socket *websocket.Conn, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(ctx context.Context, socket *websocket.Conn, err error) {
	var invariantErr *ticket.InvariantError
	if errors.As(err, &invariantErr) || errorCode(err) == "INTERNAL_ERROR" {
		s.logger.Error("Websocket request failed", "error", err)
	}
	if sendErr := s.sendMessage(ctx, socket, ServerMessage{Type: "error", Payload: errorMessage(err)}); sendErr != nil {
		s.logger.Debug("Failed to send error message", "error", sendErr)
	}
}
