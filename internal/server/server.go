package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/database"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = time.Minute
)

type Server struct {
	cfg                *Config
	db                 database.Service
	connectionManager  *ConnectionManager
	gameManager        *GameManager
	sessionManager     *SessionManager
	persistenceManager *PersistenceManager
	rateLimiter        *RateLimiter
	connectionHealth   *ConnectionHealth
	logger             *log.Logger
	clock              quartz.Clock
}

// Options wires a Server. DB is optional; without it games live in memory
// only.
type Options struct {
	Config *Config
	Board  *board.Board
	DB     database.Service
	Logger *log.Logger
	Clock  quartz.Clock
}

// New builds a server and, when a database is configured, restores the
// games and sessions it holds.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	sessions := NewSessionManager()
	s := &Server{
		cfg:               cfg,
		db:                opts.DB,
		connectionManager: NewConnectionManager(),
		gameManager: NewGameManager(GameManagerConfig{
			Board:       opts.Board,
			Rules:       cfg.GameRules(),
			LobbyExpiry: cfg.LobbyExpiry(),
		}, sessions, logger, clock),
		sessionManager:   sessions,
		rateLimiter:      NewRateLimiter(cfg.Limits.RequestsPerSecond, time.Second, clock),
		connectionHealth: NewConnectionHealth(clock),
		logger:           logger.WithPrefix("server"),
		clock:            clock,
	}

	if opts.DB != nil {
		s.persistenceManager = NewPersistenceManager(opts.DB.Pool(), logger)
		if err := s.loadPersistedState(ctx); err != nil {
			// An unreadable store leaves the registry empty.
			s.logger.Warn("Failed to load persisted state", "error", err)
		}
	}

	return s, nil
}

func (s *Server) loadPersistedState(ctx context.Context) error {
	games, err := s.persistenceManager.LoadAllActiveGames(ctx, s.gameManager.Board())
	if err != nil {
		return fmt.Errorf("failed to load games: %w", err)
	}

	usedCodes, err := s.persistenceManager.LoadUsedRoomCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load room codes: %w", err)
	}

	sessions, err := s.persistenceManager.LoadAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	s.gameManager.Restore(games, usedCodes, sessions)
	return nil
}

// Run serves HTTP and the background tasks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.ServerAddress(),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Listening", "addr", httpServer.Addr, "board", s.gameManager.Board().Name(), "persistence", s.persistenceManager != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.every(ctx, sweepInterval, "sweep", s.sweep)
	})
	g.Go(func() error {
		return s.every(ctx, sweepInterval, "expire", s.expireLobbies)
	})
	g.Go(func() error {
		return s.every(ctx, s.cfg.CleanupInterval(), "cleanup", s.cleanup)
	})
	if s.persistenceManager != nil {
		g.Go(func() error {
			return s.every(ctx, s.cfg.SaveInterval(), "save", s.saveAll)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		s.Shutdown(shutdownCtx)
		return err
	})

	return g.Wait()
}

// Shutdown closes websockets and saves every game.
func (s *Server) Shutdown(ctx context.Context) {
	closed := s.connectionManager.CloseAll("Server shutting down")
	s.logger.Info("Closed connections", "count", closed)
	if s.persistenceManager != nil {
		s.saveAll(ctx)
	}
}

func (s *Server) every(ctx context.Context, d time.Duration, tag string, task func(context.Context)) error {
	ticker := s.clock.NewTicker(d, tag)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			task(ctx)
		}
	}
}

// saveAll catches state changes that were not saved on the request path.
func (s *Server) saveAll(ctx context.Context) {
	saved := 0
	for _, game := range s.gameManager.Games() {
		if err := s.persistenceManager.SaveGame(ctx, game); err != nil {
			s.logger.Error("Periodic save failed", "room", game.RoomCode, "error", err)
			continue
		}
		saved++
	}
	s.logger.Debug("Periodic save completed", "games", saved)
}

// cleanup removes finished games once the retention period has passed.
func (s *Server) cleanup(ctx context.Context) {
	retention := s.cfg.Retention()
	removed := s.gameManager.RemoveFinishedGames(retention)

	if s.persistenceManager == nil {
		return
	}
	deleted, err := s.persistenceManager.CleanupOldGames(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		s.logger.Error("Cleanup task failed", "error", err)
		return
	}
	if deleted > 0 || len(removed) > 0 {
		s.logger.Info("Cleanup task", "memory", len(removed), "database", deleted)
	}
}

func (s *Server) expireLobbies(ctx context.Context) {
	for _, code := range s.gameManager.ExpireLobbies() {
		if s.persistenceManager == nil {
			continue
		}
		if err := s.persistenceManager.DeleteGame(ctx, code); err != nil && !errors.Is(err, ErrRoomNotFound) {
			s.logger.Warn("Failed to delete expired lobby", "room", code, "error", err)
		}
	}
}

// sweep drops idle websockets and stale rate limiter entries.
func (s *Server) sweep(context.Context) {
	s.rateLimiter.Cleanup()

	for _, id := range s.connectionHealth.GetInactiveConnections(s.cfg.IdleTimeout()) {
		if conn := s.connectionManager.GetConnection(id); conn != nil {
			s.logger.Info("Closing idle connection", "connection", id)
			_ = conn.CloseNow()
		}
		s.connectionManager.RemoveConnection(id)
		s.connectionHealth.RemoveConnection(id)
		s.rateLimiter.RemoveConnection(id)
	}
}

func (s *Server) saveGame(ctx context.Context, game *ActiveGame) {
	if s.persistenceManager == nil {
		return
	}
	if err := s.persistenceManager.SaveGame(context.WithoutCancel(ctx), game); err != nil {
		s.logger.Error("Failed to save game", "room", game.RoomCode, "error", err)
	}
}

func (s *Server) saveSession(ctx context.Context, session SessionInfo) {
	if s.persistenceManager == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.persistenceManager.SaveRoomCode(ctx, session.RoomCode, true); err != nil {
		s.logger.Warn("Failed to reserve room code", "room", session.RoomCode, "error", err)
	}
	if err := s.persistenceManager.SaveSession(ctx, session); err != nil {
		s.logger.Error("Failed to save session", "room", session.RoomCode, "error", err)
	}
}

func (s *Server) deleteSession(ctx context.Context, token string) {
	if s.persistenceManager == nil {
		return
	}
	if err := s.persistenceManager.DeleteSession(context.WithoutCancel(ctx), token); err != nil {
		s.logger.Warn("Failed to delete session", "error", err)
	}
}
