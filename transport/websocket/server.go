package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomrelay/tictactoe-backend/internal/entity"
	"github.com/roomrelay/tictactoe-backend/internal/pkg"
	"github.com/roomrelay/tictactoe-backend/internal/service"
)

const shutdownTimeout = 5 * time.Second

type roomService interface {
	CreateRoom(ctx context.Context, playerID, requestedCode string) (room, abandoned *entity.Room, err error)
	JoinRoom(ctx context.Context, code, playerID string) (room, abandoned *entity.Room, err error)
	MakeTurn(ctx context.Context, playerID string, cell int) (*entity.Room, *entity.Player, error)
	LeaveRoom(ctx context.Context, playerID string) (*entity.Room, error)
}

type matchmakingService interface {
	Enqueue(ctx context.Context, connectionID string) (*service.PairResult, error)
	Cancel(ctx context.Context, connectionID string) error
}

// Server is the session gateway: the only component that talks to
// transport connections. It translates inbound intents into room and
// matchmaking calls and registry results into broadcasts.
type Server struct {
	logger *slog.Logger

	rooms       roomService
	matchmaking matchmakingService

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, c *client, msg *Message) error

	clients      map[string]*client
	clientsMutex sync.RWMutex
}

func New(logger *slog.Logger, rooms roomService, matchmaking matchmakingService) *Server {
	server := &Server{
		logger:      logger,
		rooms:       rooms,
		matchmaking: matchmaking,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]func(context.Context, *client, *Message) error),
		clients:  make(map[string]*client),
	}

	server.handlers[ActionCreateRoom] = server.handleCreateRoom
	server.handlers[ActionJoinRoom] = server.handleJoinRoom
	server.handlers[ActionMakeMove] = server.handleMakeMove
	server.handlers[ActionFindRandomMatch] = server.handleFindRandomMatch
	server.handlers[ActionCancelRandomMatch] = server.handleCancelRandomMatch
	server.handlers[ActionLeaveRoom] = server.handleLeaveRoom

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.ServeWS(ctx, w, r)
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeWS - upgrades the connection and pumps its intents until it drops.
func (that *Server) ServeWS(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeWS")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connected := &client{
		id:   pkg.NewConnectionID(),
		conn: conn,
	}

	that.clientsMutex.Lock()
	that.clients[connected.id] = connected
	that.clientsMutex.Unlock()

	log = log.With("connectionID", connected.id)
	log.Info("WebSocket connection established")

	defer func() {
		conn.Close()
		that.handleDisconnect(ctx, connected)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		that.processMessage(ctx, connected, &message)
	}
}

// processMessage dispatches one intent. A panic in a handler discards
// that intent only; the connection and every other room stay unaffected.
func (that *Server) processMessage(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "processMessage", "action", msg.Action, "connectionID", c.id)

	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered from panic in handler", "panic", r)
		}
	}()

	handler, ok := that.handlers[msg.Action]
	if !ok {
		if err := c.send(ActionError, "unknown action: "+msg.Action); err != nil {
			log.Error("failed to send error response", "error", err)
		}
		return
	}

	if err := handler(ctx, c, msg); err != nil {
		log.Error("error processing message", "error", err)
	}
}

func (that *Server) clientByID(connectionID string) (*client, bool) {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	c, ok := that.clients[connectionID]

	return c, ok
}

// broadcastToRoom delivers one event to exactly the connections seated in
// the room.
func (that *Server) broadcastToRoom(room *entity.Room, action string, payload any) {
	log := that.logger.With("method", "broadcastToRoom", "roomCode", room.Code, "action", action)

	for _, player := range room.Players {
		peer, ok := that.clientByID(player.ID)
		if !ok {
			log.Warn("connection not found for player", "playerID", player.ID)
			continue
		}

		if err := peer.send(action, payload); err != nil {
			log.Error("failed to send room update", "playerID", player.ID, "error", err)
		}
	}
}
