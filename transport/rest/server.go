package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roomrelay/tictactoe-backend/internal/repository"
)

const shutdownTimeout = 5 * time.Second

type matchArchive interface {
	ListRecent(ctx context.Context, limit int) ([]repository.MatchRecord, error)
}

type Server struct {
	logger  *slog.Logger
	archive matchArchive
}

func New(logger *slog.Logger, archive matchArchive) *Server {
	return &Server{
		logger:  logger,
		archive: archive,
	}
}

func (that *Server) Start(ctx context.Context, port string) error {
	router := mux.NewRouter()
	router.HandleFunc("/ping", that.handlePing).Methods(http.MethodGet)
	router.HandleFunc("/status", that.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/matches/recent", that.handleRecentMatches).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
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
