package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biosig-match/eeg-dummy-firmware/eeg"
	"github.com/biosig-match/eeg-dummy-firmware/utils"
)

// Server holds the dependencies for the HTTP monitoring server.
type Server struct {
	engine *eeg.Engine
	wsHub  *utils.WebSocketHub
	router *http.ServeMux
	addr   string
}

// NewServer creates a new Server instance.
func NewServer(engine *eeg.Engine, wsHub *utils.WebSocketHub, port int) *Server {
	s := &Server{
		engine: engine,
		wsHub:  wsHub,
		router: http.NewServeMux(),
		addr:   fmt.Sprintf(":%d", port),
	}
	s.registerRoutes()
	return s
}

// Start starts the HTTP server and blocks until a termination signal.
func (s *Server) Start() {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	go func() {
		log.Printf("Starting server on %s", s.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
