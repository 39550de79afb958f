package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/biosig-match/eeg-dummy-firmware/eeg"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type TriggerRequest struct {
	Class byte `json:"class"`
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/status", s.handleStatus)
	s.router.HandleFunc("/api/device", s.handleDevice)
	s.router.HandleFunc("/api/stream/start", s.handleStreamStart)
	s.router.HandleFunc("/api/stream/stop", s.handleStreamStop)
	s.router.HandleFunc("/api/trigger", s.handleTrigger)
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleStatus reports the engine state machine snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// handleDevice reports the static montage the device advertises in its
// config packet.
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	channels := make([]map[string]interface{}, 0, eeg.ChannelCount)
	for _, e := range eeg.DefaultElectrodes {
		channels = append(channels, map[string]interface{}{
			"name": e.Name,
			"type": e.Type,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel_count":  eeg.ChannelCount,
		"sample_rate_hz": eeg.SampleRateHz,
		"channels":       channels,
	})
}

// handleStreamStart injects the start opcode, exactly as if the central had
// written it.
func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	s.engine.HandleCommand([]byte{eeg.CmdStartStreaming})
	writeJSON(w, http.StatusOK, map[string]string{"status": "requested"})
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	s.engine.HandleCommand([]byte{eeg.CmdStopStreaming})
	writeJSON(w, http.StatusOK, map[string]string{"status": "requested"})
}

// handleTrigger injects an evoked-response trigger. Class defaults to 1 when
// the body is empty, matching the wire command.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	req := TriggerRequest{Class: 1}
	if r.Body != nil {
		// A malformed body falls back to the default class, like the wire
		// protocol ignores malformed writes.
		json.NewDecoder(r.Body).Decode(&req)
	}
	s.engine.HandleCommand([]byte{eeg.CmdTriggerPulse, req.Class})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "triggered",
		"class":  req.Class,
	})
}

// handleWebSocket upgrades the connection and streams engine events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	id := s.wsHub.AddClient(conn)
	log.Printf("WebSocket client connected: %s", id)

	go func() {
		defer s.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				log.Printf("WebSocket client disconnected: %s", id)
				return
			}
		}
	}()
}
