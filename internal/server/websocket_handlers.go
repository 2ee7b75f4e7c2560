package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/sif/internal/report"
	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// progressInterval throttles progress frames on large corpora.
const progressInterval = 100 * time.Millisecond

// WebSocketSearchRequest is a search request sent over WebSocket. Image is
// the encoded query file, base64 in JSON.
type WebSocketSearchRequest struct {
	Image        []byte `json:"image"`
	Filename     string `json:"filename,omitempty"`
	Route        string `json:"route,omitempty"`
	Top          *int   `json:"top,omitempty"`
	HintOverride bool   `json:"hint_override,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketSearchResponse is one frame of a streamed search.
type WebSocketSearchResponse struct {
	Type      string         `json:"type"`
	Status    string         `json:"status"` // "processing", "completed", "error"
	Progress  float64        `json:"progress,omitempty"`
	Current   int            `json:"current,omitempty"`
	Total     int            `json:"total,omitempty"`
	Result    *report.Report `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// searchWebSocketHandler handles WebSocket connections for streamed search.
func (s *Server) searchWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection
// until the client goes away.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	readTimeout := time.Duration(s.timeoutSec)*time.Second + 60*time.Second
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage runs one search and streams its progress.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var msg WebSocketSearchRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	top := ""
	if msg.Top != nil {
		top = strconv.Itoa(*msg.Top)
	}
	req, err := s.buildSearchRequest(msg.Filename, msg.Image, msg.Route, top, "", strconv.FormatBool(msg.HintOverride))
	if err != nil {
		searchRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketSearchResponse{
		Type:      "search_response",
		Status:    "processing",
		RequestID: requestID,
	})

	ctx, cancel := s.requestContext(context.Background())
	defer cancel()

	progress := retrieval.NewThrottledProgressCallback(
		&wsProgress{server: s, conn: conn, requestID: requestID},
		progressInterval,
	)

	start := time.Now()
	rep, err := s.runSearch(ctx, req, progress)
	duration := time.Since(start)

	if err != nil {
		searchRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("Search failed: %v", err))
		return
	}

	searchRequestsTotal.WithLabelValues("websocket", "success").Inc()
	searchDuration.WithLabelValues("websocket").Observe(duration.Seconds())

	s.sendWebSocketResponse(conn, WebSocketSearchResponse{
		Type:      "search_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    rep,
		RequestID: requestID,
	})
}

// wsProgress forwards corpus scan progress as processing frames.
type wsProgress struct {
	server    *Server
	conn      WebSocketConnWriter
	requestID string
}

func (p *wsProgress) OnStart(total int) {}

func (p *wsProgress) OnProgress(current, total int) {
	frac := 0.0
	if total > 0 {
		frac = float64(current) / float64(total)
	}
	p.server.sendWebSocketResponse(p.conn, WebSocketSearchResponse{
		Type:      "search_response",
		Status:    "processing",
		Progress:  frac,
		Current:   current,
		Total:     total,
		RequestID: p.requestID,
	})
}

func (p *wsProgress) OnComplete() {}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketSearchResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketSearchResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
