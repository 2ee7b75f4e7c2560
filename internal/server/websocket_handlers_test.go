package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sif/internal/retrieval"
)

// mockWebSocketConn records every frame written to it.
type mockWebSocketConn struct {
	sentMessages []sentMessage
}

type sentMessage struct {
	messageType int
	data        []byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.sentMessages = append(m.sentMessages, sentMessage{messageType: messageType, data: data})
	return nil
}

func (m *mockWebSocketConn) responses(t *testing.T) []WebSocketSearchResponse {
	t.Helper()
	out := make([]WebSocketSearchResponse, len(m.sentMessages))
	for i, msg := range m.sentMessages {
		assert.Equal(t, websocket.TextMessage, msg.messageType)
		require.NoError(t, json.Unmarshal(msg.data, &out[i]))
	}
	return out
}

func TestServer_HandleWebSocketMessage(t *testing.T) {
	engine := &fakeSearcher{}
	server := newTestServer(engine)
	conn := &mockWebSocketConn{}

	top := 1
	payload, err := json.Marshal(WebSocketSearchRequest{
		Image:    testImagePNG(t),
		Filename: "query.png",
		Route:    "logo",
		Top:      &top,
	})
	require.NoError(t, err)

	server.handleWebSocketMessage(conn, payload)

	frames := conn.responses(t)
	require.GreaterOrEqual(t, len(frames), 3, "start, progress and completion frames")

	first := frames[0]
	assert.Equal(t, "search_response", first.Type)
	assert.Equal(t, "processing", first.Status)
	require.NotEmpty(t, first.RequestID)

	last := frames[len(frames)-1]
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, first.RequestID, last.RequestID)
	require.NotNil(t, last.Result)
	assert.Equal(t, retrieval.RouteLogo, last.Result.Route)
	assert.Len(t, last.Result.Results, 1)
	assert.Equal(t, 3, last.Result.Total)

	// The final progress frame always reaches the client
	progress := frames[len(frames)-2]
	assert.Equal(t, "processing", progress.Status)
	assert.Equal(t, 3, progress.Current)
	assert.Equal(t, 3, progress.Total)
	assert.InDelta(t, 1.0, progress.Progress, 1e-9)

	assert.Equal(t, retrieval.RouteLogo, engine.lastForce)
}

func TestServer_HandleWebSocketMessageErrors(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		errorType string
		contains  string
	}{
		{name: "malformed json", payload: "{not json", errorType: "invalid_request", contains: "Failed to parse request"},
		{name: "missing image", payload: `{"route":"logo"}`, errorType: "invalid_request", contains: "no image data"},
		{name: "undecodable image", payload: `{"image":"aGVsbG8="}`, errorType: "invalid_request", contains: "invalid image format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&fakeSearcher{})
			conn := &mockWebSocketConn{}

			server.handleWebSocketMessage(conn, []byte(tt.payload))

			frames := conn.responses(t)
			require.Len(t, frames, 1)
			assert.Equal(t, "error", frames[0].Type)
			assert.Equal(t, "error", frames[0].Status)
			assert.Equal(t, tt.errorType, frames[0].ErrorType)
			assert.Contains(t, frames[0].Error, tt.contains)
		})
	}
}

func TestServer_HandleWebSocketMessageUnknownRoute(t *testing.T) {
	server := newTestServer(&fakeSearcher{})
	conn := &mockWebSocketConn{}

	payload, err := json.Marshal(WebSocketSearchRequest{Image: testImagePNG(t), Route: "face"})
	require.NoError(t, err)
	server.handleWebSocketMessage(conn, payload)

	frames := conn.responses(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "invalid_request", frames[0].ErrorType)
	assert.Contains(t, frames[0].Error, "face")
}

func TestServer_HandleWebSocketMessageEngineFailure(t *testing.T) {
	server := newTestServer(&fakeSearcher{err: errors.New("corpus exploded")})
	conn := &mockWebSocketConn{}

	payload, err := json.Marshal(WebSocketSearchRequest{Image: testImagePNG(t)})
	require.NoError(t, err)
	server.handleWebSocketMessage(conn, payload)

	frames := conn.responses(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "processing", frames[0].Status)
	assert.Equal(t, "processing_error", frames[1].ErrorType)
	assert.Contains(t, frames[1].Error, "corpus exploded")
	assert.Equal(t, frames[0].RequestID, frames[1].RequestID)
}

func TestServer_SendWebSocketError(t *testing.T) {
	server := newTestServer(&fakeSearcher{})
	conn := &mockWebSocketConn{}

	server.sendWebSocketError(conn, "42", "processing_error", "boom")

	frames := conn.responses(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "42", frames[0].RequestID)
	assert.Equal(t, "processing_error", frames[0].ErrorType)
	assert.Equal(t, "boom", frames[0].Error)
}

func TestServer_WebSocketEndToEnd(t *testing.T) {
	server := newTestServer(&fakeSearcher{})
	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/search"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	payload, err := json.Marshal(WebSocketSearchRequest{Image: testImagePNG(t), Filename: "query.png"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var frame WebSocketSearchResponse
		require.NoError(t, conn.ReadJSON(&frame))
		require.NotEqual(t, "error", frame.Status, frame.Error)
		if frame.Status == "completed" {
			require.NotNil(t, frame.Result)
			assert.Equal(t, "query.png", frame.Result.Query)
			assert.Len(t, frame.Result.Results, 2)
			return
		}
	}
}
