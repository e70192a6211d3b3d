package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/voxworks/voxrelay/internal/observe"
	"github.com/voxworks/voxrelay/internal/resilience"
)

// synthesizeRequest is the JSON body accepted by the synthesis endpoints.
type synthesizeRequest struct {
	Text string `json:"text"`
}

// errorResponse is the JSON error body for the synthesis endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// handleSynthesize streams the synthesized audio as a chunked binary
// response. Zero frames (text that normalizes to nothing) yields an empty
// 200; exhaustion of all providers yields a 502.
func (a *App) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	ch, err := a.manager.Synthesize(r.Context(), req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, resilience.ErrAllProvidersFailed) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for frame := range ch {
		if _, err := w.Write(frame); err != nil {
			observe.Logger(r.Context()).Debug("client went away mid-stream", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleSynthesizeStream upgrades to a WebSocket, reads one JSON request, and
// sends each audio frame as a binary message. The connection closes normally
// after the last frame; provider exhaustion closes with an internal-error
// status.
func (a *App) handleSynthesizeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	_, payload, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var req synthesizeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "invalid JSON request")
		return
	}

	ch, err := a.manager.Synthesize(ctx, req.Text)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "synthesis failed")
		return
	}

	for frame := range ch {
		if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
			observe.Logger(ctx).Debug("websocket client went away mid-stream", "error", err)
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// handleProvidersHealth reports the live health snapshot of every provider.
func (a *App) handleProvidersHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(a.manager.Status()); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
