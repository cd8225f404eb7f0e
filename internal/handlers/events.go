package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HandleEvents streams job status changes as server-sent events. Jobs that
// are translating when the client connects are sent first.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range h.manager.Subscribe(r.Context()) {
		view := viewOf(ev.Job)
		view.Status = ev.State
		data, err := json.Marshal(view)
		if err != nil {
			h.log.Error("Unable to encode event", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
			h.log.Debug("Event client went away", "err", err)
			return
		}
		flusher.Flush()
	}
}
