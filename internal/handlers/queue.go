package handlers

import (
	"net/http"
	"strings"
)

// QueueView is the JSON shape of the queue.
type QueueView struct {
	Running bool      `json:"running"`
	Paused  bool      `json:"paused"`
	Jobs    []JobView `json:"jobs"`
	// Subscribers counts open status streams.
	Subscribers int `json:"subscribers"`
}

// HandleQueue serves the queue and its controls:
// GET and DELETE /api/queue, POST /api/queue/{start,pause,stop}.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/queue"), "/")

	switch {
	case action == "" && r.Method == "GET":
	case action == "" && r.Method == "DELETE":
		h.manager.ClearQueue()
	case action != "" && r.Method == "POST":
		switch action {
		case "start":
			h.manager.Start()
		case "pause":
			h.manager.Pause()
		case "stop":
			h.manager.Stop("")
		default:
			h.writeError(w, "Unknown queue action: "+action, http.StatusNotFound)
			return
		}
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.queueView())
}

func (h *Handler) queueView() QueueView {
	jobs := h.manager.Queue()
	view := QueueView{
		Running: h.manager.IsRunning(),
		Paused:  h.manager.IsPaused(),
		Jobs:    make([]JobView, 0, len(jobs)),

		Subscribers: h.manager.Subscribers(),
	}
	for _, j := range jobs {
		view.Jobs = append(view.Jobs, viewOf(j))
	}
	return view
}
