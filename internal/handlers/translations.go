package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lehigh-university-libraries/panelator/internal/translation"
)

// HandleTranslations enqueues (POST), reports (GET) or deletes (DELETE) the
// translation of one chapter.
func (h *Handler) HandleTranslations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		req := chapterFromQuery(r)
		if err := req.validate(); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := req.chapter()
		h.writeJSON(w, map[string]any{
			"chapter_id": translation.ChapterID(c),
			"status":     h.manager.StatusOf(c),
		})
	case "POST":
		var req ChapterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := req.validate(); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		job, err := h.manager.Enqueue(req.chapter())
		if err != nil {
			h.writeError(w, "Failed to enqueue chapter: "+err.Error(), enqueueErrorCode(err))
			return
		}
		h.writeJSONStatus(w, http.StatusAccepted, viewOf(job))
	case "DELETE":
		req := chapterFromQuery(r)
		if err := req.validate(); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.manager.DeleteTranslation(req.chapter()); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleResult returns the persisted result of a chapter.
func (h *Handler) HandleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req := chapterFromQuery(r)
	if err := req.validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.manager.Result(req.chapter())
	if err != nil {
		h.writeError(w, "Failed to read result: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(result) == 0 {
		h.writeError(w, "Translation not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, result)
}
