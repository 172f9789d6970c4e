package httpapi

import (
	"net/http"
	"strconv"
)

const defaultLessonLimit = 50

func (r *Router) handleListLessons(w http.ResponseWriter, req *http.Request) {
	limit := defaultLessonLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, 500)
	}

	lessons, err := r.svc.Lessons.ListLessons(req.Context(), limit)
	if err != nil {
		r.logger.Printf("lessons: list: %v", err)
		captureError(req, err, "list lessons failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lessons": lessons})
}

func (r *Router) handleGetLesson(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid lesson id")
		return
	}

	lesson, err := r.svc.Lessons.GetLesson(req.Context(), id)
	if err != nil {
		r.logger.Printf("lessons: get %d: %v", id, err)
		captureError(req, err, "get lesson failed")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if lesson == nil {
		writeError(w, http.StatusNotFound, msgLessonNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}
