package api

import "net/http"

// Categories handles GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteRequestError(w, methodNotAllowed("GET"))
		return
	}
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, err, "categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": categories})
}
