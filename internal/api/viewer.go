package api

import (
	"net/http"
	"strings"

	"cliptide/internal/models"
)

// IdentityHeader names the authenticated subject as asserted by the edge
// proxy after it has verified the identity provider's token. An absent or
// unknown subject means an anonymous viewer.
const IdentityHeader = "X-Identity-Subject"

func (h *Handler) viewer(r *http.Request) (models.User, bool, error) {
	subject := strings.TrimSpace(r.Header.Get(IdentityHeader))
	if subject == "" {
		return models.User{}, false, nil
	}
	return h.Store.UserByIdentity(r.Context(), subject)
}

// requireViewer resolves the viewer and writes a 401 when the request is
// anonymous. The boolean reports whether the caller may proceed.
func (h *Handler) requireViewer(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok, err := h.viewer(r)
	if err != nil {
		writeError(w, err, "viewer")
		return models.User{}, false
	}
	if !ok {
		WriteRequestError(w, unauthenticatedError())
		return models.User{}, false
	}
	return user, true
}
