package httpapi

import (
	"net/http"

	"github.com/UkralStul/blog-forum-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

type likeResponse struct {
	Liked bool `json:"liked"`
}

// toggleLike обслуживает и посты, и комментарии: цель различается
// только типом в журнале лайков.
func (h *Handler) toggleLike(target domain.LikeTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := actor(r)
		if actorID == "" {
			writeUnauthenticated(w)
			return
		}
		liked, err := h.store.ToggleLike(r.Context(), target, chi.URLParam(r, "id"), actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
	}
}

func (h *Handler) hasLiked(target domain.LikeTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := actor(r)
		if actorID == "" {
			writeUnauthenticated(w)
			return
		}
		liked, err := h.store.HasLiked(r.Context(), target, chi.URLParam(r, "id"), actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
	}
}
