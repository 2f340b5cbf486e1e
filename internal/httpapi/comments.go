package httpapi

import (
	"net/http"

	"github.com/UkralStul/blog-forum-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

type createCommentRequest struct {
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parentCommentId"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeUnauthenticated(w)
		return
	}

	var req createCommentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment := &domain.Comment{
		PostID:   chi.URLParam(r, "id"),
		ParentID: req.ParentCommentID,
		AuthorID: actorID,
		Content:  req.Content,
	}
	created, err := h.store.CreateComment(r.Context(), comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getCommentTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.store.GetCommentTree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeUnauthenticated(w)
		return
	}
	if err := h.store.DeleteComment(r.Context(), chi.URLParam(r, "id"), actorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
