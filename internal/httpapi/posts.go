package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/UkralStul/blog-forum-service/internal/domain"
	"github.com/UkralStul/blog-forum-service/internal/storage"

	"github.com/go-chi/chi/v5"
)

type createPostRequest struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Excerpt    string   `json:"excerpt"`
	CoverImage string   `json:"coverImage"`
	Status     string   `json:"status"`
	Category   string   `json:"category"`
}

type updatePostRequest struct {
	Title      *string      `json:"title"`
	Content    *string      `json:"content"`
	Tags       *domain.Tags `json:"tags"`
	Excerpt    *string      `json:"excerpt"`
	CoverImage *string      `json:"coverImage"`
	Status     *string      `json:"status"`
	Category   *string      `json:"category"`
	IsPinned   *bool        `json:"isPinned"`
	IsLocked   *bool        `json:"isLocked"`
}

type listPostsResponse struct {
	Posts []*domain.Post `json:"posts"`
	Total int64          `json:"total"`
}

func (h *Handler) createPost(kind domain.PostKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := actor(r)
		if actorID == "" {
			writeUnauthenticated(w)
			return
		}

		var req createPostRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}

		post := &domain.Post{
			Kind:       kind,
			Title:      req.Title,
			Content:    req.Content,
			Tags:       req.Tags,
			Excerpt:    req.Excerpt,
			CoverImage: req.CoverImage,
			Status:     req.Status,
			Category:   req.Category,
			AuthorID:   actorID,
		}
		created, err := h.store.CreatePost(r.Context(), post)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) listPosts(kind domain.PostKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := parseListArgs(r)
		if err != nil {
			writeError(w, err)
			return
		}

		filter := storage.PostFilter{}
		switch kind {
		case domain.PostKindArticle:
			// Анонимная выдача блога по умолчанию показывает опубликованное.
			filter.Status = r.URL.Query().Get("status")
			if filter.Status == "" {
				filter.Status = domain.StatusPublished
			}
		case domain.PostKindThread:
			filter.Category = r.URL.Query().Get("category")
		}

		posts, total, err := h.store.ListPosts(r.Context(), kind, args, filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listPostsResponse{Posts: posts, Total: total})
	}
}

// parseListArgs разбирает page/limit. Нечисловые значения - ошибка ввода,
// выход за нижнюю границу прижимается в Normalize.
func parseListArgs(r *http.Request) (storage.ListArgs, error) {
	args := storage.ListArgs{Page: 1, PageSize: 10}
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return args, fmt.Errorf("malformed page %q: %w", raw, domain.ErrInvalidInput)
		}
		args.Page = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return args, fmt.Errorf("malformed limit %q: %w", raw, domain.ErrInvalidInput)
		}
		args.PageSize = n
	}
	return args, nil
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeUnauthenticated(w)
		return
	}

	var req updatePostRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	upd := storage.PostUpdate{
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		Excerpt:    req.Excerpt,
		CoverImage: req.CoverImage,
		Status:     req.Status,
		Category:   req.Category,
		IsPinned:   req.IsPinned,
		IsLocked:   req.IsLocked,
	}
	post, err := h.store.UpdatePost(r.Context(), chi.URLParam(r, "id"), upd, actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	actorID := actor(r)
	if actorID == "" {
		writeUnauthenticated(w)
		return
	}
	if err := h.store.DeletePost(r.Context(), chi.URLParam(r, "id"), actorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.DistinctCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
