package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/UkralStul/blog-forum-service/internal/domain"
	"github.com/UkralStul/blog-forum-service/internal/storage"

	"github.com/go-chi/chi/v5"
)

// actorHeader несет идентификатор уже аутентифицированного актора.
// Проверку учетных данных выполняет внешний слой (gateway), ядро
// идентичность не разрешает.
const actorHeader = "X-User-Id"

// Handler - REST-граница над хранилищем. Вся логика консистентности
// живет в Storage, здесь только разбор запросов и коды ответов.
type Handler struct {
	store storage.Storage
}

// New создает новый обработчик поверх хранилища.
func New(store storage.Storage) *Handler {
	return &Handler{store: store}
}

// Routes собирает маршруты: /blog для статей, /forum для тем,
// /comments для операций над отдельными комментариями.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/blog", func(r chi.Router) {
		h.mountPostRoutes(r, domain.PostKindArticle)
	})
	r.Route("/forum", func(r chi.Router) {
		r.Get("/categories", h.getCategories)
		h.mountPostRoutes(r, domain.PostKindThread)
	})
	r.Route("/comments/{id}", func(r chi.Router) {
		r.Delete("/", h.deleteComment)
		r.Post("/like", h.toggleLike(domain.LikeTargetComment))
		r.Get("/like", h.hasLiked(domain.LikeTargetComment))
	})

	return r
}

func (h *Handler) mountPostRoutes(r chi.Router, kind domain.PostKind) {
	r.Post("/", h.createPost(kind))
	r.Get("/", h.listPosts(kind))
	r.Get("/{id}", h.getPost)
	r.Patch("/{id}", h.updatePost)
	r.Delete("/{id}", h.deletePost)
	r.Post("/{id}/comments", h.addComment)
	r.Get("/{id}/comments", h.getCommentTree)
	r.Post("/{id}/like", h.toggleLike(domain.LikeTargetPost))
	r.Get("/{id}/like", h.hasLiked(domain.LikeTargetPost))
}

// actor достает идентификатор актора из заголовка; пустая строка -
// анонимный запрос.
func actor(r *http.Request) string {
	return r.Header.Get(actorHeader)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отображает доменные ошибки в статус-коды.
// ErrConflict сюда в норме не доходит: журнал лайков гасит его сам.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", domain.ErrInvalidInput)
	}
	return nil
}
