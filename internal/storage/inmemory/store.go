package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/blog-forum-service/internal/domain"
	"github.com/UkralStul/blog-forum-service/internal/storage"

	"github.com/google/uuid"
)

// likeKey - идентичность лайка: одна пара (пользователь, цель) - один факт.
type likeKey struct {
	userID     string
	targetType domain.LikeTarget
	targetID   string
}

// Store реализует интерфейс Storage в памяти. Все операции сериализуются
// мьютексом, поэтому дельты счетчиков здесь атомарны по построению.
// Наружу всегда отдаются копии записей: вызывающий код не должен видеть
// последующие мутации хранилища.
type Store struct {
	mu             sync.RWMutex
	posts          map[string]*domain.Post
	comments       map[string]*domain.Comment
	likes          map[likeKey]*domain.Like
	commentsByPost map[string][]string // map[postID][]commentID в порядке создания

	seq     int64            // монотонный счетчик создания
	postSeq map[string]int64 // порядок создания постов (разрешает ничьи CreatedAt)
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		posts:          make(map[string]*domain.Post),
		comments:       make(map[string]*domain.Comment),
		likes:          make(map[likeKey]*domain.Like),
		commentsByPost: make(map[string][]string),
		postSeq:        make(map[string]int64),
	}
}

func clonePost(p *domain.Post) *domain.Post {
	cp := *p
	cp.Tags = append(domain.Tags(nil), p.Tags...)
	if p.PublishedAt != nil {
		ts := *p.PublishedAt
		cp.PublishedAt = &ts
	}
	return &cp
}

func cloneComment(c *domain.Comment) *domain.Comment {
	cc := *c
	if c.ParentID != nil {
		id := *c.ParentID
		cc.ParentID = &id
	}
	cc.Replies = nil
	return &cc
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if err := validateNewPost(post); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post.ID = uuid.NewString()
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	s.seq++
	s.postSeq[post.ID] = s.seq
	s.posts[post.ID] = clonePost(post)
	return post, nil
}

// validateNewPost проверяет обязательные поля и проставляет умолчания варианта.
func validateNewPost(post *domain.Post) error {
	if strings.TrimSpace(post.Title) == "" {
		return fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(post.Content) == "" {
		return fmt.Errorf("content is required: %w", domain.ErrInvalidInput)
	}
	switch post.Kind {
	case domain.PostKindArticle:
		if post.Status == "" {
			post.Status = domain.StatusDraft
		}
		switch post.Status {
		case domain.StatusDraft, domain.StatusPublished, domain.StatusArchived:
		default:
			return fmt.Errorf("unknown status %q: %w", post.Status, domain.ErrInvalidInput)
		}
		if post.Status == domain.StatusPublished && post.PublishedAt == nil {
			now := time.Now().UTC()
			post.PublishedAt = &now
		}
	case domain.PostKindThread:
		if post.Category == "" {
			post.Category = domain.DefaultCategory
		}
	default:
		return fmt.Errorf("unknown post kind %q: %w", post.Kind, domain.ErrInvalidInput)
	}
	post.ViewCount, post.LikeCount, post.CommentCount = 0, 0, 0
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	// Чтение с побочным эффектом: инкремент под мьютексом не теряется
	// при параллельных читателях.
	post.ViewCount++
	return clonePost(post), nil
}

func (s *Store) ListPosts(ctx context.Context, kind domain.PostKind, args storage.ListArgs, filter storage.PostFilter) ([]*domain.Post, int64, error) {
	args = args.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if p.Kind != kind {
			continue
		}
		if kind == domain.PostKindArticle && filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if kind == domain.PostKindThread && filter.Category != "" && p.Category != filter.Category {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if kind == domain.PostKindThread && a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		return s.postSeq[a.ID] > s.postSeq[b.ID] // свежие первыми
	})

	total := int64(len(matched))
	start := args.Offset()
	if start >= len(matched) {
		return []*domain.Post{}, total, nil
	}
	end := start + args.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.Post, 0, end-start)
	for _, p := range matched[start:end] {
		page = append(page, clonePost(p))
	}
	return page, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd storage.PostUpdate, actorID string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	if post.AuthorID != actorID {
		return nil, fmt.Errorf("post %s belongs to another author: %w", id, domain.ErrForbidden)
	}

	if upd.Title != nil {
		if strings.TrimSpace(*upd.Title) == "" {
			return nil, fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
		}
		post.Title = *upd.Title
	}
	if upd.Content != nil {
		if strings.TrimSpace(*upd.Content) == "" {
			return nil, fmt.Errorf("content is required: %w", domain.ErrInvalidInput)
		}
		post.Content = *upd.Content
	}
	if upd.Excerpt != nil {
		post.Excerpt = *upd.Excerpt
	}
	if upd.CoverImage != nil {
		post.CoverImage = *upd.CoverImage
	}
	if upd.Tags != nil {
		post.Tags = append(domain.Tags(nil), (*upd.Tags)...)
	}
	if upd.Status != nil && post.Kind == domain.PostKindArticle {
		switch *upd.Status {
		case domain.StatusDraft, domain.StatusPublished, domain.StatusArchived:
		default:
			return nil, fmt.Errorf("unknown status %q: %w", *upd.Status, domain.ErrInvalidInput)
		}
		post.Status = *upd.Status
		if post.Status == domain.StatusPublished && post.PublishedAt == nil {
			now := time.Now().UTC()
			post.PublishedAt = &now
		}
	}
	if post.Kind == domain.PostKindThread {
		if upd.Category != nil && *upd.Category != "" {
			post.Category = *upd.Category
		}
		if upd.IsPinned != nil {
			post.IsPinned = *upd.IsPinned
		}
		if upd.IsLocked != nil {
			post.IsLocked = *upd.IsLocked
		}
	}
	post.UpdatedAt = time.Now().UTC()
	return clonePost(post), nil
}

func (s *Store) DeletePost(ctx context.Context, id string, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	if post.AuthorID != actorID {
		return fmt.Errorf("post %s belongs to another author: %w", id, domain.ErrForbidden)
	}

	// Каскад под одним захватом мьютекса: частичного удаления не бывает.
	for _, commentID := range s.commentsByPost[id] {
		for key := range s.likes {
			if key.targetType == domain.LikeTargetComment && key.targetID == commentID {
				delete(s.likes, key)
			}
		}
		delete(s.comments, commentID)
	}
	for key := range s.likes {
		if key.targetType == domain.LikeTargetPost && key.targetID == id {
			delete(s.likes, key)
		}
	}
	delete(s.commentsByPost, id)
	delete(s.postSeq, id)
	delete(s.posts, id)
	return nil
}

func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, p := range s.posts {
		if p.Kind != domain.PostKindThread {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if strings.TrimSpace(comment.Content) == "" {
		return nil, fmt.Errorf("comment content cannot be empty: %w", domain.ErrInvalidInput)
	}
	if len(comment.Content) > 2000 {
		return nil, fmt.Errorf("comment content is too long: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[comment.PostID]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", comment.PostID, domain.ErrNotFound)
	}
	if post.Kind == domain.PostKindThread && post.IsLocked {
		return nil, fmt.Errorf("thread %s is locked: %w", post.ID, domain.ErrForbidden)
	}

	if comment.ParentID != nil {
		parent, ok := s.comments[*comment.ParentID]
		if !ok {
			return nil, fmt.Errorf("parent comment %s: %w", *comment.ParentID, domain.ErrNotFound)
		}
		if parent.IsDeleted || parent.PostID != comment.PostID {
			return nil, fmt.Errorf("parent comment %s is not available under post %s: %w",
				parent.ID, comment.PostID, domain.ErrNotFound)
		}
	}

	comment.ID = uuid.NewString()
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	comment.LikeCount = 0
	comment.IsDeleted = false
	s.seq++
	comment.Seq = s.seq

	s.comments[comment.ID] = cloneComment(comment)
	s.commentsByPost[comment.PostID] = append(s.commentsByPost[comment.PostID], comment.ID)

	// Комментарий и дельта счетчика появляются в одном критическом участке.
	post.CommentCount++
	return comment, nil
}

func (s *Store) GetCommentTree(ctx context.Context, postID string) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return nil, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	// commentsByPost хранит идентификаторы в порядке создания,
	// так что и корни, и ответы получаются в хронологии без сортировки.
	roots := make([]*domain.Comment, 0)
	byID := make(map[string]*domain.Comment)
	for _, id := range s.commentsByPost[postID] {
		stored, ok := s.comments[id]
		if !ok {
			continue
		}
		c := cloneComment(stored)
		if c.IsDeleted {
			c.Content = domain.DeletedContentPlaceholder
		}
		byID[c.ID] = c
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		if parent, ok := byID[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, c)
		}
	}
	return roots, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if comment.AuthorID != actorID {
		return fmt.Errorf("comment %s belongs to another author: %w", id, domain.ErrForbidden)
	}
	if comment.IsDeleted {
		return nil
	}
	comment.IsDeleted = true
	comment.UpdatedAt = time.Now().UTC()
	return nil
}

// === Like Methods ===

func (s *Store) ToggleLike(ctx context.Context, target domain.LikeTarget, targetID, userID string) (bool, error) {
	if target != domain.LikeTargetPost && target != domain.LikeTargetComment {
		return false, fmt.Errorf("unknown like target %q: %w", target, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey{userID: userID, targetType: target, targetID: targetID}
	if _, exists := s.likes[key]; exists {
		delete(s.likes, key)
		return false, s.bumpLikeCount(target, targetID, -1)
	}

	// Цель обязана существовать до записи факта.
	if err := s.bumpLikeCount(target, targetID, +1); err != nil {
		return false, err
	}
	s.likes[key] = &domain.Like{
		ID:         uuid.NewString(),
		UserID:     userID,
		TargetType: target,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	return true, nil
}

func (s *Store) bumpLikeCount(target domain.LikeTarget, targetID string, delta int64) error {
	switch target {
	case domain.LikeTargetPost:
		post, ok := s.posts[targetID]
		if !ok {
			return fmt.Errorf("post %s: %w", targetID, domain.ErrNotFound)
		}
		post.LikeCount += delta
	case domain.LikeTargetComment:
		comment, ok := s.comments[targetID]
		if !ok {
			return fmt.Errorf("comment %s: %w", targetID, domain.ErrNotFound)
		}
		comment.LikeCount += delta
	}
	return nil
}

func (s *Store) HasLiked(ctx context.Context, target domain.LikeTarget, targetID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.likes[likeKey{userID: userID, targetType: target, targetID: targetID}]
	return ok, nil
}

// === Recount Methods ===

func (s *Store) ListPostIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.posts))
	for id := range s.posts {
		ids = append(ids, id)
	}
	return ids, nil
}

// RecountPost пересчитывает счетчики поста из фактических записей.
// Единственная операция, которой позволено перезаписать счетчик безусловно.
func (s *Store) RecountPost(ctx context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	var likeCount int64
	for key := range s.likes {
		if key.targetType == domain.LikeTargetPost && key.targetID == postID {
			likeCount++
		}
	}
	post.LikeCount = likeCount
	// Удаленные комментарии учитываются наравне с живыми: обычный путь
	// не декрементирует счетчик при мягком удалении.
	post.CommentCount = int64(len(s.commentsByPost[postID]))

	for _, commentID := range s.commentsByPost[postID] {
		comment, ok := s.comments[commentID]
		if !ok {
			continue
		}
		var n int64
		for key := range s.likes {
			if key.targetType == domain.LikeTargetComment && key.targetID == commentID {
				n++
			}
		}
		comment.LikeCount = n
	}
	return nil
}

// PurgeOrphanLikes выметает лайки, пережившие свою цель.
func (s *Store) PurgeOrphanLikes(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for key := range s.likes {
		var alive bool
		switch key.targetType {
		case domain.LikeTargetPost:
			_, alive = s.posts[key.targetID]
		case domain.LikeTargetComment:
			_, alive = s.comments[key.targetID]
		}
		if !alive {
			delete(s.likes, key)
			purged++
		}
	}
	return purged, nil
}
