package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/blog-forum-service/internal/domain"
	"github.com/UkralStul/blog-forum-service/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
//
// Все дельты счетчиков выражены одним UPDATE вида `x = x + ?` -
// прочитать пост в память, поменять поле и сохранить целиком нельзя:
// параллельные обработчики затирали бы инкременты друг друга.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(&domain.Post{}, &domain.Comment{}, &domain.Like{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// notFound переводит gorm.ErrRecordNotFound в доменную ошибку.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if err := validateNewPost(post); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
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
	var post domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Инкремент просмотра и чтение в одной транзакции: инкремент
		// атомарный, поэтому параллельные читатели не теряют просмотры.
		res := tx.Model(&domain.Post{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
		}
		return tx.First(&post, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) ListPosts(ctx context.Context, kind domain.PostKind, args storage.ListArgs, filter storage.PostFilter) ([]*domain.Post, int64, error) {
	args = args.Normalize()

	q := s.db.WithContext(ctx).Model(&domain.Post{}).Where("kind = ?", kind)
	switch kind {
	case domain.PostKindArticle:
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
	case domain.PostKindThread:
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if kind == domain.PostKindThread {
		// Закрепленные темы всегда идут первыми.
		order = "is_pinned DESC, created_at DESC"
	}

	var posts []*domain.Post
	err := q.Order(order).Offset(args.Offset()).Limit(args.PageSize).Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *Store) UpdatePost(ctx context.Context, id string, upd storage.PostUpdate, actorID string) (*domain.Post, error) {
	var post domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&post, "id = ?", id).Error; err != nil {
			return notFound(err, "post "+id)
		}
		if post.AuthorID != actorID {
			return fmt.Errorf("post %s belongs to another author: %w", id, domain.ErrForbidden)
		}

		changes := map[string]any{}
		if upd.Title != nil {
			if strings.TrimSpace(*upd.Title) == "" {
				return fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
			}
			changes["title"] = *upd.Title
		}
		if upd.Content != nil {
			if strings.TrimSpace(*upd.Content) == "" {
				return fmt.Errorf("content is required: %w", domain.ErrInvalidInput)
			}
			changes["content"] = *upd.Content
		}
		if upd.Excerpt != nil {
			changes["excerpt"] = *upd.Excerpt
		}
		if upd.CoverImage != nil {
			changes["cover_image"] = *upd.CoverImage
		}
		if upd.Tags != nil {
			changes["tags"] = *upd.Tags
		}
		if upd.Status != nil && post.Kind == domain.PostKindArticle {
			switch *upd.Status {
			case domain.StatusDraft, domain.StatusPublished, domain.StatusArchived:
			default:
				return fmt.Errorf("unknown status %q: %w", *upd.Status, domain.ErrInvalidInput)
			}
			changes["status"] = *upd.Status
			// Первая публикация фиксирует момент.
			if *upd.Status == domain.StatusPublished && post.PublishedAt == nil {
				changes["published_at"] = time.Now().UTC()
			}
		}
		if post.Kind == domain.PostKindThread {
			if upd.Category != nil && *upd.Category != "" {
				changes["category"] = *upd.Category
			}
			if upd.IsPinned != nil {
				changes["is_pinned"] = *upd.IsPinned
			}
			if upd.IsLocked != nil {
				changes["is_locked"] = *upd.IsLocked
			}
		}
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(&post).Updates(changes).Error; err != nil {
			return err
		}
		return tx.First(&post, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) DeletePost(ctx context.Context, id string, actorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post domain.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&post, "id = ?", id).Error; err != nil {
			return notFound(err, "post "+id)
		}
		if post.AuthorID != actorID {
			return fmt.Errorf("post %s belongs to another author: %w", id, domain.ErrForbidden)
		}

		// Каскад строго по порядку: лайки комментариев -> лайки поста ->
		// комментарии -> пост. Либо все, либо ничего.
		//
		// Строки комментариев блокируются FOR UPDATE до удаления их лайков:
		// параллельный ToggleLike по комментарию трогает только строку
		// комментария, не пост, и без этой блокировки успел бы вставить
		// лайк между удалением лайков и удалением комментариев - осталась
		// бы строка лайка на мертвую цель. Под блокировкой его дельта
		// дождется конца каскада, попадет в ноль затронутых строк
		// и откатится вместе со вставкой.
		var commentIDs []string
		if err := tx.Model(&domain.Comment{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("post_id = ?", id).
			Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Where("target_type = ? AND target_id IN ?",
				domain.LikeTargetComment, commentIDs).Delete(&domain.Like{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("target_type = ? AND target_id = ?",
			domain.LikeTargetPost, id).Delete(&domain.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Post{}, "id = ?", id).Error
	})
}

func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).Model(&domain.Post{}).
		Where("kind = ?", domain.PostKindThread).
		Distinct().Pluck("category", &categories).Error
	if err != nil {
		return nil, err
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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post domain.Post
		if err := tx.Select("id", "kind", "is_locked").
			First(&post, "id = ?", comment.PostID).Error; err != nil {
			return notFound(err, "post "+comment.PostID)
		}
		if post.Kind == domain.PostKindThread && post.IsLocked {
			return fmt.Errorf("thread %s is locked: %w", post.ID, domain.ErrForbidden)
		}

		if comment.ParentID != nil {
			var parent domain.Comment
			if err := tx.First(&parent, "id = ?", *comment.ParentID).Error; err != nil {
				return notFound(err, "parent comment "+*comment.ParentID)
			}
			// Родитель должен быть живым и принадлежать тому же посту:
			// ответы нельзя подвешивать к чужому дереву.
			if parent.IsDeleted || parent.PostID != comment.PostID {
				return fmt.Errorf("parent comment %s is not available under post %s: %w",
					parent.ID, comment.PostID, domain.ErrNotFound)
			}
		}

		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		// Дельта счетчика в той же транзакции: комментарий без инкремента
		// (или наоборот) снаружи не наблюдаем.
		res := tx.Model(&domain.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("post %s: %w", comment.PostID, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) GetCommentTree(ctx context.Context, postID string) ([]*domain.Comment, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&domain.Post{}).
		Where("id = ?", postID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
	}

	// Все комментарии поста одним запросом; дерево собирается в памяти.
	// Порядок по seq - это точный порядок создания, без ничьих по времени.
	// Родитель всегда создан раньше ответа, поэтому к моменту привязки
	// он уже лежит в индексе.
	var comments []*domain.Comment
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("seq ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return assembleTree(comments), nil
}

// assembleTree группирует плоский, отсортированный по времени создания список
// в лес корневых комментариев с вложенными ответами.
func assembleTree(comments []*domain.Comment) []*domain.Comment {
	byID := make(map[string]*domain.Comment, len(comments))
	roots := make([]*domain.Comment, 0, len(comments))
	for _, c := range comments {
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
	return roots
}

func (s *Store) DeleteComment(ctx context.Context, id string, actorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment domain.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&comment, "id = ?", id).Error; err != nil {
			return notFound(err, "comment "+id)
		}
		if comment.AuthorID != actorID {
			return fmt.Errorf("comment %s belongs to another author: %w", id, domain.ErrForbidden)
		}
		if comment.IsDeleted {
			return nil
		}
		// Мягкое удаление: запись остается ради формы дерева,
		// comment_count поста не трогаем.
		return tx.Model(&comment).Update("is_deleted", true).Error
	})
}

// === Like Methods ===

func (s *Store) ToggleLike(ctx context.Context, target domain.LikeTarget, targetID, userID string) (bool, error) {
	if target != domain.LikeTargetPost && target != domain.LikeTargetComment {
		return false, fmt.Errorf("unknown like target %q: %w", target, domain.ErrInvalidInput)
	}

	var liked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND target_type = ? AND target_id = ?",
			userID, target, targetID).Delete(&domain.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return s.bumpLikeCount(tx, target, targetID, -1)
		}

		// Вставка с ON CONFLICT DO NOTHING: гонка двух одинаковых тогглов
		// разрешается базой. Проигравший не получает ошибку, а сходится
		// к ветке "лайк уже есть" без повторной дельты.
		like := domain.Like{UserID: userID, TargetType: target, TargetID: targetID}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if ins.Error != nil {
			return ins.Error
		}
		liked = true
		if ins.RowsAffected == 0 {
			return nil
		}
		return s.bumpLikeCount(tx, target, targetID, +1)
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

// bumpLikeCount применяет атомарную дельту к счетчику цели. Ноль затронутых
// строк означает, что цели нет, - транзакция откатывается вместе с лайком.
func (s *Store) bumpLikeCount(tx *gorm.DB, target domain.LikeTarget, targetID string, delta int) error {
	q := tx.Model(&domain.Post{})
	if target == domain.LikeTargetComment {
		q = tx.Model(&domain.Comment{})
	}
	res := q.Where("id = ?", targetID).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", target, targetID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) HasLiked(ctx context.Context, target domain.LikeTarget, targetID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Like{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target, targetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// === Recount Methods ===

func (s *Store) ListPostIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&domain.Post{}).Pluck("id", &ids).Error
	return ids, err
}

// RecountPost пересчитывает счетчики одного поста из фактических записей
// и безусловно перезаписывает их. Короткая транзакция на один пост -
// фоновая сверка не задерживает живой трафик дольше одного сравнения.
func (s *Store) RecountPost(ctx context.Context, postID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&domain.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
		}

		var likeCount int64
		if err := tx.Model(&domain.Like{}).
			Where("target_type = ? AND target_id = ?", domain.LikeTargetPost, postID).
			Count(&likeCount).Error; err != nil {
			return err
		}
		// Удаленные комментарии продолжают учитываться: обычный путь
		// никогда не декрементирует comment_count при мягком удалении,
		// и сверка обязана сходиться к тому же значению.
		var commentCount int64
		if err := tx.Model(&domain.Comment{}).
			Where("post_id = ?", postID).Count(&commentCount).Error; err != nil {
			return err
		}

		if err := tx.Model(&domain.Post{}).Where("id = ?", postID).
			UpdateColumns(map[string]any{
				"like_count":    likeCount,
				"comment_count": commentCount,
			}).Error; err != nil {
			return err
		}

		// Заодно выравниваем like_count самих комментариев поста.
		return tx.Exec(`
			UPDATE comments SET like_count = (
				SELECT count(*) FROM likes
				WHERE likes.target_type = ? AND likes.target_id = comments.id
			) WHERE comments.post_id = ?`,
			domain.LikeTargetComment, postID).Error
	})
}

// PurgeOrphanLikes выметает лайки, пережившие свою цель.
func (s *Store) PurgeOrphanLikes(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM likes WHERE
			(target_type = ? AND NOT EXISTS (
				SELECT 1 FROM posts WHERE posts.id = likes.target_id))
			OR (target_type = ? AND NOT EXISTS (
				SELECT 1 FROM comments WHERE comments.id = likes.target_id))`,
		domain.LikeTargetPost, domain.LikeTargetComment)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
