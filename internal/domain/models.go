package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// PostKind различает два варианта поста в общей таблице.
type PostKind string

const (
	// PostKindArticle - статья блога (статусы, excerpt, publishedAt).
	PostKindArticle PostKind = "article"
	// PostKindThread - тема форума (категория, закрепление, блокировка).
	PostKindThread PostKind = "thread"
)

// Статусы статьи. Тема форума статусов не имеет и всегда считается опубликованной.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// DefaultCategory присваивается теме форума, если категория не указана.
const DefaultCategory = "general"

// DeletedContentPlaceholder подставляется вместо текста удаленного комментария
// при выдаче дерева. Сам текст в базе не затирается.
const DeletedContentPlaceholder = "[deleted]"

// Tags хранится одной текстовой колонкой через запятую
// и разворачивается в срез при чтении.
type Tags []string

// Value реализует driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	return strings.Join(t, ","), nil
}

// Scan реализует sql.Scanner.
func (t *Tags) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("tags: unsupported source type %T", src)
	}
	if raw == "" {
		*t = nil
		return nil
	}
	*t = strings.Split(raw, ",")
	return nil
}

// Post представляет пост в системе: статью блога или тему форума.
// Счетчики view_count/like_count/comment_count денормализованы и меняются
// только атомарными дельтами (см. хранилища), не через Save всей записи.
type Post struct {
	ID          string   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Kind        PostKind `json:"kind" gorm:"type:varchar(16);not null;index"`
	Title       string   `json:"title" gorm:"type:varchar(255);not null"`
	Content     string   `json:"content" gorm:"type:text;not null"`
	AuthorID    string   `json:"authorId" gorm:"type:varchar(255);not null;index"`
	Tags        Tags     `json:"tags" gorm:"type:text"`

	// Поля статьи.
	Excerpt     string     `json:"excerpt,omitempty" gorm:"type:text"`
	CoverImage  string     `json:"coverImage,omitempty" gorm:"type:varchar(512)"`
	Status      string     `json:"status,omitempty" gorm:"type:varchar(32);index"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	// Поля темы форума.
	Category string `json:"category,omitempty" gorm:"type:varchar(64);index"`
	IsPinned bool   `json:"isPinned"`
	IsLocked bool   `json:"isLocked"`

	ViewCount    int64 `json:"viewCount" gorm:"not null;default:0"`
	LikeCount    int64 `json:"likeCount" gorm:"not null;default:0"`
	CommentCount int64 `json:"commentCount" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;default:now()"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;default:now()"`
}

// Comment представляет комментарий к посту.
// PostID всегда указывает на корневой пост, даже у ответов на комментарии -
// так дерево целиком достается одним запросом.
type Comment struct {
	ID     string `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PostID string `json:"postId" gorm:"type:uuid;not null;index"`
	// Seq - монотонный порядок создания. Таймстемпы могут совпасть
	// с точностью до микросекунды, а порядок соседей в дереве обязан
	// быть одинаковым в любом хранилище.
	Seq       int64      `json:"-" gorm:"autoIncrement;index"`
	ParentID  *string    `json:"parentId,omitempty" gorm:"type:uuid;index"`
	AuthorID  string     `json:"authorId" gorm:"type:varchar(255);not null"`
	Content   string     `json:"content" gorm:"type:varchar(2000);not null"`
	LikeCount int64      `json:"likeCount" gorm:"not null;default:0"`
	IsDeleted bool       `json:"isDeleted" gorm:"not null;default:false"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;default:now()"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;default:now()"`
	Replies   []*Comment `json:"replies,omitempty" gorm:"-"` // заполняется при сборке дерева
}

// LikeTarget различает, к чему привязан лайк.
type LikeTarget string

const (
	LikeTargetPost    LikeTarget = "post"
	LikeTargetComment LikeTarget = "comment"
)

// Like - факт "пользователь лайкнул цель". Вместо трех взаимоисключающих
// nullable-ссылок используется пара (target_type, target_id) с одним
// уникальным индексом: повторный лайк отсекается на уровне базы.
type Like struct {
	ID         string     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     string     `json:"userId" gorm:"type:varchar(255);not null;uniqueIndex:ux_likes_identity"`
	TargetType LikeTarget `json:"targetType" gorm:"type:varchar(16);not null;uniqueIndex:ux_likes_identity"`
	TargetID   string     `json:"targetId" gorm:"type:uuid;not null;uniqueIndex:ux_likes_identity;index"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"not null;default:now()"`
}
