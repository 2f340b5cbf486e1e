package storage

import (
	"context"

	"github.com/UkralStul/blog-forum-service/internal/domain"
)

// MaxPageSize - потолок размера страницы. Запросы с большим limit
// прижимаются к нему, а не отклоняются.
const MaxPageSize = 100

// ListArgs - аргументы постраничной выдачи. Страницы нумеруются с единицы;
// значения меньше единицы прижимаются к ней.
type ListArgs struct {
	Page     int
	PageSize int
}

// Normalize приводит аргументы к допустимым границам.
func (a ListArgs) Normalize() ListArgs {
	if a.Page < 1 {
		a.Page = 1
	}
	if a.PageSize < 1 {
		a.PageSize = 1
	}
	if a.PageSize > MaxPageSize {
		a.PageSize = MaxPageSize
	}
	return a
}

// Offset возвращает смещение первой записи страницы.
func (a ListArgs) Offset() int {
	return (a.Page - 1) * a.PageSize
}

// PostFilter - фильтр листинга. Для статей распознается Status,
// для тем форума - Category; пустое значение означает "без фильтра".
type PostFilter struct {
	Status   string
	Category string
}

// PostUpdate - частичное обновление поста. Заполненные указатели применяются,
// nil-поля остаются нетронутыми. Счетчики обновлению не подлежат.
type PostUpdate struct {
	Title      *string
	Content    *string
	Excerpt    *string
	CoverImage *string
	Tags       *domain.Tags
	Status     *string
	Category   *string
	IsPinned   *bool
	IsLocked   *bool
}

// Storage определяет контракт для хранилищ: операции над постами,
// деревом комментариев, журналом лайков и путь починки счетчиков.
// Каждая реализация обязана выполнять дельты счетчиков атомарно
// и держать каскадные изменения в одной транзакции.
type Storage interface {
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	// GetPost возвращает пост и атомарно увеличивает его view_count на 1.
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	ListPosts(ctx context.Context, kind domain.PostKind, args ListArgs, filter PostFilter) ([]*domain.Post, int64, error)
	UpdatePost(ctx context.Context, id string, upd PostUpdate, actorID string) (*domain.Post, error)
	// DeletePost каскадно удаляет пост, его комментарии и лайки
	// (включая лайки на комментариях) в одной транзакции.
	DeletePost(ctx context.Context, id string, actorID string) error
	DistinctCategories(ctx context.Context) ([]string, error)

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	// GetCommentTree возвращает корневые комментарии поста в порядке создания,
	// с рекурсивно вложенными ответами. Удаленные комментарии остаются в дереве
	// с текстом-заглушкой.
	GetCommentTree(ctx context.Context, postID string) ([]*domain.Comment, error)
	// DeleteComment помечает комментарий удаленным. Текст тогда скрывается
	// при выдаче, comment_count поста не уменьшается.
	DeleteComment(ctx context.Context, id string, actorID string) error

	// ToggleLike создает либо снимает лайк пары (актор, цель) и возвращает
	// итоговое состояние: true - лайк поставлен, false - снят.
	ToggleLike(ctx context.Context, target domain.LikeTarget, targetID, userID string) (bool, error)
	HasLiked(ctx context.Context, target domain.LikeTarget, targetID, userID string) (bool, error)

	// ListPostIDs и RecountPost обслуживают фоновую сверку счетчиков.
	// RecountPost - единственная операция, которой позволено безусловно
	// перезаписать счетчик.
	ListPostIDs(ctx context.Context) ([]string, error)
	RecountPost(ctx context.Context, postID string) error
	// PurgeOrphanLikes удаляет лайки, чья цель больше не существует,
	// и возвращает число удаленных фактов. Пересчет по постам такие
	// записи не видит, поэтому сверка выметает их отдельно.
	PurgeOrphanLikes(ctx context.Context) (int64, error)
}
