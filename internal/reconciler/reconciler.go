package reconciler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/UkralStul/blog-forum-service/internal/domain"
	"github.com/UkralStul/blog-forum-service/internal/storage"
)

// Reconciler - фоновая сверка денормализованных счетчиков с фактическими
// записями. Обычные операции никогда не пересчитывают счетчики с нуля;
// это единственный путь починки дрейфа, и работает он по одному посту
// за короткую транзакцию, не задерживая живой трафик.
type Reconciler struct {
	store storage.Storage
}

// New создает сверку поверх хранилища.
func New(store storage.Storage) *Reconciler {
	return &Reconciler{store: store}
}

// Run запускает периодический проход и блокируется до отмены контекста.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				log.Printf("reconciler: sweep failed: %v", err)
			}
		}
	}
}

// Sweep сначала выметает осиротевшие лайки, затем пересчитывает счетчики
// всех постов по одному. Пост, удаленный между выборкой идентификаторов
// и пересчетом, пропускается.
func (r *Reconciler) Sweep(ctx context.Context) error {
	purged, err := r.store.PurgeOrphanLikes(ctx)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("reconciler: purged %d orphan likes", purged)
	}

	ids, err := r.store.ListPostIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.store.RecountPost(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}
