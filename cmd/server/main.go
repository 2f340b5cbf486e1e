package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/UkralStul/blog-forum-service/internal/domain"
	"github.com/UkralStul/blog-forum-service/internal/httpapi"
	"github.com/UkralStul/blog-forum-service/internal/reconciler"
	"github.com/UkralStul/blog-forum-service/internal/storage"
	"github.com/UkralStul/blog-forum-service/internal/storage/inmemory"
	"github.com/UkralStul/blog-forum-service/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	storageType := flag.String("storage", "in-memory", "Storage type (in-memory or postgres)")
	recountEvery := flag.Duration("recount-interval", 0, "Counter repair sweep interval (0 disables)")
	flag.Parse()

	var store storage.Storage
	var err error

	log.Printf("Starting server with %s storage", *storageType)
	if *storageType == "postgres" {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.New(dsn)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
	} else {
		store = inmemory.New()
		// Заполним данными для тестов
		fillWithMockData(store)
	}

	if *recountEvery > 0 {
		go reconciler.New(store).Run(context.Background(), *recountEvery)
		log.Printf("Counter repair sweep enabled every %s", *recountEvery)
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Mount("/", httpapi.New(store).Routes())

	log.Printf("listening on http://localhost:%s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}

func fillWithMockData(s storage.Storage) {
	ctx := context.Background()

	// 1. Опубликованная статья с комментарием и ответом на него.
	article, err := s.CreatePost(ctx, &domain.Post{
		Kind:     domain.PostKindArticle,
		Title:    "Тестовая статья о консистентных счетчиках",
		Content:  "Это содержимое тестовой статьи. Здесь мы обсуждаем денормализацию и гонки.",
		Excerpt:  "Про счетчики и гонки.",
		Tags:     domain.Tags{"go", "backend"},
		Status:   domain.StatusPublished,
		AuthorID: "user-1",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create article: %v", err)
	}

	c1, err := s.CreateComment(ctx, &domain.Comment{
		PostID:   article.ID,
		AuthorID: "user-2",
		Content:  "Отличная статья! Очень информативно.",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create comment: %v", err)
	}

	_, err = s.CreateComment(ctx, &domain.Comment{
		PostID:   article.ID,
		ParentID: &c1.ID, // Указываем родителя
		AuthorID: "user-1",
		Content:  "Спасибо! Рад, что вам понравилось.",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create nested comment: %v", err)
	}

	// 2. Пара тем форума, одна закрепленная.
	_, err = s.CreatePost(ctx, &domain.Post{
		Kind:     domain.PostKindThread,
		Title:    "Правила раздела",
		Content:  "Прочитайте перед созданием новых тем.",
		Category: "general",
		IsPinned: true,
		AuthorID: "user-admin",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create pinned thread: %v", err)
	}

	thread, err := s.CreatePost(ctx, &domain.Post{
		Kind:     domain.PostKindThread,
		Title:    "А как насчет производительности при большой вложенности?",
		Content:  "Обсудим сборку дерева комментариев одним запросом.",
		Category: "tech",
		AuthorID: "user-3",
	})
	if err != nil {
		log.Fatalf("fillWithMockData: failed to create thread: %v", err)
	}

	if _, err := s.ToggleLike(ctx, domain.LikeTargetPost, thread.ID, "user-2"); err != nil {
		log.Fatalf("fillWithMockData: failed to like thread: %v", err)
	}

	log.Printf("Mock data filled successfully. Article ID: %s, thread ID: %s", article.ID, thread.ID)
}
