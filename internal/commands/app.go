package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"focusflow/internal/config"
	"focusflow/internal/logger"
	"focusflow/internal/model"
	"focusflow/internal/repository"
	"focusflow/internal/service"
	"focusflow/internal/session"
	"focusflow/internal/storage"
	"focusflow/internal/view"
)

// app is the wiring shared by every command.
type app struct {
	cfg config.Config
	log *logrus.Entry
	db  *gorm.DB

	users      *repository.UserRepository
	tasks      *repository.Repository[model.Task]
	notes      *repository.Repository[model.Note]
	journal    *repository.Repository[model.JournalEntry]
	categories *repository.Repository[model.Category]

	redis *redis.Client
}

func newApp(cfg config.Config) (*app, error) {
	log := logger.New("focusflow", cfg.LogLevel)

	db, err := repository.NewDB(repository.Options{
		Driver:     cfg.DatabaseDriver,
		DSN:        cfg.DatabaseURL,
		ReplicaDSN: cfg.DatabaseReplicaURL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		users:      repository.NewUserRepository(db),
		tasks:      repository.NewTaskRepository(db),
		notes:      repository.NewNoteRepository(db),
		journal:    repository.NewJournalRepository(db),
		categories: repository.NewCategoryRepository(db),
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) stores() view.Stores {
	return view.Stores{
		Tasks:      a.tasks,
		Notes:      a.notes,
		Journal:    a.journal,
		Categories: a.categories,
	}
}

func (a *app) digest() *service.DigestService {
	return service.NewDigestService(a.tasks, a.notes, a.journal)
}

// blobStore opens the configured store. The opener is nil when blobs are
// served by the store itself.
func (a *app) blobStore(ctx context.Context) (storage.Store, storage.Opener, error) {
	switch a.cfg.StorageBackend {
	case config.StorageMinIO:
		store, err := storage.NewMinIOStore(ctx, storage.MinIOOptions{
			Endpoint:  a.cfg.MinIO.Endpoint,
			AccessKey: a.cfg.MinIO.AccessKey,
			SecretKey: a.cfg.MinIO.SecretKey,
			Bucket:    a.cfg.MinIO.Bucket,
			UseSSL:    a.cfg.MinIO.UseSSL,
			PublicURL: a.cfg.MinIO.PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store := storage.NewDiskStore(a.cfg.StorageDir, a.cfg.PublicBaseURL)
		return store, store, nil
	}
}

// sessions builds the revocation store and, with Redis configured, the
// identity event publisher. mem is set only for the in-process store.
func (a *app) sessions(ctx context.Context) (rev session.RevocationStore, mem *session.MemoryRevocations, pub *session.RedisPublisher, err error) {
	if a.cfg.RedisURL == "" {
		mem = session.NewMemoryRevocations()
		return mem, mem, nil, nil
	}
	client, err := session.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	a.redis = client
	return session.NewRedisRevocations(client), nil, session.NewRedisPublisher(client, a.log), nil
}
