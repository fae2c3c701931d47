// Command migrate re-homes externally hosted meal photos into object storage.
// It is a one-shot batch job: meals whose photo_url points outside the bucket
// (photo_key empty) are downloaded, re-uploaded under migrated/, and updated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nutritrack/internal/config"
	"nutritrack/internal/domain"
	"nutritrack/internal/repository"
	"nutritrack/internal/repository/sqlite"
	"nutritrack/internal/storage"
)

func main() {
	var (
		batchSize = flag.Int("batch", 500, "maximum number of meals to migrate in one run")
		workers   = flag.Int("workers", 3, "concurrent migrations")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.Storage.Bucket == "" {
		logger.Fatalf("storage bucket is required for migration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	mealRepo := sqlite.NewMealRepository(db)
	if err := mealRepo.Init(ctx); err != nil {
		logger.Fatalf("init meal repository: %v", err)
	}

	store, err := buildStorage(ctx, cfg)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	meals, err := mealRepo.ListExternalPhotos(ctx, *batchSize)
	if err != nil {
		logger.Fatalf("list external photos: %v", err)
	}
	if len(meals) == 0 {
		logger.Info("nothing to migrate")
		return
	}
	logger.Infof("migrating %d photos", len(meals))

	m := &migrator{
		meals:     mealRepo,
		storage:   store,
		keyPrefix: cfg.Storage.KeyPrefix,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}

	sem := make(chan struct{}, max(*workers, 1))
	var wg sync.WaitGroup
	var migrated, failed atomic.Int64

	for _, meal := range meals {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(meal domain.Meal) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := m.migrate(ctx, meal); err != nil {
				failed.Add(1)
				logger.Warnf("migrate meal %s: %v", meal.ID, err)
				return
			}
			migrated.Add(1)
		}(meal)
	}
	wg.Wait()

	logger.Infof("done: %d migrated, %d failed", migrated.Load(), failed.Load())
}

type migrator struct {
	meals     repository.MealRepository
	storage   storage.Service
	keyPrefix string
	client    *http.Client
	logger    *logrus.Logger
}

func (m *migrator) migrate(ctx context.Context, meal domain.Meal) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meal.PhotoURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download photo: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	key := path.Join(m.keyPrefix, "migrated", uuid.NewString()+extensionFor(meal.PhotoURL, contentType))

	url, err := m.storage.UploadObject(ctx, key, contentType, resp.Body)
	if err != nil {
		return err
	}

	return m.meals.SetPhoto(ctx, meal.ID, url, key)
}

func extensionFor(photoURL, contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	}
	trimmed := photoURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndex(trimmed, "."); i >= 0 && len(trimmed)-i <= 5 {
		return strings.ToLower(trimmed[i:])
	}
	return ".jpg"
}

func buildStorage(ctx context.Context, cfg config.Config) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	return storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.Endpoint), nil
}
