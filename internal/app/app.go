package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/SophieEDesign/marketinghub/internal/config"
	"github.com/SophieEDesign/marketinghub/internal/db"
	"github.com/SophieEDesign/marketinghub/internal/filter"
	httpserver "github.com/SophieEDesign/marketinghub/internal/http"
	"github.com/SophieEDesign/marketinghub/internal/richtext"
	"github.com/SophieEDesign/marketinghub/internal/service"
	"github.com/SophieEDesign/marketinghub/internal/storage"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type Container struct {
	Config            config.Config
	Store             *store.SQLStore
	Broadcast         *filter.Broadcast
	UserService       *service.UserService
	TableService      *service.TableService
	ViewService       *service.ViewService
	RecordService     *service.RecordService
	PageService       *service.PageService
	AttachmentService *service.AttachmentService
	Router            *fiber.App
}

func Build(ctx context.Context, cfg config.Config) (*Container, func() error, error) {
	sqliteDB, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error {
		return sqliteDB.Close()
	}

	if err := db.Migrate(sqliteDB); err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	sqlStore := store.New(sqliteDB)
	userService := service.NewUserService(sqlStore)
	if err := userService.EnsureBootstrap(ctx, cfg.BootstrapUser, cfg.BootstrapToken); err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("bootstrap setup: %w", err)
	}

	var fileStorage storage.Store
	switch cfg.Storage {
	case config.StorageBackendLocal:
		diskStore, err := storage.NewDiskStore(cfg.AttachmentsDir)
		if err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		fileStorage = diskStore
	case config.StorageBackendS3:
		s3Store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		fileStorage = s3Store
	default:
		_ = cleanup()
		return nil, nil, fmt.Errorf("unsupported storage backend %s", cfg.Storage)
	}

	broadcast := filter.NewBroadcast()
	tableService := service.NewTableService(sqlStore)
	viewService := service.NewViewService(sqlStore)
	recordService := service.NewRecordService(sqlStore, broadcast)
	pageService := service.NewPageService(sqlStore, broadcast, richtext.NewService())
	attachmentService := service.NewAttachmentService(sqlStore, fileStorage, string(cfg.Storage))

	router := httpserver.NewRouter(cfg, httpserver.Services{
		Users:       userService,
		Tables:      tableService,
		Views:       viewService,
		Records:     recordService,
		Pages:       pageService,
		Attachments: attachmentService,
	})

	return &Container{
		Config:            cfg,
		Store:             sqlStore,
		Broadcast:         broadcast,
		UserService:       userService,
		TableService:      tableService,
		ViewService:       viewService,
		RecordService:     recordService,
		PageService:       pageService,
		AttachmentService: attachmentService,
		Router:            router,
	}, cleanup, nil
}
