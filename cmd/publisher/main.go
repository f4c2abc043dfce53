package main

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"socialplane/internal/httpapi"
	"socialplane/internal/server"
	"socialplane/pkg/asynq"
	"socialplane/pkg/config"
	"socialplane/pkg/db"
	"socialplane/pkg/gen"
	"socialplane/pkg/health"
	"socialplane/pkg/logger"
	"socialplane/pkg/mailer"
	"socialplane/pkg/minio"
	"socialplane/pkg/redis"
	"socialplane/pkg/tokencrypt"
	"socialplane/services/account"
	"socialplane/services/brand"
	"socialplane/services/channels"
	"socialplane/services/draft"
	"socialplane/services/media"
	"socialplane/services/notify"
	"socialplane/services/pipeline"
	"socialplane/services/postjob"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		minio.Client,
		gen.Module,
		tokencrypt.Module,
		mailer.Module,
		asynq.Client,
		asynq.Server,
		health.Module,

		brand.Module,
		account.Module,
		media.Module,
		channels.Module,
		draft.Module,
		postjob.Module,
		notify.Module,
		pipeline.Module,

		httpapi.Module,
		server.Module,

		fx.Invoke(autoMigrate),
	)

	app.Run()
}

func autoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&brand.Brand{},
		&brand.BrandMember{},
		&account.SocialAccount{},
		&media.Asset{},
		&media.ProcessedImage{},
		&draft.Draft{},
		&postjob.PostJob{},
		&postjob.Publication{},
		&pipeline.Heartbeat{},
	)
}
