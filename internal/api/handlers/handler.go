package handlers

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mirrorline/futureself/internal/capture"
	"github.com/mirrorline/futureself/internal/clone"
	"github.com/mirrorline/futureself/internal/scheduler"
	"github.com/mirrorline/futureself/internal/session"
	"github.com/mirrorline/futureself/pkg/elevenlabs"
	"github.com/mirrorline/futureself/pkg/env"
	"github.com/mirrorline/futureself/pkg/logger"
	"github.com/mirrorline/futureself/pkg/mongo"
	"github.com/mirrorline/futureself/pkg/storage"
)

type Handler struct {
	cfg         *env.Config
	store       session.Store
	captures    *capture.Manager
	dispatcher  *clone.Dispatcher
	scheduler   *scheduler.Scheduler
	voices      *elevenlabs.Client
	archive     storage.Driver
	redisClient *redis.Client
	mongoClient *mongo.Client
	logger      *zap.Logger
}

func NewHandler(
	cfg *env.Config,
	store session.Store,
	captures *capture.Manager,
	dispatcher *clone.Dispatcher,
	sched *scheduler.Scheduler,
	voices *elevenlabs.Client,
	archive storage.Driver,
	redisClient *redis.Client,
	mongoClient *mongo.Client,
) *Handler {
	return &Handler{
		cfg:         cfg,
		store:       store,
		captures:    captures,
		dispatcher:  dispatcher,
		scheduler:   sched,
		voices:      voices,
		archive:     archive,
		redisClient: redisClient,
		mongoClient: mongoClient,
		logger:      logger.Log,
	}
}
