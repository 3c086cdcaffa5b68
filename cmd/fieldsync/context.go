package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/draft"
	"fieldsync/internal/forms"
	"fieldsync/internal/logging"
	"fieldsync/internal/media"
	"fieldsync/internal/store"
	"fieldsync/internal/submission"
	"fieldsync/internal/syncer"
)

// commandContext lazily wires the store, queues, and coordinator shared by
// CLI commands against a single config load.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	stack *commandStack
}

type commandStack struct {
	logger      *slog.Logger
	store       *store.Store
	client      backend.Client
	media       *media.Queue
	submissions *submission.Queue
	drafts      *draft.Autosave
	forms       *forms.Service
	coordinator *syncer.Coordinator
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStack opens the store and queue stack, runs fn, and closes everything.
func (c *commandContext) withStack(fn func(*commandStack) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  "warn",
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	mediaQueue := media.NewQueue(st, logger, cfg.Sync.RetryCeiling)
	submissionQueue := submission.NewQueue(st, logger, cfg.Sync.RetryCeiling)
	drafts := draft.New(st, logger, time.Duration(cfg.Sync.DraftFlushMillis)*time.Millisecond)
	defer drafts.Close()

	client := backend.NewHTTPClient(cfg)
	coordinator := syncer.New(client, st, mediaQueue, submissionQueue, logger)
	formsSvc := forms.NewService(st, drafts, mediaQueue, submissionQueue, logger)

	stack := &commandStack{
		logger:      logger,
		store:       st,
		client:      client,
		media:       mediaQueue,
		submissions: submissionQueue,
		drafts:      drafts,
		forms:       formsSvc,
		coordinator: coordinator,
	}
	c.stack = stack
	return fn(stack)
}

// probeOnline performs one connectivity probe so pull/push commands fail fast
// with a clear offline error instead of a transport timeout.
func (s *commandStack) probeOnline(ctx context.Context) bool {
	err := s.client.Ping(ctx)
	s.coordinator.SetOnline(err == nil)
	return err == nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
