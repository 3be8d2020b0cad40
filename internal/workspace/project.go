package workspace

import (
	"context"
	"io"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/conneroisu/soyidx/internal/config"
	"github.com/conneroisu/soyidx/internal/directive"
	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/logging"
	"github.com/conneroisu/soyidx/internal/updater"
)

// Project ties a workspace to its index.
type Project struct {
	Workspace *Workspace
	Store     *cache.Store
	Updater   *updater.Updater
	Config    *config.Config
}

// Open builds an empty index for the workspace described by cfg. Change
// log output goes to changeLog when cfg.Cache.Debug is set.
func Open(cfg *config.Config, logger logging.Logger, changeLog io.Writer) (*Project, error) {
	ws, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}

	memo, err := directive.NewMemo(cfg.Cache.MemoSize)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrorTypeConfig, "cannot create extraction memo")
	}

	store := cache.NewStore()
	u := updater.New(ws, store, updater.Options{
		Extension:   cfg.Cache.Extension,
		MaxFileSize: cfg.Cache.MaxFileSize,
		Memo:        memo,
		Logger:      logger,
		Debug:       cfg.Cache.Debug,
		ChangeLog:   changeLog,
		Tick:        cfg.Watch.Tick,
		Settle:      cfg.Watch.Settle,
	})

	return &Project{
		Workspace: ws,
		Store:     store,
		Updater:   u,
		Config:    cfg,
	}, nil
}

// Index rebuilds the index from every template file.
func (p *Project) Index(ctx context.Context) (int, error) {
	return p.Updater.IndexAll(ctx)
}

// Close disposes the updater.
func (p *Project) Close() {
	p.Updater.Dispose()
}
