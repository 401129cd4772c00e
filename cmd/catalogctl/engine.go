package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/identity/jwtsession"
	redisadapter "github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/kvstore/redis"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/kvstore/sqlite"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/remote/httpcatalog"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const sessionKey = "session"

// engine is everything one catalogctl invocation works with.
type engine struct {
	cfg       *config.Config
	log       *logger.Logger
	kv        domain.KVStore
	closeKV   func() error
	session   *jwtsession.Provider
	bus       *bus.Bus
	remote    *httpcatalog.Client
	store     *catalog.Store
	favorites *catalog.Favorites
}

func openEngine(ctx context.Context, cfg *config.Config, log *logger.Logger) (*engine, error) {
	kv, closeKV, err := openKV(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, log: log, kv: kv, closeKV: closeKV, bus: bus.New(log)}
	e.session = jwtsession.New("", log)
	e.restoreSession(ctx)

	e.remote = httpcatalog.New(cfg.Client.BaseURL, cfg.Client.MutationTimeout, e.session, log)
	e.store = catalog.NewStore(ctx, e.remote, kv, e.session, e.bus, catalog.Options{
		FetchTimeout:    cfg.Client.FetchTimeout,
		MutationTimeout: cfg.Client.MutationTimeout,
		Media:           e.remote,
		Logger:          log,
	})

	e.favorites, err = catalog.NewFavorites(ctx, kv, e.session, e.bus, log)
	if err != nil {
		_ = closeKV()
		return nil, err
	}
	e.favorites.Follow(e.store)
	return e, nil
}

// openKV opens the local state: a SQLite file by default, or a Redis database shared
// between machines.
func openKV(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.KVStore, func() error, error) {
	if cfg.Client.StateBackend == "redis" {
		client, err := redisadapter.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return redisadapter.NewStore(client, "catalogctl:", log), client.Close, nil
	}

	if dir := filepath.Dir(cfg.Client.StatePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.Client.StatePath)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// restoreSession signs in with the saved token, or the configured one.
func (e *engine) restoreSession(ctx context.Context) {
	token := e.cfg.Client.Token
	if saved, err := e.kv.Get(ctx, sessionKey); err == nil {
		token = string(saved)
	} else if !errors.Is(err, domain.ErrKeyNotFound) {
		e.log.Warn("catalogctl: failed to read saved session", "error", err.Error())
	}
	if token == "" {
		return
	}
	if _, err := e.session.Login(token); err != nil {
		e.log.Warn("catalogctl: saved token rejected, continuing signed out", "error", err.Error())
	}
}

func (e *engine) login(ctx context.Context, token string) (domain.Identity, error) {
	ident, err := e.session.Login(token)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := e.kv.Set(ctx, sessionKey, []byte(token)); err != nil {
		return ident, &domain.PersistenceError{Key: sessionKey, Err: err}
	}
	return ident, nil
}

func (e *engine) logout(ctx context.Context) error {
	e.session.Logout()
	return e.kv.Delete(ctx, sessionKey)
}

// close waits for outstanding mutations before releasing the state file.
func (e *engine) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Client.MutationTimeout+e.cfg.Client.FetchTimeout)
	defer cancel()

	err := e.store.Close(ctx)
	e.favorites.Close()
	if cerr := e.closeKV(); err == nil {
		err = cerr
	}
	return err
}
