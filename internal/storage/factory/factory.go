// Package factory builds the configured journal backend.
package factory

import (
	"fmt"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/internal/storage"
	"github.com/fieldpath/pathedit/internal/storage/memory"
	"github.com/fieldpath/pathedit/internal/storage/postgres"
	sqlitestorage "github.com/fieldpath/pathedit/internal/storage/sqlite"
	"github.com/fieldpath/pathedit/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// NewBackend creates the journal backend selected by cfg.Type. "none" returns nil.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:          cfg.SQLite.Path,
			DumpPath:      cfg.SQLite.DumpPath,
			DumpInterval:  cfg.SQLite.DumpInterval,
			FlushInterval: cfg.SQLite.FlushInterval,
		}, log)
	case "postgres":
		return postgres.New(postgres.Dependencies{
			Config: postgres.Config{
				PostgresConfig: cfg.Postgres.PostgresConfig,
				FlushInterval:  cfg.Postgres.FlushInterval,
				QueueLimit:     cfg.Postgres.QueueLimit,
			},
			Logger: log,
		}), nil
	case "websocket":
		return NewStream(cfg.WebSocket, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewStream creates the WebSocket publisher.
func NewStream(cfg config.WebSocketConfig, log zerolog.Logger) *websocket.Backend {
	return websocket.New(websocket.Config{
		URL:          cfg.URL,
		Secret:       cfg.Secret,
		AckTimeout:   cfg.AckTimeout,
		MaxReconnect: cfg.MaxReconnect,
	}, log)
}
