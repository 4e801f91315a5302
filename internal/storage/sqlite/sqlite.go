// Package sqlitestorage implements the storage.Backend interface using SQLite.
// It wraps the GORM backend via composition. With no Path it journals to an in-memory
// database and snapshots it to DumpPath every DumpInterval via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/internal/database"
	gormstorage "github.com/fieldpath/pathedit/internal/storage/gorm"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path          string // file database; empty for in-memory
	DumpPath      string // target for periodic VACUUM INTO dumps of the in-memory database
	DumpInterval  time.Duration
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// New opens the SQLite database.
func New(cfg Config, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			Logger:        log,
			FlushInterval: cfg.FlushInterval,
		}),
		db:       db,
		cfg:      cfg,
		log:      log.With().Str("component", "journal.sqlite").Logger(),
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path == "" && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and writes a final
// dump of an in-memory database.
func (b *Backend) Close() error {
	b.once.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.Path == "" && b.cfg.DumpPath != "" {
		return b.Dump()
	}
	return nil
}

// Dump flushes queued generations and snapshots the database to DumpPath.
func (b *Backend) Dump() error {
	if err := b.Flush(); err != nil {
		return err
	}
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
			}
		}
	}
}
