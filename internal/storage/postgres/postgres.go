// Package postgres implements the storage.Backend interface on PostgreSQL with PostGIS,
// adding a geometry row per generated polyline on top of the GORM backend.
package postgres

import (
	"fmt"
	"time"

	"github.com/fieldpath/pathedit/internal/database"
	"github.com/fieldpath/pathedit/internal/model"
	"github.com/fieldpath/pathedit/internal/model/convert"
	gormstorage "github.com/fieldpath/pathedit/internal/storage/gorm"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds connection and write settings for the Postgres backend.
type Config struct {
	database.PostgresConfig `mapstructure:",squash"`
	FlushInterval           time.Duration
	QueueLimit              int
}

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	// DB is used instead of dialing Config when set.
	DB     *gorm.DB
	Config Config
	Logger zerolog.Logger
}

// Backend wraps the GORM backend with Postgres connection handling.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
	log  zerolog.Logger
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
		log:  deps.Logger.With().Str("component", "journal.postgres").Logger(),
	}
}

// Init connects (unless a DB was injected), migrates the PostGIS schema and starts the
// writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config.PostgresConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
		b.log.Info().Str("host", b.deps.Config.Host).Str("database", b.deps.Config.Database).Msg("Connected to database")
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            b.deps.DB,
		Logger:        b.deps.Logger,
		Geometry:      true,
		FlushInterval: b.deps.Config.FlushInterval,
		QueueLimit:    b.deps.Config.QueueLimit,
	})
	return b.Backend.Init()
}

// Close stops the writer and flushes. Safe before Init.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// Paths returns the stored geometry of a session's generations, keyed by generation row.
// Only populated on a PostGIS database.
func (b *Backend) Paths(session core.Session) (map[uint]core.Polyline, error) {
	if b.Backend == nil {
		return nil, fmt.Errorf("postgres backend not initialized")
	}
	db := b.DB()
	if !db.Migrator().HasTable(&model.GenerationPath{}) {
		return nil, nil
	}

	var rows []model.GenerationPath
	err := db.Select("generation_paths.*").
		Joins("JOIN generations ON generations.id = generation_paths.generation_id").
		Joins("JOIN sessions ON sessions.id = generations.session_id").
		Where("sessions.uuid = ?", session.ID.String()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list generation paths: %w", err)
	}

	out := make(map[uint]core.Polyline, len(rows))
	for _, row := range rows {
		_, _, path := convert.GenerationPathToCore(row)
		out[row.GenerationID] = path
	}
	return out, nil
}
