// Package gormstorage implements storage.Backend over any GORM dialect. Generations are
// queued and written in batches by a background goroutine; sessions are written
// synchronously so their row ID can be stamped on queued generations.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldpath/pathedit/internal/database"
	"github.com/fieldpath/pathedit/internal/model"
	"github.com/fieldpath/pathedit/internal/model/convert"
	"github.com/fieldpath/pathedit/internal/queue"
	"github.com/fieldpath/pathedit/internal/storage"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
	// Geometry enables generation_paths rows; ignored unless the dialect is postgres.
	Geometry      bool
	FlushInterval time.Duration
	QueueLimit    int
}

type pending struct {
	gen     model.Generation
	path    model.GenerationPath
	hasPath bool
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       zerolog.Logger
	queue     *queue.Queue[pending]
	geometry  bool
	sessionID atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:  deps,
		log:   deps.Logger.With().Str("component", "journal").Logger(),
		queue: queue.NewBounded[pending](deps.QueueLimit),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	b.geometry = b.deps.Geometry && b.deps.DB.Name() == "postgres"

	if err := database.Migrate(b.deps.DB, !b.geometry); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	b.log.Info().Str("dialect", b.deps.DB.Name()).Bool("geometry", b.geometry).Msg("Journal ready")
	return nil
}

// Close stops the writer goroutine and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return b.Flush()
}

// StartSession writes the session row. Generations recorded afterwards belong to it.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Flush(); err != nil {
		return err
	}
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	b.sessionID.Store(uint64(row.ID))
	b.log.Debug().Str("session", s.ID.String()).Uint("row", row.ID).Msg("Session started")
	return nil
}

// EndSession flushes queued generations and stamps the session end time.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}
	end := time.Now().UTC()
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).
		Update("end_time", &end).Error; err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	b.sessionID.Store(0)
	return nil
}

// RecordGeneration queues g for the next batch write.
func (b *Backend) RecordGeneration(g *core.Generation) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}
	p := pending{gen: convert.CoreToGeneration(*g, id)}
	if b.geometry {
		p.path, p.hasPath = convert.CoreToGenerationPath(*g)
	}
	if dropped := b.queue.Push(p); dropped > 0 {
		b.log.Warn().Int("dropped", dropped).Msg("Journal queue full, oldest generations dropped")
	}
	return nil
}

// Pending returns the number of queued generations.
func (b *Backend) Pending() int {
	return b.queue.Len()
}

// Flush writes all queued generations in one transaction. On failure they are put back
// at the front of the queue.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.queue.Empty() {
		return nil
	}
	items := b.queue.Drain()

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		gens := make([]model.Generation, len(items))
		for i := range items {
			gens[i] = items[i].gen
		}
		if err := tx.Create(&gens).Error; err != nil {
			return fmt.Errorf("create generations: %w", err)
		}

		var paths []model.GenerationPath
		for i := range items {
			if items[i].hasPath {
				p := items[i].path
				p.GenerationID = gens[i].ID
				paths = append(paths, p)
			}
		}
		if len(paths) > 0 {
			if err := tx.Create(&paths).Error; err != nil {
				return fmt.Errorf("create generation paths: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		b.queue.Requeue(items...)
		return err
	}

	b.log.Trace().Int("count", len(items)).Msg("Flushed generations")
	return nil
}

func (b *Backend) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error().Err(err).Int("pending", b.queue.Len()).Msg("Error writing generations")
			}
		}
	}
}

// Sessions returns every session row ordered by start time.
func (b *Backend) Sessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.deps.DB.Order("start_time, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]core.Session, len(rows))
	for i, row := range rows {
		out[i] = convert.SessionToCore(row)
	}
	return out, nil
}

// Generations returns the written generations of a session ordered by routine, then
// write order. Queued generations are not included until flushed.
func (b *Backend) Generations(session uuid.UUID) ([]core.Generation, error) {
	var sess model.Session
	err := b.deps.DB.Where("uuid = ?", session.String()).Limit(1).Find(&sess).Error
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if sess.ID == 0 {
		return nil, nil
	}

	var rows []model.Generation
	if err := b.deps.DB.Where("session_id = ?", sess.ID).Order("routine, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	out := make([]core.Generation, len(rows))
	for i, row := range rows {
		out[i] = convert.GenerationToCore(row, session)
	}
	return out, nil
}
