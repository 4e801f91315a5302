package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/internal/storage"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
)

// Verify Backend implements storage.Backend and storage.Reader
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Reader  = (*Backend)(nil)
)

func newSession() *core.Session {
	return &core.Session{ID: uuid.New(), Mode: "sync", StartTime: time.Now().UTC()}
}

func gen(routine int, rev uint64, errMsg string) *core.Generation {
	g := &core.Generation{Routine: routine, Revision: rev, Error: errMsg}
	if errMsg == "" {
		g.Polyline = core.Polyline{core.Pos(1, 1), core.Pos(2, 2)}
	}
	return g
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})
	if err := b.Init(); err != nil {
		t.Errorf("Init returned error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestRecordWithoutSession(t *testing.T) {
	b := New(config.MemoryConfig{})
	err := b.RecordGeneration(gen(0, 1, ""))
	if !errors.Is(err, storage.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestRecordGeneration(t *testing.T) {
	b := New(config.MemoryConfig{})
	s := newSession()
	if err := b.StartSession(s); err != nil {
		t.Fatal(err)
	}

	for _, g := range []*core.Generation{gen(0, 1, ""), gen(1, 2, ""), gen(0, 3, "solver: boom")} {
		if err := b.RecordGeneration(g); err != nil {
			t.Fatalf("RecordGeneration: %v", err)
		}
	}

	rec, ok := b.GetRoutine(0)
	if !ok {
		t.Fatal("routine 0 not recorded")
	}
	if len(rec.Generations) != 2 {
		t.Errorf("expected 2 generations for routine 0, got %d", len(rec.Generations))
	}
	if rec.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", rec.Failures)
	}
	if latest, _ := rec.Latest(); latest.Revision != 3 {
		t.Errorf("expected latest revision 3, got %d", latest.Revision)
	}
	if good, _ := rec.LastGood(); good.Revision != 1 {
		t.Errorf("expected last good revision 1, got %d", good.Revision)
	}

	all, _ := b.Generations(s.ID)
	if len(all) != 3 {
		t.Fatalf("expected 3 generations, got %d", len(all))
	}
	if all[0].Routine != 0 || all[1].Routine != 0 || all[2].Routine != 1 {
		t.Errorf("expected routine order [0 0 1], got [%d %d %d]", all[0].Routine, all[1].Routine, all[2].Routine)
	}
	if b.Count() != 3 {
		t.Errorf("expected count 3, got %d", b.Count())
	}
}

func TestRecordCopiesPolyline(t *testing.T) {
	b := New(config.MemoryConfig{})
	_ = b.StartSession(newSession())

	g := gen(0, 1, "")
	_ = b.RecordGeneration(g)
	g.Polyline[0] = core.Pos(99, 99)

	rec, _ := b.GetRoutine(0)
	if rec.Generations[0].Polyline[0] != core.Pos(1, 1) {
		t.Errorf("stored polyline aliased caller slice: %v", rec.Generations[0].Polyline)
	}
}

func TestLimit(t *testing.T) {
	b := New(config.MemoryConfig{Limit: 2})
	_ = b.StartSession(newSession())

	for rev := uint64(1); rev <= 5; rev++ {
		_ = b.RecordGeneration(gen(0, rev, ""))
	}

	rec, _ := b.GetRoutine(0)
	if len(rec.Generations) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(rec.Generations))
	}
	if rec.Generations[0].Revision != 4 || rec.Generations[1].Revision != 5 {
		t.Errorf("expected revisions [4 5], got [%d %d]", rec.Generations[0].Revision, rec.Generations[1].Revision)
	}
	if b.Count() != 5 {
		t.Errorf("expected count 5, got %d", b.Count())
	}
}

func TestLastGoodNone(t *testing.T) {
	rec := &RoutineRecord{Generations: []core.Generation{*gen(0, 1, "bad")}}
	if _, ok := rec.LastGood(); ok {
		t.Error("expected no good generation")
	}
	if _, ok := (&RoutineRecord{}).Latest(); ok {
		t.Error("expected no latest generation")
	}
}

func TestSessions(t *testing.T) {
	b := New(config.MemoryConfig{})
	first, second := newSession(), newSession()

	_ = b.StartSession(first)
	_ = b.RecordGeneration(gen(0, 1, ""))
	_ = b.EndSession()

	if err := b.RecordGeneration(gen(0, 2, "")); !errors.Is(err, storage.ErrNoSession) {
		t.Errorf("expected ErrNoSession after EndSession, got %v", err)
	}

	_ = b.StartSession(second)
	_ = b.RecordGeneration(gen(1, 3, ""))

	sessions, _ := b.Sessions()
	if len(sessions) != 2 || sessions[0].ID != first.ID || sessions[1].ID != second.ID {
		t.Errorf("unexpected sessions %+v", sessions)
	}

	firstGens, _ := b.Generations(first.ID)
	if len(firstGens) != 1 || firstGens[0].Revision != 1 {
		t.Errorf("unexpected first-session generations %+v", firstGens)
	}
	missing, _ := b.Generations(uuid.New())
	if missing != nil {
		t.Errorf("expected nil for unknown session, got %+v", missing)
	}
}

func TestConcurrentRecord(t *testing.T) {
	b := New(config.MemoryConfig{})
	_ = b.StartSession(newSession())

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(routine int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = b.RecordGeneration(gen(routine, uint64(i), ""))
			}
		}(r)
	}
	wg.Wait()

	if b.Count() != 200 {
		t.Errorf("expected 200 generations, got %d", b.Count())
	}
}
