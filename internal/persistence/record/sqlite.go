package record

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"emberfield/internal/sim/match"
)

// SQLiteIndex is a read-model over the match event log: per-tick injection
// and sync counts operators can query after a match. It never feeds back
// into the simulation and writes off the match loop through a buffered
// channel, so indexing lag cannot stall a tick.
type SQLiteIndex struct {
	db *sql.DB

	ch     chan match.TickRecord
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool

	dropped atomic.Uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS match_ticks (
			tick        INTEGER PRIMARY KEY,
			injections  INTEGER NOT NULL,
			full_tiles  INTEGER NOT NULL,
			delta_cells INTEGER NOT NULL,
			digest      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS injections (
			tick   INTEGER NOT NULL,
			kind   TEXT NOT NULL,
			x      REAL NOT NULL,
			y      REAL NOT NULL,
			amount REAL NOT NULL,
			radius REAL NOT NULL,
			direct INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_injections_tick ON injections(tick);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteIndex{db: db, ch: make(chan match.TickRecord, 1024)}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

func (s *SQLiteIndex) writer() {
	defer s.wg.Done()
	for rec := range s.ch {
		s.insert(rec)
	}
}

func (s *SQLiteIndex) insert(rec match.TickRecord) {
	_, _ = s.db.Exec(
		`INSERT OR REPLACE INTO match_ticks (tick, injections, full_tiles, delta_cells, digest) VALUES (?,?,?,?,?)`,
		rec.Tick, len(rec.Injections), rec.FullTiles, rec.DeltaCells, rec.Digest,
	)
	for _, inj := range rec.Injections {
		direct := 0
		if inj.Direct {
			direct = 1
		}
		_, _ = s.db.Exec(
			`INSERT INTO injections (tick, kind, x, y, amount, radius, direct) VALUES (?,?,?,?,?,?,?)`,
			rec.Tick, inj.Kind, inj.X, inj.Y, inj.Amount, inj.Radius, direct,
		)
	}
}

// Index enqueues a record; when the queue is full the record is counted and
// dropped rather than blocking the caller.
func (s *SQLiteIndex) Index(rec match.TickRecord) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

// TickCount reports how many eventful ticks were indexed.
func (s *SQLiteIndex) TickCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM match_ticks`).Scan(&n)
	return n, err
}

// InjectionCount reports the number of indexed injections for one kind, or
// all kinds when kind is empty.
func (s *SQLiteIndex) InjectionCount(kind string) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM injections`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM injections WHERE kind = ?`, kind).Scan(&n)
	}
	return n, err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
