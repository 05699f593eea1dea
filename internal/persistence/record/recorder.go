package record

import (
	"path/filepath"

	"emberfield/internal/sim/match"
)

// MatchRecorder fans one tick record out to the compressed event log and,
// when enabled, the sqlite read-model index. It satisfies match.Recorder.
type MatchRecorder struct {
	events *JSONLZstdWriter
	index  *SQLiteIndex
}

// Open creates the recorder under dataDir/matches/<matchID>/. The index is
// optional; pass withIndex=false to keep only the event log.
func Open(dataDir, matchID string, withIndex bool) (*MatchRecorder, error) {
	dir := filepath.Join(dataDir, "matches", matchID)
	events, err := NewJSONLZstdWriter(filepath.Join(dir, "events.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	r := &MatchRecorder{events: events}
	if withIndex {
		idx, err := OpenSQLite(filepath.Join(dir, "index.db"))
		if err != nil {
			_ = events.Close()
			return nil, err
		}
		r.index = idx
	}
	return r, nil
}

func (r *MatchRecorder) RecordTick(rec match.TickRecord) error {
	if r.index != nil {
		r.index.Index(rec)
	}
	return r.events.Write(rec)
}

func (r *MatchRecorder) Close() error {
	err := r.events.Close()
	if r.index != nil {
		if ierr := r.index.Close(); err == nil {
			err = ierr
		}
	}
	return err
}
