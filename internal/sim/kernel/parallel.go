package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"emberfield/internal/sim/field"
	"emberfield/internal/sim/tuning"
)

// Parallel shards the tick across a persistent worker pool, each worker
// stepping a band of rows from the read surface into the write surface. The
// buffer swap is the single synchronization point of the tick: workers are
// joined first, then the surfaces exchange and the generation counter
// advances. Injections always land in the front surface between ticks, and a
// pass writes every cell of the back surface, so a localized write can never
// be silently lost across a swap boundary.
type Parallel struct {
	tune    *tuning.Tuning
	seed    int64
	back    *field.Fields
	workers int

	gen atomic.Uint64

	jobs chan bandJob
	wg   sync.WaitGroup
}

type bandJob struct {
	st   *field.Store
	src  *field.Fields
	dst  *field.Fields
	tick uint64
	dt   float64
	y0   int
	y1   int
	done *sync.WaitGroup
}

func NewParallel(tune *tuning.Tuning, seed int64, workers int) (*Parallel, error) {
	if err := validateGrid(tune); err != nil {
		return nil, err
	}
	if workers < 2 {
		return nil, fmt.Errorf("parallel backend needs at least 2 workers, have %d", workers)
	}
	t := *tune
	p := &Parallel{
		tune:    &t,
		seed:    seed,
		back:    field.NewFields(tune.Grid.TilesX*tune.Grid.SubDiv, tune.Grid.TilesY*tune.Grid.SubDiv),
		workers: workers,
		jobs:    make(chan bandJob),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *Parallel) worker() {
	for job := range p.jobs {
		stepRows(job.st, job.src, job.dst, p.tune, p.seed, job.tick, job.dt, job.y0, job.y1)
		job.done.Done()
	}
}

func (p *Parallel) Name() string { return "parallel" }

// Generation counts completed passes; exposed for swap-boundary assertions.
func (p *Parallel) Generation() uint64 { return p.gen.Load() }

func (p *Parallel) Step(st *field.Store, tick uint64, dt float64) {
	dt = clampDT(p.tune, dt)
	src := st.Front()

	var done sync.WaitGroup
	rows := src.H
	band := (rows + p.workers - 1) / p.workers
	for y0 := 0; y0 < rows; y0 += band {
		y1 := y0 + band
		if y1 > rows {
			y1 = rows
		}
		done.Add(1)
		p.jobs <- bandJob{st: st, src: src, dst: p.back, tick: tick, dt: dt, y0: y0, y1: y1, done: &done}
	}
	done.Wait()

	prev := st.SwapFront(p.back)
	p.back = prev
	p.gen.Add(1)
	st.ReconcileActivity(prev)
}

// Close stops the worker pool. The backend is unusable afterwards.
func (p *Parallel) Close() { close(p.jobs) }
