package match

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/field"
	"emberfield/internal/sim/kernel"
	"emberfield/internal/sim/tuning"
)

type Config struct {
	ID      string
	Seed    int64
	Backend string // "", "scalar", "parallel"
}

// Injection is one localized write request from the combat layer (or the
// wire, for bots and replays).
type Injection struct {
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Amount float64 `json:"amount,omitempty"`
	Radius float64 `json:"radius"`
	Direct bool    `json:"direct,omitempty"`
	Source string  `json:"source,omitempty"`
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type clientState struct {
	Out chan []byte
}

// Recorder receives one entry per tick for the match event log. May be nil.
type Recorder interface {
	RecordTick(entry TickRecord) error
}

type TickRecord struct {
	Tick       uint64      `json:"tick"`
	Injections []Injection `json:"injections,omitempty"`
	FullTiles  int         `json:"full_tiles,omitempty"`
	DeltaCells int         `json:"delta_cells,omitempty"`
	Digest     string      `json:"digest,omitempty"`
}

// Match is the host-authoritative simulation of one destructible grid. All
// state is owned by the loop goroutine; everything external talks to it
// through channels. Remote peers never tick their own copy, they apply what
// this match broadcasts.
type Match struct {
	cfg     Config
	tune    tuning.Tuning
	store   *field.Store
	backend kernel.Backend

	tick      atomic.Uint64
	sessionID string

	inbox  chan Injection
	join   chan JoinRequest
	leave  chan string
	resync chan string
	stop   chan struct{}

	clients     map[string]*clientState
	nextPeerNum atomic.Uint64

	// lastScan mirrors what a fully-synced replica holds; periodic deltas
	// diff the live surface against it and only shipped cells update it.
	lastScan *field.Fields

	recorder Recorder
	logger   *log.Logger
}

func New(cfg Config, tune tuning.Tuning, logger *log.Logger) *Match {
	store := field.Generate(field.GridConfig{
		TilesX:   tune.Grid.TilesX,
		TilesY:   tune.Grid.TilesY,
		TileSize: tune.Grid.TileSize,
		SubDiv:   tune.Grid.SubDiv,
	}, cfg.Seed)

	m := &Match{
		cfg:       cfg,
		tune:      tune,
		store:     store,
		backend:   kernel.Select(&tune, cfg.Seed, cfg.Backend, logger),
		sessionID: uuid.NewString(),
		inbox:     make(chan Injection, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan string, 64),
		resync:    make(chan string, 64),
		stop:      make(chan struct{}),
		clients:   map[string]*clientState{},
		logger:    logger,
	}
	m.lastScan = field.NewFields(store.SubW(), store.SubH())
	m.lastScan.CopyFrom(store.Front())
	return m
}

func (m *Match) SetRecorder(r Recorder) { m.recorder = r }

func (m *Match) Store() *field.Store { return m.store }
func (m *Match) BackendName() string { return m.backend.Name() }
func (m *Match) SessionID() string   { return m.sessionID }
func (m *Match) CurrentTick() uint64 { return m.tick.Load() }

func (m *Match) Inbox() chan<- Injection  { return m.inbox }
func (m *Match) Join() chan<- JoinRequest { return m.join }
func (m *Match) Leave() chan<- string     { return m.leave }
func (m *Match) Resync() chan<- string    { return m.resync }

func (m *Match) Stop() { close(m.stop) }

// LastScanIntegrity exposes the shipped-state baseline so tools can compute
// the same digest the recorder captured.
func (m *Match) LastScanIntegrity() []float32 { return m.lastScan.Integrity }

// Run drives the simulation at the configured tick rate until the context
// ends. One tick fully completes, swap included, before the next begins.
func (m *Match) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(m.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Fixed dt keeps the simulation deterministic for a given injection
	// schedule, which is what makes offline replay verification possible.
	dt := interval.Seconds()

	var pending []Injection
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		case req := <-m.join:
			m.handleJoin(req)
		case id := <-m.leave:
			delete(m.clients, id)
		case id := <-m.resync:
			m.handleResync(id)
		case inj := <-m.inbox:
			pending = append(pending, inj)
		case <-ticker.C:
			m.step(pending, dt)
			pending = pending[:0]
		}
	}
}

// step is one authoritative tick: accumulate injections, run the kernel
// pass, then let the sync layer read the new state. Injections land in the
// front surface before the pass so the kernel reads the accumulated state.
func (m *Match) step(pending []Injection, dt float64) {
	tick := m.tick.Add(1)

	var fullTiles []field.TileCoord
	for _, inj := range pending {
		fullTiles = append(fullTiles, m.applyInjection(inj)...)
	}

	m.backend.Step(m.store, tick, dt)

	sent := m.emitFullTiles(tick, fullTiles, pending)

	deltaCells := 0
	if m.tune.DeltaEveryTicks > 0 && tick%uint64(m.tune.DeltaEveryTicks) == 0 {
		deltaCells = m.emitDelta(tick)
	}

	if m.recorder != nil && (len(pending) > 0 || deltaCells > 0) {
		rec := TickRecord{
			Tick:       tick,
			Injections: append([]Injection(nil), pending...),
			FullTiles:  sent,
			DeltaCells: deltaCells,
			Digest:     m.store.DigestWith(m.lastScan.Integrity),
		}
		if err := m.recorder.RecordTick(rec); err != nil && m.logger != nil {
			m.logger.Printf("recorder: %v", err)
		}
	}
}

// StepOnce advances the match synchronously outside Run. Tests, offline play
// and the replay tool drive the loop themselves.
func (m *Match) StepOnce(pending []Injection, dt float64) {
	m.step(pending, dt)
}

func (m *Match) handleJoin(req JoinRequest) {
	idNum := m.nextPeerNum.Add(1)
	peerID := newPeerID(idNum)
	if req.Out != nil {
		m.clients[peerID] = &clientState{Out: req.Out}
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       m.sessionID,
		PeerID:          peerID,
		World: protocol.WorldParams{
			Seed:       m.cfg.Seed,
			TilesX:     m.tune.Grid.TilesX,
			TilesY:     m.tune.Grid.TilesY,
			TileSize:   m.tune.Grid.TileSize,
			SubDiv:     m.tune.Grid.SubDiv,
			TickRateHz: m.tune.TickRateHz,
		},
		TuningDigest: m.tune.Digest(),
		ServerTick:   m.tick.Load(),
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: welcome}
	}
	// A peer joining mid-match needs everything that already diverged from
	// the seeded layout.
	if req.Out != nil {
		m.sendActiveTiles(m.tick.Load(), m.clients[peerID])
	}
}

func (m *Match) handleResync(peerID string) {
	c, ok := m.clients[peerID]
	if !ok {
		return
	}
	m.sendActiveTiles(m.tick.Load(), c)
}

func (m *Match) broadcast(b []byte) {
	for id, c := range m.clients {
		select {
		case c.Out <- b:
		default:
			// Slow consumer; the periodic delta is self-healing, so
			// dropping here is safe for eventual consistency.
			if m.logger != nil {
				m.logger.Printf("peer %s send queue full, dropping message", id)
			}
		}
	}
}

func (m *Match) sendTo(c *clientState, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.Out <- b:
	default:
	}
}

func newPeerID(n uint64) string {
	return "P" + strconv.FormatUint(n, 10) + "-" + uuid.NewString()[:8]
}
