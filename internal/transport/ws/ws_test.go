package ws

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emberfield/internal/protocol"
	"emberfield/internal/sim/field"
	"emberfield/internal/sim/match"
	"emberfield/internal/sim/tuning"
)

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testTune() tuning.Tuning {
	tune := tuning.Defaults()
	tune.Grid = tuning.GridTuning{TilesX: 10, TilesY: 10, TileSize: 32, SubDiv: 4}
	tune.DeltaEveryTicks = 5
	return tune
}

// startHost spins up a running match behind a websocket endpoint and returns
// it together with an interior wood tile to shoot at.
func startHost(t *testing.T) (*match.Match, string, int, int, func()) {
	t.Helper()
	for seed := int64(1); seed <= 100; seed++ {
		mgr := match.NewManager()
		m, err := mgr.Create(match.Config{ID: "ws-test", Seed: seed, Backend: "scalar"}, testTune(), testLogger())
		if err != nil {
			t.Fatalf("create match: %v", err)
		}
		cfg := m.Store().Config()
		for ty := 1; ty < cfg.TilesY-1; ty++ {
			for tx := 1; tx < cfg.TilesX-1; tx++ {
				if m.Store().MaterialAt(tx, ty) != field.MaterialWood {
					continue
				}
				if err := mgr.Start("ws-test"); err != nil {
					t.Fatalf("start match: %v", err)
				}
				srv := httptest.NewServer(NewServer(mgr, testLogger()).Handler())
				url := "ws" + strings.TrimPrefix(srv.URL, "http")
				stop := func() {
					mgr.StopAll()
					srv.Close()
				}
				return m, url, tx, ty, stop
			}
		}
	}
	t.Fatalf("no seed in 1..100 generated an interior wood tile")
	return nil, "", 0, 0, nil
}

func TestDialHandshakeAndDestroyRoundTrip(t *testing.T) {
	m, url, tx, ty, stop := startHost(t)
	defer stop()

	client, err := Dial(url, "tester", testLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	welcome := client.Welcome()
	if welcome.ProtocolVersion != protocol.Version || welcome.PeerID == "" || welcome.SessionID == "" {
		t.Fatalf("incomplete welcome: %+v", welcome)
	}
	if welcome.World.TilesX != 10 || welcome.World.SubDiv != 4 {
		t.Fatalf("welcome world params wrong: %+v", welcome.World)
	}
	if welcome.SessionID != m.SessionID() {
		t.Fatalf("session id mismatch")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type tileState struct {
		block    []float32
		material field.Material
	}
	// Replica state is read inside the apply callback, which runs on the same
	// goroutine as the applies themselves.
	fullTiles := make(chan tileState, 64)
	go client.Run(ctx, func(base protocol.BaseMessage) {
		if base.Type == protocol.TypeFullTile {
			select {
			case fullTiles <- tileState{
				block:    client.Replica().Store().IntegrityBlock(tx, ty),
				material: client.Replica().Store().MaterialAt(tx, ty),
			}:
			default:
			}
		}
	})

	cfg := m.Store().Config()
	inj := protocol.InjectMsg{
		Kind:   protocol.InjectDestroy,
		X:      float64(tx)*cfg.TileSize + cfg.TileSize/2,
		Y:      float64(ty)*cfg.TileSize + cfg.TileSize/2,
		Amount: 1,
		Radius: 20,
		Direct: true,
		Source: "test",
	}
	if err := client.SendInject(inj); err != nil {
		t.Fatalf("SendInject: %v", err)
	}

	// Several tiles may ship when the blast straddles a boundary; wait for
	// the one covering the aim point.
	deadline := time.After(5 * time.Second)
	for {
		var got tileState
		select {
		case got = <-fullTiles:
		case <-deadline:
			t.Fatalf("destroyed tile never arrived at the replica")
		}
		if got.block == nil {
			continue
		}
		destroyed := 0
		for _, v := range got.block {
			if v == 0 {
				destroyed++
			}
		}
		if destroyed == 0 {
			continue
		}
		if got.material != field.MaterialWood {
			t.Fatalf("full tile update changed the tile material")
		}
		break
	}
}

func TestUnknownMatchRefusesUpgrade(t *testing.T) {
	_, url, _, _, stop := startHost(t)
	defer stop()

	if _, _, err := websocket.DefaultDialer.Dial(url+"?match=nope", nil); err == nil {
		t.Fatalf("connected to a match that does not exist")
	}
}

func TestHandshakeRejectsNonHello(t *testing.T) {
	_, url, _, _, stop := startHost(t)
	defer stop()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	inject := protocol.InjectMsg{Type: protocol.TypeInject, ProtocolVersion: protocol.Version, Kind: protocol.InjectHeat, Radius: 1}
	if err := conn.WriteJSON(inject); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("server answered a connection that skipped HELLO")
	}
}

func TestHandshakeRejectsBadVersion(t *testing.T) {
	_, url, _, _, stop := startHost(t)
	defer stop()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", PeerName: "old"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("server welcomed a peer speaking protocol 0.1")
	}
}
