package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"emberfield/internal/protocol"
	"emberfield/internal/transport/ws"
)

// bot joins a host as a replica peer, optionally lobs random destruction at
// the grid, and prints destruction statistics as sync messages arrive. It is
// the smoke-test client for the sync protocol.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "host ws url")
		name   = flag.String("name", "bot", "peer name")
		attack = flag.Bool("attack", false, "send random injections")
		every  = flag.Duration("every", 2*time.Second, "attack interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	client, err := ws.Dial(*url, *name, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer client.Close()

	welcome := client.Welcome()
	logger.Printf("joined session %s as %s, seed=%d grid=%dx%d",
		welcome.SessionID, welcome.PeerID, welcome.World.Seed, welcome.World.TilesX, welcome.World.TilesY)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		cancel()
		client.Close()
	}()

	if *attack {
		go attackLoop(ctx, client, welcome.World, *every, logger)
	}

	fullTiles, deltas := 0, 0
	err = client.Run(ctx, func(base protocol.BaseMessage) {
		switch base.Type {
		case protocol.TypeFullTile:
			fullTiles++
		case protocol.TypeDelta:
			deltas++
		}
		if (fullTiles+deltas)%25 == 0 {
			logger.Printf("applied %d full tiles, %d deltas, digest=%s", fullTiles, deltas, client.Replica().Store().Digest())
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Printf("connection lost: %v", err)
	}
}

func attackLoop(ctx context.Context, client *ws.Client, world protocol.WorldParams, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()

	maxX := float64(world.TilesX) * world.TileSize
	maxY := float64(world.TilesY) * world.TileSize
	kinds := []string{protocol.InjectHeat, protocol.InjectIgnite, protocol.InjectDestroy}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			inj := protocol.InjectMsg{
				Kind:   kinds[rand.IntN(len(kinds))],
				X:      rand.Float64() * maxX,
				Y:      rand.Float64() * maxY,
				Amount: 0.5 + rand.Float64(),
				Radius: 24 + rand.Float64()*64,
				Direct: rand.IntN(3) == 0,
				Source: "bot",
			}
			if err := client.SendInject(inj); err != nil {
				logger.Printf("inject: %v", err)
				return
			}
		}
	}
}
