// Command engine is a headless demo host: it builds a session,
// publishes a minimal two-track snapshot, and processes a fixed number
// of silent blocks while draining the main-thread queues. It exists to
// exercise pkg/session's wiring end to end without an audio backend;
// cmd/sdlhost drives the same Engine with real audio I/O.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/basslineaudio/sessioncore/pkg/config"
	"github.com/basslineaudio/sessioncore/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to a session config JSON file (optional)")
	blocks := flag.Int("blocks", 100, "number of blocks to process")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("engine: %v", err)
		}
		cfg = loaded
	}

	eng, err := session.Build(cfg, 2)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	frameCount := uint32(cfg.MaxFrames)
	if frameCount > 512 {
		frameCount = 512
	}

	for i := 0; i < *blocks; i++ {
		eng.ProcessBlock(frameCount)
		eng.Drain()
	}

	l, r := eng.MasterBuffers()
	fmt.Printf("processed %d blocks of %d frames; master[0]=(%.6f, %.6f)\n", *blocks, frameCount, l[0], r[0])
	if dropped := eng.Log.Dropped(); dropped > 0 {
		fmt.Printf("warning: %d log messages dropped\n", dropped)
	}
}
