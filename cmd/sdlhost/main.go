// Command sdlhost drives a session.Engine with a real audio output
// device via SDL2. Grounded on the pack's SDL2 audio driver pattern
// (RetroCodeRamen-Nitro-Core-DX internal/ui/ui.go: InitSubSystem,
// AudioSpec, OpenAudioDevice, QueueAudio), adapted from a
// fixed-framerate game-audio queue to a block loop of 1024 frames
// (truncated to max_frames when that is smaller).
package main

import (
	"flag"
	"log"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/basslineaudio/sessioncore/pkg/config"
	"github.com/basslineaudio/sessioncore/pkg/session"
)

// maxQueuedBytes bounds how far ahead of the output device the engine
// is allowed to render before it throttles, so a stalled UI thread
// cannot make the process queue unbounded memory.
const maxQueuedBytes = 1 << 20

func main() {
	configPath := flag.String("config", "", "path to a session config JSON file (optional)")
	tracks := flag.Int("tracks", 2, "number of tracks to build")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("sdlhost: %v", err)
		}
		cfg = loaded
	}

	eng, err := session.Build(cfg, *tracks)
	if err != nil {
		log.Fatalf("sdlhost: %v", err)
	}

	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		log.Fatalf("sdlhost: sdl init: %v", err)
	}
	defer sdl.QuitSubSystem(sdl.INIT_AUDIO)

	frameCount := uint32(1024)
	if int(frameCount) > cfg.MaxFrames {
		log.Printf("sdlhost: block of %d frames exceeds max_frames %d; truncating", frameCount, cfg.MaxFrames)
		frameCount = uint32(cfg.MaxFrames)
	}
	spec := sdl.AudioSpec{
		Freq:     int32(cfg.SampleRate),
		Format:   sdl.AUDIO_F32,
		Channels: 2,
		Samples:  uint16(frameCount),
	}
	dev, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err != nil {
		log.Fatalf("sdlhost: open audio device: %v", err)
	}
	defer sdl.CloseAudioDevice(dev)
	sdl.PauseAudioDevice(dev, false)

	interleaved := make([]float32, frameCount*2)

	tick := time.NewTicker(time.Second / 120)
	defer tick.Stop()
	for range tick.C {
		eng.Drain()

		if sdl.GetQueuedAudioSize(dev) > uint32(maxQueuedBytes) {
			continue
		}

		eng.ProcessBlock(frameCount)
		l, r := eng.MasterBuffers()
		for i := uint32(0); i < frameCount; i++ {
			interleaved[i*2] = l[i]
			interleaved[i*2+1] = r[i]
		}

		bytes := unsafe.Slice((*byte)(unsafe.Pointer(&interleaved[0])), len(interleaved)*4)
		if err := sdl.QueueAudio(dev, bytes); err != nil {
			eng.Log.Error("sdlhost", "queue audio: %v", err)
		}
	}
}
