// Command remoteiq-client is the CLI entrypoint for the remoteiq client:
// it loads configuration, connects ClientTCPHandler to a remoteiq
// server, and feeds decoded samples into a replay buffer that can be
// flushed to a WAV file on exit (spec §4.6, §4.8).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwsl/remoteiq/internal/client"
	"github.com/cwsl/remoteiq/internal/config"
	"github.com/cwsl/remoteiq/internal/replay"
	"github.com/cwsl/remoteiq/internal/sample"
)

const (
	exitOK            = 0
	exitInvalidConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to client configuration file")
	serverAddress := flag.String("server-address", "", "override server_address")
	serverPort := flag.Int("server-port", 0, "override server_port")
	useTLS := flag.Bool("use-tls", false, "accepted for config compatibility; the client always dials plain TCP")
	overrideRemote := flag.Bool("override-remote", false, "ignore server-pushed settings and push ours instead")
	outputWAVPath := flag.String("output-wav-path", "", "override output_wav_path")
	replaySeconds := flag.Float64("replay-buffer-seconds", 10, "length of the in-memory replay buffer")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Printf("client: %v", err)
		return exitInvalidConfig
	}
	if *serverAddress != "" {
		cfg.ServerAddress = *serverAddress
	}
	if *serverPort != 0 {
		cfg.ServerPort = *serverPort
	}
	if *useTLS {
		cfg.UseTLS = true
	}
	if *outputWAVPath != "" {
		cfg.OutputWAVPath = *outputWAVPath
	}

	initialRate := uint32(48000)
	buf := replay.New(*replaySeconds, int(initialRate))
	sink := &replaySink{buf: buf, rate: initialRate}

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddress, cfg.ServerPort)
	h := client.New(addr, cfg.UseTLS, *overrideRemote, cfg.PrefillSeconds, fifoSizeBytes, sink, client.Settings{
		ChannelSampleRate: initialRate,
		BitDepth:          16,
	})

	go h.Run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("client: shutting down")
	h.Stop()

	if cfg.OutputWAVPath != "" {
		s := h.Settings().Get()
		if err := buf.SaveWAV(cfg.OutputWAVPath, s.ChannelSampleRate, s.CenterFrequency); err != nil {
			log.Printf("client: saving wav: %v", err)
			return exitInvalidConfig
		}
		log.Printf("client: wrote replay buffer to %s", cfg.OutputWAVPath)
	}
	return exitOK
}

// fifoSizeBytes sizes ClientTCPHandler's jitter-buffer FIFO; grounded on
// the original's m_tcpBuf sizing (fifoSize*2*4 bytes of headroom at the
// widest bit depth the wire protocol supports, spec §4.6).
const fifoSizeBytes = 1 << 20

// replaySink adapts replay.Buffer to client.Sink, feeding every widened
// sample block into the replay buffer as it arrives.
type replaySink struct {
	buf  *replay.Buffer
	rate uint32
}

func (s *replaySink) Push(samples []sample.IQ) {
	s.buf.Write(samples)
}

func (s *replaySink) Stop() {}
