// Command remoteiq-server is the CLI entrypoint for the remoteiq server:
// it loads configuration, wires the protocol/server/compressor/dsp
// collaborators, and runs the TCP (and optional WSS) listener until
// interrupted (spec §6's CLI surface).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwsl/remoteiq/internal/blacklist"
	"github.com/cwsl/remoteiq/internal/compressor"
	"github.com/cwsl/remoteiq/internal/config"
	"github.com/cwsl/remoteiq/internal/dsp"
	"github.com/cwsl/remoteiq/internal/metrics"
	"github.com/cwsl/remoteiq/internal/protocol"
	"github.com/cwsl/remoteiq/internal/ratelimit"
	"github.com/cwsl/remoteiq/internal/server"
)

// Exit codes per spec §6.
const (
	exitOK            = 0
	exitInvalidConfig = 2
	exitBindFailure   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to server configuration file")
	listenAddress := flag.String("listen-address", "", "override listen_address")
	listenPort := flag.Int("listen-port", 0, "override listen_port")
	certPath := flag.String("cert-path", "", "override cert_path")
	keyPath := flag.String("key-path", "", "override key_path")
	maxClients := flag.Int("max-clients", 0, "override max_clients")
	timeLimitMinutes := flag.Int("time-limit-minutes", -1, "override time_limit_minutes")
	maxSampleRate := flag.Int("max-sample-rate", 0, "override max_sample_rate")
	bitDepth := flag.Int("bit-depth", 0, "override bit_depth")
	compression := flag.String("compression", "", "override compression {none|flac|zlib}")
	compressionLevel := flag.Int("compression-level", -1, "override compression_level")
	blockSize := flag.Int("block-size", 0, "override block_size")
	remoteControl := flag.String("remote-control", "", "override remote_control {on|off}")
	iqOnly := flag.String("iq-only", "", "override iq_only {on|off}")
	ipBlacklist := flag.String("ip-blacklist", "", "override ip_blacklist path")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		log.Printf("server: %v", err)
		return exitInvalidConfig
	}
	applyFlagOverrides(cfg, *listenAddress, *listenPort, *certPath, *keyPath, *maxClients,
		*timeLimitMinutes, *maxSampleRate, *bitDepth, *compression, *compressionLevel,
		*blockSize, *remoteControl, *iqOnly, *ipBlacklist)
	if err := cfg.Validate(); err != nil {
		log.Printf("server: %v", err)
		return exitInvalidConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("server: shutting down")
		cancel()
	}()

	reg := metrics.New()
	if cfg.MetricsListen != "" {
		go func() {
			if err := reg.Serve(ctx, cfg.MetricsListen); err != nil {
				log.Printf("server: metrics server: %v", err)
			}
		}()
	}

	bl, err := blacklist.New(cfg.IPBlacklistPath)
	if err != nil {
		log.Printf("server: loading ip blacklist: %v", err)
		return exitInvalidConfig
	}

	roster := server.NewRoster(cfg.MaxClients, durationFromMinutes(cfg.TimeLimitMinutes), cfg.Callsign, reg)
	device := server.NewNullDevice()

	pushFrame := func(to *server.Session, frame []byte) {
		if to.Writer != nil {
			to.Writer.Write(frame)
		}
	}
	broadcast := func(from *server.Session, msg protocol.ChatMessage) {
		frame := protocol.EncodeSendMessage(msg)
		for _, sess := range roster.Active() {
			if sess == from {
				continue
			}
			pushFrame(sess, frame)
		}
	}
	unicast := func(to *server.Session, msg protocol.ChatMessage) {
		pushFrame(to, protocol.EncodeSendMessage(msg))
	}

	channelSettings := dsp.Settings{
		ChannelSampleRate: cfg.DeviceSampleRate,
	}
	channel := dsp.NewSink(dsp.PassthroughResampler{}, channelSettings)

	control := server.NewControlPlane(device, uint32(cfg.MaxSampleRate), roster, channel, channelSettings, broadcast, unicast, pushFrame)

	stopDetector := make(chan struct{})
	go control.RunChangeDetector(stopDetector)
	defer close(stopDetector)

	fanout := server.NewFanout(roster, channel)

	// Per spec §5's single shared stream, FLAC/zlib sessions all share one
	// encoder instance: one continuous FLAC bitstream (or, for zlib, one
	// stateless codec reused across calls) rather than a private encoder
	// per client.
	var codec compressor.IQBlockEncoder
	var flacHeader []byte
	switch cfg.Compression {
	case config.CompressionFLAC:
		enc, err := compressor.NewFLACEncoder(cfg.MaxSampleRate, cfg.BitDepth, cfg.CompressionLevel, cfg.BlockSize)
		if err != nil {
			log.Printf("server: flac encoder init: %v", err)
		} else {
			flacHeader = enc.Header()
			codec = enc
		}
	case config.CompressionZLib:
		codec = compressor.NewDeflateCodec(cfg.CompressionLevel, cfg.BlockSize)
	}

	limiter := ratelimit.NewIPLimiter(cfg.ConnRateLimit)

	opts := server.Options{
		Callsign:         cfg.Callsign,
		MaxClients:       cfg.MaxClients,
		TimeLimit:        durationFromMinutes(cfg.TimeLimitMinutes),
		RemoteControl:    cfg.RemoteControl,
		IQOnly:           cfg.IQOnly,
		Compression:      compressionModeFrom(cfg.Compression),
		CompressionLevel: cfg.CompressionLevel,
		BlockSize:        cfg.BlockSize,
		DeviceSampleRate: uint32(cfg.DeviceSampleRate),
		MaxSampleRate:    uint32(cfg.MaxSampleRate),
		BitDepth:         cfg.BitDepth,
		WriteQueueDepth:  64,
		WriteDeadline:    5 * time.Second,
	}

	listener := server.NewListener(opts, roster, bl, limiter, reg, control, fanout, codec, flacHeader)

	source := server.NewSyntheticSource(cfg.DeviceSampleRate, cfg.BlockSize, 1000)
	go source.Run(ctx, fanout.Deliver)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	errCh := make(chan error, 2)
	go func() { errCh <- listener.ListenTCP(ctx, addr) }()

	if cfg.CertPath != "" && cfg.KeyPath != "" {
		wssAddr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort+1)
		go func() { errCh <- listener.ServeWSS(ctx, wssAddr, "/", cfg.CertPath, cfg.KeyPath) }()
	}

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("server: %v", err)
			return exitBindFailure
		}
	case <-ctx.Done():
	}
	return exitOK
}

func durationFromMinutes(minutes int) time.Duration {
	if minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

func compressionModeFrom(mode config.CompressionMode) compressor.Mode {
	switch mode {
	case config.CompressionFLAC:
		return compressor.ModeFLAC
	case config.CompressionZLib:
		return compressor.ModeZLib
	default:
		return compressor.ModeNone
	}
}

// applyFlagOverrides merges any explicitly-set CLI flags over the values
// loaded from the config file; it does not re-apply defaults or validate
// (run validates the merged config afterward). Flags left at their sentinel zero values (empty string, -1, or 0 where
// 0 is not itself a valid override) are left untouched.
func applyFlagOverrides(cfg *config.Server, listenAddress string, listenPort int, certPath, keyPath string,
	maxClients, timeLimitMinutes, maxSampleRate, bitDepth int, compression string, compressionLevel, blockSize int,
	remoteControl, iqOnly, ipBlacklist string) {
	if listenAddress != "" {
		cfg.ListenAddress = listenAddress
	}
	if listenPort != 0 {
		cfg.ListenPort = listenPort
	}
	if certPath != "" {
		cfg.CertPath = certPath
	}
	if keyPath != "" {
		cfg.KeyPath = keyPath
	}
	if maxClients != 0 {
		cfg.MaxClients = maxClients
	}
	if timeLimitMinutes >= 0 {
		cfg.TimeLimitMinutes = timeLimitMinutes
	}
	if maxSampleRate != 0 {
		cfg.MaxSampleRate = maxSampleRate
	}
	if bitDepth != 0 {
		cfg.BitDepth = bitDepth
	}
	if compression != "" {
		cfg.Compression = config.CompressionMode(compression)
	}
	if compressionLevel >= 0 {
		cfg.CompressionLevel = compressionLevel
	}
	if blockSize != 0 {
		cfg.BlockSize = blockSize
	}
	if remoteControl != "" {
		cfg.RemoteControl = remoteControl == "on"
	}
	if iqOnly != "" {
		cfg.IQOnly = iqOnly == "on"
	}
	if ipBlacklist != "" {
		cfg.IPBlacklistPath = ipBlacklist
	}
}
