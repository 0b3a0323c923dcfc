// Package client implements ClientTCPHandler (spec §4.6): connecting to
// a remoteiq server, negotiating meta-data, maintaining a prefill/jitter
// buffer, and feeding a downstream DSP consumer with decoded IQ samples.
// Grounded on clients/go/radio_client.go's connect/reconnect/FIFO shape,
// generalized from that client's single hard-coded protocol variant to
// the RTL0/SDRA/spy-server negotiation spec §4.6 requires.
package client

import "sync"

// Settings mirrors every field the server's meta-data blocks can push
// to a client (spec §4.6's "apply every field to the local settings
// store"). A client with OverrideRemote set never accepts these pushes;
// instead it treats its own Settings as authoritative and pushes them to
// the server via command frames.
type Settings struct {
	CenterFrequency     uint64
	PPMCorrection       int32
	DeviceSampleRate    uint32
	DecimationLog2      uint32
	Gain                [4]int16
	RFBandwidth         uint32
	ChannelFreqOffset   int32
	ChannelGain         int32
	ChannelSampleRate   uint32
	BitDepth            uint32
	SquelchEnabled      bool
	Squelch             float32
	SquelchGate         float32
}

// SettingsStore guards Settings with a mutex, since the periodic-tick
// read goroutine and any UI/CLI surface reading current settings run
// concurrently (spec §5's "client-side concurrency mirrors the server").
type SettingsStore struct {
	mu       sync.RWMutex
	current  Settings
	override bool // true: local settings are authoritative, never overwritten by server pushes
}

// NewSettingsStore builds a store seeded with initial and the given
// override-remote-settings policy (spec §4.6).
func NewSettingsStore(initial Settings, override bool) *SettingsStore {
	return &SettingsStore{current: initial, override: override}
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ApplyFromServer overwrites the store from a server meta-data push,
// unless override is set — in which case the push is ignored (spec
// §4.6: "unless the user opted to override-remote-settings, apply every
// field").
func (s *SettingsStore) ApplyFromServer(next Settings) (applied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override {
		return false
	}
	s.current = next
	return true
}

// Override reports whether this store rejects server-pushed settings.
func (s *SettingsStore) Override() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override
}

// Set replaces the store's settings unconditionally, used when the user
// (in override mode) pushes local settings to the server.
func (s *SettingsStore) Set(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
}
