// Package blacklist implements the IP blacklist named in spec §4.6 and
// §6's "ip-blacklist" config surface: a YAML-backed, mutex-guarded set of
// banned addresses consulted by ServerListener on accept.
package blacklist

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry records one banned address. Unlike the ham-radio admin-console
// ban list this is adapted from, every entry here is permanent: the
// streaming spec has no admin UI to grant or track temporary bans, so
// Temporary/ExpiresAt and the expiry-sweep goroutine that went with them
// are dropped rather than carried forward unused.
type Entry struct {
	IP       string    `yaml:"ip"`
	Reason   string    `yaml:"reason"`
	BannedAt time.Time `yaml:"banned_at"`
}

// List is a mutex-guarded, file-backed set of banned IPs.
type List struct {
	mu       sync.RWMutex
	banned   map[string]*Entry
	filePath string
}

// New loads filePath (if it exists) and returns a ready List. A missing
// file is not an error: the blacklist starts empty.
func New(filePath string) (*List, error) {
	l := &List{
		banned:   make(map[string]*Entry),
		filePath: filePath,
	}
	if err := l.load(); err != nil {
		return nil, fmt.Errorf("blacklist: load %s: %w", filePath, err)
	}
	return l, nil
}

func (l *List) load() error {
	if l.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var doc struct {
		Banned []Entry `yaml:"banned_ips"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range doc.Banned {
		e := doc.Banned[i]
		l.banned[e.IP] = &e
	}
	log.Printf("blacklist: loaded %d banned IP(s) from %s", len(l.banned), l.filePath)
	return nil
}

func (l *List) save() error {
	if l.filePath == "" {
		return nil
	}

	l.mu.RLock()
	list := make([]Entry, 0, len(l.banned))
	for _, e := range l.banned {
		list = append(list, *e)
	}
	l.mu.RUnlock()

	doc := struct {
		Banned []Entry `yaml:"banned_ips"`
	}{Banned: list}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(l.filePath, data, 0644)
}

// IsBanned reports whether ip is currently blacklisted.
func (l *List) IsBanned(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, banned := l.banned[ip]
	return banned
}

// Ban permanently blacklists ip, persisting the updated list to disk.
func (l *List) Ban(ip, reason string) error {
	l.mu.Lock()
	l.banned[ip] = &Entry{IP: ip, Reason: reason, BannedAt: time.Now()}
	l.mu.Unlock()

	log.Printf("blacklist: banned %s (%s)", ip, reason)
	return l.save()
}

// Unban removes ip from the blacklist, persisting the updated list.
func (l *List) Unban(ip string) error {
	l.mu.Lock()
	delete(l.banned, ip)
	l.mu.Unlock()

	log.Printf("blacklist: unbanned %s", ip)
	return l.save()
}

// Entries returns a snapshot of every banned entry.
func (l *List) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.banned))
	for _, e := range l.banned {
		out = append(out, *e)
	}
	return out
}
