package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/cwsl/remoteiq/internal/metrics"
)

// Roster tracks every connected session and implements the admission
// policy of spec §4.2: the first max_clients sessions (in connect order)
// are Active, the rest are Queued and renumbered on every departure.
type Roster struct {
	mu          sync.Mutex
	order       []*Session // connect order; index < maxClients are Active
	byID        map[string]*Session
	maxClients  int
	timeLimit   time.Duration
	callsign    string
	metrics     *metrics.Registry
}

// NewRoster builds an empty roster admitting up to maxClients Active
// sessions, each allotted timeLimit before being disconnected (0 =
// unlimited). callsign is stored and passed to queueMessage, but the
// "server busy" text does not include it, and Listener sends queue
// messages with an empty Callsign field.
func NewRoster(maxClients int, timeLimit time.Duration, callsign string, reg *metrics.Registry) *Roster {
	return &Roster{
		byID:       make(map[string]*Session),
		maxClients: maxClients,
		timeLimit:  timeLimit,
		callsign:   callsign,
		metrics:    reg,
	}
}

// Add appends sess to the roster, admitting it Active or Queued per spec
// §4.2 step 2, and returns the admission state plus (for Queued sessions)
// the chat message to send immediately.
func (r *Roster) Add(sess *Session, onExpire func(*Session)) (AdmissionState, string) {
	r.mu.Lock()
	r.order = append(r.order, sess)
	r.byID[sess.ID] = sess
	idx := len(r.order) - 1
	r.mu.Unlock()

	if idx < r.maxClients {
		sess.setState(StateActive)
		sess.StartDeadline(r.timeLimit, func() { onExpire(sess) })
		r.updateMetrics()
		return StateActive, ""
	}

	pos := idx - r.maxClients + 1
	sess.setState(StateQueued)
	sess.setQueuePosition(pos)
	r.updateMetrics()
	return StateQueued, queueMessage(r.callsign, pos)
}

// Remove drops sess from the roster. If an Active slot opened up, the
// front Queued session is promoted; every remaining Queued session is
// renumbered and notified (spec §4.2's "On disconnect" policy).
//
// promote receives the session to promote (nil if none), notify receives
// each renumbered Queued session along with its fresh chat text, and
// onExpire arms the promoted session's fresh time-limit deadline — the
// same callback Add uses, so a session promoted out of the queue is
// disconnected on schedule just like one admitted Active from the start.
func (r *Roster) Remove(sess *Session, promote func(*Session), notify func(*Session, string), onExpire func(*Session)) {
	sess.StopDeadline()

	r.mu.Lock()
	wasActive := false
	for i, s := range r.order {
		if s.ID == sess.ID {
			wasActive = i < r.maxClients
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.byID, sess.ID)

	var toPromote *Session
	var renumbered []*Session
	if wasActive && len(r.order) >= r.maxClients {
		toPromote = r.order[r.maxClients-1]
	}
	for i := r.maxClients; i < len(r.order); i++ {
		renumbered = append(renumbered, r.order[i])
	}
	callsign := r.callsign
	r.mu.Unlock()

	if toPromote != nil {
		toPromote.setState(StateActive)
		toPromote.setQueuePosition(0)
		toPromote.StartDeadline(r.timeLimit, func() { onExpire(toPromote) })
		if promote != nil {
			promote(toPromote)
		}
	}

	for i, s := range renumbered {
		pos := i + 1
		s.setQueuePosition(pos)
		if notify != nil {
			notify(s, queueMessage(callsign, pos))
		}
	}

	r.updateMetrics()
}

// Active returns every currently Active session, snapshotted under the
// roster lock.
func (r *Roster) Active() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.maxClients
	if n > len(r.order) {
		n = len(r.order)
	}
	out := make([]*Session, n)
	copy(out, r.order[:n])
	return out
}

// All returns every session regardless of admission state.
func (r *Roster) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.order))
	copy(out, r.order)
	return out
}

// Get looks up a session by ID. DispatchChat does not use it.
func (r *Roster) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Roster) updateMetrics() {
	if r.metrics == nil {
		return
	}
	r.mu.Lock()
	active := r.maxClients
	if active > len(r.order) {
		active = len(r.order)
	}
	queued := len(r.order) - active
	r.mu.Unlock()
	r.metrics.SetActiveSessions(active)
	r.metrics.SetQueuedSessions(queued)
}

func queueMessage(callsign string, position int) string {
	if position <= 0 {
		return ""
	}
	return "server busy, you are " + strconv.Itoa(position) + " in the queue"
}
