package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"focusflow/internal/session"
)

// ErrNoIdentity is returned when a workspace is requested for an identity
// that is not present.
var ErrNoIdentity = errors.New("no signed-in identity")

const fetchTimeout = 15 * time.Second

type entry struct {
	ws       *Workspace
	lastUsed time.Time
}

// Manager keeps one workspace per live session. It follows the session
// provider: a session turning present gets a freshly fetched workspace, a
// session turning absent has its workspace torn down.
type Manager struct {
	stores Stores
	log    *logrus.Entry
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(stores Stores, log *logrus.Entry) *Manager {
	return &Manager{
		stores:   stores,
		log:      log.WithField("component", "workspaces"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Observe reacts to a session event. Pass it to session.Provider.Subscribe.
func (m *Manager) Observe(ev session.Event) {
	switch ev.Identity.Status {
	case session.StatusPresent:
		ws, created := m.open(ev.SessionID, ev.Identity.UserID())
		if !created {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := ws.FetchAll(ctx); err != nil {
			m.log.WithError(err).WithField("session_id", ev.SessionID).Warn("initial fetch failed")
		}
	case session.StatusAbsent:
		m.drop(ev.SessionID)
	}
}

// Workspace returns the workspace of a present identity, opening and
// fetching it on first use.
func (m *Manager) Workspace(ctx context.Context, id session.Identity) (*Workspace, error) {
	if id.Status != session.StatusPresent || id.UserID() == "" {
		return nil, ErrNoIdentity
	}
	ws, created := m.open(id.SessionID, id.UserID())
	if created {
		if err := ws.FetchAll(ctx); err != nil {
			m.log.WithError(err).WithField("session_id", id.SessionID).Warn("initial fetch failed")
		}
	}
	return ws, nil
}

// Sweep closes workspaces unused for longer than idle and returns how many.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []*Workspace
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.ws)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, ws := range stale {
		ws.Close()
	}
	if len(stale) > 0 {
		m.log.WithField("count", len(stale)).Info("swept idle workspaces")
	}
	return len(stale)
}

// Len reports the number of open workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll tears down every workspace.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range all {
		e.ws.Close()
	}
}

func (m *Manager) open(sessionID, ownerID string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok && e.ws.OwnerID == ownerID {
		e.lastUsed = m.now()
		return e.ws, false
	} else if ok {
		e.ws.Close()
	}

	ws := NewWorkspace(sessionID, ownerID, m.stores, m.log)
	m.sessions[sessionID] = &entry{ws: ws, lastUsed: m.now()}
	return ws, true
}

func (m *Manager) drop(sessionID string) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		e.ws.Close()
		m.log.WithField("session_id", sessionID).Info("workspace closed")
	}
}
