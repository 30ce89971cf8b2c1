package editor

import (
	"context"
	"sync"

	"designcomposer/core"
	"designcomposer/render"

	"github.com/sirupsen/logrus"
)

// Manager hands out the live editing session for a scene, loading the scene
// from the store on first access. One session per scene per process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    core.SceneStore
	renderer *render.Renderer
}

func NewManager(store core.SceneStore, renderer *render.Renderer) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		renderer: renderer,
	}
}

// Session returns the live session for a scene, creating it from the stored
// scene when the scene is not yet open.
func (m *Manager) Session(ctx context.Context, userID, sceneID string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[sceneID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	scene, err := m.store.Get(ctx, userID, sceneID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sceneID]; ok {
		return sess, nil
	}
	sess := NewSession(scene, m.renderer)
	m.sessions[sceneID] = sess
	logrus.WithFields(logrus.Fields{
		"scene_id": sceneID,
		"user_id":  userID,
	}).Debug("Opened editing session")
	return sess, nil
}

// Attach registers a session for a freshly created scene.
func (m *Manager) Attach(scene *core.Scene) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := NewSession(scene, m.renderer)
	m.sessions[scene.ID] = sess
	return sess
}

// Persist writes the session's current scene back to the store.
func (m *Manager) Persist(ctx context.Context, sess *Session) error {
	return m.store.Save(ctx, sess.Snapshot())
}

// Close drops the live session for a scene, if any.
func (m *Manager) Close(sceneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sceneID)
}
