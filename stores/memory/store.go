package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"designcomposer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

var (
	savedArtifacts = make(map[string]core.ExportArtifact)
	// savedScenes is a map where the key is userID, and the value is another
	// map where the key is sceneID and the value is the scene itself.
	savedScenes = make(map[string]map[string]*core.Scene)
	mu          sync.RWMutex
)

// memStore implements both ArtifactStore and SceneStore for in-memory storage.
type memStore struct{}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{}
}

// FindID retrieves a shared artifact by its ID. Part of the ArtifactStore interface.
func (s *memStore) FindID(ctx context.Context, id string) (*core.ExportArtifact, error) {
	mu.RLock()
	defer mu.RUnlock()

	log := logrus.WithField("artifact_id", id)
	if val, ok := savedArtifacts[id]; ok {
		log.Info("Artifact retrieved successfully")
		return &val, nil
	}
	log.WithField("error", "artifact not found").Warn("Artifact with specified ID not found")
	return nil, fmt.Errorf("artifact with id %s not found", id)
}

// Create stores a new shared artifact. Part of the ArtifactStore interface.
func (s *memStore) Create(ctx context.Context, artifact *core.ExportArtifact) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	id := ulid.Make().String()
	savedArtifacts[id] = *artifact
	logrus.WithFields(logrus.Fields{
		"artifact_id": id,
		"data_length": artifact.Data.Len(),
	}).Info("Artifact created successfully")

	return id, nil
}

// List returns metadata for all scenes owned by a user. Part of the SceneStore interface.
func (s *memStore) List(ctx context.Context, userID string) ([]*core.Scene, error) {
	mu.RLock()
	defer mu.RUnlock()

	userScenes, ok := savedScenes[userID]
	if !ok {
		return []*core.Scene{}, nil // No scenes for this user, return empty slice
	}

	scenes := make([]*core.Scene, 0, len(userScenes))
	for _, scene := range userScenes {
		// The list view carries no layer data.
		scenes = append(scenes, scene.Meta())
	}

	logrus.WithField("user_id", userID).Infof("Listed %d scenes", len(scenes))
	return scenes, nil
}

// Get returns a single scene by its ID, ensuring it belongs to the user. Part of the SceneStore interface.
func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Scene, error) {
	mu.RLock()
	defer mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "scene_id": id})

	userScenes, ok := savedScenes[userID]
	if !ok {
		log.Warn("User has no scenes")
		return nil, fmt.Errorf("scene with id %s not found for user %s", id, userID)
	}

	scene, ok := userScenes[id]
	if !ok {
		log.Warn("Scene not found for user")
		return nil, fmt.Errorf("scene with id %s not found for user %s", id, userID)
	}

	log.Info("Scene retrieved successfully")
	return scene.Clone(), nil
}

// Save creates or updates a scene for a user. Part of the SceneStore interface.
func (s *memStore) Save(ctx context.Context, scene *core.Scene) error {
	mu.Lock()
	defer mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": scene.UserID, "scene_id": scene.ID})

	if scene.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if scene.ID == "" {
		return fmt.Errorf("Scene ID cannot be empty for save operation")
	}

	userScenes, ok := savedScenes[scene.UserID]
	if !ok {
		userScenes = make(map[string]*core.Scene)
		savedScenes[scene.UserID] = userScenes
	}

	now := time.Now()
	if existing, exists := userScenes[scene.ID]; exists {
		scene.CreatedAt = existing.CreatedAt
		scene.UpdatedAt = now
	} else {
		scene.CreatedAt = now
		scene.UpdatedAt = now
	}

	userScenes[scene.ID] = scene.Clone()
	log.Info("Scene saved successfully")
	return nil
}

// Delete removes a scene, ensuring it belongs to the user. Part of the SceneStore interface.
func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	mu.Lock()
	defer mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "scene_id": id})

	userScenes, ok := savedScenes[userID]
	if !ok {
		log.Warn("User has no scenes to delete from")
		return fmt.Errorf("user %s has no scenes", userID)
	}

	if _, ok := userScenes[id]; !ok {
		log.Warn("Scene not found for deletion")
		return fmt.Errorf("scene with id %s not found for user %s", id, userID)
	}

	delete(userScenes, id)
	log.Info("Scene deleted successfully")
	return nil
}
