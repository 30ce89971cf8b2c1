package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"designcomposer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// ArtifactStore implementation for anonymous sharing
func (s *fsStore) FindID(ctx context.Context, id string) (*core.ExportArtifact, error) {
	filePath := filepath.Join(s.basePath, id)
	log := logrus.WithField("artifact_id", id)

	log.WithField("file_path", filePath).Info("Retrieving artifact by ID")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("error", "artifact not found").Warn("Artifact with specified ID not found")
			return nil, fmt.Errorf("artifact with id %s not found", id)
		}
		log.WithError(err).Error("Failed to retrieve artifact")
		return nil, err
	}

	artifact := core.ExportArtifact{
		Data: *bytes.NewBuffer(data),
	}

	log.Info("Artifact retrieved successfully")
	return &artifact, nil
}

func (s *fsStore) Create(ctx context.Context, artifact *core.ExportArtifact) (string, error) {
	id := ulid.Make().String()
	filePath := filepath.Join(s.basePath, id)
	log := logrus.WithFields(logrus.Fields{
		"artifact_id": id,
		"file_path":   filePath,
	})
	log.Info("Creating new artifact")

	if err := os.WriteFile(filePath, artifact.Data.Bytes(), 0644); err != nil {
		log.WithError(err).Error("Failed to create artifact")
		return "", err
	}

	log.Info("Artifact created successfully")
	return id, nil
}

// SceneStore implementation for user-owned scenes
func (s *fsStore) getUserScenePath(userID string) string {
	return filepath.Join(s.basePath, userID)
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Scene, error) {
	userPath := s.getUserScenePath(userID)
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*core.Scene{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	scenes := make([]*core.Scene, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		filePath := filepath.Join(userPath, file.Name())
		fileInfo, err := file.Info()
		if err != nil {
			log.WithError(err).Warnf("Failed to get file info for %s, skipping", file.Name())
			continue
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			log.WithError(err).Warnf("Failed to read scene file %s, skipping", file.Name())
			continue
		}

		var scene core.Scene
		if err := json.Unmarshal(data, &scene); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal scene file %s, skipping", file.Name())
			continue
		}

		scene.UserID = userID
		scene.UpdatedAt = fileInfo.ModTime()
		scenes = append(scenes, scene.Meta())
	}

	log.Infof("Listed %d scenes", len(scenes))
	return scenes, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Scene, error) {
	userPath := s.getUserScenePath(userID)
	filePath := filepath.Join(userPath, id)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "scene_id": id, "path": filePath})

	absUserPath, err := filepath.Abs(userPath)
	if err != nil {
		return nil, err
	}
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(absFilePath, absUserPath) {
		return nil, fmt.Errorf("invalid path: access denied")
	}

	data, err := os.ReadFile(absFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Scene file not found")
			return nil, fmt.Errorf("scene %s not found", id)
		}
		log.WithError(err).Error("Failed to read scene file")
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		log.WithError(err).Error("Failed to get file stats")
		return nil, err
	}

	var scene core.Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		log.WithError(err).Error("Failed to unmarshal scene data")
		return nil, err
	}
	scene.UserID = userID
	scene.UpdatedAt = info.ModTime()

	log.Info("Scene retrieved successfully")
	return &scene, nil
}

func (s *fsStore) Save(ctx context.Context, scene *core.Scene) error {
	userPath := s.getUserScenePath(scene.UserID)
	filePath := filepath.Join(userPath, scene.ID)
	log := logrus.WithFields(logrus.Fields{"user_id": scene.UserID, "scene_id": scene.ID, "path": filePath})

	if err := os.MkdirAll(userPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	// Set creation/update time before saving
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		scene.CreatedAt = time.Now()
	} else if err == nil {
		scene.CreatedAt = info.ModTime() // Filesystem doesn't store creation time easily.
	}
	scene.UpdatedAt = time.Now()

	log.Info("Saving scene")
	data, err := json.Marshal(scene)
	if err != nil {
		log.WithError(err).Error("Failed to marshal scene for saving")
		return err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write scene file")
		return err
	}

	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	userPath := s.getUserScenePath(userID)
	filePath := filepath.Join(userPath, id)
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "scene_id": id, "path": filePath})

	err := os.Remove(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Scene file not found for deletion, considered successful.")
			return nil // If it doesn't exist, the goal is achieved.
		}
		log.WithError(err).Error("Failed to delete scene file")
		return err
	}

	log.Info("Scene deleted successfully")
	return nil
}
