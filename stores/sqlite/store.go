package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"designcomposer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	// Table for anonymously shared export artifacts
	artifactTableStmt := `CREATE TABLE IF NOT EXISTS artifacts (id TEXT PRIMARY KEY, data BLOB);`
	if _, err = db.Exec(artifactTableStmt); err != nil {
		log.Fatalf("failed to create artifacts table: %v", err)
	}

	// Table for user-owned scenes; layer data is stored as a JSON blob.
	sceneTableStmt := `
	CREATE TABLE IF NOT EXISTS scenes (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(sceneTableStmt); err != nil {
		log.Fatalf("failed to create scenes table: %v", err)
	}

	return &sqliteStore{db}
}

// ArtifactStore implementation
func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.ExportArtifact, error) {
	log := logrus.WithField("artifact_id", id)
	log.Debug("Retrieving artifact by ID")
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM artifacts WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
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

func (s *sqliteStore) Create(ctx context.Context, artifact *core.ExportArtifact) (string, error) {
	id := ulid.Make().String()
	data := artifact.Data.Bytes()
	log := logrus.WithFields(logrus.Fields{
		"artifact_id": id,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx, "INSERT INTO artifacts (id, data) VALUES (?, ?)", id, data)
	if err != nil {
		log.WithError(err).Error("Failed to create artifact")
		return "", err
	}
	log.Info("Artifact created successfully")
	return id, nil
}

// SceneStore implementation
func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Scene, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM scenes WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []*core.Scene
	for rows.Next() {
		var scene core.Scene
		scene.UserID = userID
		if err := rows.Scan(&scene.ID, &scene.Name, &scene.CreatedAt, &scene.UpdatedAt); err != nil {
			return nil, err
		}
		scenes = append(scenes, &scene)
	}
	return scenes, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Scene, error) {
	var (
		data      []byte
		name      string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, "SELECT name, data, created_at, updated_at FROM scenes WHERE user_id = ? AND id = ?", userID, id).
		Scan(&name, &data, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scene not found")
		}
		return nil, err
	}

	var scene core.Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene data: %w", err)
	}
	scene.UserID = userID
	scene.ID = id
	scene.Name = name
	scene.CreatedAt = createdAt
	scene.UpdatedAt = updatedAt
	return &scene, nil
}

func (s *sqliteStore) Save(ctx context.Context, scene *core.Scene) error {
	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM scenes WHERE user_id = ? AND id = ?", scene.UserID, scene.ID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	now := time.Now()
	if exists {
		_, err = tx.ExecContext(ctx, "UPDATE scenes SET name = ?, data = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			scene.Name, data, now, scene.UserID, scene.ID)
	} else {
		_, err = tx.ExecContext(ctx, "INSERT INTO scenes (id, user_id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			scene.ID, scene.UserID, scene.Name, data, now, now)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM scenes WHERE user_id = ? AND id = ?", userID, id)
	return err
}
