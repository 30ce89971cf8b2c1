package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"designcomposer/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	s3Client := s3.NewFromConfig(cfg)

	return &s3Store{
		s3Client: s3Client,
		bucket:   bucketName,
	}
}

// ArtifactStore implementation for anonymous sharing
func (s *s3Store) FindID(ctx context.Context, id string) (*core.ExportArtifact, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact with id %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %v", err)
	}

	artifact := core.ExportArtifact{
		Data: *bytes.NewBuffer(data),
	}

	return &artifact, nil
}

func (s *s3Store) Create(ctx context.Context, artifact *core.ExportArtifact) (string, error) {
	id := ulid.Make().String()

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
		Body:   bytes.NewReader(artifact.Data.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %v", err)
	}

	return id, nil
}

// SceneStore implementation for user-owned scenes
func (s *s3Store) getSceneKey(userID, sceneID string) (string, error) {
	// Sanitize sceneID to prevent path traversal attacks.
	// It should be a simple name, not a path.
	if path.Base(sceneID) != sceneID {
		return "", fmt.Errorf("invalid scene id: must not be a path")
	}
	if sceneID == "" || sceneID == "." || sceneID == ".." {
		return "", fmt.Errorf("invalid scene id: must not be empty or a dot directory")
	}
	return path.Join(userID, sceneID), nil
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Scene, error) {
	prefix := userID + "/"
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes for user %s: %v", userID, err)
	}

	scenes := make([]*core.Scene, 0, len(output.Contents))
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}

		var scene core.Scene
		if err := json.Unmarshal(data, &scene); err != nil {
			log.Printf("warn: failed to unmarshal scene %s: %v", *object.Key, err)
			continue
		}

		scene.UserID = userID
		scenes = append(scenes, scene.Meta())
	}

	return scenes, nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Scene, error) {
	key, err := s.getSceneKey(userID, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("scene not found")
		}
		return nil, fmt.Errorf("failed to get scene %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene data: %v", err)
	}

	var scene core.Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene data: %v", err)
	}
	scene.UserID = userID

	return &scene, nil
}

func (s *s3Store) Save(ctx context.Context, scene *core.Scene) error {
	key, err := s.getSceneKey(scene.UserID, scene.ID)
	if err != nil {
		return err
	}

	// Preserve CreatedAt on update
	if scene.CreatedAt.IsZero() {
		existing, err := s.Get(ctx, scene.UserID, scene.ID)
		if err == nil && existing != nil {
			scene.CreatedAt = existing.CreatedAt
		} else {
			scene.CreatedAt = time.Now()
		}
	}
	scene.UpdatedAt = time.Now()

	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("failed to marshal scene: %v", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save scene %s: %v", scene.ID, err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	key, err := s.getSceneKey(userID, id)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete scene %s: %v", id, err)
	}
	return nil
}
