package core

import (
	"bytes"
	"context"
)

type (
	// ExportArtifact is an anonymously shared copy of a rendered design,
	// stored as the encoded PNG bytes.
	ExportArtifact struct {
		Data bytes.Buffer
	}

	// ArtifactStore persists shared export artifacts under generated IDs.
	ArtifactStore interface {
		FindID(ctx context.Context, id string) (*ExportArtifact, error)
		Create(ctx context.Context, artifact *ExportArtifact) (string, error)
	}
)
