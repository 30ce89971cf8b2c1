package render

import (
	"bytes"
	"fmt"
	"image/png"

	"designcomposer/core"
)

// Fixed identity of the exported artifact.
const (
	ArtifactFilename = "design.png"
	ArtifactMIME     = "image/png"
)

// Artifact is the flattened raster output of an export.
type Artifact struct {
	Filename string
	MIME     string
	Width    int
	Height   int
	Data     []byte
}

// Export produces the flattened raster for a scene at its export scale,
// encoded as a PNG blob. The scene must be a snapshot the editor no longer
// mutates; Export itself performs no scene writes and no I/O beyond asset
// decoding.
func (r *Renderer) Export(scene *core.Scene) (*Artifact, error) {
	img, err := r.render(scene, scene.ExportScale)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}

	b := img.Bounds()
	return &Artifact{
		Filename: ArtifactFilename,
		MIME:     ArtifactMIME,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Data:     buf.Bytes(),
	}, nil
}
