// Output dispatch routes a finished export artifact to one of three
// destinations: a local download, a share (with a degrade-gracefully
// fallback), or an upload to a backend endpoint. Dispatch never mutates the
// scene; each invocation moves Idle -> Rendering -> Dispatched|Failed and a
// failure in one destination never retroactively fails another.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"designcomposer/core"
	"designcomposer/render"

	"github.com/sirupsen/logrus"
)

// Destination selects where a finished artifact goes.
type Destination string

const (
	DestinationDownload Destination = "download"
	DestinationShare    Destination = "share"
	DestinationUpload   Destination = "upload"
)

// State of a single dispatch invocation.
type State string

const (
	StateIdle       State = "idle"
	StateRendering  State = "rendering"
	StateDispatched State = "dispatched"
	StateFailed     State = "failed"
)

// ErrExportInFlight rejects a second export while one is running. The layer
// model has no snapshot isolation across exports, so exports never overlap.
var ErrExportInFlight = errors.New("an export is already in progress")

// ErrShareUnsupported signals that the share capability check failed and the
// fallback path should run.
var ErrShareUnsupported = errors.New("share target does not support file attachments")

// ShareTarget attempts a native share of the artifact. Implementations return
// ErrShareUnsupported when the platform capability is missing.
type ShareTarget func(ctx context.Context, artifact *render.Artifact) error

// Options configures a Dispatcher. Zero values get defaults.
type Options struct {
	// UploadURL is the backend endpoint accepting the multipart payload.
	UploadURL string
	// ShareRecipient is the fixed recipient identifier of the external
	// messaging destination used by the share fallback.
	ShareRecipient string
	// ShareMessage is the fixed template message for the share fallback.
	ShareMessage string
	// DownloadDir is where local downloads land.
	DownloadDir string
	// ShareTarget is the native share capability; nil means unavailable.
	ShareTarget ShareTarget
	// HTTPClient is used for uploads.
	HTTPClient *http.Client
}

// Result reports the outcome of one dispatch invocation.
type Result struct {
	Destination  Destination      `json:"destination"`
	State        State            `json:"state"`
	Artifact     *render.Artifact `json:"-"`
	DownloadPath string           `json:"downloadPath,omitempty"`
	ShareLink    string           `json:"shareLink,omitempty"`
	UsedFallback bool             `json:"usedFallback,omitempty"`
}

// Dispatcher renders a scene snapshot and routes the artifact.
type Dispatcher struct {
	renderer *render.Renderer
	opts     Options
	inFlight atomic.Bool
}

func New(renderer *render.Renderer, opts Options) *Dispatcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "./exports"
	}
	if opts.ShareMessage == "" {
		opts.ShareMessage = "Check out the design I just made!"
	}
	return &Dispatcher{renderer: renderer, opts: opts}
}

// Dispatch renders the scene at its export scale and routes the blob to the
// requested destination. The scene must be a snapshot; dispatch reads it
// once and never writes it. A second call while one is running returns
// ErrExportInFlight (first wins).
func (d *Dispatcher) Dispatch(ctx context.Context, scene *core.Scene, dest Destination) (*Result, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, ErrExportInFlight
	}
	defer d.inFlight.Store(false)

	res := &Result{Destination: dest, State: StateRendering}
	log := logrus.WithFields(logrus.Fields{
		"scene_id":    scene.ID,
		"destination": dest,
	})

	artifact, err := d.renderer.Export(scene)
	if err != nil {
		res.State = StateFailed
		log.WithError(err).Error("Export produced no data")
		return res, err
	}
	res.Artifact = artifact

	switch dest {
	case DestinationDownload:
		err = d.download(artifact, res)
	case DestinationShare:
		err = d.share(ctx, artifact, res)
	case DestinationUpload:
		err = d.upload(ctx, scene, artifact)
	default:
		err = fmt.Errorf("unknown destination %q", dest)
	}

	if err != nil {
		res.State = StateFailed
		log.WithError(err).Error("Dispatch failed")
		return res, err
	}

	res.State = StateDispatched
	log.WithFields(logrus.Fields{
		"width":  artifact.Width,
		"height": artifact.Height,
		"bytes":  len(artifact.Data),
	}).Info("Artifact dispatched")
	return res, nil
}

func (d *Dispatcher) download(artifact *render.Artifact, res *Result) error {
	if err := os.MkdirAll(d.opts.DownloadDir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	path := filepath.Join(d.opts.DownloadDir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	res.DownloadPath = path
	return nil
}

// share tries the native share capability first. When it is missing or
// rejects the attachment, both fallback steps run unconditionally: a local
// download of the blob, then the pre-filled external messaging link.
func (d *Dispatcher) share(ctx context.Context, artifact *render.Artifact, res *Result) error {
	if d.opts.ShareTarget != nil {
		err := d.opts.ShareTarget(ctx, artifact)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrShareUnsupported) {
			logrus.WithError(err).Warn("Native share failed, falling back")
		}
	}

	res.UsedFallback = true
	if err := d.download(artifact, res); err != nil {
		return err
	}
	res.ShareLink = fmt.Sprintf("https://wa.me/%s?text=%s",
		d.opts.ShareRecipient, url.QueryEscape(d.opts.ShareMessage))
	return nil
}

// uploadMeta is the small metadata record sent alongside the blob.
type uploadMeta struct {
	SceneID     string  `json:"sceneId"`
	BaseImageID string  `json:"baseImageId"`
	BlendMode   string  `json:"blendMode"`
	ExportScale float64 `json:"exportScale"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

func (d *Dispatcher) upload(ctx context.Context, scene *core.Scene, artifact *render.Artifact) error {
	if d.opts.UploadURL == "" {
		return fmt.Errorf("no upload endpoint configured")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, artifact.Filename))
	header.Set("Content-Type", artifact.MIME)
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return err
	}

	meta, err := json.Marshal(uploadMeta{
		SceneID:     scene.ID,
		BaseImageID: scene.BaseImageID,
		BlendMode:   string(scene.BlendMode),
		ExportScale: scene.ExportScale,
		Width:       artifact.Width,
		Height:      artifact.Height,
	})
	if err != nil {
		return err
	}
	if err := w.WriteField("meta", string(meta)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.UploadURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}

	var ack struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("failed to decode upload response: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("upload endpoint reported failure")
	}
	return nil
}
