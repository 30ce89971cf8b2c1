package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"designcomposer/core"
	"designcomposer/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog map[string][]byte

func (c stubCatalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	return ids
}

func (c stubCatalog) Resolve(id string) ([]byte, error) {
	data, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("base image %s not found", id)
	}
	return data, nil
}

func testScene() *core.Scene {
	s := core.NewScene("mug.png", 100, 100)
	s.AddTextLayer()
	return s
}

func newDispatcher(opts Options) *Dispatcher {
	return New(render.NewRenderer(stubCatalog{}), opts)
}

func TestDownloadWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	d := newDispatcher(Options{DownloadDir: dir})

	res, err := d.Dispatch(context.Background(), testScene(), DestinationDownload)
	require.NoError(t, err)

	assert.Equal(t, StateDispatched, res.State)
	assert.Equal(t, filepath.Join(dir, "design.png"), res.DownloadPath)

	data, err := os.ReadFile(res.DownloadPath)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestShareFallbackWithoutTarget(t *testing.T) {
	dir := t.TempDir()
	d := newDispatcher(Options{
		DownloadDir:    dir,
		ShareRecipient: "15551234567",
	})

	res, err := d.Dispatch(context.Background(), testScene(), DestinationShare)
	require.NoError(t, err)

	assert.Equal(t, StateDispatched, res.State)
	assert.True(t, res.UsedFallback)
	assert.FileExists(t, res.DownloadPath)
	assert.Equal(t,
		"https://wa.me/15551234567?text=Check+out+the+design+I+just+made%21",
		res.ShareLink)
}

func TestNativeShareSkipsFallback(t *testing.T) {
	var shared *render.Artifact
	d := newDispatcher(Options{
		DownloadDir: t.TempDir(),
		ShareTarget: func(ctx context.Context, artifact *render.Artifact) error {
			shared = artifact
			return nil
		},
	})

	res, err := d.Dispatch(context.Background(), testScene(), DestinationShare)
	require.NoError(t, err)

	require.NotNil(t, shared)
	assert.Equal(t, "design.png", shared.Filename)
	assert.False(t, res.UsedFallback)
	assert.Empty(t, res.DownloadPath)
	assert.Empty(t, res.ShareLink)
}

func TestShareUnsupportedFallsBack(t *testing.T) {
	d := newDispatcher(Options{
		DownloadDir:    t.TempDir(),
		ShareRecipient: "15551234567",
		ShareTarget: func(ctx context.Context, artifact *render.Artifact) error {
			return ErrShareUnsupported
		},
	})

	res, err := d.Dispatch(context.Background(), testScene(), DestinationShare)
	require.NoError(t, err)

	assert.True(t, res.UsedFallback)
	assert.FileExists(t, res.DownloadPath)
	assert.Contains(t, res.ShareLink, "wa.me/15551234567")
}

func TestUploadSendsMultipartPayload(t *testing.T) {
	type received struct {
		filename    string
		contentType string
		pngOK       bool
		meta        map[string]any
	}
	var got received

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		got.filename = header.Filename
		got.contentType = header.Header.Get("Content-Type")

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		_, err = png.Decode(bytes.NewReader(data))
		got.pngOK = err == nil

		require.NoError(t, json.Unmarshal([]byte(r.FormValue("meta")), &got.meta))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	d := newDispatcher(Options{UploadURL: srv.URL})
	scene := testScene()

	res, err := d.Dispatch(context.Background(), scene, DestinationUpload)
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, res.State)

	assert.Equal(t, "design.png", got.filename)
	assert.Equal(t, "image/png", got.contentType)
	assert.True(t, got.pngOK, "uploaded blob must be a valid PNG")
	assert.Equal(t, scene.ID, got.meta["sceneId"])
	assert.Equal(t, "mug.png", got.meta["baseImageId"])
	assert.Equal(t, "color", got.meta["blendMode"])
	assert.Equal(t, 1.0, got.meta["exportScale"])
	assert.Equal(t, 100.0, got.meta["width"])
}

func TestUploadEndpointReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false}`)
	}))
	defer srv.Close()

	d := newDispatcher(Options{UploadURL: srv.URL})
	res, err := d.Dispatch(context.Background(), testScene(), DestinationUpload)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestUploadRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newDispatcher(Options{UploadURL: srv.URL})
	res, err := d.Dispatch(context.Background(), testScene(), DestinationUpload)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestUploadWithoutEndpointFails(t *testing.T) {
	d := newDispatcher(Options{})
	_, err := d.Dispatch(context.Background(), testScene(), DestinationUpload)
	assert.Error(t, err)
}

func TestUnknownDestinationFails(t *testing.T) {
	d := newDispatcher(Options{})
	res, err := d.Dispatch(context.Background(), testScene(), Destination("teleport"))
	assert.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
}

func TestSecondExportRejectedWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	d := newDispatcher(Options{
		ShareTarget: func(ctx context.Context, artifact *render.Artifact) error {
			close(entered)
			<-release
			return nil
		},
	})

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), testScene(), DestinationShare)
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first dispatch never started")
	}

	_, err := d.Dispatch(context.Background(), testScene(), DestinationDownload)
	assert.True(t, errors.Is(err, ErrExportInFlight))

	close(release)
	require.NoError(t, <-done)
}
