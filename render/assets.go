package render

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"designcomposer/core"

	"github.com/sirupsen/logrus"
)

// sceneAssets holds every decoded image a render pass needs. A nil entry
// means the decode failed; the renderer treats it as absent and keeps going.
type sceneAssets struct {
	base  image.Image
	logos map[string]image.Image
}

// resolveAssets decodes the base photo and all logo images concurrently.
// Each decode is isolated: a corrupt image produces a warning and an absent
// slot, never an error that would abort the render pass.
func resolveAssets(scene *core.Scene, catalog core.Catalog) *sceneAssets {
	assets := &sceneAssets{
		logos: make(map[string]image.Image, len(scene.LogoLayers)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		data, err := catalog.Resolve(scene.BaseImageID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"base_image_id": scene.BaseImageID,
			}).WithError(err).Warn("Base image unavailable, rendering blank canvas")
			return
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"base_image_id": scene.BaseImageID,
			}).WithError(err).Warn("Base image failed to decode, rendering blank canvas")
			return
		}
		mu.Lock()
		assets.base = img
		mu.Unlock()
	}()

	for _, l := range scene.LogoLayers {
		wg.Add(1)
		go func(l *core.LogoLayer) {
			defer wg.Done()
			img, _, err := image.Decode(bytes.NewReader(l.ImageData))
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"layer_id": l.ID,
				}).WithError(err).Warn("Logo image failed to decode, skipping layer")
				return
			}
			mu.Lock()
			assets.logos[l.ID] = img
			mu.Unlock()
		}(l)
	}

	wg.Wait()
	return assets
}
