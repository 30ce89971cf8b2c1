package artifacts

import (
	"bytes"
	"io"
	"net/http"

	"designcomposer/core"
	"designcomposer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// maxArtifactBytes bounds an anonymously shared export upload.
const maxArtifactBytes = 20 << 20

// HandleCreate stores an exported design for anonymous sharing and returns
// its generated ID.
func HandleCreate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxArtifactBytes))
		if err != nil {
			logrus.WithError(err).Error("Failed to read artifact body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()
		if len(data) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Artifact body is empty"})
			return
		}

		artifact := &core.ExportArtifact{Data: *bytes.NewBuffer(data)}
		id, err := store.Create(r.Context(), artifact)
		if err != nil {
			logrus.WithError(err).Error("Failed to store artifact")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store artifact"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"id": id})
	}
}

// HandleGet streams a shared export by ID.
func HandleGet(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Artifact id is required"})
			return
		}

		artifact, err := store.FindID(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"artifact_id": id,
			}).Warn("Failed to get artifact")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Artifact not found"})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(artifact.Data.Bytes())
	}
}
