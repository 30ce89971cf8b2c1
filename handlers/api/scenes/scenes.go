package scenes

import (
	"bytes"
	"errors"
	"image/png"
	"io"
	"net/http"

	"designcomposer/core"
	"designcomposer/dispatch"
	"designcomposer/editor"
	"designcomposer/middleware"
	"designcomposer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Notifier is invoked after every committed scene mutation so the live
// update gateway can broadcast to the scene's room.
type Notifier func(sceneID string)

// maxLogoUploadBytes bounds the picked logo file size.
const maxLogoUploadBytes = 5 << 20

func claimsFrom(w http.ResponseWriter, r *http.Request) (*middleware.AppClaims, bool) {
	claims, ok := r.Context().Value(middleware.ClaimsContextKey).(*middleware.AppClaims)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil, false
	}
	return claims, true
}

func sessionFrom(w http.ResponseWriter, r *http.Request, sessions *editor.Manager) (*editor.Session, *middleware.AppClaims, string, bool) {
	claims, ok := claimsFrom(w, r)
	if !ok {
		return nil, nil, "", false
	}
	sceneID := chi.URLParam(r, "id")
	if sceneID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Scene id is required"})
		return nil, nil, "", false
	}
	sess, err := sessions.Session(r.Context(), claims.Subject, sceneID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"error":    err,
			"user_id":  claims.Subject,
			"scene_id": sceneID,
		}).Warn("Failed to open scene session")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Scene not found"})
		return nil, nil, "", false
	}
	return sess, claims, sceneID, true
}

func commit(w http.ResponseWriter, r *http.Request, sessions *editor.Manager, sess *editor.Session, sceneID string, notify Notifier) bool {
	if err := sessions.Persist(r.Context(), sess); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":    err,
			"scene_id": sceneID,
		}).Error("Failed to persist scene")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to save scene"})
		return false
	}
	if notify != nil {
		notify(sceneID)
	}
	return true
}

func HandleListScenes(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		scenes, err := store.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": claims.Subject,
			}).Error("Failed to list scenes")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list scenes"})
			return
		}

		if scenes == nil {
			scenes = []*core.Scene{}
		}
		render.JSON(w, r, scenes)
	}
}

func HandleCreateScene(store stores.Store, sessions *editor.Manager, catalog core.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			Name         string  `json:"name"`
			BaseImageID  string  `json:"baseImageId"`
			CanvasWidth  float64 `json:"canvasWidth"`
			CanvasHeight float64 `json:"canvasHeight"`
		}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.CanvasWidth <= 0 || req.CanvasHeight <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Canvas size must be positive"})
			return
		}
		if req.BaseImageID == "" {
			// A scene always has a selected base photo; default to the
			// first catalog entry.
			ids := catalog.IDs()
			if len(ids) == 0 {
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Base image catalog is empty"})
				return
			}
			req.BaseImageID = ids[0]
		}

		scene := core.NewScene(req.BaseImageID, req.CanvasWidth, req.CanvasHeight)
		scene.UserID = claims.Subject
		scene.Name = req.Name

		if err := store.Save(r.Context(), scene); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": claims.Subject,
			}).Error("Failed to create scene")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create scene"})
			return
		}
		sessions.Attach(scene)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, scene)
	}
}

func HandleGetScene(sessions *editor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, _, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}
		render.JSON(w, r, sess.Snapshot())
	}
}

func HandleDeleteScene(store stores.Store, sessions *editor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(w, r)
		if !ok {
			return
		}
		sceneID := chi.URLParam(r, "id")

		if err := store.Delete(r.Context(), claims.Subject, sceneID); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"user_id":  claims.Subject,
				"scene_id": sceneID,
			}).Error("Failed to delete scene")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete scene"})
			return
		}
		sessions.Close(sceneID)
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}

func HandleAddTextLayer(sessions *editor.Manager, notify Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}
		layer := sess.AddText()
		if !commit(w, r, sessions, sess, sceneID, notify) {
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, layer)
	}
}

func HandleAddLogoLayer(sessions *editor.Manager, notify Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}

		if err := r.ParseMultipartForm(maxLogoUploadBytes); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid multipart form"})
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Logo file is required"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxLogoUploadBytes))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read logo file"})
			return
		}

		layer, err := sess.AddLogo(data)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		if !commit(w, r, sessions, sess, sceneID, notify) {
			return
		}

		// Echo the layer without its image bytes.
		layer.ImageData = nil
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, layer)
	}
}

// HandlePointer routes one pointer event into the scene's gesture state.
func HandlePointer(sessions *editor.Manager, notify Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}

		var ev struct {
			Type   string  `json:"type"` // "down" | "move" | "up"
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Target string  `json:"target,omitempty"`
		}
		if err := render.DecodeJSON(r.Body, &ev); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		switch ev.Type {
		case "down":
			target := editor.TargetLayer
			if ev.Target == string(editor.TargetResizeHandle) {
				target = editor.TargetResizeHandle
			}
			sess.PointerDown(ev.X, ev.Y, target)
		case "move":
			sess.PointerMove(ev.X, ev.Y)
		case "up":
			sess.PointerUp()
			// The gesture's final position is the committed value.
			if !commit(w, r, sessions, sess, sceneID, notify) {
				return
			}
		default:
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Unknown pointer event type"})
			return
		}

		render.JSON(w, r, map[string]string{"selected": sess.Selected()})
	}
}

// HandleUpdateLayer applies inline edits and style picker changes.
func HandleUpdateLayer(sessions *editor.Manager, notify Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}
		layerID := chi.URLParam(r, "layerId")

		var req struct {
			Content    *string   `json:"content,omitempty"`
			Commit     bool      `json:"commit,omitempty"`
			FontFamily string    `json:"fontFamily,omitempty"`
			Color      *core.RGB `json:"color,omitempty"`
			FontWeight int       `json:"fontWeight,omitempty"`
			Width      float64   `json:"width,omitempty"`
			Height     float64   `json:"height,omitempty"`
		}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		var err error
		switch {
		case req.Content != nil:
			err = sess.EditText(layerID, *req.Content)
		case req.Commit:
			err = sess.CommitText(layerID)
		case req.Width > 0 || req.Height > 0:
			err = sess.ResizeLogoTo(layerID, req.Width, req.Height)
		default:
			err = sess.StyleText(layerID, req.FontFamily, req.Color, req.FontWeight)
		}
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		if !commit(w, r, sessions, sess, sceneID, notify) {
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "updated"})
	}
}

func HandleDeleteLayer(sessions *editor.Manager, notify Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}
		layerID := chi.URLParam(r, "layerId")

		if err := sess.DeleteLayer(layerID); err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		if !commit(w, r, sessions, sess, sceneID, notify) {
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}

// HandleUpdateScene applies tint, blend mode, base image, export scale and
// canvas size changes.
func HandleUpdateScene(sessions *editor.Manager, catalog core.Catalog, notify Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}

		var req struct {
			TintColor    *core.RGB      `json:"tintColor,omitempty"`
			BlendMode    core.BlendMode `json:"blendMode,omitempty"`
			BaseImageID  string         `json:"baseImageId,omitempty"`
			ExportScale  float64        `json:"exportScale,omitempty"`
			CanvasWidth  float64        `json:"canvasWidth,omitempty"`
			CanvasHeight float64        `json:"canvasHeight,omitempty"`
		}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		if req.TintColor != nil || req.BlendMode != "" {
			col := sess.Snapshot().TintColor
			if req.TintColor != nil {
				col = *req.TintColor
			}
			if err := sess.SetTint(col, req.BlendMode); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
		}
		if req.BaseImageID != "" {
			if _, err := catalog.Resolve(req.BaseImageID); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Unknown base image"})
				return
			}
			sess.SetBaseImage(req.BaseImageID)
		}
		if req.ExportScale != 0 {
			if err := sess.SetExportScale(req.ExportScale); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
		}
		if req.CanvasWidth != 0 || req.CanvasHeight != 0 {
			if err := sess.ResizeCanvas(req.CanvasWidth, req.CanvasHeight); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
		}

		if !commit(w, r, sessions, sess, sceneID, notify) {
			return
		}
		render.JSON(w, r, sess.Snapshot())
	}
}

// HandlePreview streams the live preview rendering at scale 1.
func HandlePreview(sessions *editor.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}

		img, err := sess.Preview()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"scene_id": sceneID,
			}).Error("Failed to render preview")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to render preview"})
			return
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to encode preview"})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}
}

// HandleExport renders the scene at its export scale and routes the artifact.
// Download responds with the PNG itself; share and upload respond with the
// dispatch result.
func HandleExport(sessions *editor.Manager, dispatcher *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _, sceneID, ok := sessionFrom(w, r, sessions)
		if !ok {
			return
		}

		var req struct {
			Destination dispatch.Destination `json:"destination"`
		}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Destination == "" {
			req.Destination = dispatch.DestinationDownload
		}

		result, err := dispatcher.Dispatch(r.Context(), sess.Snapshot(), req.Destination)
		if err != nil {
			if errors.Is(err, dispatch.ErrExportInFlight) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, map[string]string{"error": "An export is already in progress"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"scene_id":    sceneID,
				"destination": req.Destination,
			}).Error("Export dispatch failed")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Export failed"})
			return
		}

		if req.Destination == dispatch.DestinationDownload {
			w.Header().Set("Content-Type", result.Artifact.MIME)
			w.Header().Set("Content-Disposition", `attachment; filename="`+result.Artifact.Filename+`"`)
			w.Write(result.Artifact.Data)
			return
		}
		render.JSON(w, r, result)
	}
}
