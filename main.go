package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"designcomposer/core"
	"designcomposer/dispatch"
	"designcomposer/editor"
	"designcomposer/handlers/api/artifacts"
	"designcomposer/handlers/api/scenes"
	authMiddleware "designcomposer/middleware"
	"designcomposer/render"
	"designcomposer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store stores.Store, sessions *editor.Manager, catalog core.Catalog, dispatcher *dispatch.Dispatcher, notify scenes.Notifier) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v2", func(r chi.Router) {
		// Scene editing routes, protected by JWT auth.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/scenes", func(r chi.Router) {
				r.Get("/", scenes.HandleListScenes(store))
				r.Post("/", scenes.HandleCreateScene(store, sessions, catalog))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", scenes.HandleGetScene(sessions))
					r.Patch("/", scenes.HandleUpdateScene(sessions, catalog, notify))
					r.Delete("/", scenes.HandleDeleteScene(store, sessions))
					r.Post("/layers/text", scenes.HandleAddTextLayer(sessions, notify))
					r.Post("/layers/logo", scenes.HandleAddLogoLayer(sessions, notify))
					r.Patch("/layers/{layerId}", scenes.HandleUpdateLayer(sessions, notify))
					r.Delete("/layers/{layerId}", scenes.HandleDeleteLayer(sessions, notify))
					r.Post("/pointer", scenes.HandlePointer(sessions, notify))
					r.Get("/preview", scenes.HandlePreview(sessions))
					r.Post("/export", scenes.HandleExport(sessions, dispatcher))
				})
			})
		})

		// Anonymous sharing of exported designs.
		r.Post("/post/", artifacts.HandleCreate(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", artifacts.HandleGet(store))
		})
	})

	return r
}

// setupSocketIO wires the live update gateway: clients join a room per scene
// and receive scene-updated events after every committed mutation.
func setupSocketIO() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	ioo := socketio.NewServer(nil, opts)

	ioo.On("connection", func(clients ...any) {
		socket := clients[0].(*socketio.Socket)
		socket.On("join-scene", func(datas ...any) {
			sceneID, ok := datas[0].(string)
			if !ok {
				return
			}
			room := socketio.Room(sceneID)
			logrus.WithFields(logrus.Fields{
				"socket_id": socket.Id(),
				"scene_id":  sceneID,
			}).Debug("Socket joined scene room")
			socket.Join(room)
		})
		socket.On("leave-scene", func(datas ...any) {
			sceneID, ok := datas[0].(string)
			if !ok {
				return
			}
			socket.Leave(socketio.Room(sceneID))
		})
		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})
	return ioo
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	fmt.Println("Shutting down...")
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	authMiddleware.InitAuth()

	catalogDir := os.Getenv("BASE_IMAGE_DIR")
	if catalogDir == "" {
		catalogDir = "./assets/products"
	}
	catalog, err := core.NewDirCatalog(catalogDir)
	if err != nil {
		logrus.WithField("dir", catalogDir).Fatalf("Failed to load base image catalog: %v", err)
	}

	store := stores.GetStore()
	renderer := render.NewRenderer(catalog)
	sessions := editor.NewManager(store, renderer)
	dispatcher := dispatch.New(renderer, dispatch.Options{
		UploadURL:      os.Getenv("UPLOAD_ENDPOINT"),
		ShareRecipient: os.Getenv("SHARE_RECIPIENT"),
		DownloadDir:    os.Getenv("DOWNLOAD_DIR"),
	})

	ioo := setupSocketIO()
	notify := func(sceneID string) {
		ioo.To(socketio.Room(sceneID)).Emit("scene-updated", sceneID)
	}

	r := setupRouter(store, sessions, catalog, dispatcher, notify)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
