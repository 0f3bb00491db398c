package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"asset-tiles/internal/config"
	"asset-tiles/internal/itemstore"
	"asset-tiles/internal/logging"
	"asset-tiles/internal/media"
	"asset-tiles/internal/metrics"
	"asset-tiles/internal/middleware"
	"asset-tiles/internal/pool"
)

// server ties the library directory, the annotation store, and the shared
// thumbnail pool to the HTTP surface.
type server struct {
	libraryDir string
	cfg        config.Snapshot
	store      itemstore.Store
	pool       *pool.Pool
}

// itemView is the JSON shape of one library item.
type itemView struct {
	Archive  string `json:"archive"`
	Preview  string `json:"preview,omitempty"`
	Name     string `json:"name"`
	Rating   int    `json:"rating,omitempty"`
	ColorTag string `json:"color_tag,omitempty"`
}

func main() {
	startTime := time.Now()

	cfg, err := config.Load(os.Getenv("TILE_CONFIG"))
	if err != nil {
		logging.Fatal("configuration error: %v", err)
	}

	libraryDir := os.Getenv("LIBRARY_DIR")
	if libraryDir == "" {
		libraryDir = "."
	}
	if _, err := os.Stat(libraryDir); err != nil {
		logging.Fatal("library directory %s: %v", libraryDir, err)
	}

	if cfg.UseVips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure-Go decode: %v", err)
		} else {
			defer media.ShutdownVips()
		}
	}
	metrics.InitializeMetrics()

	store, err := openStore(libraryDir)
	if err != nil {
		logging.Fatal("opening item store: %v", err)
	}
	defer store.Close()

	srv := &server{
		libraryDir: libraryDir,
		cfg:        cfg,
		store:      store,
		pool:       pool.NewPool(cfg),
	}

	router := srv.routes()
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(middleware.DefaultLoggingConfig())(
			middleware.Metrics(middleware.DefaultMetricsConfig())(router)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(httpSrv)

	logging.Info("serving %s on :%s (started in %s)", libraryDir, port, time.Since(startTime).Round(time.Millisecond))
	if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error: %v", err)
	}
}

// openStore picks the annotation backend: SQLite by default, bbolt when
// STORE_BACKEND=bolt.
func openStore(libraryDir string) (itemstore.Store, error) {
	path := os.Getenv("STORE_PATH")
	if path == "" {
		path = filepath.Join(libraryDir, ".asset-tiles.db")
	}
	if os.Getenv("STORE_BACKEND") == "bolt" {
		return itemstore.NewBolt(path)
	}
	return itemstore.NewSQLite(context.Background(), path)
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/livez", s.handleHealth).Methods("GET")
	r.HandleFunc("/readyz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/items", s.handleListItems).Methods("GET")
	api.HandleFunc("/items/rating", s.handleSetRating).Methods("POST")
	api.HandleFunc("/items/color", s.handleSetColor).Methods("POST")
	api.HandleFunc("/items/by-rating", s.handleByRating).Methods("GET")
	api.HandleFunc("/items/by-color", s.handleByColor).Methods("GET")
	api.HandleFunc("/thumbnail", s.handleThumbnail).Methods("GET")

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListItems scans the library for archive/preview pairs and merges in
// stored annotations.
func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	handles, err := media.Scan(s.libraryDir)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "scanning library", err)
		return
	}

	views := make([]itemView, 0, len(handles))
	for _, h := range handles {
		view := itemView{Archive: h.ArchivePath, Preview: h.PreviewPath, Name: h.BaseName()}
		rec, err := s.store.Item(r.Context(), h.ArchivePath)
		if err != nil {
			logging.Warn("reading annotations for %s: %v", h.ArchivePath, err)
		} else {
			view.Rating = rec.Rating
			view.ColorTag = rec.ColorTag
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

// handleThumbnail serves the scaled preview through the shared cache.
func (s *server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httpError(w, http.StatusBadRequest, "path parameter required", nil)
		return
	}
	if !allowedPath(s.libraryDir, path) {
		httpError(w, http.StatusForbidden, "path outside library", nil)
		return
	}

	size := queryInt(r, "size", 256)
	img, err := s.pool.Thumbnail(path, size, size)
	if err != nil {
		httpError(w, http.StatusNotFound, "decoding thumbnail", err)
		return
	}

	data, mime, err := media.EncodeThumbnail(img, s.cfg.ThumbnailFormat, s.cfg.ThumbnailQuality)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "encoding thumbnail", err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

type annotateRequest struct {
	Path     string `json:"path"`
	Rating   *int   `json:"rating,omitempty"`
	ColorTag string `json:"color_tag"`
}

func (s *server) handleSetRating(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" || req.Rating == nil {
		httpError(w, http.StatusBadRequest, "path and rating required", err)
		return
	}
	if err := s.store.SetRating(r.Context(), req.Path, *req.Rating); err != nil {
		httpError(w, http.StatusInternalServerError, "storing rating", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   req.Path,
		"rating": itemstore.ClampRating(*req.Rating),
	})
}

func (s *server) handleSetColor(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		httpError(w, http.StatusBadRequest, "path required", err)
		return
	}
	if err := s.store.SetColorTag(r.Context(), req.Path, req.ColorTag); err != nil {
		httpError(w, http.StatusInternalServerError, "storing color tag", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path":      req.Path,
		"color_tag": req.ColorTag,
	})
}

func (s *server) handleByRating(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListByMinRating(r.Context(), queryInt(r, "min", 1))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing by rating", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *server) handleByColor(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		httpError(w, http.StatusBadRequest, "tag parameter required", nil)
		return
	}
	recs, err := s.store.ListByColorTag(r.Context(), tag)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "listing by color", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// allowedPath confines thumbnail requests to the library directory.
func allowedPath(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !startsWithDotDot(rel))
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encoding response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		logging.Warn("%s: %v", msg, err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("received %s, shutting down", sig)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("graceful shutdown failed: %v", err)
	}
}
