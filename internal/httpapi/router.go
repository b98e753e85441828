package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"montage/internal/httpapi/handlers"
	"montage/internal/httpkit"
	"montage/internal/pkg/env"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/middleware"
)

type Deps struct {
	Handlers handlers.Deps
	Log      *logger.Logger
	// RequestTimeout bounds every route except the synchronous render.
	RequestTimeout time.Duration
	// RenderTimeout bounds POST /slideshows; zero leaves it unbounded.
	RenderTimeout time.Duration
	CORSOrigins   []string
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	if d.Handlers.Log == nil {
		d.Handlers.Log = log
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = env.CSV("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:8081",
			"http://localhost:5173",
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(d.Handlers)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}

	// Rendering runs for as long as the video takes; it only observes the
	// client going away and its own render timeout.
	r.With(middleware.Timeout(d.RenderTimeout)).Post("/slideshows", wrap(h.PostSlideshow))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Get("/health", wrap(h.Health))

		r.Post("/assets", wrap(h.PostAsset))
		r.Get("/assets/{assetId}", wrap(h.GetAsset))
		r.Get("/assets/{assetId}/url", wrap(h.GetAssetURL))
		r.Get("/assets/{assetId}/content", wrap(h.StreamAsset))
		r.Delete("/assets/{assetId}", wrap(h.DeleteAsset))

		r.Post("/presets", wrap(h.PostPreset))
		r.Get("/presets", wrap(h.ListPresets))
		r.Get("/presets/{presetId}", wrap(h.GetPreset))
		r.Patch("/presets/{presetId}", wrap(h.PatchPreset))
		r.Delete("/presets/{presetId}", wrap(h.DeletePreset))

		r.Post("/jobs", wrap(h.PostJob))
		r.Get("/jobs", wrap(h.ListJobs))
		r.Get("/jobs/{jobId}", wrap(h.GetJob))
		r.Get("/jobs/{jobId}/video", wrap(h.GetJobVideo))
	})

	return r
}
