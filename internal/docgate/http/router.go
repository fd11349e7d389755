package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/httpx"
	"github.com/aussiebroadwan/docgate/pkg/slogx"

	_ "github.com/aussiebroadwan/docgate/api/docgate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// readiness probes
	db, blobs, counters Pinger

	// AdminAuth guards every /v1/documents route.
	AdminAuth httpx.Middleware

	// TrustProxy lets X-Forwarded-For and X-Real-IP name the client.
	TrustProxy    bool
	PublicBaseURL string
	MaxFileSize   int64

	DocumentService *service.DocumentService
	DeliveryService *service.DeliveryService
	DownloadService *service.DownloadService
}

func NewRouter(buildVersion string, db, blobs, counters Pinger, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		db:           db,
		blobs:        blobs,
		counters:     counters,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.SecurityHeaders,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerDocuments()
	r.registerDownloads()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			docgate Document Access Service API
//	@version		0.1.0
//	@description	Stores documents encrypted at rest and releases them against short-lived access tokens.
//	@description
//	@description				Customer tokens also require the download password issued with the delivery. Failed download attempts are rate limited per client address.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/docgate
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	AdminKey
//	@in							header
//	@name						Authorization
//	@description				Admin API key. Format: "Bearer {key}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerDocuments() {
	docs := &DocumentsHandler{
		DocumentService: r.DocumentService,
		MaxFileSize:     r.MaxFileSize,
	}
	deliveries := &DeliveriesHandler{
		DeliveryService: r.DeliveryService,
		PublicBaseURL:   r.PublicBaseURL,
	}

	// Admin routes: per-IP throttle in front of the key check
	admin := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			httpx.Throttle(httpx.ThrottleFromEnv("ADMIN", httpx.AdminThrottle), httpx.IPKeyExtractor(r.TrustProxy)),
			r.AdminAuth,
		)
	}

	r.Mux.Handle("PUT /v1/documents/{id}", admin(http.HandlerFunc(docs.HandleUpload)))
	r.Mux.Handle("GET /v1/documents/{id}", admin(http.HandlerFunc(docs.HandleGet)))
	r.Mux.Handle("GET /v1/documents", admin(http.HandlerFunc(docs.HandleList)))
	r.Mux.Handle("POST /v1/documents/{id}/archive", admin(http.HandlerFunc(docs.HandleArchive)))
	r.Mux.Handle("DELETE /v1/documents/{id}", admin(http.HandlerFunc(docs.HandleDelete)))
	r.Mux.Handle("POST /v1/documents/{id}/deliveries", admin(deliveries))
}

func (r *Router) registerDownloads() {
	h := &DownloadsHandler{
		DownloadService: r.DownloadService,
		TrustProxy:      r.TrustProxy,
	}

	// Strict request throttle; failed attempts are limited separately by the service
	throttle := httpx.Throttle(httpx.ThrottleFromEnv("DOWNLOAD", httpx.StrictThrottle), httpx.IPKeyExtractor(r.TrustProxy))

	r.Mux.Handle("POST /v1/downloads", httpx.Chain(http.HandlerFunc(h.HandlePost), throttle))
	r.Mux.Handle("GET /v1/downloads", httpx.Chain(http.HandlerFunc(h.HandleGet), throttle))
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	throttle := httpx.Throttle(httpx.ThrottleFromEnv("HEALTH", httpx.PublicThrottle), httpx.IPKeyExtractor(r.TrustProxy))

	r.Mux.Handle("GET /livez", httpx.Chain(LivezHandler(r.startTime, r.buildVersion), throttle))
	r.Mux.Handle("GET /readyz", httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.db, r.blobs, r.counters), throttle))
}
