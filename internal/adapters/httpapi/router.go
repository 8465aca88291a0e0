// Package httpapi exposes the gateway over HTTP: record passthrough routes,
// image attach and detach, bucket listing and service endpoints.
package httpapi

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbitros/internal/assets"
	"arbitros/internal/core"
	"arbitros/internal/records"
)

// Coordinator is the image lifecycle surface the handlers drive.
type Coordinator interface {
	Attach(ctx context.Context, id int64, up core.Upload, policy core.CleanupPolicy) (core.AttachResult, error)
	Detach(ctx context.Context, id int64) (records.Record, error)
	Reconcile(ctx context.Context, opts core.ReconcileOptions) (core.ReconcileReport, error)
}

// RecordService forwards record calls to the upstream API.
type RecordService interface {
	List(ctx context.Context) (records.Response, error)
	Search(ctx context.Context, username string) (records.Response, error)
	GetByCedula(ctx context.Context, cedula string) (records.Response, error)
	Fetch(ctx context.Context, id int64) (records.Response, error)
	Create(ctx context.Context, body []byte) (records.Response, error)
	Replace(ctx context.Context, id int64, body []byte) (records.Response, error)
	Delete(ctx context.Context, id int64) (records.Response, error)
	WithImages(ctx context.Context) ([]records.Record, error)
}

// ImageLister lists the bucket for the /images endpoint.
type ImageLister interface {
	List(ctx context.Context) ([]assets.Object, error)
	Bucket() string
}

// Config carries the router's collaborators and service metadata.
type Config struct {
	Coordinator Coordinator
	Records     RecordService
	Images      ImageLister
	Logger      core.Logger
	Gatherer    prometheus.Gatherer

	Version     string
	UpstreamURL string
	CORSOrigins []string
	Hostname    func() (string, error)
	Now         func() time.Time
}

// Handler holds the route handlers.
type Handler struct {
	coord    Coordinator
	records  RecordService
	images   ImageLister
	logger   core.Logger
	version  string
	upstream string
	hostname func() (string, error)
	now      func() time.Time
	started  time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	h := &Handler{
		coord:    cfg.Coordinator,
		records:  cfg.Records,
		images:   cfg.Images,
		logger:   cfg.Logger,
		version:  cfg.Version,
		upstream: cfg.UpstreamURL,
		hostname: cfg.Hostname,
		now:      cfg.Now,
	}
	if h.logger == nil {
		h.logger = nopLogger{}
	}
	if h.version == "" {
		h.version = "dev"
	}
	if h.hostname == nil {
		h.hostname = os.Hostname
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.started = h.now()
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(h.logger))
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	engine.MaxMultipartMemory = assets.MaxUploadBytes + 1<<20

	engine.GET("/", h.root)
	engine.GET("/health", h.health)
	engine.GET("/info", h.info)
	engine.GET("/images", h.listImages)
	engine.GET("/images/orphans", h.orphans)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	engine.GET("/api-docs", apiDocs)

	arb := engine.Group("/arbitros")
	{
		arb.GET("", h.listRecords)
		arb.POST("", h.createRecord)
		arb.GET("/search", h.searchRecord)
		arb.GET("/con-imagenes", h.recordsWithImages)
		arb.GET("/cedula/:cedula", h.recordByCedula)
		arb.GET("/:id", h.getRecord)
		arb.PUT("/:id", h.replaceRecord)
		arb.DELETE("/:id", h.deleteRecord)
		arb.POST("/:id/imagen", h.attachImage)
		arb.DELETE("/:id/imagen", h.detachImage)
	}
	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
