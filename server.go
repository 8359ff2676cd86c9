package main

import (
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Muskansingh2005/Library-feature-QR/docs"
	"github.com/Muskansingh2005/Library-feature-QR/internal/catalog"
	"github.com/Muskansingh2005/Library-feature-QR/internal/labels"
	"github.com/Muskansingh2005/Library-feature-QR/internal/lending"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/auth"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/config"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/ident"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/middleware"
	"github.com/Muskansingh2005/Library-feature-QR/internal/qrcode"
	"github.com/Muskansingh2005/Library-feature-QR/internal/students"
)

// services はルーティングと seed の両方から使う
type services struct {
	auth     *auth.Service
	books    *catalog.Service
	students *students.Service
	lending  *lending.Service
	labels   *labels.Service
}

func newServices(cfg *config.Config, conn *sqlx.DB, reg prometheus.Registerer) *services {
	clock := ident.RealClock{}
	ids := ident.NewULIDGen()

	bookStore := catalog.NewStore(conn)
	studentStore := students.NewStore(conn)

	return &services{
		auth:     auth.NewService(auth.NewStore(conn), []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		books:    catalog.NewService(bookStore, qrcode.New(cfg.QR.Size), clock, ids),
		students: students.NewService(studentStore, clock, ids),
		lending: lending.NewService(lending.Deps{
			DB:       conn,
			Store:    lending.NewStore(conn),
			Books:    bookStore,
			Students: studentStore,
			Clock:    clock,
			IDs:      ids,
			LoanDays: cfg.Lending.LoanDays,
			Metrics:  lending.NewMetrics(reg),
		}),
		labels: labels.NewService(bookStore),
	}
}

// newRouter はHTTPの配線のみ．done が閉じられるとレートリミッタの掃除も止まる
func newRouter(cfg *config.Config, conn *sqlx.DB, logger *slog.Logger, reg *prometheus.Registry, done <-chan struct{}) (*gin.Engine, error) {
	if cfg.Mode == config.ModeRelease {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(logger), middleware.NewHTTPMetrics(reg).Handler())
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	// 開発時のみCORS（フロントは別ポートの dev server）
	if cfg.Mode == config.ModeDev {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	svc := newServices(cfg, conn, reg)
	guard := auth.Librarian(cfg.Auth.Enabled, []byte(cfg.Auth.JWTSecret))

	api := r.Group("/api")
	if cfg.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go rl.Run(done)
		api.Use(rl.Handler())
	}
	auth.RegisterRoutes(api, svc.auth)
	labels.RegisterRoutes(api, svc.labels, guard...)
	catalog.RegisterRoutes(api, svc.books, guard...)
	students.RegisterRoutes(api, svc.students, guard...)
	lending.RegisterRoutes(api, svc.lending)

	var web fs.FS
	if cfg.Web.Dir != "" {
		web = os.DirFS(cfg.Web.Dir)
	}
	r.NoRoute(spaFallback(web))

	return r, nil
}

// spaFallback: 静的ファイルがあれば返し，なければ index.html
func spaFallback(fileFS fs.FS) gin.HandlerFunc {
	return func(c *gin.Context) {
		// API は対象外
		if c.Request.URL.Path == "/api" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			apperr.Respond(c, apperr.ErrNotFound("route not found"))
			return
		}
		if fileFS == nil || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.Status(http.StatusNotFound)
			return
		}

		reqPath := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		if serveFile(c, fileFS, reqPath) {
			return
		}
		if serveFile(c, fileFS, "index.html") {
			return
		}
		c.Status(http.StatusNotFound)
	}
}

func serveFile(c *gin.Context, fileFS fs.FS, name string) bool {
	f, err := fileFS.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		return false
	}

	if name == "index.html" {
		c.Header("Content-Type", "text/html; charset=utf-8")
	} else {
		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			c.Header("Content-Type", ct)
		}
		// index.html 以外はキャッシュ
		c.Header("Cache-Control", "public, max-age=86400, immutable")
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), rs)
	return true
}
