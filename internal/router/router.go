package router

import (
	"time"

	"factumovil/internal/config"
	"factumovil/internal/handler"
	"factumovil/internal/infra"
	"factumovil/internal/middleware"
	"factumovil/internal/repository"
	"factumovil/internal/service"
	"factumovil/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Services is the composition root shared by the HTTP router and the
// background workers started in cmd/server.
type Services struct {
	Comprobantes service.ComprobanteService
	Emisores     service.EmisorService
	Productos    service.ProductoService
	Clientes     service.ClienteService
	Reportes     service.ReporteService
	Extraccion   service.ExtraccionService

	ComprobanteRepo repository.ComprobanteRepository
	Gateway         service.SunatGateway
	CB              *infra.CircuitBreaker
	Mailer          *infra.Mailer
	Clock           clockwork.Clock

	// Nil without Redis; emissions then run inline.
	Dispatcher *worker.Dispatcher
	DLQ        *worker.DLQ
}

// NewServices wires repositories, infrastructure and services.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Services {
	clock := clockwork.NewRealClock()

	// ── Infrastructure ───────────────────────────────────────────────────────
	if cfg.IsProduction() && cfg.EncryptionKey == config.DefaultEncryptionKey {
		log.Warn().Msg("ENCRYPTION_KEY is the built-in default; set a real key")
	}
	vault := infra.NewVault(cfg.EncryptionKey, cfg.EncryptionSalt)
	mailer := infra.NewMailer(cfg)
	extractor := infra.NewExtractor(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		Clock:            clock,
	})

	var gateway service.SunatGateway
	if cfg.SunatMock {
		log.Warn().Msg("SUNAT_MOCK enabled: documents are not sent to SUNAT")
		gateway = infra.NewMockSunatClient()
	} else {
		gateway = infra.NewSunatClient(cfg.SunatAPIURL)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	emisorRepo := repository.NewEmisorRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	clienteRepo := repository.NewClienteRepository(db)
	comprobanteRepo := repository.NewComprobanteRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	conciliador := service.NewConciliador(clienteRepo, productoRepo)
	orquestador := service.NewOrquestador(service.OrquestadorConfig{
		Gateway:  gateway,
		CB:       cb,
		Clock:    clock,
		Interval: cfg.SunatPollInterval,
		Timeout:  cfg.SunatTimeout,
	})

	s := &Services{
		ComprobanteRepo: comprobanteRepo,
		Gateway:         gateway,
		CB:              cb,
		Mailer:          mailer,
		Clock:           clock,
	}

	// Worker dispatcher; a typed nil must not reach the service.
	var despachador service.DespachadorEmision
	if rdb != nil {
		s.Dispatcher = worker.NewDispatcher(rdb)
		s.DLQ = worker.NewDLQ(rdb, clock)
		despachador = s.Dispatcher
	}

	s.Comprobantes = service.NewComprobanteService(
		comprobanteRepo, emisorRepo, clienteRepo,
		conciliador, orquestador, gateway, vault, despachador, clock,
	)
	s.Emisores = service.NewEmisorService(emisorRepo, vault)
	s.Productos = service.NewProductoService(productoRepo, emisorRepo)
	s.Clientes = service.NewClienteService(clienteRepo, emisorRepo)
	s.Reportes = service.NewReporteService(comprobanteRepo)
	s.Extraccion = service.NewExtraccionService(extractor, conciliador, service.NewFusionador(conciliador, clock))
	return s
}

// New returns the configured Gin engine.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, s *Services) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(600, time.Minute))

	// ── Handlers ─────────────────────────────────────────────────────────────
	comprobantesH := handler.NewComprobantesHandler(s.Comprobantes)
	emisoresH := handler.NewEmisoresHandler(s.Emisores)
	productosH := handler.NewProductosHandler(s.Productos)
	clientesH := handler.NewClientesHandler(s.Clientes)
	reportesH := handler.NewReportesHandler(s.Reportes)
	extraccionH := handler.NewExtraccionHandler(s.Extraccion)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(handler.HealthDeps{
		DB:    db,
		Redis: rdb,
		CB:    s.CB,
		Sunat: s.Gateway,
		DLQ:   s.DLQ,
	}))

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		emisores := v1.Group("/emisores")
		{
			emisores.POST("", emisoresH.Crear)
			emisores.GET("", emisoresH.Listar)
			emisores.GET("/:id", emisoresH.Obtener)
			emisores.PUT("/:id", emisoresH.Actualizar)
			emisores.DELETE("/:id", emisoresH.Eliminar)
		}

		productos := v1.Group("/productos")
		{
			productos.POST("", productosH.Crear)
			productos.GET("", productosH.Listar)
			productos.PUT("/:id", productosH.Actualizar)
			productos.DELETE("/:id", productosH.Eliminar)
		}

		clientes := v1.Group("/clientes")
		{
			clientes.POST("", clientesH.Crear)
			clientes.GET("", clientesH.Listar)
			clientes.PUT("/:id", clientesH.Actualizar)
			clientes.DELETE("/:id", clientesH.Eliminar)
		}

		comp := v1.Group("/comprobantes")
		{
			comp.POST("", comprobantesH.Emitir)
			comp.POST("/validar", comprobantesH.PreValidar)
			comp.GET("", comprobantesH.Listar)
			comp.GET("/:id", comprobantesH.Obtener)
			comp.GET("/:id/pdf", comprobantesH.DescargarPDF)
			comp.POST("/:id/nota-credito", comprobantesH.EmitirNotaCredito)
		}

		ext := v1.Group("/extraccion")
		{
			ext.POST("/imagen", extraccionH.DesdeImagen)
			ext.POST("/audio", extraccionH.DesdeAudio)
		}

		rep := v1.Group("/reportes")
		{
			rep.GET("/ventas-mensuales", reportesH.VentasPorMes)
			rep.GET("/top-productos", reportesH.TopProductos)
		}
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
