// Package httpapi публикует REST API сервиса очереди заказов поверх fiber.
package httpapi

import (
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/auth"
	"github.com/vladislavdragonenkov/queueapp/internal/counter"
	"github.com/vladislavdragonenkov/queueapp/internal/domain"
	"github.com/vladislavdragonenkov/queueapp/internal/metrics"
	"github.com/vladislavdragonenkov/queueapp/internal/service/queue"
)

const (
	// DefaultVerificationKey - значение заголовка verification-key по умолчанию.
	DefaultVerificationKey = "key"
	// rejectedGlobalKey отклоняется глобальным middleware.
	rejectedGlobalKey = "yek"

	headerRequestID       = "X-Request-ID"
	headerVerificationKey = "verification-key"
	headerCallsCount      = "calls_count"
)

// Config задаёт зависимости и параметры HTTP API.
type Config struct {
	Service *queue.Service
	Tokens  *auth.TokenIssuer
	Counter domain.CallCounter
	Metrics *metrics.QueueMetrics
	Logger  *log.Entry

	VerificationKey string
	// StaticDir - каталог статических файлов для /static; пустой отключает раздачу.
	StaticDir string
}

type server struct {
	svc             *queue.Service
	tokens          *auth.TokenIssuer
	counter         domain.CallCounter
	metrics         *metrics.QueueMetrics
	logger          *log.Entry
	verificationKey string
}

// New собирает fiber-приложение со всеми маршрутами.
func New(cfg Config) *fiber.App {
	if cfg.Counter == nil {
		cfg.Counter = counter.NewLocal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "http-api")
	}
	if cfg.VerificationKey == "" {
		cfg.VerificationKey = DefaultVerificationKey
	}

	s := &server{
		svc:             cfg.Service,
		tokens:          cfg.Tokens,
		counter:         cfg.Counter,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		verificationKey: cfg.VerificationKey,
	}

	app := fiber.New(fiber.Config{
		AppName:               "queueapp",
		// строки из Params/Query/FormValue уходят в хранилище и в горутины уведомлений
		Immutable:             true,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})

	app.Use(s.requestID, s.accessLog, s.callsCount, s.globalKey, s.session)

	if cfg.StaticDir != "" {
		app.Static("/static", cfg.StaticDir)
	}

	app.Get("/", s.appInfo)
	app.Post("/token", s.login)

	orders := app.Group("/orders")
	orders.Post("/swap/:order_id", s.swapOrderOwner)
	orders.Delete("/remove", s.deleteOrdersInRange)
	orders.Get("/get/status/:status_name", s.ordersByStatus)
	orders.Get("/get/headers", s.ordersCountsFromHeader)
	orders.Get("/get/all", s.requireBearer, s.allOrders)
	orders.Get("/get/current", s.currentClient, s.ordersOfCurrentClient)
	orders.Get("/get/:client_id", s.ordersOfClient)
	orders.Post("/process/:order_id", s.processOrder)
	orders.Post("/process", s.processNext)
	orders.Post("/:client_id", s.createOrder)
	orders.Delete("/:order_id", s.deleteOrder)

	clients := app.Group("/clients")
	clients.Patch("/update/password/:client_name", s.verifyKey, s.changeClientPassword)
	clients.Put("/update/all/:client_name", s.updateClient)
	clients.Post("/login_set_photo", s.loginAndSetPhoto)
	clients.Post("/fake_login", s.fakeLogin)
	clients.Delete("/remove", s.deleteClientsInRange)
	clients.Get("/", s.listClients)
	clients.Post("/add", s.addClient)

	app.Post("/admin/reset", s.verifyKey, s.resetStorage)

	return app
}
