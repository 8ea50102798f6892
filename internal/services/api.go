package services

import (
	"fmt"

	"mai/config"
	"mai/internal/jobs"
	"mai/internal/nodes"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Api struct {
	server         *fiber.App
	nodes          *nodes.Registry
	runner         *Runner
	tracker        *jobs.Tracker
	hub            *Hub
	logger         *log.Logger
	port           string
	allowedOrigins string
}

func NewApi(config config.ApiConfig, registry *nodes.Registry, runner *Runner, tracker *jobs.Tracker, hub *Hub, logger *log.Logger) *Api {
	if config.AllowedOrigins == "" {
		config.AllowedOrigins = "*"
	}
	if config.BodyLimitMB <= 0 {
		config.BodyLimitMB = 64
	}

	a := &Api{
		server: fiber.New(fiber.Config{
			BodyLimit:             config.BodyLimitMB << 20,
			DisableStartupMessage: true,
		}),
		nodes:          registry,
		runner:         runner,
		tracker:        tracker,
		hub:            hub,
		logger:         logger,
		port:           config.Port,
		allowedOrigins: config.AllowedOrigins,
	}
	a.setup()
	return a
}

func (a *Api) setup() {
	allowCredentials := a.allowedOrigins != "*"

	a.server.Use(cors.New(cors.Config{
		AllowOrigins:     a.allowedOrigins,
		AllowCredentials: allowCredentials,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization,Accept,Origin",
	}))
	a.server.Use(RequestLogger(a.logger))

	a.addRoutes()
}

func (a *Api) Start() error {
	a.logger.Info("api listening", "port", a.port, "nodes", len(a.nodes.List()))
	return a.server.Listen(fmt.Sprint(":", a.port))
}

func (a *Api) Shutdown() error {
	return a.server.Shutdown()
}

func (a *Api) addRoutes() {
	a.server.Add("GET", "/health", a.Health())
	a.server.Add("GET", "/nodes", a.ListNodes())
	a.server.Add("GET", "/nodes/:class", a.GetNode())
	a.server.Add("POST", "/nodes/:class/invoke", a.InvokeNode())
	a.server.Add("POST", "/jobs", a.SubmitJob())
	a.server.Add("GET", "/jobs/:id", a.GetJob())

	// websocket connection
	a.server.Use("/ws", a.WsUpgrade())
	a.server.Get("/ws/:id", a.Notifications())
}
