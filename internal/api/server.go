package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/device-core/internal/audit"
	"github.com/nerrad567/device-core/internal/auth"
	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/infrastructure/config"
	"github.com/nerrad567/device-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/device-core/internal/infrastructure/logging"
	"github.com/nerrad567/device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/device-core/internal/removal"
	"github.com/nerrad567/device-core/internal/subsystem"
)

// gracefulShutdownTimeout is how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies the server needs. Registry, Entries,
// Remover, Users and Logger are required; MQTT, Telemetry and Audit are
// optional and disable their feature when nil.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Entries   *subsystem.Store
	Remover   *removal.Coordinator
	Users     auth.UserRepository
	Audit     audit.Repository
	MQTT      *mqtt.Client
	Telemetry *influxdb.Client
	Version   string
}

// Server is the HTTP and WebSocket front end for the device registry.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	entries   *subsystem.Store
	remover   *removal.Coordinator
	users     auth.UserRepository
	audit     audit.Repository
	mqtt      *mqtt.Client
	telemetry *influxdb.Client
	version   string

	hub        *Hub
	tickets    *ticketStore
	httpServer *http.Server
	cancel     context.CancelFunc
}

// New creates a server from its dependencies. The WebSocket hub exists
// from this point so registry events can be broadcast before Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: logger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("api: device registry is required")
	}
	if deps.Entries == nil {
		return nil, errors.New("api: config entry store is required")
	}
	if deps.Remover == nil {
		return nil, errors.New("api: removal coordinator is required")
	}
	if deps.Users == nil {
		return nil, errors.New("api: user repository is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, errors.New("api: JWT secret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		entries:   deps.Entries,
		remover:   deps.Remover,
		users:     deps.Users,
		audit:     deps.Audit,
		mqtt:      deps.MQTT,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		tickets:   newTicketStore(deps.Security.JWT.TicketTTL),
	}
	s.hub = NewHub(deps.WS, deps.Logger)

	return s, nil
}

// Start begins serving HTTP and WebSocket traffic in the background.
// It returns once the listener goroutine is launched; fatal listen
// errors are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	router := s.buildRouter()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "addr", addr)
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "addr", addr)
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("API server shutting down")

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}

	if s.cancel != nil {
		s.cancel()
	}

	return err
}

// HealthCheck reports whether the server is able to accept requests.
func (s *Server) HealthCheck(_ context.Context) error {
	if s.httpServer == nil {
		return errors.New("api: server not started")
	}
	return nil
}

// HandleDeviceEvent fans a registry mutation out to WebSocket
// subscribers, the MQTT event topic, and the telemetry sink. Wire it up
// with registry.SetOnEvent.
func (s *Server) HandleDeviceEvent(evt device.Event) {
	payload := map[string]any{
		"device_id": evt.DeviceID,
		"device":    device.Project(evt.Entry),
	}

	s.hub.Broadcast(string(evt.Type), payload)

	if s.mqtt != nil && s.mqtt.IsConnected() {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("failed to marshal device event", "error", err)
		} else if err := s.mqtt.Publish(mqtt.Topics{}.DeviceEvent(string(evt.Type)), data, 1, false); err != nil {
			s.logger.Warn("device event publish failed", "event", evt.Type, "error", err)
		}
	}

	if s.telemetry != nil {
		s.telemetry.WriteRegistrySize(s.registry.Count(), s.entries.Count())
	}
}
