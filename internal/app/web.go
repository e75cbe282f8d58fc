package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/pedestrian_status/internal/bus"
	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const wsWriteTimeout = 2 * time.Second

// statusHub keeps the latest status report and pushes every new one to the
// connected websocket clients.
type statusHub struct {
	slot   notify.Slot
	logger *zap.SugaredLogger

	// control forwards start/stop commands; nil disables /api/control
	control func(cmd string) error

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newStatusHub(logger *zap.SugaredLogger, control func(string) error) *statusHub {
	return &statusHub{
		logger:  logger,
		control: control,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Notify stores r and broadcasts it. Reports older than the current one are
// neither stored nor sent. Clients that cannot be written to are dropped.
func (h *statusHub) Notify(r notify.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.slot.Offer(r) {
		return nil
	}

	for conn := range h.clients {
		if err := writeReport(conn, r); err != nil {
			h.logger.Debugf("websocket: dropping client: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	return nil
}

func writeReport(conn *websocket.Conn, r notify.Report) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(r)
}

func (h *statusHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/control", h.handleControl)
	mux.HandleFunc("/ws/status", h.handleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (h *statusHub) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.slot.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(latest); err != nil {
		h.logger.Warnf("json encode error: %v", err)
	}
}

// handleControl accepts POST bodies "start" or "stop".
func (h *statusHub) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.control == nil {
		http.Error(w, "control topic not configured", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	cmd := strings.ToLower(strings.TrimSpace(string(body)))
	if cmd != ControlStart && cmd != ControlStop {
		http.Error(w, fmt.Sprintf("unknown command %q", cmd), http.StatusBadRequest)
		return
	}
	if err := h.control(cmd); err != nil {
		h.logger.Warnf("control %s: %v", cmd, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *statusHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade error: %v", err)
		return
	}

	// registering and sending the current status under one lock keeps a
	// concurrent Notify from reaching the client first
	h.mu.Lock()
	if latest, ok := h.slot.Latest(); ok {
		if err := writeReport(conn, latest); err != nil {
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Reads only detect the close; clients send nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *statusHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func RunWeb(logger *zap.SugaredLogger) error {
	cfg := config.Get()

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	var control func(string) error
	if cfg.TopicControl != "" {
		control = func(cmd string) error {
			return bus.Wait(client.Publish(cfg.TopicControl, 0, false, cmd))
		}
	}
	hub := newStatusHub(logger, control)

	err = bus.SubscribeJSON(client, cfg.TopicStatus, func(r notify.Report) {
		if err := hub.Notify(r); err != nil {
			logger.Warnf("%v", err)
		}
	}, func(err error) {
		logger.Warnf("%v", err)
	})
	if err != nil {
		return err
	}
	logger.Infof("subscribed to MQTT topic %s", cfg.TopicStatus)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           hub.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
