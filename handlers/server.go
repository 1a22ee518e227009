package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/legendiguess/pumpdump-trade-bot/domain"
	"github.com/legendiguess/pumpdump-trade-bot/services"
	"github.com/legendiguess/pumpdump-trade-bot/storage"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
)

type ordersService interface {
	Create(ctx context.Context, newOrder services.NewOrder) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, status domain.OrderStatus, filter domain.OrderFilter) ([]domain.Order, error)
	Cancel(ctx context.Context, id string, ownerID string) (domain.Order, error)
}

type metricsSnapshotter interface {
	Snapshot() services.MetricsSnapshot
}

type serverLogger interface {
	Printf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type Server struct {
	ordersService ordersService
	metrics       metricsSnapshotter
	logger        serverLogger
}

func NewServer(ordersService ordersService, metrics metricsSnapshotter, serverLogger serverLogger) *Server {
	return &Server{
		ordersService: ordersService,
		metrics:       metrics,
		logger:        serverLogger,
	}
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (server *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: server.Routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	server.logger.Printf("HTTP API listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (server *Server) Routes() chi.Router {
	root := chi.NewRouter()

	root.Use(middleware.Logger)
	root.Use(middleware.Recoverer)
	root.Use(cors.AllowAll().Handler)

	root.Get("/health", server.health)
	root.Route("/orders", func(r chi.Router) {
		r.Post("/", server.createOrder)
		r.Get("/", server.listOrders)
		r.Get("/{id}", server.getOrder)
		r.Delete("/{id}", server.cancelOrder)
	})

	return root
}

type createOrderRequest struct {
	UserID           string             `json:"user_id"`
	Venue            string             `json:"venue"`
	Action           domain.OrderAction `json:"action"`
	Market           string             `json:"market"`
	Trigger          json.RawMessage    `json:"trigger"`
	ThresholdPercent float64            `json:"threshold_percent"`
	Amount           decimal.Decimal    `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (server *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var request createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed body"})
		return
	}

	trigger, err := decodeTrigger(request.Trigger)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	order, err := server.ordersService.Create(r.Context(), services.NewOrder{
		UserID:           request.UserID,
		Venue:            request.Venue,
		Action:           request.Action,
		Market:           request.Market,
		Trigger:          trigger,
		ThresholdPercent: request.ThresholdPercent,
		Amount:           request.Amount,
	})
	if err != nil {
		server.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// decodeTrigger accepts either "pump_yes" or {"kind":"pump","outcome":"YES"}.
func decodeTrigger(raw json.RawMessage) (domain.Trigger, error) {
	if len(raw) == 0 {
		return domain.Trigger{}, domain.ErrInvalidTrigger
	}

	var flat string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return domain.ParseTrigger(flat)
	}

	var trigger domain.Trigger
	if err := json.Unmarshal(raw, &trigger); err != nil {
		return domain.Trigger{}, domain.ErrInvalidTrigger
	}
	trigger.Kind = domain.TriggerKind(strings.ToLower(string(trigger.Kind)))
	trigger.Outcome = domain.Outcome(strings.ToUpper(string(trigger.Outcome)))
	return trigger, trigger.Validate()
}

func (server *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	status := domain.OrderStatus(query.Get("status"))
	if status != "" && !status.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status"})
		return
	}

	orders, err := server.ordersService.List(r.Context(), status, domain.OrderFilter{
		Venue:  query.Get("venue"),
		Action: domain.OrderAction(query.Get("action")),
	})
	if err != nil {
		server.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (server *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := server.ordersService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		server.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (server *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := server.ordersService.Cancel(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("user_id"))
	if err != nil {
		server.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (server *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.metrics.Snapshot())
}

func (server *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidTrigger):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrOrderNotActive):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		server.logger.Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
