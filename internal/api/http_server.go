package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/application"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/config"
	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/domain"
)

var tracer = otel.Tracer("stocklock/api")

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Server groups the dependencies of the HTTP layer.
type Server struct {
	cfg        config.Config
	pool       *domain.ResourcePool
	stats      *application.ReservationStats
	reserveSvc *application.ReserveStockService
	releaseSvc *application.ReleaseReservationService
	ledger     domain.ReservationLedger
	simulator  *application.SimulationRunner
	gatherer   prometheus.Gatherer
}

func NewServer(
	cfg config.Config,
	pool *domain.ResourcePool,
	stats *application.ReservationStats,
	reserveSvc *application.ReserveStockService,
	releaseSvc *application.ReleaseReservationService,
	ledger domain.ReservationLedger,
	simulator *application.SimulationRunner,
	gatherer prometheus.Gatherer,
) *Server {
	return &Server{
		cfg:        cfg,
		pool:       pool,
		stats:      stats,
		reserveSvc: reserveSvc,
		releaseSvc: releaseSvc,
		ledger:     ledger,
		simulator:  simulator,
		gatherer:   gatherer,
	}
}

// Routes builds the router with every HTTP endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/swagger.json", s.handleSwaggerJson)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/resources", s.handleListResources)
		r.Get("/resources/{sku}", s.handleGetResource)
		r.Get("/stats", s.handleStats)

		r.Post("/reservations", s.handleReserve)
		r.Get("/reservations/{orderId}", s.handleGetReservation)
		r.Delete("/reservations/{orderId}", s.handleRelease)

		r.Post("/simulations", s.handleSimulate)
	})
	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type resourcesResponse struct {
	TotalStock int64                     `json:"totalStock"`
	Resources  []domain.ResourceSnapshot `json:"resources"`
}

type reserveRequest struct {
	OrderID   uuid.UUID         `json:"orderId"`
	UserID    uuid.UUID         `json:"userId"`
	Lines     []domain.CartLine `json:"lines"`
	TimeoutMs int               `json:"timeoutMs"`
}

type reservationResponse struct {
	OrderID       uuid.UUID         `json:"orderId"`
	UserID        uuid.UUID         `json:"userId"`
	Outcome       string            `json:"outcome,omitempty"`
	Status        string            `json:"status,omitempty"`
	ReservedAtUtc string            `json:"reservedAtUtc,omitempty"`
	ReleasedAtUtc *string           `json:"releasedAtUtc,omitempty"`
	Lines         []domain.CartLine `json:"lines,omitempty"`
}

type simulateRequest struct {
	Orders      int `json:"orders"`
	CartSize    int `json:"cartSize"`
	Parallelism int `json:"parallelism"`
	TimeoutMs   int `json:"timeoutMs"`
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// GET /api/resources
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	snaps := s.pool.Snapshot()
	var total int64
	for _, sn := range snaps {
		total += sn.Stock
	}
	writeJSON(w, http.StatusOK, resourcesResponse{TotalStock: total, Resources: snaps})
}

// GET /api/resources/{sku}
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	res, err := s.pool.Get(sku)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ResourceSnapshot{ID: res.ID, Stock: res.Stock()})
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// POST /api/reservations
func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "api.Reserve", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	var req reserveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	if req.OrderID == uuid.Nil {
		req.OrderID = uuid.New()
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID.String()))

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	outcome, res, err := s.reserveSvc.ReserveOrder(ctx, req.OrderID, req.UserID, req.Lines, timeout)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := reservationResponse{OrderID: req.OrderID, UserID: req.UserID, Outcome: string(outcome)}
	if res != nil {
		resp = toReservationResponse(res)
		resp.Outcome = string(outcome)
	}
	writeJSON(w, statusForOutcome(outcome), resp)
}

// GET /api/reservations/{orderId}
func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	res, err := s.ledger.GetByOrderID(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// DELETE /api/reservations/{orderId}
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	res, err := s.releaseSvc.HandleOrderCancelled(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no active reservation"})
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// POST /api/simulations
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req := simulateRequest{
		Orders:      100,
		CartSize:    3,
		Parallelism: s.cfg.SimulationParallelism,
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}
	timeout := s.cfg.ReservationTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	ctx, span := tracer.Start(r.Context(), "api.Simulate", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	result, err := s.simulator.Run(ctx, application.SimulationRequest{
		Orders:      req.Orders,
		CartSize:    req.CartSize,
		Parallelism: req.Parallelism,
		Timeout:     timeout,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /swagger.json
func (s *Server) handleSwaggerJson(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(openAPISpec))
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "orderId is invalid"})
		return uuid.Nil, false
	}
	return orderID, true
}

func toReservationResponse(res *domain.StockReservation) reservationResponse {
	var released *string
	if res.ReleasedAtUtc != nil {
		sv := res.ReleasedAtUtc.UTC().Format(time.RFC3339)
		released = &sv
	}
	return reservationResponse{
		OrderID:       res.OrderID,
		UserID:        res.UserID,
		Status:        string(res.Status),
		ReservedAtUtc: res.ReservedAtUtc.UTC().Format(time.RFC3339),
		ReleasedAtUtc: released,
		Lines:         res.Lines,
	}
}

func statusForOutcome(o domain.Outcome) int {
	switch o {
	case domain.OutcomeReserved:
		return http.StatusOK
	case domain.OutcomeOutOfStock:
		return http.StatusConflict
	case domain.OutcomeContended:
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrCartTooLarge),
		errors.Is(err, domain.ErrInvalidStock),
		errors.Is(err, application.ErrInvalidSimulation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrLockTimeout):
		status = http.StatusLocked
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("api: request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writeJSON error")
	}
}
