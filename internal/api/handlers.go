package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/forecast"
)

// createOrderRequest is the POST /orders body. Quantity accepts either
// a JSON string or a number; decimals as strings keep amounts exact.
type createOrderRequest struct {
	PortfolioID string          `json:"portfolio_id"`
	ISIN        string          `json:"isin"`
	Side        string          `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// writeEngineError maps the deterministic engine error kinds onto HTTP
// statuses: not-found → 404, everything else a caller error → 400.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrUnknownSecurity),
		errors.Is(err, domain.ErrInsufficientBuyingPower),
		errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrOrderNotCancellable):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side, ok := domain.ParseOrderSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	order, err := s.engine.PlaceOrder(r.Context(), req.PortfolioID, req.ISIN, side, req.Quantity)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "order id must be an integer")
		return
	}

	order, err := s.engine.GetOrder(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "order id must be an integer")
		return
	}

	order, err := s.engine.CancelOrder(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var status domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := domain.ParseOrderStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		status = parsed
	}

	orders, err := s.engine.ListOrders(r.Context(), status)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, listOrdersResponse{Orders: orders})
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if s.forecast == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction service not configured")
		return
	}

	horizonDays := 5
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "horizon_days must be an integer")
			return
		}
		horizonDays = n
	}

	prediction, err := s.forecast.Fetch(r.Context(), r.PathValue("isin"), horizonDays)
	switch {
	case errors.Is(err, forecast.ErrInvalidHorizon):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, forecast.ErrUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		s.log.Error("fetching prediction", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, prediction)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}
