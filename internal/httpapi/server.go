package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/drluca/shopstream/orderservice/internal/models"
	"github.com/drluca/shopstream/orderservice/internal/processor"
)

// Service is what the HTTP layer needs from the order processor.
type Service interface {
	CreateOrder(ctx context.Context, customerID int64, items []processor.ItemRequest, note *string) (models.Order, error)
	ConfirmOrder(ctx context.Context, orderID int64) (models.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	GetOrder(ctx context.Context, orderID int64) (models.Order, error)
	ListOrders(ctx context.Context, customerID *int64) ([]models.Order, error)
	ListCustomerPurchases(ctx context.Context, customerID int64) ([]models.PurchaseRecord, error)
	AdjustStock(ctx context.Context, productID int64, adj processor.StockAdjustment) (models.Product, error)
}

type Server struct {
	svc Service
}

func NewServer(svc Service) *Server {
	return &Server{svc: svc}
}

// Router wires the exposed operations onto a chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", s.handleCreateOrder)
		r.Get("/", s.handleListOrders)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", s.handleGetOrder)
			r.Delete("/", s.handleDeleteOrder)
			r.Post("/confirm", s.handleConfirmOrder)
			r.Post("/cancel", s.handleCancelOrder)
		})
	})
	r.Post("/products/{productID}/stock", s.handleAdjustStock)
	r.Get("/customers/{customerID}/purchases", s.handleListPurchases)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
