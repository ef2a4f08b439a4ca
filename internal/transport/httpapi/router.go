// Package httpapi отображает операции леджера на REST API.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
	"github.com/vladislavdragonenkov/ledger/internal/metrics"
	"github.com/vladislavdragonenkov/ledger/internal/service/ledger"
	"github.com/vladislavdragonenkov/ledger/internal/service/orders"
	"github.com/vladislavdragonenkov/ledger/internal/service/summary"
)

// Dependencies сервисы, которые обслуживает API.
// CustomerDeleter доступен только обработчику клиентов.
type Dependencies struct {
	Customers       domain.CustomerRepository
	CustomerDeleter domain.CustomerDeleter
	Orders          *orders.Query
	Lifecycle       *orders.Lifecycle
	Items           *ledger.ItemService
	Summary         *summary.Aggregator
	Timeline        domain.TimelineRepository
	Metrics         *metrics.LedgerMetrics
	Logger          *log.Entry
}

type handler struct {
	deps   Dependencies
	logger *log.Entry
}

// NewRouter собирает роутер API с middleware request id, логирования и метрик.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &handler{deps: deps, logger: logger}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware(logger), metricsMiddleware(deps.Metrics))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/customers/", h.listCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers/", h.createCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id:[0-9]+}/", h.getCustomer).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id:[0-9]+}/", h.patchCustomer).Methods(http.MethodPatch)
	api.HandleFunc("/customers/{id:[0-9]+}/", h.deleteCustomer).Methods(http.MethodDelete)

	api.HandleFunc("/orders/", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/", h.createOrder).Methods(http.MethodPost)
	// summary регистрируется раньше маршрутов с id
	api.HandleFunc("/orders/summary/", h.orderSummary).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/", h.patchOrder).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id:[0-9]+}/cancel/", h.cancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/archive/", h.archiveOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/timeline/", h.orderTimeline).Methods(http.MethodGet)

	api.HandleFunc("/items/", h.createItem).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}/", h.getItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}/", h.patchItem).Methods(http.MethodPatch)
	api.HandleFunc("/items/{id:[0-9]+}/", h.deleteItem).Methods(http.MethodDelete)

	return r
}
