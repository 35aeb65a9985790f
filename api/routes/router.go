package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sparrowretail/shelfline-backend/api/controllers"
	"github.com/sparrowretail/shelfline-backend/api/middleware"
	"github.com/sparrowretail/shelfline-backend/internal/fulfillment"
	"github.com/sparrowretail/shelfline-backend/internal/ledger"
	"github.com/sparrowretail/shelfline-backend/internal/policy"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/summary"
	"github.com/sparrowretail/shelfline-backend/pkg/config"
	"github.com/sparrowretail/shelfline-backend/pkg/db"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/redis"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

// Deps bundles everything the HTTP surface needs. Constructed once in
// cmd/api; tests swap in fakes per field.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        redis.Pinger
	Store        *vectorstore.Client
	Cache        *snapshot.Cache
	Loader       *snapshot.Loader
	Ledger       ledger.Service
	Fulfillment  fulfillment.Engine
	Summaries    summary.Service
	PolicyEngine *policy.Engine
	PolicyRepo   *policy.Repository
	Metrics      http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.CORS(cfg.App))

	r.Get("/healthz", controllers.Healthz(cfg, deps.DB, deps.Redis, deps.Store, logg))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/tenant/load", controllers.LoadTenant(deps.Cache, deps.Loader, deps.PolicyEngine, logg))

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.ListStock(deps.Cache, deps.Loader, logg))
			r.Post("/", controllers.CreateStock(deps.Ledger, logg))
			r.Get("/{uuid}", controllers.GetStock(deps.Cache, deps.Loader, logg))
			r.Patch("/{uuid}", controllers.UpdateStock(deps.Ledger, logg))
			r.Delete("/{uuid}", controllers.DeleteStock(deps.Ledger, logg))
		})

		r.Post("/batches", controllers.CreateBatch(deps.Ledger, logg))

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.ListSales(deps.Cache, deps.Loader, logg))
			r.Post("/", controllers.RecordSale(deps.Fulfillment, deps.Cache, deps.Loader, logg))
		})

		r.Post("/orders/deduct", controllers.DeductForOrder(deps.Fulfillment, deps.Cache, deps.Loader, logg))

		r.Get("/summaries", controllers.ListSummaries(deps.Summaries, deps.Cache, deps.Loader, logg))

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.ListSuppliers(deps.Cache, deps.Loader, logg))
			r.Post("/", controllers.RegisterSupplier(deps.Ledger, logg))
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", controllers.ListPolicies(deps.PolicyRepo, logg))
			r.Post("/", controllers.CreatePolicy(deps.PolicyRepo, logg))
			r.Get("/runs", controllers.ListPolicyRuns(deps.PolicyEngine, logg))
		})
	})

	return r
}
