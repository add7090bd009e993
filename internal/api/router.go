// Package api assembles the HTTP surface: agent mesh upgrade, report ingress,
// the operations ledger, knowledge inspection and the predictive engine.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/collective/internal/api/handlers"
	mw "github.com/Harshitk-cp/collective/internal/api/middleware"
	"github.com/Harshitk-cp/collective/internal/buildconfig"
	"github.com/Harshitk-cp/collective/internal/domain"
	"github.com/Harshitk-cp/collective/internal/mesh"
	"github.com/Harshitk-cp/collective/internal/predict"
	"github.com/Harshitk-cp/collective/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the wired components the router serves.
type Deps struct {
	Coordinator *service.Coordinator
	Hub         *mesh.Hub
	Engine      *predict.Engine
	Operations  domain.OperationsRecorder
	Logger      *zap.Logger

	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(d Deps) *chi.Mux {
	reportHandler := handlers.NewReportHandler(d.Coordinator, d.Logger)
	opsHandler := handlers.NewOperationsHandler(d.Operations, d.Logger)
	knowledgeHandler := handlers.NewKnowledgeHandler(d.Coordinator.Knowledge(), d.Hub)
	predictHandler := handlers.NewPredictHandler(d.Engine, d.Logger)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics)
	r.Use(mw.Logging(d.Logger))
	r.Use(middleware.Recoverer)
	if d.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(d.RateLimitRPS, d.RateLimitBurst))
	}

	r.Get("/health", healthHandler(d.Coordinator))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/mesh", d.Hub.Handler(d.Coordinator.Ingest))
		r.Get("/mesh/agents", knowledgeHandler.Agents)

		r.Post("/reports", reportHandler.Submit)

		r.Route("/operations", func(r chi.Router) {
			r.Post("/days", opsHandler.RecordDay)
			r.Post("/metrics", opsHandler.RecordMetric)
			r.Post("/bookings", opsHandler.AddBooking)
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/success-patterns", knowledgeHandler.SuccessPatterns)
			r.Get("/procedures", knowledgeHandler.Procedures)
			r.Get("/playbooks", knowledgeHandler.Playbooks)
			r.Get("/playbooks/{crisisType}", knowledgeHandler.Playbook)
			r.Get("/emotional", knowledgeHandler.Emotional)
			r.Get("/emotional/{emotion}/best", knowledgeHandler.BestResponse)
			r.Get("/teams/{task}", knowledgeHandler.Team)
			r.Get("/customers/{id}", knowledgeHandler.Customer)
			r.Get("/situations/{situation}", knowledgeHandler.Situation)
		})

		r.Post("/predict/customers/{id}", predictHandler.CustomerNeeds)
		r.Route("/forecast", func(r chi.Router) {
			r.Post("/demand", predictHandler.Demand)
			r.Post("/staffing", predictHandler.Staffing)
			r.Get("/revenue", predictHandler.Revenue)
		})
		r.Post("/anomalies", predictHandler.Anomalies)
	})

	return r
}

func healthHandler(coord *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status": "ok",
			"build":  buildconfig.VersionInfo(),
			"agents": coord.ActiveAgents(),
		}
		status := http.StatusOK
		if err := coord.Health(r.Context()); err != nil {
			body["status"] = "error"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
