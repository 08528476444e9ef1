package http

import (
	"net/http"

	"github.com/denizrest/selforder/internal/adapters/mongo"
	"github.com/denizrest/selforder/internal/adapters/pg"
	"github.com/denizrest/selforder/internal/config"
	"github.com/denizrest/selforder/internal/idempotency"
	"github.com/denizrest/selforder/internal/observability"
)

type Handlers struct {
	cfg      *config.Config
	repo     *pg.Repository
	catalog  *mongo.CatalogRepository
	settings *mongo.SettingsRepository
	audit    *mongo.AuditLogger
	idemp    *idempotency.Idempotency
	logger   observability.Logger
}

func NewHandlers(
	cfg *config.Config,
	repo *pg.Repository,
	catalog *mongo.CatalogRepository,
	settings *mongo.SettingsRepository,
	audit *mongo.AuditLogger,
	idemp *idempotency.Idempotency,
	logger observability.Logger,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		repo:     repo,
		catalog:  catalog,
		settings: settings,
		audit:    audit,
		idemp:    idemp,
		logger:   logger,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
