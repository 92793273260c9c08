package handlers

import (
	"net/http"

	"github.com/anidao/anidao/internal/controllers"
	"github.com/sirupsen/logrus"
)

// DashboardHandler serves the admin catalog summary
type DashboardHandler struct {
	catalog *controllers.CatalogController
	logger  *logrus.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(catalog *controllers.CatalogController, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ServeHTTP handles the dashboard endpoint
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.catalog.Dashboard(r.Context())
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to build dashboard")
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}
