package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metricsEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !metricsEnabled {
		return
	}

	mux.Handle("GET /metrics", promhttp.Handler())
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/leaderboards/{platform}", handler.GetLeaderboard)
	mux.HandleFunc("GET /v1/leaderboards/{platform}/players/search", handler.SearchPlayers)
	mux.HandleFunc("POST /v1/live-status", handler.CheckLiveStatus)
	mux.HandleFunc("GET /v1/overrides", handler.ListOverrides)
	mux.HandleFunc("GET /v1/overrides/{playerName}", handler.GetOverride)
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("POST /v1/overrides", RequireAdminToken(adminToken, http.HandlerFunc(handler.CreateOverride)))
	mux.Handle("PUT /v1/overrides/{playerName}", RequireAdminToken(adminToken, http.HandlerFunc(handler.PutOverride)))
	mux.Handle("DELETE /v1/overrides/{playerName}", RequireAdminToken(adminToken, http.HandlerFunc(handler.DeleteOverride)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/refresh-leaderboards", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunRefreshLeaderboardsJob)))
}
