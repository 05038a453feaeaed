package httpapi

import (
	"net/http"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
)

func (h *Handler) RunRefreshLeaderboardsJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshLeaderboardsJob")
	defer span.End()

	var req refreshLeaderboardsRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	platforms := make([]leaderboard.Platform, 0, len(req.Platforms))
	for _, raw := range req.Platforms {
		platforms = append(platforms, leaderboard.Platform(raw))
	}

	results, err := h.leaderboardService.RefreshAll(ctx, platforms)
	if err != nil {
		h.logger.WarnContext(ctx, "run refresh leaderboards job failed", "platforms", req.Platforms, "error", err)
		writeError(ctx, w, err)
		return
	}

	failed := 0
	for _, result := range results {
		if result.Failed() {
			failed++
		}
	}
	h.logger.InfoContext(ctx, "refresh leaderboards job completed", "platforms", len(results), "failed", failed)

	writeSuccess(ctx, w, http.StatusOK, refreshLeaderboardsDTO{Results: results})
}
