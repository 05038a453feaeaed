package httpapi

import (
	"net/http"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
)

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaderboard")
	defer span.End()

	platform := r.PathValue("platform")
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	board, cached, err := h.leaderboardService.ReconcileAndServe(ctx, leaderboard.Scope{
		Platform: leaderboard.Platform(platform),
		Limit:    limit,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "get leaderboard failed", "platform", platform, "limit", limit, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, boardToDTO(board, cached))
}

func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SearchPlayers")
	defer span.End()

	platform := r.PathValue("platform")
	query := r.URL.Query().Get("q")
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := h.leaderboardService.SearchPlayers(ctx, leaderboard.Platform(platform), query, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "search players failed", "platform", platform, "query", query, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchesToDTO(matches))
}
