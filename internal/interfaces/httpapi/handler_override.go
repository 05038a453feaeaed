package httpapi

import (
	"net/http"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListOverrides")
	defer span.End()

	entries, err := h.overrideService.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list overrides failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]overrideDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, overrideToDTO(entry))
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetOverride(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetOverride")
	defer span.End()

	playerName := r.PathValue("playerName")
	entry, err := h.overrideService.Get(ctx, playerName)
	if err != nil {
		h.logger.WarnContext(ctx, "get override failed", "player", playerName, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, overrideToDTO(entry))
}

func (h *Handler) PutOverride(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PutOverride")
	defer span.End()

	var req putOverrideRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	playerName := r.PathValue("playerName")
	h.saveOverride(w, r.WithContext(ctx), usecase.PutOverrideInput{
		PlayerName:  playerName,
		Identity:    req.Identity,
		DisplayName: req.DisplayName,
		Aliases:     req.Aliases,
	})
}

// CreateOverride accepts the body shape older dashboard clients post, where
// the player name travels in the payload instead of the path.
func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateOverride")
	defer span.End()

	var req createOverrideRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	h.saveOverride(w, r.WithContext(ctx), usecase.PutOverrideInput{
		PlayerName:  req.PlayerName,
		Identity:    req.TwitchUsername,
		DisplayName: req.DisplayName,
		Aliases:     req.KnownNames,
	})
}

func (h *Handler) saveOverride(w http.ResponseWriter, r *http.Request, input usecase.PutOverrideInput) {
	ctx := r.Context()

	result, err := h.overrideService.Put(ctx, input)
	if err != nil {
		h.logger.WarnContext(ctx, "save override failed", "player", input.PlayerName, "error", err)
		writeError(ctx, w, err)
		return
	}

	out := overrideToDTO(result.Entry)
	if result.LiveStatus != nil {
		status := liveStatusToDTO(*result.LiveStatus)
		out.LiveStatus = &status
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteOverride")
	defer span.End()

	playerName := r.PathValue("playerName")
	if err := h.overrideService.Delete(ctx, playerName); err != nil {
		h.logger.WarnContext(ctx, "delete override failed", "player", playerName, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"player_name": playerName, "status": "deleted"})
}

func (h *Handler) CheckLiveStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CheckLiveStatus")
	defer span.End()

	var req liveStatusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	statuses, err := h.overrideService.CheckLiveStatus(ctx, req.Channels)
	if err != nil {
		h.logger.WarnContext(ctx, "check live status failed", "channels", len(req.Channels), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, liveStatusMapToDTO(statuses))
}

func liveStatusMapToDTO(statuses map[string]livestatus.Status) map[string]liveStatusDTO {
	out := make(map[string]liveStatusDTO, len(statuses))
	for name, status := range statuses {
		out[name] = liveStatusToDTO(status)
	}
	return out
}
