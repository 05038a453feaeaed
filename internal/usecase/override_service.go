package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/identity"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
)

const defaultProbeTimeout = 5 * time.Second

type PutOverrideInput struct {
	PlayerName  string
	Identity    string
	DisplayName string
	Aliases     []string
}

// OverrideResult is a stored override plus, when the probe answered in time,
// the channel's current live status.
type OverrideResult struct {
	Entry      override.Entry
	LiveStatus *livestatus.Status
}

type OverrideService struct {
	repo         override.Repository
	live         livestatus.Fetcher
	probeTimeout time.Duration
	logger       *logging.Logger
}

func NewOverrideService(repo override.Repository, live livestatus.Fetcher, probeTimeout time.Duration, logger *logging.Logger) *OverrideService {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OverrideService{
		repo:         repo,
		live:         live,
		probeTimeout: probeTimeout,
		logger:       logger.Named("override"),
	}
}

// Put stores the override with its identity in canonical form and then
// probes the channel once so the caller sees whether it is live right now.
func (s *OverrideService) Put(ctx context.Context, input PutOverrideInput) (OverrideResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.OverrideService.Put")
	defer span.End()

	parsed := identity.Parse(input.Identity)
	entry := override.Entry{
		PlayerName:  strings.TrimSpace(input.PlayerName),
		Identity:    parsed.URL,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Aliases:     override.NormalizeAliases(input.PlayerName, input.Aliases),
	}
	if err := entry.Validate(); err != nil {
		if strings.TrimSpace(input.Identity) != "" && parsed.IsZero() {
			return OverrideResult{}, fmt.Errorf("%w: identity %q is not a channel reference", ErrInvalidInput, input.Identity)
		}
		return OverrideResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	saved, err := s.repo.Put(ctx, entry)
	if err != nil {
		return OverrideResult{}, fmt.Errorf("save override player=%s: %w", entry.PlayerName, err)
	}
	s.logger.InfoContext(ctx, "override saved", "player", saved.PlayerName, "identity", saved.Identity)

	return OverrideResult{Entry: saved, LiveStatus: s.probe(ctx, parsed)}, nil
}

func (s *OverrideService) probe(ctx context.Context, channel identity.Identity) *livestatus.Status {
	if s.live == nil || channel.IsZero() {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	result, err := s.live.FetchLiveStatus(probeCtx, []string{channel.Key()})
	if err != nil {
		s.logger.WarnContext(ctx, "override live probe failed", "identity", channel.URL, "error", err)
		return nil
	}
	if result.IsDegraded(channel.Key()) {
		return nil
	}
	status, ok := result.Lookup(channel.Key())
	if !ok {
		return nil
	}
	return &status
}

func (s *OverrideService) Get(ctx context.Context, playerName string) (override.Entry, error) {
	if strings.TrimSpace(playerName) == "" {
		return override.Entry{}, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}

	entry, ok, err := s.repo.Get(ctx, playerName)
	if err != nil {
		return override.Entry{}, fmt.Errorf("get override: %w", err)
	}
	if !ok {
		return override.Entry{}, fmt.Errorf("%w: override player=%s", ErrNotFound, playerName)
	}
	return entry, nil
}

func (s *OverrideService) List(ctx context.Context) ([]override.Entry, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Key() < items[j].Key() })
	return items, nil
}

func (s *OverrideService) Delete(ctx context.Context, playerName string) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.OverrideService.Delete")
	defer span.End()

	if strings.TrimSpace(playerName) == "" {
		return fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}

	deleted, err := s.repo.Delete(ctx, playerName)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: override player=%s", ErrNotFound, playerName)
	}
	s.logger.InfoContext(ctx, "override deleted", "player", playerName)
	return nil
}

// CheckLiveStatus looks channels up directly, bypassing the leaderboard
// cache. Values that are not strings or do not name a channel are dropped.
// The result is keyed by username as given.
func (s *OverrideService) CheckLiveStatus(ctx context.Context, channels []any) (map[string]livestatus.Status, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.OverrideService.CheckLiveStatus")
	defer span.End()

	byKey := make(map[string]string, len(channels))
	keys := make([]string, 0, len(channels))
	for _, value := range channels {
		channel := identity.Parse(identity.NormalizeValue(value))
		if channel.IsZero() {
			continue
		}
		if _, ok := byKey[channel.Key()]; ok {
			continue
		}
		byKey[channel.Key()] = channel.Username
		keys = append(keys, channel.Key())
	}

	out := make(map[string]livestatus.Status, len(keys))
	if len(keys) == 0 || s.live == nil {
		return out, nil
	}

	result, err := s.live.FetchLiveStatus(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch live status: %w", err)
	}
	for _, key := range keys {
		if result.IsDegraded(key) {
			continue
		}
		status, _ := result.Lookup(key)
		out[byKey[key]] = status
	}
	return out, nil
}
