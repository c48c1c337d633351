package watch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"content-loader/pkg/config"
	"content-loader/pkg/orchestrate"
)

// Scheduler rebuilds collections incrementally on a fixed interval
type Scheduler struct {
	appCfg         *config.AppConfig
	collectionKeys []string
	interval       time.Duration
	log            *logrus.Entry
	stateManager   *StateManager
}

// NewScheduler creates a new watch scheduler
func NewScheduler(appCfg *config.AppConfig, collectionKeys []string, interval time.Duration, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		appCfg:         appCfg,
		collectionKeys: collectionKeys,
		interval:       interval,
		log:            log.WithField("component", "watch"),
		stateManager:   NewStateManager(appCfg.StateDir),
	}
}

// Run builds due collections until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d collections with interval %s", len(s.collectionKeys), FormatInterval(s.interval))
	s.logSchedule()

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce builds every due collection, records the outcomes and returns the keys built.
func (s *Scheduler) RunOnce(ctx context.Context) []string {
	due := s.dueCollections()
	if len(due) == 0 {
		s.logNextRun()
		return nil
	}

	s.log.Infof("Rebuilding %d due collections: %v", len(due), due)
	results := orchestrate.NewOrchestrator(s.appCfg, due, true, s.log).Run(ctx)

	for _, r := range results {
		errorMsg := ""
		if r.Error != nil {
			errorMsg = r.Error.Error()
		}
		s.stateManager.UpdateCollectionState(r.CollectionKey, r.Success, r.Stats.Exported, r.Stats.Unchanged, errorMsg)
	}
	if err := s.stateManager.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}

	s.logNextRun()
	return due
}

// Status returns the state of every watched collection
func (s *Scheduler) Status() map[string]CollectionStatus {
	status := make(map[string]CollectionStatus, len(s.collectionKeys))
	for _, key := range s.collectionKeys {
		state, exists := s.stateManager.GetCollectionState(key)
		status[key] = CollectionStatus{
			CollectionState: state,
			NextRunTime:     s.stateManager.GetNextRunTime(key, s.interval),
			NeverRun:        !exists,
		}
	}
	return status
}

// CollectionStatus contains the status of a watched collection
type CollectionStatus struct {
	CollectionState
	NextRunTime time.Time
	NeverRun    bool
}

func (s *Scheduler) dueCollections() []string {
	var due []string
	for _, key := range s.collectionKeys {
		if s.stateManager.ShouldRun(key, s.interval) {
			due = append(due, key)
		}
	}
	return due
}

// tickInterval is a tenth of the interval, clamped to 1s..10m
func (s *Scheduler) tickInterval() time.Duration {
	return min(max(s.interval/10, time.Second), 10*time.Minute)
}

func (s *Scheduler) logSchedule() {
	for _, key := range s.collectionKeys {
		state, exists := s.stateManager.GetCollectionState(key)
		if !exists {
			s.log.Infof("  %s: never built, will build immediately", key)
			continue
		}
		result := "success"
		if !state.LastRunSuccess {
			result = "failed"
		}
		s.log.Infof("  %s: last build %s (%s, %d exported, %d unchanged), next build %s",
			key, state.LastRunTime.Format(time.RFC3339), result, state.PagesExported, state.PagesUnchanged,
			s.stateManager.GetNextRunTime(key, s.interval).Format(time.RFC3339))
	}
}

func (s *Scheduler) logNextRun() {
	if len(s.collectionKeys) == 0 {
		return
	}
	keys := append([]string(nil), s.collectionKeys...)
	sort.Slice(keys, func(i, j int) bool {
		return s.stateManager.GetNextRunTime(keys[i], s.interval).Before(s.stateManager.GetNextRunTime(keys[j], s.interval))
	})

	next := s.stateManager.GetNextRunTime(keys[0], s.interval)
	until := max(time.Until(next), 0)
	s.log.Infof("Next build: %s in %v (at %s)", keys[0], until.Round(time.Second), next.Format("15:04:05"))
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if mins := int(d.Minutes()) % 60; mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	if hours := int(d.Hours()) % 24; hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for a leading day count ("7d", "1d12h")
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", s)
		}
		return d, nil
	}

	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 && days > 0 {
		d := time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
