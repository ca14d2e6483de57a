package injector

import (
	"context"
	"fmt"
	"time"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// Detail reports the outcome for one injection in a batch.
type Detail struct {
	Token    string             `json:"token"`
	Status   string             `json:"status"`
	VulnType types.VulnCategory `json:"vulnType"`
}

// BatchResult is the boundary response for one processing run.
type BatchResult struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Errors    int      `json:"errors"`
	Details   []Detail `json:"details"`
}

// Processor drives pending injections to the injected state. Each
// injection is claimed individually with a conditional status transition,
// so two concurrent runs over the same batch split the work instead of
// double-injecting.
type Processor struct {
	store  *database.Store
	cfg    config.InjectorConfig
	logger *logger.Logger
}

func NewProcessor(store *database.Store, cfg config.InjectorConfig, log *logger.Logger) *Processor {
	return &Processor{
		store:  store,
		cfg:    cfg,
		logger: log.WithComponent("injector"),
	}
}

// ProcessBatch selects up to batchSize pending injections (all of them
// filtered by vulnTypeFilter when set), claims each one, and records the
// payload that would be delivered. Per-item failures are tallied, never
// fatal to the batch.
func (p *Processor) ProcessBatch(ctx context.Context, batchSize int, vulnTypeFilter string) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	start := time.Now()
	log := p.logger.WithContext(ctx)

	pending, err := p.store.ListPendingInjections(ctx, batchSize, vulnTypeFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending injections: %w", err)
	}

	log.Infow("processing pending injections", "count", len(pending))

	result := &BatchResult{Details: []Detail{}}
	var summaryTargetID, summarySessionID string

	for _, ic := range pending {
		injection := ic.Injection
		if summaryTargetID == "" {
			summaryTargetID = ic.Target.ID
			summarySessionID = ic.Target.SessionID
		}

		claimed, err := p.store.MarkInjected(ctx, injection.ID)
		if err != nil {
			log.Errorw("failed to claim injection", "token", injection.Token, "error", err)
			result.Errors++
			result.Details = append(result.Details, Detail{
				Token:    injection.Token,
				Status:   "error",
				VulnType: injection.ContextType,
			})
			continue
		}
		if !claimed {
			// Another run got here first.
			result.Skipped++
			result.Details = append(result.Details, Detail{
				Token:    injection.Token,
				Status:   "skipped",
				VulnType: injection.ContextType,
			})
			continue
		}

		if err := p.store.UpdateEndpointStatus(ctx, injection.EndpointID, types.EndpointStatusTesting); err != nil {
			log.Warnw("failed to mark endpoint testing", "endpoint_id", injection.EndpointID, "error", err)
		}

		payload := SelectPayload(injection.ContextType, p.cfg.CallbackURL, injection.Token)

		p.ledger(ctx, ic.Target.ID, summarySessionID, types.LogInfo,
			fmt.Sprintf("Injecting %s probe into %s | Param: %s | Token: %s",
				injection.ContextType, ic.Endpoint.Path, injection.Param, injection.Token))
		if payload != "" {
			p.ledger(ctx, ic.Target.ID, summarySessionID, types.LogInfo,
				fmt.Sprintf("Payload template: %s", truncate(payload, 60)))
		}

		result.Processed++
		result.Details = append(result.Details, Detail{
			Token:    injection.Token,
			Status:   "injected",
			VulnType: injection.ContextType,
		})
	}

	if summaryTargetID != "" {
		p.ledger(ctx, summaryTargetID, summarySessionID, types.LogSuccess,
			fmt.Sprintf("Injection batch complete: %d processed | %d skipped | %d errors",
				result.Processed, result.Skipped, result.Errors))
	}

	log.LogDuration(ctx, "injector.ProcessBatch", start,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)

	return result, nil
}

func (p *Processor) ledger(ctx context.Context, targetID, sessionID string, level types.LogLevel, message string) {
	if err := p.store.AppendLog(ctx, targetID, sessionID, level, message); err != nil {
		p.logger.WithContext(ctx).Warnw("failed to write ledger entry", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
