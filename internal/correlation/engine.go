package correlation

import (
	"context"
	"fmt"

	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// CallbackResult is the boundary response for one processed OOB event.
type CallbackResult struct {
	Success    bool             `json:"success"`
	CallbackID string           `json:"callback_id,omitempty"`
	Confidence types.Confidence `json:"confidence,omitempty"`
	Score      int              `json:"score,omitempty"`
	Filtered   bool             `json:"filtered,omitempty"`
	Duplicate  bool             `json:"duplicate,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// Engine drives a callback event through resolution, signal extraction,
// deduplication, scoring and finding synthesis. Invocations share nothing
// but the store; events for different tokens are safe to handle
// concurrently with no coordination.
type Engine struct {
	store       *database.Store
	registry    *Registry
	scorer      *Scorer
	dedup       *DedupGate
	synthesizer *Synthesizer
	logger      *logger.Logger
}

func NewEngine(store *database.Store, registry *Registry, scorer *Scorer, dedup *DedupGate, log *logger.Logger) *Engine {
	return &Engine{
		store:       store,
		registry:    registry,
		scorer:      scorer,
		dedup:       dedup,
		synthesizer: NewSynthesizer(),
		logger:      log.WithComponent("correlation"),
	}
}

// HandleCallback processes one inbound OOB event. Sentinel errors mark the
// caller's fault line: ErrInvalidRequest for a missing token,
// ErrUnknownToken for a token with no injection. Everything else is a
// dependency failure.
func (e *Engine) HandleCallback(ctx context.Context, event *RawEvent) (*CallbackResult, error) {
	if event == nil || event.Token == "" {
		return nil, ErrInvalidRequest
	}

	log := e.logger.WithContext(ctx)
	log.Infow("callback received", "token", event.Token)

	ic, err := e.registry.Resolve(ctx, event.Token)
	if err != nil {
		return nil, err
	}
	injection := &ic.Injection
	targetID := ic.Target.ID

	sig, err := Extract(event, injection)
	if err != nil {
		return nil, err
	}

	isDup, err := e.dedup.IsDuplicate(ctx, injection.ID)
	if err != nil {
		return nil, fmt.Errorf("dedup check failed: %w", err)
	}

	verdict := e.scorer.Score(sig, injection)

	if verdict.IsFalsePositive {
		// Filtered events leave no callback row; only the ledger sees
		// them. Give back the dedup claim so a later genuine ping for
		// this injection is still treated as canonical.
		if !isDup {
			e.dedup.Release(ctx, injection.ID)
		}
		if err := e.store.AppendLog(ctx, targetID, ic.Target.SessionID, types.LogInfo,
			fmt.Sprintf("False positive filtered: %s | Reason: %s", sig.Token, verdict.FalsePositiveReason),
		); err != nil {
			log.Warnw("failed to write ledger entry", "error", err)
		}
		return &CallbackResult{
			Success:  true,
			Filtered: true,
			Reason:   verdict.FalsePositiveReason,
		}, nil
	}

	callback := &types.Callback{
		InjectionID:  injection.ID,
		CallbackType: sig.CallbackType,
		SourceIP:     sig.SourceIP,
		UserAgent:    sig.UserAgent,
		DelaySeconds: sig.DelaySeconds,
		Confidence:   verdict.Confidence,
		IsDuplicate:  isDup,
		RawData: types.Evidence{
			Token:           sig.Token,
			Delay:           fmt.Sprintf("%ds", sig.DelaySeconds),
			UserAgent:       sig.UserAgent,
			SourceIP:        sig.SourceIP,
			Confidence:      verdict.Confidence,
			ConfidenceScore: verdict.Score,
			Factors:         verdict.Factors,
			Indicators:      verdict.PositiveIndicators,
			Headers:         sig.Headers,
			CallbackType:    sig.CallbackType,
			Extra:           sig.Extra,
		},
	}
	if err := e.store.RecordCallback(ctx, callback); err != nil {
		return nil, fmt.Errorf("failed to record callback: %w", err)
	}

	if callback.IsDuplicate {
		if err := e.store.AppendLog(ctx, targetID, ic.Target.SessionID, types.LogInfo,
			fmt.Sprintf("Duplicate callback recorded: %s | Score: %d", sig.Token, verdict.Score),
		); err != nil {
			log.Warnw("failed to write ledger entry", "error", err)
		}
		return &CallbackResult{
			Success:    true,
			CallbackID: callback.ID,
			Confidence: verdict.Confidence,
			Score:      verdict.Score,
			Duplicate:  true,
		}, nil
	}

	if err := e.store.MarkCallbackReceived(ctx, injection.ID); err != nil {
		return nil, fmt.Errorf("failed to update injection status: %w", err)
	}

	if finding := e.synthesizer.Synthesize(callback, injection, &ic.Endpoint); finding != nil {
		if err := e.store.CreateFinding(ctx, finding); err != nil {
			return nil, fmt.Errorf("failed to create finding: %w", err)
		}
		if err := e.store.UpdateEndpointStatus(ctx, ic.Endpoint.ID, types.EndpointStatusVulnerable); err != nil {
			return nil, fmt.Errorf("failed to update endpoint status: %w", err)
		}
		if err := e.store.AppendLog(ctx, targetID, ic.Target.SessionID, types.LogSuccess,
			fmt.Sprintf("CONFIRMED: %s in %s | Confidence: %s (%d) | Delay: %ds",
				injection.ContextType, injection.Param, verdict.Confidence, verdict.Score, sig.DelaySeconds),
		); err != nil {
			log.Warnw("failed to write ledger entry", "error", err)
		}
	} else {
		if err := e.store.AppendLog(ctx, targetID, ic.Target.SessionID, types.LogWarn,
			fmt.Sprintf("Low confidence callback: %s | Score: %d | Needs manual review", sig.Token, verdict.Score),
		); err != nil {
			log.Warnw("failed to write ledger entry", "error", err)
		}
	}

	log.LogCallbackEvent(ctx, sig.Token, string(verdict.Confidence), verdict.Score,
		"injection_id", injection.ID,
		"callback_type", sig.CallbackType,
	)

	return &CallbackResult{
		Success:    true,
		CallbackID: callback.ID,
		Confidence: verdict.Confidence,
		Score:      verdict.Score,
	}, nil
}
