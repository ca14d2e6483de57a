package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// Result summarizes a completed scan.
type Result struct {
	TargetID       string `json:"target_id"`
	SessionID      string `json:"session_id"`
	Endpoints      int    `json:"endpoints"`
	Critical       int    `json:"critical"`
	High           int    `json:"high"`
	Injections     int    `json:"injections"`
	SalesforceType string `json:"salesforce_type"`
}

// Scanner builds the attack surface for a target: fingerprint the
// instance, persist the endpoint catalog, and issue correlation tokens for
// every testable high-risk parameter.
type Scanner struct {
	store    *database.Store
	registry *correlation.Registry
	cfg      config.ScannerConfig
	logger   *logger.Logger
}

func New(store *database.Store, registry *correlation.Registry, cfg config.ScannerConfig, log *logger.Logger) *Scanner {
	return &Scanner{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   log.WithComponent("scanner"),
	}
}

// Scan runs a full assessment of a domain. A caller-supplied session id
// groups ledger entries across related scans; an empty one gets a fresh
// UUID.
func (s *Scanner) Scan(ctx context.Context, domain, scanType, sessionID string) (*Result, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if scanType == "" {
		scanType = s.cfg.DefaultScanType
	}

	start := time.Now()
	log := s.logger.WithContext(ctx).WithTarget(domain).WithSession(sessionID)

	info := DetectInstance(domain)

	target := &types.Target{
		Domain:      domain,
		CMSDetected: info.Type,
		TechStack:   info.TechStack,
		Status:      types.TargetStatusScanning,
		SessionID:   sessionID,
	}
	if err := s.store.CreateTarget(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	s.ledger(ctx, target.ID, sessionID, types.LogInfo,
		fmt.Sprintf("Initiating Salesforce security assessment for %s", domain))
	s.ledger(ctx, target.ID, sessionID, types.LogInfo,
		fmt.Sprintf("Detected instance type: %s | Edition: %s", info.Type, info.Edition))

	result := &Result{
		TargetID:       target.ID,
		SessionID:      sessionID,
		SalesforceType: info.Type,
	}

	for _, candidate := range CatalogEndpoints(info) {
		endpoint := &types.Endpoint{
			TargetID:     target.ID,
			Path:         candidate.Path,
			Method:       candidate.Method,
			Params:       candidate.Params,
			AuthRequired: candidate.AuthRequired,
			CMS:          candidate.CMS,
			RiskLevel:    candidate.RiskLevel,
			InputClass:   candidate.InputClass,
			Status:       types.EndpointStatusDiscovered,
		}
		if err := s.store.CreateEndpoint(ctx, endpoint); err != nil {
			log.Errorw("failed to persist endpoint", "endpoint", candidate.Path, "error", err)
			continue
		}

		result.Endpoints++
		switch candidate.RiskLevel {
		case types.RiskCritical:
			result.Critical++
		case types.RiskHigh:
			result.High++
		}

		s.ledger(ctx, target.ID, sessionID, riskLogLevel(candidate.RiskLevel),
			fmt.Sprintf("%s %s | %s | Risk: %s",
				candidate.Method, candidate.Path, candidate.InputClass,
				strings.ToUpper(string(candidate.RiskLevel))))

		if !candidate.Testable {
			continue
		}
		if candidate.RiskLevel != types.RiskCritical && candidate.RiskLevel != types.RiskHigh {
			continue
		}

		params := candidate.Params
		if len(params) > s.cfg.MaxTokensPerEndpoint {
			params = params[:s.cfg.MaxTokensPerEndpoint]
		}
		for _, param := range params {
			if _, err := s.registry.IssueToken(ctx, endpoint.ID, param, candidate.VulnType); err != nil {
				log.Errorw("failed to issue token", "endpoint", candidate.Path, "param", param, "error", err)
				continue
			}
			result.Injections++
		}
		if len(params) > 0 {
			s.ledger(ctx, target.ID, sessionID, types.LogWarn,
				fmt.Sprintf("Created injection probes for %s targeting: %s",
					candidate.Path, strings.Join(params, ", ")))
		}
	}

	if err := s.store.UpdateTargetStatus(ctx, target.ID, types.TargetStatusComplete); err != nil {
		return nil, fmt.Errorf("failed to complete target: %w", err)
	}

	summaryLevel := types.LogSuccess
	if result.Critical > 0 {
		summaryLevel = types.LogError
	} else if result.High > 0 {
		summaryLevel = types.LogWarn
	}
	s.ledger(ctx, target.ID, sessionID, summaryLevel,
		fmt.Sprintf("Scan complete: %d endpoints | %d critical | %d high risk",
			result.Endpoints, result.Critical, result.High))

	log.LogDuration(ctx, "scanner.Scan", start,
		"endpoints", result.Endpoints,
		"injections", result.Injections,
	)

	return result, nil
}

func (s *Scanner) ledger(ctx context.Context, targetID, sessionID string, level types.LogLevel, message string) {
	if err := s.store.AppendLog(ctx, targetID, sessionID, level, message); err != nil {
		s.logger.WithContext(ctx).Warnw("failed to write ledger entry", "error", err)
	}
}

func riskLogLevel(risk types.RiskLevel) types.LogLevel {
	switch risk {
	case types.RiskCritical:
		return types.LogError
	case types.RiskHigh:
		return types.LogWarn
	default:
		return types.LogInfo
	}
}
