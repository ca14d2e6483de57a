package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// InjectionContext is an injection joined with its owning endpoint and
// target, the shape every callback decision needs.
type InjectionContext struct {
	Injection types.Injection
	Endpoint  types.Endpoint
	Target    types.Target
}

type Store struct {
	db     *sqlx.DB
	cfg    config.DatabaseConfig
	logger *logger.Logger
}

// getPlaceholder returns the appropriate placeholder for the database driver
func (s *Store) getPlaceholder(n int) string {
	if s.cfg.Driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func NewStore(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	log = log.WithComponent("database")

	start := time.Now()
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		cfg:    cfg,
		logger: log,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.LogDuration(context.Background(), "database.NewStore", start,
		"driver", cfg.Driver,
	)

	return store, nil
}

func (s *Store) migrate() error {
	if s.cfg.Driver == "sqlite3" {
		if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- targets ----

func (s *Store) CreateTarget(ctx context.Context, target *types.Target) error {
	if target.ID == "" {
		target.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	target.CreatedAt = now
	target.UpdatedAt = now

	techJSON, err := json.Marshal(target.TechStack)
	if err != nil {
		return fmt.Errorf("failed to marshal tech stack: %w", err)
	}

	query := `
		INSERT INTO targets (
			id, domain, cms_detected, tech_stack, status, session_id,
			created_at, updated_at
		) VALUES (
			:id, :domain, :cms_detected, :tech_stack, :status, :session_id,
			:created_at, :updated_at
		)
	`

	_, err = s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           target.ID,
		"domain":       target.Domain,
		"cms_detected": target.CMSDetected,
		"tech_stack":   string(techJSON),
		"status":       target.Status,
		"session_id":   target.SessionID,
		"created_at":   target.CreatedAt,
		"updated_at":   target.UpdatedAt,
	})
	if err != nil {
		s.logger.LogError(ctx, err, "database.CreateTarget", "target_id", target.ID)
		return err
	}
	return nil
}

func (s *Store) UpdateTargetStatus(ctx context.Context, targetID string, status types.TargetStatus) error {
	query := fmt.Sprintf(
		"UPDATE targets SET status = %s, updated_at = %s WHERE id = %s",
		s.getPlaceholder(1), s.getPlaceholder(2), s.getPlaceholder(3),
	)
	_, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), targetID)
	return err
}

func (s *Store) GetTarget(ctx context.Context, targetID string) (*types.Target, error) {
	query := fmt.Sprintf(`
		SELECT id, domain, cms_detected, tech_stack, status, session_id,
			   created_at, updated_at
		FROM targets
		WHERE id = %s
	`, s.getPlaceholder(1))

	var target types.Target
	var techJSON sql.NullString
	row := s.db.QueryRowContext(ctx, query, targetID)
	if err := row.Scan(
		&target.ID, &target.Domain, &target.CMSDetected, &techJSON,
		&target.Status, &target.SessionID, &target.CreatedAt, &target.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("target not found")
		}
		return nil, err
	}

	if techJSON.Valid && techJSON.String != "" {
		if err := json.Unmarshal([]byte(techJSON.String), &target.TechStack); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tech stack: %w", err)
		}
	}
	return &target, nil
}

// ---- endpoints ----

func (s *Store) CreateEndpoint(ctx context.Context, endpoint *types.Endpoint) error {
	if endpoint.ID == "" {
		endpoint.ID = uuid.New().String()
	}
	endpoint.CreatedAt = time.Now().UTC()

	paramsJSON, err := json.Marshal(endpoint.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	query := `
		INSERT INTO endpoints (
			id, target_id, endpoint, method, params, auth_required,
			cms, risk_level, input_class, status, created_at
		) VALUES (
			:id, :target_id, :endpoint, :method, :params, :auth_required,
			:cms, :risk_level, :input_class, :status, :created_at
		)
	`

	_, err = s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            endpoint.ID,
		"target_id":     endpoint.TargetID,
		"endpoint":      endpoint.Path,
		"method":        endpoint.Method,
		"params":        string(paramsJSON),
		"auth_required": endpoint.AuthRequired,
		"cms":           endpoint.CMS,
		"risk_level":    endpoint.RiskLevel,
		"input_class":   endpoint.InputClass,
		"status":        endpoint.Status,
		"created_at":    endpoint.CreatedAt,
	})
	if err != nil {
		s.logger.LogError(ctx, err, "database.CreateEndpoint", "endpoint", endpoint.Path)
		return err
	}
	return nil
}

func (s *Store) UpdateEndpointStatus(ctx context.Context, endpointID string, status types.EndpointStatus) error {
	query := fmt.Sprintf(
		"UPDATE endpoints SET status = %s WHERE id = %s",
		s.getPlaceholder(1), s.getPlaceholder(2),
	)
	_, err := s.db.ExecContext(ctx, query, status, endpointID)
	return err
}

// ---- injections ----

func (s *Store) CreateInjection(ctx context.Context, injection *types.Injection) error {
	if injection.ID == "" {
		injection.ID = uuid.New().String()
	}
	injection.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO injections (
			id, endpoint_id, token, param, context_type, status, created_at
		) VALUES (
			:id, :endpoint_id, :token, :param, :context_type, :status, :created_at
		)
	`

	_, err := s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           injection.ID,
		"endpoint_id":  injection.EndpointID,
		"token":        injection.Token,
		"param":        injection.Param,
		"context_type": injection.ContextType,
		"status":       injection.Status,
		"created_at":   injection.CreatedAt,
	})
	if err != nil {
		s.logger.LogError(ctx, err, "database.CreateInjection", "token", injection.Token)
		return err
	}
	return nil
}

// GetInjectionByToken resolves a callback token to its injection plus the
// owning endpoint and target. Returns sql.ErrNoRows when the token is
// unknown.
func (s *Store) GetInjectionByToken(ctx context.Context, token string) (*InjectionContext, error) {
	query := fmt.Sprintf(`
		SELECT i.id, i.endpoint_id, i.token, i.param, i.context_type,
			   i.status, i.injected_at, i.created_at,
			   e.id, e.target_id, e.endpoint, e.method, e.params,
			   e.auth_required, e.cms, e.risk_level, e.input_class,
			   e.status, e.created_at,
			   t.id, t.domain, t.cms_detected, t.tech_stack, t.status,
			   t.session_id, t.created_at, t.updated_at
		FROM injections i
		JOIN endpoints e ON i.endpoint_id = e.id
		JOIN targets t ON e.target_id = t.id
		WHERE i.token = %s
	`, s.getPlaceholder(1))

	var ic InjectionContext
	var paramsJSON, techJSON sql.NullString
	row := s.db.QueryRowContext(ctx, query, token)
	err := row.Scan(
		&ic.Injection.ID, &ic.Injection.EndpointID, &ic.Injection.Token,
		&ic.Injection.Param, &ic.Injection.ContextType, &ic.Injection.Status,
		&ic.Injection.InjectedAt, &ic.Injection.CreatedAt,
		&ic.Endpoint.ID, &ic.Endpoint.TargetID, &ic.Endpoint.Path,
		&ic.Endpoint.Method, &paramsJSON, &ic.Endpoint.AuthRequired,
		&ic.Endpoint.CMS, &ic.Endpoint.RiskLevel, &ic.Endpoint.InputClass,
		&ic.Endpoint.Status, &ic.Endpoint.CreatedAt,
		&ic.Target.ID, &ic.Target.Domain, &ic.Target.CMSDetected, &techJSON,
		&ic.Target.Status, &ic.Target.SessionID, &ic.Target.CreatedAt,
		&ic.Target.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if paramsJSON.Valid && paramsJSON.String != "" {
		if err := json.Unmarshal([]byte(paramsJSON.String), &ic.Endpoint.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal endpoint params: %w", err)
		}
	}
	if techJSON.Valid && techJSON.String != "" {
		if err := json.Unmarshal([]byte(techJSON.String), &ic.Target.TechStack); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tech stack: %w", err)
		}
	}
	return &ic, nil
}

// ListPendingInjections returns pending injections joined with their
// endpoints and targets, optionally filtered by vulnerability context.
// Candidates only: callers must still claim each one with MarkInjected.
func (s *Store) ListPendingInjections(ctx context.Context, limit int, vulnTypeFilter string) ([]*InjectionContext, error) {
	query := `
		SELECT i.id, i.endpoint_id, i.token, i.param, i.context_type,
			   i.status, i.injected_at, i.created_at,
			   e.id, e.target_id, e.endpoint, e.method, e.params,
			   e.auth_required, e.cms, e.risk_level, e.input_class,
			   e.status, e.created_at,
			   t.id, t.domain, t.cms_detected, t.tech_stack, t.status,
			   t.session_id, t.created_at, t.updated_at
		FROM injections i
		JOIN endpoints e ON i.endpoint_id = e.id
		JOIN targets t ON e.target_id = t.id
		WHERE i.status = :status
	`
	args := map[string]interface{}{"status": types.InjectionStatusPending}

	if vulnTypeFilter != "" {
		query += " AND i.context_type = :context_type"
		args["context_type"] = vulnTypeFilter
	}

	query += " ORDER BY i.created_at ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.NamedQueryContext(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*InjectionContext
	for rows.Next() {
		var ic InjectionContext
		var paramsJSON, techJSON sql.NullString
		if err := rows.Scan(
			&ic.Injection.ID, &ic.Injection.EndpointID, &ic.Injection.Token,
			&ic.Injection.Param, &ic.Injection.ContextType, &ic.Injection.Status,
			&ic.Injection.InjectedAt, &ic.Injection.CreatedAt,
			&ic.Endpoint.ID, &ic.Endpoint.TargetID, &ic.Endpoint.Path,
			&ic.Endpoint.Method, &paramsJSON, &ic.Endpoint.AuthRequired,
			&ic.Endpoint.CMS, &ic.Endpoint.RiskLevel, &ic.Endpoint.InputClass,
			&ic.Endpoint.Status, &ic.Endpoint.CreatedAt,
			&ic.Target.ID, &ic.Target.Domain, &ic.Target.CMSDetected, &techJSON,
			&ic.Target.Status, &ic.Target.SessionID, &ic.Target.CreatedAt,
			&ic.Target.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if paramsJSON.Valid && paramsJSON.String != "" {
			if err := json.Unmarshal([]byte(paramsJSON.String), &ic.Endpoint.Params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal endpoint params: %w", err)
			}
		}
		if techJSON.Valid && techJSON.String != "" {
			if err := json.Unmarshal([]byte(techJSON.String), &ic.Target.TechStack); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tech stack: %w", err)
			}
		}
		results = append(results, &ic)
	}
	return results, rows.Err()
}

// MarkInjected claims a pending injection, transitioning it to injected and
// stamping injected_at. Returns false when another processing run already
// claimed it; callers treat that as a skip, not an error.
func (s *Store) MarkInjected(ctx context.Context, injectionID string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE injections
		SET status = %s, injected_at = %s
		WHERE id = %s AND status = %s
	`, s.getPlaceholder(1), s.getPlaceholder(2), s.getPlaceholder(3), s.getPlaceholder(4))

	result, err := s.db.ExecContext(ctx, query,
		types.InjectionStatusInjected, time.Now().UTC(),
		injectionID, types.InjectionStatusPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) MarkCallbackReceived(ctx context.Context, injectionID string) error {
	query := fmt.Sprintf(
		"UPDATE injections SET status = %s WHERE id = %s",
		s.getPlaceholder(1), s.getPlaceholder(2),
	)
	_, err := s.db.ExecContext(ctx, query, types.InjectionStatusCallbackReceived, injectionID)
	return err
}

// ---- callbacks ----

// RecordCallback inserts a callback, deciding its duplicate flag inside a
// transaction. The partial unique index idx_callbacks_canonical backs the
// read: if two inserts race, only one can hold is_duplicate=false, and the
// loser retries as a duplicate.
func (s *Store) RecordCallback(ctx context.Context, callback *types.Callback) error {
	if callback.ID == "" {
		callback.ID = uuid.New().String()
	}
	callback.ReceivedAt = time.Now().UTC()

	rawJSON, err := json.Marshal(callback.RawData)
	if err != nil {
		return fmt.Errorf("failed to marshal raw data: %w", err)
	}

	insert := func(dup bool) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if !dup {
			var existing string
			query := fmt.Sprintf(
				"SELECT id FROM callbacks WHERE injection_id = %s AND is_duplicate = FALSE LIMIT 1",
				s.getPlaceholder(1),
			)
			err := tx.QueryRowContext(ctx, query, callback.InjectionID).Scan(&existing)
			switch {
			case err == sql.ErrNoRows:
				// first callback for this injection
			case err != nil:
				return err
			default:
				dup = true
			}
		}

		callback.IsDuplicate = dup
		query := `
			INSERT INTO callbacks (
				id, injection_id, callback_type, source_ip, user_agent,
				delay_seconds, confidence, raw_data, is_duplicate, received_at
			) VALUES (
				:id, :injection_id, :callback_type, :source_ip, :user_agent,
				:delay_seconds, :confidence, :raw_data, :is_duplicate, :received_at
			)
		`
		if _, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
			"id":            callback.ID,
			"injection_id":  callback.InjectionID,
			"callback_type": callback.CallbackType,
			"source_ip":     callback.SourceIP,
			"user_agent":    callback.UserAgent,
			"delay_seconds": callback.DelaySeconds,
			"confidence":    callback.Confidence,
			"raw_data":      string(rawJSON),
			"is_duplicate":  callback.IsDuplicate,
			"received_at":   callback.ReceivedAt,
		}); err != nil {
			return err
		}
		return tx.Commit()
	}

	err = insert(callback.IsDuplicate)
	if err != nil && !callback.IsDuplicate && isUniqueViolation(err) {
		// Lost the race for the canonical slot.
		err = insert(true)
	}
	if err != nil {
		s.logger.LogError(ctx, err, "database.RecordCallback", "injection_id", callback.InjectionID)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func (s *Store) CountCallbacks(ctx context.Context, injectionID string, includeDuplicates bool) (int, error) {
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM callbacks WHERE injection_id = %s",
		s.getPlaceholder(1),
	)
	if !includeDuplicates {
		query += " AND is_duplicate = FALSE"
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, injectionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ---- findings ----

func (s *Store) CreateFinding(ctx context.Context, finding *types.Finding) error {
	if finding.ID == "" {
		finding.ID = uuid.New().String()
	}
	if finding.Status == "" {
		finding.Status = "open"
	}
	finding.CreatedAt = time.Now().UTC()

	evidenceJSON, err := json.Marshal(finding.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	query := `
		INSERT INTO findings (
			id, endpoint_id, callback_id, title, description, severity,
			evidence, status, created_at
		) VALUES (
			:id, :endpoint_id, :callback_id, :title, :description, :severity,
			:evidence, :status, :created_at
		)
	`

	_, err = s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          finding.ID,
		"endpoint_id": finding.EndpointID,
		"callback_id": finding.CallbackID,
		"title":       finding.Title,
		"description": finding.Description,
		"severity":    finding.Severity,
		"evidence":    string(evidenceJSON),
		"status":      finding.Status,
		"created_at":  finding.CreatedAt,
	})
	if err != nil {
		s.logger.LogError(ctx, err, "database.CreateFinding", "endpoint_id", finding.EndpointID)
		return err
	}
	return nil
}

func (s *Store) GetFindingsForEndpoint(ctx context.Context, endpointID string) ([]types.Finding, error) {
	query := fmt.Sprintf(`
		SELECT id, endpoint_id, callback_id, title, description, severity,
			   evidence, status, created_at
		FROM findings
		WHERE endpoint_id = %s
		ORDER BY created_at DESC
	`, s.getPlaceholder(1))

	rows, err := s.db.QueryContext(ctx, query, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFindings(rows)
}

func (s *Store) GetFindingsForInjection(ctx context.Context, injectionID string) ([]types.Finding, error) {
	query := fmt.Sprintf(`
		SELECT f.id, f.endpoint_id, f.callback_id, f.title, f.description,
			   f.severity, f.evidence, f.status, f.created_at
		FROM findings f
		JOIN callbacks c ON f.callback_id = c.id
		WHERE c.injection_id = %s
		ORDER BY f.created_at DESC
	`, s.getPlaceholder(1))

	rows, err := s.db.QueryContext(ctx, query, injectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFindings(rows)
}

func scanFindings(rows *sql.Rows) ([]types.Finding, error) {
	findings := []types.Finding{}
	for rows.Next() {
		var finding types.Finding
		var callbackID, evidenceJSON sql.NullString

		if err := rows.Scan(
			&finding.ID, &finding.EndpointID, &callbackID, &finding.Title,
			&finding.Description, &finding.Severity, &evidenceJSON,
			&finding.Status, &finding.CreatedAt,
		); err != nil {
			return nil, err
		}

		finding.CallbackID = callbackID.String
		if evidenceJSON.Valid && evidenceJSON.String != "" {
			if err := json.Unmarshal([]byte(evidenceJSON.String), &finding.Evidence); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evidence for finding %s: %w", finding.ID, err)
			}
		}
		findings = append(findings, finding)
	}
	return findings, rows.Err()
}

// ---- ledger ----

// AppendLog writes one ledger entry. The ledger is append-only and is never
// read back into decision logic.
func (s *Store) AppendLog(ctx context.Context, targetID, sessionID string, level types.LogLevel, message string) error {
	if message == "" {
		return fmt.Errorf("log message cannot be empty")
	}

	query := `
		INSERT INTO scan_logs (id, target_id, session_id, level, message, created_at)
		VALUES (:id, :target_id, :session_id, :level, :message, :created_at)
	`
	_, err := s.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         uuid.New().String(),
		"target_id":  targetID,
		"session_id": sessionID,
		"level":      level,
		"message":    message,
		"created_at": time.Now().UTC(),
	})
	return err
}

func (s *Store) ListLogs(ctx context.Context, targetID string, limit int) ([]types.ScanLog, error) {
	query := fmt.Sprintf(`
		SELECT id, target_id, session_id, level, message, created_at
		FROM scan_logs
		WHERE target_id = %s
		ORDER BY created_at ASC
	`, s.getPlaceholder(1))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []types.ScanLog{}
	for rows.Next() {
		var entry types.ScanLog
		var sessionID sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.TargetID, &sessionID, &entry.Level,
			&entry.Message, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.SessionID = sessionID.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// ---- metrics ----

func (s *Store) GetTargetMetrics(ctx context.Context, targetID string) (*types.TargetMetrics, error) {
	metrics := &types.TargetMetrics{
		ByRisk:     make(map[string]int),
		BySeverity: make(map[string]int),
	}

	riskQuery := fmt.Sprintf(`
		SELECT risk_level, COUNT(*) FROM endpoints
		WHERE target_id = %s GROUP BY risk_level
	`, s.getPlaceholder(1))
	rows, err := s.db.QueryContext(ctx, riskQuery, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var risk string
		var count int
		if err := rows.Scan(&risk, &count); err != nil {
			return nil, err
		}
		metrics.ByRisk[risk] = count
		metrics.Endpoints += count
	}

	injQuery := fmt.Sprintf(`
		SELECT i.status, COUNT(*),
			   COALESCE(MAX(%s - CAST(strftime('%%s', i.created_at) AS INTEGER)), 0)
		FROM injections i
		JOIN endpoints e ON i.endpoint_id = e.id
		WHERE e.target_id = %s
		GROUP BY i.status
	`, "CAST(strftime('%s','now') AS INTEGER)", s.getPlaceholder(1))
	if s.cfg.Driver == "postgres" {
		injQuery = fmt.Sprintf(`
			SELECT i.status, COUNT(*),
				   COALESCE(MAX(EXTRACT(EPOCH FROM (NOW() - i.created_at))::BIGINT), 0)
			FROM injections i
			JOIN endpoints e ON i.endpoint_id = e.id
			WHERE e.target_id = $1
			GROUP BY i.status
		`)
	}
	injRows, err := s.db.QueryContext(ctx, injQuery, targetID)
	if err != nil {
		return nil, err
	}
	defer injRows.Close()
	for injRows.Next() {
		var status string
		var count int
		var age int64
		if err := injRows.Scan(&status, &count, &age); err != nil {
			return nil, err
		}
		metrics.Injections += count
		if status == string(types.InjectionStatusPending) {
			metrics.PendingInjections = count
			metrics.PendingAgeSeconds = age
		}
	}

	cbQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM callbacks c
		JOIN injections i ON c.injection_id = i.id
		JOIN endpoints e ON i.endpoint_id = e.id
		WHERE e.target_id = %s AND c.is_duplicate = FALSE
	`, s.getPlaceholder(1))
	if err := s.db.QueryRowContext(ctx, cbQuery, targetID).Scan(&metrics.Callbacks); err != nil {
		return nil, err
	}

	sevQuery := fmt.Sprintf(`
		SELECT f.severity, COUNT(*) FROM findings f
		JOIN endpoints e ON f.endpoint_id = e.id
		WHERE e.target_id = %s
		GROUP BY f.severity
	`, s.getPlaceholder(1))
	sevRows, err := s.db.QueryContext(ctx, sevQuery, targetID)
	if err != nil {
		return nil, err
	}
	defer sevRows.Close()
	for sevRows.Next() {
		var severity string
		var count int
		if err := sevRows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		metrics.BySeverity[severity] = count
		metrics.Findings += count
	}

	return metrics, nil
}
