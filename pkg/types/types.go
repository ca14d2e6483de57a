package types

import (
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

type TargetStatus string

const (
	TargetStatusScanning TargetStatus = "scanning"
	TargetStatusComplete TargetStatus = "complete"
)

type EndpointStatus string

const (
	EndpointStatusDiscovered EndpointStatus = "discovered"
	EndpointStatusClassified EndpointStatus = "classified"
	EndpointStatusTesting    EndpointStatus = "testing"
	EndpointStatusVulnerable EndpointStatus = "vulnerable"
	EndpointStatusClean      EndpointStatus = "clean"
)

type InjectionStatus string

const (
	InjectionStatusPending          InjectionStatus = "pending"
	InjectionStatusInjected         InjectionStatus = "injected"
	InjectionStatusCallbackReceived InjectionStatus = "callback_received"
)

type CallbackType string

const (
	CallbackHTTP CallbackType = "http"
	CallbackDNS  CallbackType = "dns"
	CallbackSMTP CallbackType = "smtp"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarn    LogLevel = "warn"
	LogError   LogLevel = "error"
	LogSuccess LogLevel = "success"
)

// Target is a scanned domain. The domain is immutable once created.
type Target struct {
	ID          string       `json:"id" db:"id"`
	Domain      string       `json:"domain" db:"domain"`
	CMSDetected string       `json:"cms_detected,omitempty" db:"cms_detected"`
	TechStack   []string     `json:"tech_stack,omitempty"`
	Status      TargetStatus `json:"status" db:"status"`
	SessionID   string       `json:"session_id" db:"session_id"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// Endpoint is a discovered route on a target.
type Endpoint struct {
	ID           string         `json:"id" db:"id"`
	TargetID     string         `json:"target_id" db:"target_id"`
	Path         string         `json:"endpoint" db:"endpoint"`
	Method       string         `json:"method" db:"method"`
	Params       []string       `json:"params"`
	AuthRequired bool           `json:"auth_required" db:"auth_required"`
	CMS          string         `json:"cms,omitempty" db:"cms"`
	RiskLevel    RiskLevel      `json:"risk_level" db:"risk_level"`
	InputClass   string         `json:"input_class" db:"input_class"`
	Status       EndpointStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// Injection is one correlation probe bound to a single (endpoint, parameter).
// The token is the only join key from an inbound callback back to its origin.
type Injection struct {
	ID          string          `json:"id" db:"id"`
	EndpointID  string          `json:"endpoint_id" db:"endpoint_id"`
	Token       string          `json:"token" db:"token"`
	Param       string          `json:"param" db:"param"`
	ContextType VulnCategory    `json:"context_type" db:"context_type"`
	Status      InjectionStatus `json:"status" db:"status"`
	InjectedAt  *time.Time      `json:"injected_at,omitempty" db:"injected_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Callback is an observed out-of-band ping joined to an injection.
type Callback struct {
	ID           string       `json:"id" db:"id"`
	InjectionID  string       `json:"injection_id" db:"injection_id"`
	CallbackType CallbackType `json:"callback_type" db:"callback_type"`
	SourceIP     string       `json:"source_ip" db:"source_ip"`
	UserAgent    string       `json:"user_agent" db:"user_agent"`
	DelaySeconds int64        `json:"delay_seconds" db:"delay_seconds"`
	Confidence   Confidence   `json:"confidence" db:"confidence"`
	RawData      Evidence     `json:"raw_data"`
	IsDuplicate  bool         `json:"is_duplicate" db:"is_duplicate"`
	ReceivedAt   time.Time    `json:"received_at" db:"received_at"`
}

// Finding is a synthesized vulnerability report. Never deleted by the core.
type Finding struct {
	ID          string    `json:"id" db:"id"`
	EndpointID  string    `json:"endpoint_id" db:"endpoint_id"`
	CallbackID  string    `json:"callback_id,omitempty" db:"callback_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Severity    Severity  `json:"severity" db:"severity"`
	Evidence    Evidence  `json:"evidence"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ScanLog is one append-only ledger entry. Consumed by dashboards only,
// never read back into decision logic.
type ScanLog struct {
	ID        string    `json:"id" db:"id"`
	TargetID  string    `json:"target_id" db:"target_id"`
	SessionID string    `json:"session_id,omitempty" db:"session_id"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Evidence is the structured record attached to callbacks and findings.
// Fields the capture logic does not recognize land in Extra rather than
// being dropped.
type Evidence struct {
	Token           string            `json:"token,omitempty"`
	Delay           string            `json:"delay,omitempty"`
	UserAgent       string            `json:"user_agent,omitempty"`
	SourceIP        string            `json:"source_ip,omitempty"`
	Confidence      Confidence        `json:"confidence,omitempty"`
	ConfidenceScore int               `json:"confidence_score,omitempty"`
	Factors         []string          `json:"confidence_factors,omitempty"`
	Indicators      []string          `json:"salesforce_indicators,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	CallbackType    CallbackType      `json:"callback_type,omitempty"`
	Param           string            `json:"param,omitempty"`
	Endpoint        string            `json:"endpoint,omitempty"`
	VulnType        VulnCategory      `json:"vuln_type,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// TargetMetrics aggregates per-target pipeline counts for the dashboard.
type TargetMetrics struct {
	Endpoints         int            `json:"endpoints"`
	ByRisk            map[string]int `json:"by_risk"`
	Injections        int            `json:"injections"`
	PendingInjections int            `json:"pending_injections"`
	Callbacks         int            `json:"callbacks"`
	Findings          int            `json:"findings"`
	BySeverity        map[string]int `json:"by_severity"`
	// Age of the oldest still-pending injection. There is no expiry policy
	// in the core; deployments that want one can watch this.
	PendingAgeSeconds int64 `json:"pending_age_seconds"`
}
