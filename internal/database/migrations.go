package database

// Schema for the injection-correlation pipeline. TEXT primary keys carry
// UUIDs; JSON-bearing columns (tech_stack, params, raw_data, evidence) are
// stored as serialized TEXT so the same schema runs on postgres and sqlite3.
//
// The partial unique index on callbacks enforces the first-callback-wins
// policy at the storage layer: at most one non-duplicate callback row can
// exist per injection, so two racing inserts cannot both become canonical.
const schema = `
CREATE TABLE IF NOT EXISTS targets (
	id TEXT PRIMARY KEY,
	domain TEXT NOT NULL,
	cms_detected TEXT,
	tech_stack TEXT,
	status TEXT NOT NULL,
	session_id TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS endpoints (
	id TEXT PRIMARY KEY,
	target_id TEXT NOT NULL REFERENCES targets(id),
	endpoint TEXT NOT NULL,
	method TEXT NOT NULL,
	params TEXT,
	auth_required BOOLEAN NOT NULL DEFAULT FALSE,
	cms TEXT,
	risk_level TEXT NOT NULL,
	input_class TEXT,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS injections (
	id TEXT PRIMARY KEY,
	endpoint_id TEXT NOT NULL REFERENCES endpoints(id),
	token TEXT NOT NULL UNIQUE,
	param TEXT NOT NULL,
	context_type TEXT,
	status TEXT NOT NULL,
	injected_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS callbacks (
	id TEXT PRIMARY KEY,
	injection_id TEXT NOT NULL REFERENCES injections(id),
	callback_type TEXT NOT NULL,
	source_ip TEXT,
	user_agent TEXT,
	delay_seconds BIGINT NOT NULL DEFAULT 0,
	confidence TEXT,
	raw_data TEXT,
	is_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
	received_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	endpoint_id TEXT NOT NULL REFERENCES endpoints(id),
	callback_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	severity TEXT NOT NULL,
	evidence TEXT,
	status TEXT NOT NULL DEFAULT 'open',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_logs (
	id TEXT PRIMARY KEY,
	target_id TEXT,
	session_id TEXT,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_endpoints_target_id ON endpoints(target_id);
CREATE INDEX IF NOT EXISTS idx_endpoints_risk_level ON endpoints(risk_level);
CREATE INDEX IF NOT EXISTS idx_injections_endpoint_id ON injections(endpoint_id);
CREATE INDEX IF NOT EXISTS idx_injections_status ON injections(status);
CREATE INDEX IF NOT EXISTS idx_callbacks_injection_id ON callbacks(injection_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_callbacks_canonical
	ON callbacks(injection_id) WHERE is_duplicate = FALSE;
CREATE INDEX IF NOT EXISTS idx_findings_endpoint_id ON findings(endpoint_id);
CREATE INDEX IF NOT EXISTS idx_scan_logs_target_id ON scan_logs(target_id);
CREATE INDEX IF NOT EXISTS idx_scan_logs_created_at ON scan_logs(created_at);
`
