package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the warden database schema.
const Schema = `
-- Registered sandboxed apps
CREATE TABLE IF NOT EXISTS apps (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    language TEXT,
    entry_point TEXT,
    status TEXT NOT NULL,
    policy_id TEXT,
    registered_at TEXT NOT NULL,
    last_launched_at TEXT,
    metadata TEXT
);

-- Structured access-control policies
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    allowed_domains TEXT NOT NULL,
    blocked_domains TEXT NOT NULL,
    max_spend REAL NOT NULL DEFAULT 0,
    allow_file_write INTEGER NOT NULL DEFAULT 0,
    allow_net_access INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

-- Rego rule modules (source only; predicates are recompiled on load)
CREATE TABLE IF NOT EXISTS rule_modules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    module TEXT NOT NULL,
    rego TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT,
    position INTEGER NOT NULL
);

-- Captured syscall events
CREATE TABLE IF NOT EXISTS syscall_events (
    id TEXT PRIMARY KEY,
    app_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    pid INTEGER,
    tid INTEGER,
    syscall_num INTEGER,
    syscall_name TEXT,
    args TEXT,
    return_value INTEGER,
    comm TEXT,
    success INTEGER,
    cost REAL NOT NULL DEFAULT 0,
    rowid_order INTEGER
);

-- Captured network events
CREATE TABLE IF NOT EXISTS network_events (
    id TEXT PRIMARY KEY,
    app_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    direction TEXT,
    protocol TEXT,
    src_ip TEXT,
    src_port INTEGER,
    dst_ip TEXT,
    dst_port INTEGER,
    dns_query TEXT,
    bytes_sent INTEGER,
    bytes_recv INTEGER,
    cost REAL NOT NULL DEFAULT 0
);

-- Captured file events
CREATE TABLE IF NOT EXISTS file_events (
    id TEXT PRIMARY KEY,
    app_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    pid INTEGER,
    path TEXT,
    operation TEXT,
    flags TEXT,
    success INTEGER,
    comm TEXT
);

-- Append-only audit log; seq provides the tie-break total order
CREATE TABLE IF NOT EXISTS audit_log (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    app_id TEXT,
    app_name TEXT,
    event_type TEXT,
    direction TEXT,
    target TEXT,
    details TEXT,
    action TEXT,
    timestamp TEXT NOT NULL
);

-- Indexes for the common query paths
CREATE INDEX IF NOT EXISTS idx_apps_policy ON apps(policy_id);
CREATE INDEX IF NOT EXISTS idx_syscall_app ON syscall_events(app_id);
CREATE INDEX IF NOT EXISTS idx_network_app ON network_events(app_id);
CREATE INDEX IF NOT EXISTS idx_file_app ON file_events(app_id);
CREATE INDEX IF NOT EXISTS idx_audit_app ON audit_log(app_id);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(timestamp, seq);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`
