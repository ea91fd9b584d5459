package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"outpost-hq/warden/pkg/telemetry"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/warden.db",
		MaxOpenConns: 10,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite. It enables WAL mode for
// concurrent readers and relies on SQLite's transactional writes to keep
// mutations atomic with respect to readers.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at config.Path and
// initializes the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "open", Cause: err}
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "store.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sqlite store initialized", "path", config.Path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.config.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return &StorageError{Backend: "sqlite", Op: "pragma", Cause: err}
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return &StorageError{Backend: "sqlite", Op: "create schema", Cause: err}
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion,
	); err != nil {
		return &StorageError{Backend: "sqlite", Op: "record schema version", Cause: err}
	}
	return nil
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeStrings(data string) []string {
	out := []string{}
	if data == "" {
		return out
	}
	_ = json.Unmarshal([]byte(data), &out)
	if out == nil {
		out = []string{}
	}
	return out
}

func (s *SQLiteStore) SaveApp(app App) error {
	metadata := ""
	if app.Metadata != nil {
		metadata = encodeJSON(app.Metadata)
	}
	_, err := s.db.Exec(`
		INSERT INTO apps (id, name, description, language, entry_point, status,
			policy_id, registered_at, last_launched_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			language = excluded.language,
			entry_point = excluded.entry_point,
			status = excluded.status,
			policy_id = excluded.policy_id,
			last_launched_at = excluded.last_launched_at,
			metadata = excluded.metadata`,
		app.ID, app.Name, app.Description, app.Language, app.EntryPoint,
		string(app.Status), app.PolicyID, app.RegisteredAt, app.LastLaunchedAt, metadata,
	)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "save app", Cause: err}
	}
	return nil
}

func (s *SQLiteStore) scanApp(row *sql.Row) (*App, error) {
	var app App
	var status, metadata string
	err := row.Scan(&app.ID, &app.Name, &app.Description, &app.Language,
		&app.EntryPoint, &status, &app.PolicyID, &app.RegisteredAt,
		&app.LastLaunchedAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "scan app", Cause: err}
	}
	app.Status = AppStatus(status)
	if metadata != "" {
		_ = json.Unmarshal([]byte(metadata), &app.Metadata)
	}
	return &app, nil
}

const appColumns = `id, name, description, language, entry_point, status,
	policy_id, registered_at, last_launched_at, metadata`

func (s *SQLiteStore) GetApp(id string) (*App, error) {
	row := s.db.QueryRow("SELECT "+appColumns+" FROM apps WHERE id = ?", id)
	return s.scanApp(row)
}

func (s *SQLiteStore) ListApps() ([]App, error) {
	rows, err := s.db.Query("SELECT " + appColumns + " FROM apps ORDER BY registered_at, id")
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list apps", Cause: err}
	}
	defer rows.Close()

	apps := []App{}
	for rows.Next() {
		var app App
		var status, metadata string
		if err := rows.Scan(&app.ID, &app.Name, &app.Description, &app.Language,
			&app.EntryPoint, &status, &app.PolicyID, &app.RegisteredAt,
			&app.LastLaunchedAt, &metadata); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan app", Cause: err}
		}
		app.Status = AppStatus(status)
		if metadata != "" {
			_ = json.Unmarshal([]byte(metadata), &app.Metadata)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *SQLiteStore) DeleteApp(id string) error {
	result, err := s.db.Exec("DELETE FROM apps WHERE id = ?", id)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "delete app", Cause: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "app", ID: id}
	}
	return nil
}

func (s *SQLiteStore) SavePolicy(policy Policy) error {
	_, err := s.db.Exec(`
		INSERT INTO policies (id, name, description, allowed_domains, blocked_domains,
			max_spend, allow_file_write, allow_net_access, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			allowed_domains = excluded.allowed_domains,
			blocked_domains = excluded.blocked_domains,
			max_spend = excluded.max_spend,
			allow_file_write = excluded.allow_file_write,
			allow_net_access = excluded.allow_net_access`,
		policy.ID, policy.Name, policy.Description,
		encodeJSON(policy.AllowedDomains), encodeJSON(policy.BlockedDomains),
		policy.MaxSpend, policy.AllowFileWrite, policy.AllowNetAccess, policy.CreatedAt,
	)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "save policy", Cause: err}
	}
	return nil
}

const policyColumns = `id, name, description, allowed_domains, blocked_domains,
	max_spend, allow_file_write, allow_net_access, created_at`

func (s *SQLiteStore) GetPolicy(id string) (*Policy, error) {
	row := s.db.QueryRow("SELECT "+policyColumns+" FROM policies WHERE id = ?", id)

	var policy Policy
	var allowed, blocked string
	err := row.Scan(&policy.ID, &policy.Name, &policy.Description, &allowed, &blocked,
		&policy.MaxSpend, &policy.AllowFileWrite, &policy.AllowNetAccess, &policy.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "scan policy", Cause: err}
	}
	policy.AllowedDomains = decodeStrings(allowed)
	policy.BlockedDomains = decodeStrings(blocked)
	return &policy, nil
}

func (s *SQLiteStore) ListPolicies() ([]Policy, error) {
	rows, err := s.db.Query("SELECT " + policyColumns + " FROM policies ORDER BY created_at, id")
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list policies", Cause: err}
	}
	defer rows.Close()

	policies := []Policy{}
	for rows.Next() {
		var policy Policy
		var allowed, blocked string
		if err := rows.Scan(&policy.ID, &policy.Name, &policy.Description, &allowed, &blocked,
			&policy.MaxSpend, &policy.AllowFileWrite, &policy.AllowNetAccess, &policy.CreatedAt); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan policy", Cause: err}
		}
		policy.AllowedDomains = decodeStrings(allowed)
		policy.BlockedDomains = decodeStrings(blocked)
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

// DeletePolicy removes the policy and clears references from apps in a
// single transaction, so no reader ever observes a dangling policy_id.
func (s *SQLiteStore) DeletePolicy(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "begin delete policy", Cause: err}
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM policies WHERE id = ?", id)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "delete policy", Cause: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "policy", ID: id}
	}
	if _, err := tx.Exec("UPDATE apps SET policy_id = '' WHERE policy_id = ?", id); err != nil {
		return &StorageError{Backend: "sqlite", Op: "clear policy references", Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Backend: "sqlite", Op: "commit delete policy", Cause: err}
	}
	return nil
}

func (s *SQLiteStore) SaveRuleModule(module RuleModule) error {
	_, err := s.db.Exec(`
		INSERT INTO rule_modules (id, name, description, module, rego, created_at, updated_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT position FROM rule_modules WHERE id = ?),
			         (SELECT COALESCE(MAX(position), 0) + 1 FROM rule_modules)))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			module = excluded.module,
			rego = excluded.rego,
			updated_at = excluded.updated_at`,
		module.ID, module.Name, module.Description, module.Module, module.Rego,
		module.CreatedAt, module.UpdatedAt, module.ID,
	)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "save rule module", Cause: err}
	}
	return nil
}

const moduleColumns = `id, name, description, module, rego, created_at, updated_at`

func (s *SQLiteStore) GetRuleModule(id string) (*RuleModule, error) {
	row := s.db.QueryRow("SELECT "+moduleColumns+" FROM rule_modules WHERE id = ?", id)

	var module RuleModule
	var updated sql.NullString
	err := row.Scan(&module.ID, &module.Name, &module.Description, &module.Module,
		&module.Rego, &module.CreatedAt, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "scan rule module", Cause: err}
	}
	module.UpdatedAt = updated.String
	return &module, nil
}

// ListRuleModules returns modules in insertion order (their evaluation
// order).
func (s *SQLiteStore) ListRuleModules() ([]RuleModule, error) {
	rows, err := s.db.Query("SELECT " + moduleColumns + " FROM rule_modules ORDER BY position, id")
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list rule modules", Cause: err}
	}
	defer rows.Close()

	modules := []RuleModule{}
	for rows.Next() {
		var module RuleModule
		var updated sql.NullString
		if err := rows.Scan(&module.ID, &module.Name, &module.Description, &module.Module,
			&module.Rego, &module.CreatedAt, &updated); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan rule module", Cause: err}
		}
		module.UpdatedAt = updated.String
		modules = append(modules, module)
	}
	return modules, rows.Err()
}

func (s *SQLiteStore) DeleteRuleModule(id string) error {
	result, err := s.db.Exec("DELETE FROM rule_modules WHERE id = ?", id)
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: "delete rule module", Cause: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "rule module", ID: id}
	}
	return nil
}

func (s *SQLiteStore) SaveSyscallEvents(events []telemetry.SyscallEvent) error {
	return s.batchInsert("save syscall events", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO syscall_events (id, app_id, timestamp, pid, tid, syscall_num,
				syscall_name, args, return_value, comm, success, cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range events {
			if _, err := stmt.Exec(e.ID, e.AppID, e.Timestamp, e.PID, e.TID, e.SyscallNum,
				e.SyscallName, e.Args, e.ReturnValue, e.Comm, e.Success, e.CostUSD); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveNetworkEvents(events []telemetry.NetworkEvent) error {
	return s.batchInsert("save network events", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO network_events (id, app_id, timestamp, direction, protocol,
				src_ip, src_port, dst_ip, dst_port, dns_query, bytes_sent, bytes_recv, cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range events {
			if _, err := stmt.Exec(e.ID, e.AppID, e.Timestamp, e.Direction, e.Protocol,
				e.SrcIP, e.SrcPort, e.DstIP, e.DstPort, e.DNSQuery, e.BytesSent,
				e.BytesRecv, e.CostUSD); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveFileEvents(events []telemetry.FileEvent) error {
	return s.batchInsert("save file events", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO file_events (id, app_id, timestamp, pid, path, operation, flags, success, comm)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range events {
			if _, err := stmt.Exec(e.ID, e.AppID, e.Timestamp, e.PID, e.Path,
				e.Operation, e.Flags, e.Success, e.Comm); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) batchInsert(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Backend: "sqlite", Op: op, Cause: err}
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return &StorageError{Backend: "sqlite", Op: op, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Backend: "sqlite", Op: op, Cause: err}
	}
	return nil
}

func (s *SQLiteStore) ListSyscallEvents(appID string, limit int) ([]telemetry.SyscallEvent, error) {
	query := `SELECT id, app_id, timestamp, pid, tid, syscall_num, syscall_name,
		args, return_value, comm, success, cost FROM syscall_events`
	args := []any{}
	if appID != "" {
		query += " WHERE app_id = ?"
		args = append(args, appID)
	}
	query += " ORDER BY timestamp DESC, rowid DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list syscall events", Cause: err}
	}
	defer rows.Close()

	events := []telemetry.SyscallEvent{}
	for rows.Next() {
		var e telemetry.SyscallEvent
		if err := rows.Scan(&e.ID, &e.AppID, &e.Timestamp, &e.PID, &e.TID, &e.SyscallNum,
			&e.SyscallName, &e.Args, &e.ReturnValue, &e.Comm, &e.Success, &e.CostUSD); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan syscall event", Cause: err}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) ListNetworkEvents(appID string, limit int) ([]telemetry.NetworkEvent, error) {
	query := `SELECT id, app_id, timestamp, direction, protocol, src_ip, src_port,
		dst_ip, dst_port, dns_query, bytes_sent, bytes_recv, cost FROM network_events`
	args := []any{}
	if appID != "" {
		query += " WHERE app_id = ?"
		args = append(args, appID)
	}
	query += " ORDER BY timestamp DESC, rowid DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list network events", Cause: err}
	}
	defer rows.Close()

	events := []telemetry.NetworkEvent{}
	for rows.Next() {
		var e telemetry.NetworkEvent
		if err := rows.Scan(&e.ID, &e.AppID, &e.Timestamp, &e.Direction, &e.Protocol,
			&e.SrcIP, &e.SrcPort, &e.DstIP, &e.DstPort, &e.DNSQuery, &e.BytesSent,
			&e.BytesRecv, &e.CostUSD); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan network event", Cause: err}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) ListFileEvents(appID string, limit int) ([]telemetry.FileEvent, error) {
	query := `SELECT id, app_id, timestamp, pid, path, operation, flags, success, comm
		FROM file_events`
	args := []any{}
	if appID != "" {
		query += " WHERE app_id = ?"
		args = append(args, appID)
	}
	query += " ORDER BY timestamp DESC, rowid DESC LIMIT ?"
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list file events", Cause: err}
	}
	defer rows.Close()

	events := []telemetry.FileEvent{}
	for rows.Next() {
		var e telemetry.FileEvent
		if err := rows.Scan(&e.ID, &e.AppID, &e.Timestamp, &e.PID, &e.Path,
			&e.Operation, &e.Flags, &e.Success, &e.Comm); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan file event", Cause: err}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AppendAudit inserts the entry and reads back the assigned sequence number.
func (s *SQLiteStore) AppendAudit(entry AuditEntry) (AuditEntry, error) {
	result, err := s.db.Exec(`
		INSERT INTO audit_log (id, app_id, app_name, event_type, direction, target, details, action, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AppID, entry.AppName, entry.EventType, entry.Direction,
		entry.Target, entry.Details, entry.Action, entry.Timestamp,
	)
	if err != nil {
		return AuditEntry{}, &StorageError{Backend: "sqlite", Op: "append audit", Cause: err}
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return AuditEntry{}, &StorageError{Backend: "sqlite", Op: "append audit", Cause: err}
	}
	entry.Seq = seq
	return entry, nil
}

func (s *SQLiteStore) ListAudit(appID string, limit int, order Order) ([]AuditEntry, error) {
	direction := "ASC"
	if order == OrderDesc {
		direction = "DESC"
	}

	query := `SELECT seq, id, app_id, app_name, event_type, direction, target, details, action, timestamp
		FROM audit_log`
	args := []any{}
	if appID != "" {
		query += " WHERE app_id = ?"
		args = append(args, appID)
	}
	// The limit always keeps the newest entries; for ascending order the
	// newest window is selected first and then re-sorted chronologically.
	if direction == "ASC" {
		query = "SELECT * FROM (" + query +
			" ORDER BY timestamp DESC, seq DESC LIMIT ?) ORDER BY timestamp ASC, seq ASC"
	} else {
		query += " ORDER BY timestamp DESC, seq DESC LIMIT ?"
	}
	args = append(args, normalizeLimit(limit))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Op: "list audit", Cause: err}
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.Seq, &e.ID, &e.AppID, &e.AppName, &e.EventType,
			&e.Direction, &e.Target, &e.Details, &e.Action, &e.Timestamp); err != nil {
			return nil, &StorageError{Backend: "sqlite", Op: "scan audit entry", Cause: err}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) PruneAudit(cutoff time.Time, maxRecords int) (int, error) {
	removed := 0

	if !cutoff.IsZero() {
		// Timestamps are RFC3339Nano strings with trailing zeros trimmed,
		// so raw string comparison misorders mixed fractional precision on
		// the boundary second. julianday normalizes both sides to a time
		// value.
		result, err := s.db.Exec("DELETE FROM audit_log WHERE julianday(timestamp) < julianday(?)",
			cutoff.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return 0, &StorageError{Backend: "sqlite", Op: "prune audit by age", Cause: err}
		}
		if n, err := result.RowsAffected(); err == nil {
			removed += int(n)
		}
	}

	if maxRecords > 0 {
		result, err := s.db.Exec(`
			DELETE FROM audit_log WHERE seq NOT IN (
				SELECT seq FROM audit_log ORDER BY timestamp DESC, seq DESC LIMIT ?
			)`, maxRecords)
		if err != nil {
			return removed, &StorageError{Backend: "sqlite", Op: "prune audit by count", Cause: err}
		}
		if n, err := result.RowsAffected(); err == nil {
			removed += int(n)
		}
	}

	return removed, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
