package store

import (
	"sort"
	"sync"
	"time"

	"outpost-hq/warden/pkg/telemetry"
)

// MemoryStore implements Store using in-memory maps. It is the default
// backend for tests and ephemeral runs; all data is lost when the process
// exits.
//
// MemoryStore is thread-safe. A single RWMutex guards all tables, which
// keeps mutations atomic with respect to readers across tables (the
// DeletePolicy + clear-app-reference pair is observed as one step).
type MemoryStore struct {
	mu sync.RWMutex

	apps     map[string]App
	policies map[string]Policy
	modules  map[string]RuleModule

	// moduleOrder preserves rule module insertion order for evaluation.
	moduleOrder []string

	syscallEvents []telemetry.SyscallEvent
	networkEvents []telemetry.NetworkEvent
	fileEvents    []telemetry.FileEvent

	audit    []AuditEntry
	auditSeq int64

	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:     make(map[string]App),
		policies: make(map[string]Policy),
		modules:  make(map[string]RuleModule),
	}
}

func (s *MemoryStore) SaveApp(app App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.apps[app.ID] = app
	return nil
}

func (s *MemoryStore) GetApp(id string) (*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	app, ok := s.apps[id]
	if !ok {
		return nil, nil
	}
	return &app, nil
}

func (s *MemoryStore) ListApps() ([]App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	apps := make([]App, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].RegisteredAt < apps[j].RegisteredAt })
	return apps, nil
}

func (s *MemoryStore) DeleteApp(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.apps[id]; !ok {
		return &NotFoundError{Kind: "app", ID: id}
	}
	delete(s.apps, id)
	return nil
}

func (s *MemoryStore) SavePolicy(policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.policies[policy.ID] = policy
	return nil
}

func (s *MemoryStore) GetPolicy(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	policy, ok := s.policies[id]
	if !ok {
		return nil, nil
	}
	return &policy, nil
}

func (s *MemoryStore) ListPolicies() ([]Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	policies := make([]Policy, 0, len(s.policies))
	for _, policy := range s.policies {
		policies = append(policies, policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].CreatedAt < policies[j].CreatedAt })
	return policies, nil
}

// DeletePolicy removes the policy and clears the PolicyID of every app that
// referenced it, in one atomic step.
func (s *MemoryStore) DeletePolicy(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.policies[id]; !ok {
		return &NotFoundError{Kind: "policy", ID: id}
	}
	delete(s.policies, id)
	for appID, app := range s.apps {
		if app.PolicyID == id {
			app.PolicyID = ""
			s.apps[appID] = app
		}
	}
	return nil
}

func (s *MemoryStore) SaveRuleModule(module RuleModule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.modules[module.ID]; !exists {
		s.moduleOrder = append(s.moduleOrder, module.ID)
	}
	s.modules[module.ID] = module
	return nil
}

func (s *MemoryStore) GetRuleModule(id string) (*RuleModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	module, ok := s.modules[id]
	if !ok {
		return nil, nil
	}
	return &module, nil
}

// ListRuleModules returns modules in insertion order, which is also their
// evaluation order.
func (s *MemoryStore) ListRuleModules() ([]RuleModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	modules := make([]RuleModule, 0, len(s.modules))
	for _, id := range s.moduleOrder {
		if module, ok := s.modules[id]; ok {
			modules = append(modules, module)
		}
	}
	return modules, nil
}

func (s *MemoryStore) DeleteRuleModule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.modules[id]; !ok {
		return &NotFoundError{Kind: "rule module", ID: id}
	}
	delete(s.modules, id)
	for i, mid := range s.moduleOrder {
		if mid == id {
			s.moduleOrder = append(s.moduleOrder[:i], s.moduleOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) SaveSyscallEvents(events []telemetry.SyscallEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.syscallEvents = append(s.syscallEvents, events...)
	return nil
}

func (s *MemoryStore) SaveNetworkEvents(events []telemetry.NetworkEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.networkEvents = append(s.networkEvents, events...)
	return nil
}

func (s *MemoryStore) SaveFileEvents(events []telemetry.FileEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.fileEvents = append(s.fileEvents, events...)
	return nil
}

func (s *MemoryStore) ListSyscallEvents(appID string, limit int) ([]telemetry.SyscallEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	limit = normalizeLimit(limit)
	events := make([]telemetry.SyscallEvent, 0, limit)
	for i := len(s.syscallEvents) - 1; i >= 0 && len(events) < limit; i-- {
		if appID == "" || s.syscallEvents[i].AppID == appID {
			events = append(events, s.syscallEvents[i])
		}
	}
	return events, nil
}

func (s *MemoryStore) ListNetworkEvents(appID string, limit int) ([]telemetry.NetworkEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	limit = normalizeLimit(limit)
	events := make([]telemetry.NetworkEvent, 0, limit)
	for i := len(s.networkEvents) - 1; i >= 0 && len(events) < limit; i-- {
		if appID == "" || s.networkEvents[i].AppID == appID {
			events = append(events, s.networkEvents[i])
		}
	}
	return events, nil
}

func (s *MemoryStore) ListFileEvents(appID string, limit int) ([]telemetry.FileEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	limit = normalizeLimit(limit)
	events := make([]telemetry.FileEvent, 0, limit)
	for i := len(s.fileEvents) - 1; i >= 0 && len(events) < limit; i-- {
		if appID == "" || s.fileEvents[i].AppID == appID {
			events = append(events, s.fileEvents[i])
		}
	}
	return events, nil
}

// AppendAudit assigns the next sequence number and appends the entry.
func (s *MemoryStore) AppendAudit(entry AuditEntry) (AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return AuditEntry{}, ErrClosed
	}
	s.auditSeq++
	entry.Seq = s.auditSeq
	s.audit = append(s.audit, entry)
	return entry, nil
}

func (s *MemoryStore) ListAudit(appID string, limit int, order Order) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	limit = normalizeLimit(limit)

	matched := make([]AuditEntry, 0, limit)
	for _, entry := range s.audit {
		if appID == "" || entry.AppID == appID {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp != matched[j].Timestamp {
			return matched[i].Timestamp < matched[j].Timestamp
		}
		return matched[i].Seq < matched[j].Seq
	})

	if order == OrderDesc {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
		if len(matched) > limit {
			matched = matched[:limit]
		}
	} else if len(matched) > limit {
		// Chronological order keeps the newest entries within the limit.
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *MemoryStore) PruneAudit(cutoff time.Time, maxRecords int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	kept := s.audit[:0]
	removed := 0
	for _, entry := range s.audit {
		if !cutoff.IsZero() {
			if ts, err := time.Parse(time.RFC3339, entry.Timestamp); err == nil && ts.Before(cutoff) {
				removed++
				continue
			}
		}
		kept = append(kept, entry)
	}
	if maxRecords > 0 && len(kept) > maxRecords {
		removed += len(kept) - maxRecords
		kept = kept[len(kept)-maxRecords:]
	}
	s.audit = append([]AuditEntry(nil), kept...)
	return removed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
