package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"outpost-hq/warden/pkg/store"
)

// Outcome is the result of evaluating one rule module against one document.
type Outcome string

const (
	// OutcomeAllow means the module explicitly allowed the document.
	OutcomeAllow Outcome = "allow"

	// OutcomeDeny means the module explicitly denied the document.
	OutcomeDeny Outcome = "deny"

	// OutcomeUndefined means the module expressed no opinion.
	OutcomeUndefined Outcome = "undefined"
)

// Verdict is one module's outcome for one document. Err carries an
// evaluation fault; a faulted verdict has OutcomeUndefined and is mapped to
// an implicit deny by the decision engine.
type Verdict struct {
	ID      string
	Name    string
	Module  string
	Outcome Outcome
	Err     error
}

// ModuleInfo describes one loaded module, in evaluation order.
type ModuleInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// entry is one loaded module with its derived data path.
type entry struct {
	id       string
	name     string
	module   string
	dataPath string
}

// Registry holds the active rule modules in insertion order and the
// compiler built over all of them. Mutations parse and compile into fresh
// structures and publish them atomically under the write lock; evaluations
// in flight keep using the compiler they started with, so a predicate is
// never mutated while being evaluated.
type Registry struct {
	mu       sync.RWMutex
	entries  []entry
	modules  map[string]*ast.Module
	compiler *ast.Compiler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*ast.Module),
		logger:  slog.Default().With("component", "rules.registry"),
	}
}

// ParseModule parses rule module source. The module path is used as the
// parser filename so error locations point at the module.
func ParseModule(module, source string) (*ast.Module, error) {
	parsed, err := ast.ParseModule(module, source)
	if err != nil {
		return nil, newCompileError(module, err)
	}
	return parsed, nil
}

// Validate checks rule module source for syntax and surface-level semantic
// errors without evaluating it against any data. It returns nil when the
// source would compile.
func Validate(module, source string) error {
	parsed, err := ParseModule(module, source)
	if err != nil {
		return err
	}
	return compileErr(module, map[string]*ast.Module{module: parsed})
}

// Compile compiles a single module in isolation, for simulation of
// candidate modules. Compilation is deterministic and never executes the
// module against data.
func Compile(module, source string) (*ast.Compiler, error) {
	parsed, err := ParseModule(module, source)
	if err != nil {
		return nil, err
	}
	compiler := ast.NewCompiler()
	compiler.Compile(map[string]*ast.Module{module: parsed})
	if compiler.Failed() {
		return nil, newCompileError(module, compiler.Errors)
	}
	return compiler, nil
}

func compileErr(module string, modules map[string]*ast.Module) error {
	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		return newCompileError(module, compiler.Errors)
	}
	return nil
}

// Load replaces the entire active set with the given modules, preserving
// their order. A compile failure leaves the previous set untouched.
func (r *Registry) Load(records []store.RuleModule) error {
	entries := make([]entry, 0, len(records))
	modules := make(map[string]*ast.Module, len(records))

	for _, record := range records {
		parsed, err := ParseModule(record.Module, record.Rego)
		if err != nil {
			return fmt.Errorf("failed to parse rule module %q: %w", record.Name, err)
		}
		modules[record.Module] = parsed
		entries = append(entries, entry{
			id:       record.ID,
			name:     record.Name,
			module:   record.Module,
			dataPath: parsed.Package.Path.String(),
		})
	}

	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		return newCompileError("", compiler.Errors)
	}

	r.mu.Lock()
	r.entries = entries
	r.modules = modules
	if len(modules) > 0 {
		r.compiler = compiler
	} else {
		r.compiler = nil
	}
	r.mu.Unlock()

	r.logger.Info("rule modules loaded", "count", len(records))
	return nil
}

// Add compiles the module together with the active set and publishes the
// new compiler. A compile failure leaves the active set untouched.
func (r *Registry) Add(record store.RuleModule) error {
	parsed, err := ParseModule(record.Module, record.Rego)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	modules := make(map[string]*ast.Module, len(r.modules)+1)
	for path, mod := range r.modules {
		modules[path] = mod
	}
	modules[record.Module] = parsed

	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		return newCompileError(record.Module, compiler.Errors)
	}

	replaced := false
	for i := range r.entries {
		if r.entries[i].module == record.Module {
			r.entries[i] = entry{
				id:       record.ID,
				name:     record.Name,
				module:   record.Module,
				dataPath: parsed.Package.Path.String(),
			}
			replaced = true
			break
		}
	}
	if !replaced {
		r.entries = append(r.entries, entry{
			id:       record.ID,
			name:     record.Name,
			module:   record.Module,
			dataPath: parsed.Package.Path.String(),
		})
	}

	r.modules = modules
	r.compiler = compiler

	r.logger.Info("rule module added", "name", record.Name, "module", record.Module)
	return nil
}

// Remove drops the module from the active evaluation set. Removing an
// unknown module is a no-op.
func (r *Registry) Remove(module string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[module]; !ok {
		return
	}

	modules := make(map[string]*ast.Module, len(r.modules))
	for path, mod := range r.modules {
		if path != module {
			modules[path] = mod
		}
	}

	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.module != module {
			entries = append(entries, e)
		}
	}

	var compiler *ast.Compiler
	if len(modules) > 0 {
		compiler = ast.NewCompiler()
		compiler.Compile(modules)
		if compiler.Failed() {
			// The remaining set compiled before this module was added, so
			// this should not happen; keep the old compiler rather than
			// evaluate against a broken one.
			r.logger.Error("recompile after removal failed", "module", module,
				"error", compiler.Errors.Error())
			compiler = r.compiler
		}
	}

	r.entries = entries
	r.modules = modules
	r.compiler = compiler

	r.logger.Info("rule module removed", "module", module)
}

// Count returns the number of loaded modules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Modules returns the loaded modules in evaluation order.
func (r *Registry) Modules() []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ModuleInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, ModuleInfo{ID: e.id, Name: e.name, Module: e.module})
	}
	return infos
}

// EvalResult is the outcome of evaluating an ad-hoc query against the
// active set.
type EvalResult struct {
	Allow       bool   `json:"allow"`
	Decision    string `json:"decision"`
	Results     any    `json:"results,omitempty"`
	PolicyCount int    `json:"policy_count"`
}

// Evaluate runs a query (for example "data.sandbox.allow") against the
// active set with the given input document. When no modules are loaded, or
// when the query is undefined, the decision defaults to deny.
func (r *Registry) Evaluate(ctx context.Context, query string, input any) (*EvalResult, error) {
	r.mu.RLock()
	compiler := r.compiler
	count := len(r.entries)
	r.mu.RUnlock()

	if compiler == nil || count == 0 {
		return &EvalResult{Allow: false, Decision: "no_policies_loaded", PolicyCount: 0}, nil
	}

	rs, err := rego.New(
		rego.Query(query),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	result := &EvalResult{Allow: false, Decision: "deny", PolicyCount: count}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		value := rs[0].Expressions[0].Value
		result.Results = value

		switch v := value.(type) {
		case bool:
			result.Allow = v
		case map[string]any:
			if allow, ok := v["allow"].(bool); ok {
				result.Allow = allow
			}
		}
		if result.Allow {
			result.Decision = "allow"
		}
	}
	return result, nil
}

// EvaluateEach evaluates every loaded module against the document, in
// insertion order, returning one verdict per module. A module whose deny
// rule is true yields OutcomeDeny; otherwise a true allow rule yields
// OutcomeAllow; otherwise OutcomeUndefined. An evaluation fault is captured
// in the verdict's Err.
func (r *Registry) EvaluateEach(ctx context.Context, input any) []Verdict {
	r.mu.RLock()
	compiler := r.compiler
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	verdicts := make([]Verdict, 0, len(entries))
	if compiler == nil {
		return verdicts
	}

	for _, e := range entries {
		verdict := Verdict{ID: e.id, Name: e.name, Module: e.module, Outcome: OutcomeUndefined}

		rs, err := rego.New(
			rego.Query(e.dataPath),
			rego.Compiler(compiler),
			rego.Input(input),
		).Eval(ctx)
		if err != nil {
			verdict.Err = &FaultError{Module: e.module, Cause: err}
			verdicts = append(verdicts, verdict)
			continue
		}

		if len(rs) > 0 && len(rs[0].Expressions) > 0 {
			if doc, ok := rs[0].Expressions[0].Value.(map[string]any); ok {
				if decisive(doc["deny"]) {
					verdict.Outcome = OutcomeDeny
				} else if decisive(doc["allow"]) {
					verdict.Outcome = OutcomeAllow
				}
			}
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts
}

// decisive reports whether a rule value expresses an explicit result: a
// true boolean, or a non-empty set/array from a partial rule.
func decisive(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case []any:
		return len(v) > 0
	default:
		return false
	}
}
