package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/strikegate/internal/contracts"
)

// Configuration errors returned before any run
var (
	ErrDuplicateCheck    = errors.New("duplicate check id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrInvalidCheck      = errors.New("invalid check")
)

// ConfigError describes an invalid registry configuration
type ConfigError struct {
	CheckID contracts.CheckID
	Detail  string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("check %s: %s: %s", e.CheckID, e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Registry owns the id → check mapping and the resolved execution waves
// ⭐ SSOT: 체크 실행 순서는 여기서만 결정
type Registry struct {
	checks map[contracts.CheckID]contracts.Check
	waves  [][]contracts.CheckID
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{checks: make(map[contracts.CheckID]contracts.Check)}
}

// Register adds checks as one batch. On any error nothing is registered.
func (r *Registry) Register(checks ...contracts.Check) error {
	next := make(map[contracts.CheckID]contracts.Check, len(r.checks)+len(checks))
	for id, c := range r.checks {
		next[id] = c
	}

	for _, c := range checks {
		if c == nil {
			return &ConfigError{Detail: "nil check", Err: ErrInvalidCheck}
		}
		if !c.Severity().Valid() {
			return &ConfigError{CheckID: c.ID(), Detail: fmt.Sprintf("%s declares no severity", c.Name()), Err: ErrInvalidCheck}
		}
		if _, exists := next[c.ID()]; exists {
			return &ConfigError{CheckID: c.ID(), Detail: c.Name(), Err: ErrDuplicateCheck}
		}
		next[c.ID()] = c
	}

	for _, id := range sortedIDs(next) {
		for _, dep := range next[id].DependsOn() {
			if dep == id {
				return &ConfigError{CheckID: id, Detail: "depends on itself", Err: ErrCyclicDependency}
			}
			if _, ok := next[dep]; !ok {
				return &ConfigError{CheckID: id, Detail: fmt.Sprintf("requires %s", dep), Err: ErrUnknownDependency}
			}
		}
	}

	waves, err := resolveWaves(next)
	if err != nil {
		return err
	}

	r.checks = next
	r.waves = waves
	return nil
}

// Len number of registered checks
func (r *Registry) Len() int {
	return len(r.checks)
}

// Get returns a registered check
func (r *Registry) Get(id contracts.CheckID) (contracts.Check, bool) {
	c, ok := r.checks[id]
	return c, ok
}

// Waves returns execution waves; checks in a wave only depend on earlier waves.
// Each wave is sorted by ascending id.
func (r *Registry) Waves() [][]contracts.CheckID {
	out := make([][]contracts.CheckID, len(r.waves))
	for i, w := range r.waves {
		out[i] = append([]contracts.CheckID(nil), w...)
	}
	return out
}

// Order returns the flattened topological order (ties ascending id)
func (r *Registry) Order() []contracts.CheckID {
	out := make([]contracts.CheckID, 0, len(r.checks))
	for _, w := range r.waves {
		out = append(out, w...)
	}
	return out
}

// Checks returns registered checks in execution order
func (r *Registry) Checks() []contracts.Check {
	out := make([]contracts.Check, 0, len(r.checks))
	for _, id := range r.Order() {
		out = append(out, r.checks[id])
	}
	return out
}

// resolveWaves layers the dependency graph (Kahn).
// Any node left unlayered sits on a cycle.
func resolveWaves(checks map[contracts.CheckID]contracts.Check) ([][]contracts.CheckID, error) {
	indegree := make(map[contracts.CheckID]int, len(checks))
	dependents := make(map[contracts.CheckID][]contracts.CheckID)

	for id, c := range checks {
		seen := make(map[contracts.CheckID]bool)
		for _, dep := range c.DependsOn() {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var current []contracts.CheckID
	for _, id := range sortedIDs(checks) {
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	var waves [][]contracts.CheckID
	placed := 0
	for len(current) > 0 {
		waves = append(waves, current)
		placed += len(current)

		var next []contracts.CheckID
		for _, id := range current {
			for _, d := range dependents[id] {
				indegree[d]--
				if indegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		current = next
	}

	if placed != len(checks) {
		var cyclic []string
		var first contracts.CheckID = -1
		for _, id := range sortedIDs(checks) {
			if indegree[id] > 0 {
				if first < 0 {
					first = id
				}
				cyclic = append(cyclic, id.String())
			}
		}
		return nil, &ConfigError{
			CheckID: first,
			Detail:  "cycle through " + strings.Join(cyclic, ", "),
			Err:     ErrCyclicDependency,
		}
	}

	return waves, nil
}

func sortedIDs(checks map[contracts.CheckID]contracts.Check) []contracts.CheckID {
	ids := make([]contracts.CheckID, 0, len(checks))
	for id := range checks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
