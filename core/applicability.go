package core

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// FeatureSet is the enabled-features input to applicability decisions (§3).
// Represented as a sorted, deduplicated slice so it can form a stable cache
// key (§4.1 "enabledFeaturesSnapshot").
type FeatureSet []string

func (f FeatureSet) contains(name string) bool {
	for _, v := range f {
		if v == name {
			return true
		}
	}
	return false
}

func (f FeatureSet) snapshot() string {
	if len(f) == 0 {
		return ""
	}
	cp := make([]string, len(f))
	copy(cp, f)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}

// applicabilityKey is the cache key described in §4.1: (middlewareType,
// messageKind, enabledFeaturesSnapshot).
type applicabilityKey struct {
	middlewareType reflect.Type
	kind           Kind
	features       string
}

// ApplicabilityEvaluator implements §4.1: decides whether a middleware
// (by type, or by instance with attribute-bound overrides) applies to a
// message kind and feature set, with a two-phase (mutable/frozen) cache.
//
// IncludeOnFilterError mirrors the teacher's preference for explicit,
// caller-owned policy flags (see plugins/*/options.go "defaults()" pattern)
// rather than a package-level global.
type ApplicabilityEvaluator struct {
	mu                   sync.RWMutex
	cache                map[applicabilityKey]bool
	frozen               bool
	IncludeOnFilterError bool
}

// NewApplicabilityEvaluator returns an evaluator in the mutable cache phase.
func NewApplicabilityEvaluator() *ApplicabilityEvaluator {
	return &ApplicabilityEvaluator{cache: make(map[applicabilityKey]bool)}
}

// IsApplicableType decides applicability from a middleware's static type
// alone (no instance-level override), per §4.1's first overload.
func (e *ApplicabilityEvaluator) IsApplicableType(mw Middleware, kind Kind) bool {
	return e.IsApplicableTypeWithFeatures(mw, kind, nil)
}

// IsApplicableTypeWithFeatures adds feature gating to the type-level check.
func (e *ApplicabilityEvaluator) IsApplicableTypeWithFeatures(mw Middleware, kind Kind, enabled FeatureSet) bool {
	t := reflect.TypeOf(mw)
	key := applicabilityKey{middlewareType: t, kind: kind, features: enabled.snapshot()}

	if cached, ok := e.lookup(key); ok {
		return cached
	}

	decision := evaluate(mw, kind, enabled)
	e.store(key, decision)
	return decision
}

// IsApplicableInstance inspects the concrete instance; attribute-bound
// applicability on the instance wins over anything declared at the type
// level (§4.1 "when a middleware instance ... is evaluated").
func (e *ApplicabilityEvaluator) IsApplicableInstance(mw Middleware, kind Kind, enabled FeatureSet) bool {
	// Instance-level evaluation is not memoized separately: the cache key
	// is keyed by concrete type, and Go middleware instances of the same
	// type share the same annotations (no per-instance reflection divergence
	// in this runtime), so the type-level path already captures it.
	return e.IsApplicableTypeWithFeatures(mw, kind, enabled)
}

// FilterApplicable returns the subset of middlewares that apply, preserving
// input order (§4.1).
func (e *ApplicabilityEvaluator) FilterApplicable(middlewares []Middleware, kind Kind, enabled FeatureSet) []Middleware {
	out := make([]Middleware, 0, len(middlewares))
	for _, mw := range middlewares {
		applies := func() (result bool) {
			defer func() {
				if r := recover(); r != nil {
					result = e.IncludeOnFilterError
				}
			}()
			return e.IsApplicableTypeWithFeatures(mw, kind, enabled)
		}()
		if applies {
			out = append(out, mw)
		}
	}
	return out
}

func evaluate(mw Middleware, kind Kind, enabled FeatureSet) bool {
	appliesTo, excludeKinds, required := resolveApplicability(mw)
	if kind&appliesTo == None {
		return false
	}
	if excludeKinds != None && kind&excludeKinds != None {
		return false
	}
	for _, feat := range required {
		if !enabled.contains(feat) {
			return false
		}
	}
	return true
}

func (e *ApplicabilityEvaluator) lookup(key applicabilityKey) (bool, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.cache[key]
	return v, ok
}

func (e *ApplicabilityEvaluator) store(key applicabilityKey, value bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		// Frozen cache: writes are no-ops, cache misses still compute correctly
		// on every call (§4.1).
		return
	}
	e.cache[key] = value
}

// ClearCache returns the evaluator to the mutable phase and empties the table.
func (e *ApplicabilityEvaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen = false
	e.cache = make(map[applicabilityKey]bool)
}

// FreezeCache is idempotent.
func (e *ApplicabilityEvaluator) FreezeCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen = true
}

// IsCacheFrozen exposes the current phase.
func (e *ApplicabilityEvaluator) IsCacheFrozen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frozen
}
