package merge

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/dtuma/processdash-sub018/internal/tree"
)

// PolicyKind names how an attribute is merged when both branches changed it.
type PolicyKind string

const (
	// PolicyReportConflict keeps main's value and reports a conflict.
	PolicyReportConflict PolicyKind = "report-conflict"

	// PolicyPreferMain silently keeps main's value.
	PolicyPreferMain PolicyKind = "prefer-main"

	// PolicyPreferIncoming silently keeps incoming's value.
	PolicyPreferIncoming PolicyKind = "prefer-incoming"

	// PolicyCollapse behaves like PolicyReportConflict but reports every
	// matching attribute under one shared key, so N colliding edits on a
	// node yield one warning.
	PolicyCollapse PolicyKind = "collapse"

	// PolicyOpaqueUnion merges map-valued attributes by key union, main
	// winning per-key ties. It never reports a conflict.
	PolicyOpaqueUnion PolicyKind = "opaque-union"
)

// IsValid returns true if the kind is recognized.
func (k PolicyKind) IsValid() bool {
	switch k {
	case PolicyReportConflict, PolicyPreferMain, PolicyPreferIncoming, PolicyCollapse, PolicyOpaqueUnion:
		return true
	default:
		return false
	}
}

// AllPolicyKinds returns every supported policy kind.
func AllPolicyKinds() []PolicyKind {
	return []PolicyKind{PolicyReportConflict, PolicyPreferMain, PolicyPreferIncoming, PolicyCollapse, PolicyOpaqueUnion}
}

// Policy is a tagged merge policy for one attribute name or pattern.
type Policy struct {
	Kind PolicyKind
	// Key is the shared attribute key for PolicyCollapse.
	Key string
	// Severity of reported conflicts. Zero means SeverityConflict.
	Severity Severity
}

// ReportConflict is the default policy.
func ReportConflict() Policy { return Policy{Kind: PolicyReportConflict, Severity: SeverityConflict} }

// PreferMain silently keeps main's value on a real conflict.
func PreferMain() Policy { return Policy{Kind: PolicyPreferMain} }

// PreferIncoming silently keeps incoming's value on a real conflict.
func PreferIncoming() Policy { return Policy{Kind: PolicyPreferIncoming} }

// Collapse reports conflicts for every matching attribute under key.
func Collapse(key string) Policy {
	return Policy{Kind: PolicyCollapse, Key: key, Severity: SeverityConflict}
}

// OpaqueUnion merges map values by key union.
func OpaqueUnion() Policy { return Policy{Kind: PolicyOpaqueUnion} }

// ParsePolicy parses the textual form used in configuration files:
// "report-conflict", "prefer-main", "prefer-incoming", "opaque-union" or
// "collapse:<key>".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if key, ok := strings.CutPrefix(s, string(PolicyCollapse)+":"); ok {
		if key == "" {
			return Policy{}, fmt.Errorf("collapse policy needs a key")
		}
		return Collapse(key), nil
	}
	switch PolicyKind(s) {
	case PolicyReportConflict:
		return ReportConflict(), nil
	case PolicyPreferMain:
		return PreferMain(), nil
	case PolicyPreferIncoming:
		return PreferIncoming(), nil
	case PolicyOpaqueUnion:
		return OpaqueUnion(), nil
	case PolicyCollapse:
		return Policy{}, fmt.Errorf("collapse policy needs a key (collapse:<key>)")
	}
	return Policy{}, fmt.Errorf("unknown merge policy %q", s)
}

func (p Policy) String() string {
	if p.Kind == PolicyCollapse {
		return string(p.Kind) + ":" + p.Key
	}
	return string(p.Kind)
}

func (p Policy) validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("unknown policy kind %q", p.Kind)
	}
	if p.Kind == PolicyCollapse && p.Key == "" {
		return fmt.Errorf("collapse policy needs a key")
	}
	return nil
}

func (p Policy) severity() Severity {
	if p.Severity == 0 {
		return SeverityConflict
	}
	return p.Severity
}

type patternRule struct {
	source string
	re     *regexp.Regexp
	policy Policy
}

// Registry maps attribute names to merge policies. It is immutable once
// built, so one registry can serve concurrent merges.
type Registry struct {
	def      Policy
	exact    map[string]Policy
	patterns []patternRule
}

// Lookup returns the policy for attr: exact name first, then the first
// matching pattern in registration order, then the default.
func (r *Registry) Lookup(attr string) Policy {
	if p, ok := r.exact[attr]; ok {
		return p
	}
	for _, rule := range r.patterns {
		if rule.re.MatchString(attr) {
			return rule.policy
		}
	}
	return r.def
}

// Default returns the fallback policy.
func (r *Registry) Default() Policy {
	return r.def
}

// RegistryBuilder collects policies before freezing them into a Registry.
type RegistryBuilder struct {
	def      *Policy
	exact    map[string]Policy
	patterns []patternRule
	errs     []string
}

// NewRegistryBuilder starts a builder whose default is ReportConflict.
func NewRegistryBuilder() *RegistryBuilder {
	def := ReportConflict()
	return &RegistryBuilder{def: &def, exact: make(map[string]Policy)}
}

// Default replaces the fallback policy.
func (b *RegistryBuilder) Default(p Policy) *RegistryBuilder {
	b.def = &p
	return b
}

// Register binds a policy to an exact attribute name.
func (b *RegistryBuilder) Register(name string, p Policy) *RegistryBuilder {
	if name == "" {
		b.errs = append(b.errs, "empty attribute name")
		return b
	}
	b.exact[name] = p
	return b
}

// RegisterPattern binds a policy to every attribute whose whole name matches
// the regular expression.
func (b *RegistryBuilder) RegisterPattern(pattern string, p Policy) *RegistryBuilder {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		b.errs = append(b.errs, fmt.Sprintf("pattern %q: %v", pattern, err))
		return b
	}
	b.patterns = append(b.patterns, patternRule{source: pattern, re: re, policy: p})
	return b
}

// Build validates the collected policies and returns an immutable Registry.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, invalid("registry", strings.Join(b.errs, "; "), nil)
	}
	if b.def == nil || b.def.Kind == "" {
		return nil, invalid("registry", "no default policy", nil)
	}
	if err := b.def.validate(); err != nil {
		return nil, invalid("registry", "default policy", err)
	}

	r := &Registry{
		def:      *b.def,
		exact:    make(map[string]Policy, len(b.exact)),
		patterns: make([]patternRule, len(b.patterns)),
	}
	for name, p := range b.exact {
		if err := p.validate(); err != nil {
			return nil, invalid("registry", "attribute "+name, err)
		}
		r.exact[name] = p
	}
	for i, rule := range b.patterns {
		if err := rule.policy.validate(); err != nil {
			return nil, invalid("registry", "pattern "+rule.source, err)
		}
		r.patterns[i] = rule
	}
	return r, nil
}

// DefaultRegistry returns a registry that reports every real conflict.
func DefaultRegistry() *Registry {
	r, _ := NewRegistryBuilder().Build()
	return r
}

// MergeOne merges a single attribute of node id. It applies the plain
// three-way rule first (agreement, or one side unchanged from base) and only
// consults the attribute's policy when both branches changed the value to
// different things. A nil value means the attribute is absent.
func MergeOne[ID comparable](r *Registry, id ID, attr string, base, main, incoming any) (any, *Warning[ID]) {
	if valuesEqual(main, incoming) {
		return main, nil
	}
	if valuesEqual(base, main) {
		return incoming, nil
	}
	if valuesEqual(base, incoming) {
		return main, nil
	}

	p := r.Lookup(attr)
	switch p.Kind {
	case PolicyPreferMain:
		return main, nil
	case PolicyPreferIncoming:
		return incoming, nil
	case PolicyOpaqueUnion:
		return unionMaps(main, incoming), nil
	case PolicyCollapse:
		return main, &Warning[ID]{
			Severity:   p.severity(),
			Key:        AttributeKey(p.Key),
			SubjectIDs: []ID{id},
			Attr:       p.Key,
		}
	default:
		return main, &Warning[ID]{
			Severity:   p.severity(),
			Key:        AttributeKey(attr),
			SubjectIDs: []ID{id},
			Attr:       attr,
		}
	}
}

// unionMaps overlays main on top of incoming. Non-map values fall back to
// main, or to incoming when main is absent.
func unionMaps(main, incoming any) any {
	if main == nil {
		return tree.CloneValue(incoming)
	}
	if incoming == nil {
		return tree.CloneValue(main)
	}
	switch m := main.(type) {
	case map[string]string:
		if in, ok := incoming.(map[string]string); ok {
			out := make(map[string]string, len(m)+len(in))
			for k, v := range in {
				out[k] = v
			}
			for k, v := range m {
				out[k] = v
			}
			return out
		}
	case map[string]any:
		if in, ok := incoming.(map[string]any); ok {
			out := make(map[string]any, len(m)+len(in))
			for k, v := range in {
				out[k] = tree.CloneValue(v)
			}
			for k, v := range m {
				out[k] = tree.CloneValue(v)
			}
			return out
		}
	}
	return tree.CloneValue(main)
}

// valuesEqual compares attribute values. Values that differ in Go type but
// share a JSON encoding (int 3 and float64 3, for instance) are equal, which
// matters for snapshots decoded from different formats.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}
