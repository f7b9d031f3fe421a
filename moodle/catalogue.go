package moodle

import (
	"net/http"
	"sort"
	"strings"
)

// writeVerbs are the verbs dispatched as POST. Every other verb is a GET.
var writeVerbs = map[string]bool{
	"save":   true,
	"record": true,
	"create": true,
	"update": true,
}

// Operation describes one remote function, split by naming convention
// into module (first two tokens), verb (third) and resource (the rest).
type Operation struct {
	Name     string `json:"name"`
	Module   string `json:"module"`
	Verb     string `json:"verb"`
	Resource string `json:"resource"`
	Method   string `json:"method"`
}

// IsWrite reports whether the operation is dispatched as a submission.
func (o Operation) IsWrite() bool {
	return o.Method == http.MethodPost
}

// MethodForVerb classifies a verb as read (GET) or write (POST).
func MethodForVerb(verb string) string {
	if writeVerbs[verb] {
		return http.MethodPost
	}
	return http.MethodGet
}

// ParseOperation splits a full operation name.
// "core_course_get_enrolled_courses_by_timeline_classification" gives
// module "core_course", verb "get", resource "enrolled_courses_by_timeline_classification".
func ParseOperation(name string) Operation {
	tokens := strings.Split(name, "_")
	op := Operation{Name: name}

	switch {
	case len(tokens) >= 2:
		op.Module = strings.Join(tokens[:2], "_")
	default:
		op.Module = name
	}
	if len(tokens) >= 3 {
		op.Verb = tokens[2]
	}
	if len(tokens) >= 4 {
		op.Resource = strings.Join(tokens[3:], "_")
	}
	op.Method = MethodForVerb(op.Verb)
	return op
}

// abbreviation returns the first two resource tokens, or "" when the
// resource is already that short.
func abbreviation(resource string) string {
	tokens := strings.Split(resource, "_")
	if len(tokens) <= 2 {
		return ""
	}
	return strings.Join(tokens[:2], "_")
}

type verbGroup struct {
	full  map[string]Operation
	short map[string]Operation
}

// Catalogue is the namespace built from the discovered operation names.
// It is immutable once built.
type Catalogue struct {
	ops    map[string]Operation
	groups map[string]map[string]*verbGroup
}

// NewCatalogue builds the namespace from names, in discovery order.
// The first operation to claim an abbreviation keeps it.
func NewCatalogue(names []string) *Catalogue {
	c := &Catalogue{
		ops:    make(map[string]Operation, len(names)),
		groups: make(map[string]map[string]*verbGroup),
	}

	for _, name := range names {
		if name == "" {
			continue
		}
		op := ParseOperation(name)
		c.ops[name] = op

		verbs, ok := c.groups[op.Module]
		if !ok {
			verbs = make(map[string]*verbGroup)
			c.groups[op.Module] = verbs
		}
		g, ok := verbs[op.Verb]
		if !ok {
			g = &verbGroup{full: map[string]Operation{}, short: map[string]Operation{}}
			verbs[op.Verb] = g
		}

		g.full[op.Resource] = op
		if abbr := abbreviation(op.Resource); abbr != "" {
			if _, taken := g.short[abbr]; !taken {
				g.short[abbr] = op
			}
		}
	}
	return c
}

// Has reports whether the full operation name was discovered.
func (c *Catalogue) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.ops[name]
	return ok
}

// Operation returns the descriptor for a full operation name.
func (c *Catalogue) Operation(name string) (Operation, bool) {
	if c == nil {
		return Operation{}, false
	}
	op, ok := c.ops[name]
	return op, ok
}

// Lookup resolves module/verb/resource. A full resource wins over an
// abbreviation with the same spelling.
func (c *Catalogue) Lookup(module, verb, resource string) (Operation, bool) {
	if c == nil {
		return Operation{}, false
	}
	g, ok := c.groups[module][verb]
	if !ok {
		return Operation{}, false
	}
	if op, ok := g.full[resource]; ok {
		return op, true
	}
	op, ok := g.short[resource]
	return op, ok
}

// Resolve accepts either a full operation name or a dotted
// "module.verb.resource" reference.
func (c *Catalogue) Resolve(ref string) (Operation, bool) {
	parts := strings.Split(ref, ".")
	if len(parts) == 3 {
		return c.Lookup(parts[0], parts[1], parts[2])
	}
	return c.Operation(ref)
}

// Names returns every discovered operation name, sorted.
func (c *Catalogue) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.ops))
	for n := range c.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Operations returns every descriptor, sorted by name.
func (c *Catalogue) Operations() []Operation {
	names := c.Names()
	ops := make([]Operation, 0, len(names))
	for _, n := range names {
		ops = append(ops, c.ops[n])
	}
	return ops
}

// Abbreviations returns the abbreviation table of one module/verb group:
// short resource -> full operation name.
func (c *Catalogue) Abbreviations(module, verb string) map[string]string {
	out := map[string]string{}
	if c == nil {
		return out
	}
	g, ok := c.groups[module][verb]
	if !ok {
		return out
	}
	for abbr, op := range g.short {
		out[abbr] = op.Name
	}
	return out
}

func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ops)
}
