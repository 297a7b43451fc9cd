// Package contract checks generated artifacts against an OpenAPI contract.
package contract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Violation types.
const (
	RemovedOperation     = "removed_operation"
	UndocumentedEndpoint = "undocumented_endpoint"
)

// Severities and risk levels.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
	RiskNone       = "none"
)

// anyMethod marks a route registered without an explicit method.
const anyMethod = "*"

var methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

var (
	// methodCallPattern matches router calls such as r.Get("/x", ...) or
	// app.post('/x', ...).
	methodCallPattern = regexp.MustCompile("(?i)\\.(get|post|put|patch|delete|head|options)\\(\\s*[\"'`](/[^\"'`\\s]*)[\"'`]")
	// handlePattern matches net/http style registrations, with an optional
	// method prefix in the pattern.
	handlePattern = regexp.MustCompile("\\.(?:HandleFunc|Handle)\\(\\s*\"(?:([A-Z]+)\\s+)?(/[^\"\\s]*)\"")
)

// Route is one endpoint registration found in an artifact.
type Route struct {
	Method string
	Path   string
}

// Checker compares artifacts with a loaded OpenAPI document.
type Checker struct {
	doc  *openapi3.T
	path string
}

// Load reads and validates an OpenAPI document from a file.
func Load(specPath string) (*Checker, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI contract: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI contract: %w", err)
	}
	return &Checker{doc: doc, path: specPath}, nil
}

// LoadData parses and validates an OpenAPI document from memory.
func LoadData(data []byte) (*Checker, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI contract: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI contract: %w", err)
	}
	return &Checker{doc: doc}, nil
}

// Operations returns the contract's operations by path.
func (c *Checker) Operations() map[string][]string {
	ops := make(map[string][]string)
	if c.doc.Paths == nil {
		return ops
	}
	for path, item := range c.doc.Paths.Map() {
		var ms []string
		for _, m := range methods {
			if item.GetOperation(m) != nil {
				ms = append(ms, m)
			}
		}
		if len(ms) > 0 {
			ops[path] = ms
		}
	}
	return ops
}

// CheckContracts reports the breaking changes an artifact introduces and the
// overall risk level, which is the highest severity found or "none".
func (c *Checker) CheckContracts(artifact string) ([]models.BreakingChange, string) {
	routes := ExtractRoutes(artifact)
	ops := c.Operations()

	// Registered methods per contract path.
	registered := make(map[string]map[string]bool)
	var changes []models.BreakingChange

	for _, r := range routes {
		specPath, ok := matchPath(ops, r.Path)
		if !ok {
			changes = append(changes, undocumented(r))
			continue
		}
		if registered[specPath] == nil {
			registered[specPath] = make(map[string]bool)
		}
		registered[specPath][r.Method] = true
		if r.Method != anyMethod && !contains(ops[specPath], r.Method) {
			changes = append(changes, undocumented(r))
		}
	}

	for specPath, seen := range registered {
		if seen[anyMethod] {
			continue
		}
		for _, m := range ops[specPath] {
			if seen[m] {
				continue
			}
			changes = append(changes, models.BreakingChange{
				Type:        RemovedOperation,
				Path:        specPath,
				Method:      m,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("contract operation %s %s is no longer registered", m, specPath),
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		if changes[i].Method != changes[j].Method {
			return changes[i].Method < changes[j].Method
		}
		return changes[i].Type < changes[j].Type
	})

	return changes, RiskLevel(changes)
}

// RiskLevel returns the highest severity among changes, or "none".
func RiskLevel(changes []models.BreakingChange) string {
	rank := map[string]int{SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3}
	level := RiskNone
	best := 0
	for _, c := range changes {
		if r := rank[c.Severity]; r > best {
			best = r
			level = c.Severity
		}
	}
	return level
}

// ExtractRoutes finds endpoint registrations in source text. Routes are
// returned in order of first appearance without duplicates.
func ExtractRoutes(artifact string) []Route {
	type hit struct {
		pos   int
		route Route
	}
	var hits []hit

	for _, m := range methodCallPattern.FindAllStringSubmatchIndex(artifact, -1) {
		hits = append(hits, hit{m[0], Route{
			Method: strings.ToUpper(artifact[m[2]:m[3]]),
			Path:   normalizePath(artifact[m[4]:m[5]]),
		}})
	}
	for _, m := range handlePattern.FindAllStringSubmatchIndex(artifact, -1) {
		method := anyMethod
		if m[2] >= 0 {
			method = artifact[m[2]:m[3]]
		}
		hits = append(hits, hit{m[0], Route{Method: method, Path: normalizePath(artifact[m[4]:m[5]])}})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[Route]bool)
	var routes []Route
	for _, h := range hits {
		if seen[h.route] {
			continue
		}
		seen[h.route] = true
		routes = append(routes, h.route)
	}
	return routes
}

func undocumented(r Route) models.BreakingChange {
	method := r.Method
	if method == anyMethod {
		method = ""
	}
	return models.BreakingChange{
		Type:        UndocumentedEndpoint,
		Path:        r.Path,
		Method:      method,
		Severity:    SeverityMedium,
		Description: strings.TrimSpace(fmt.Sprintf("endpoint %s %s is not in the contract", method, r.Path)),
	}
}

// matchPath finds the contract path matching an artifact path. Parameter
// segments ({id} or :id) match any segment.
func matchPath(ops map[string][]string, path string) (string, bool) {
	if _, ok := ops[path]; ok {
		return path, true
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")

	candidates := make([]string, 0, len(ops))
	for p := range ops {
		candidates = append(candidates, p)
	}
	sort.Strings(candidates)

	for _, specPath := range candidates {
		specSegs := strings.Split(strings.Trim(specPath, "/"), "/")
		if len(specSegs) != len(segs) {
			continue
		}
		match := true
		for i := range segs {
			if isParam(specSegs[i]) || isParam(segs[i]) {
				continue
			}
			if specSegs[i] != segs[i] {
				match = false
				break
			}
		}
		if match {
			return specPath, true
		}
	}
	return "", false
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, ":") || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"))
}

// normalizePath drops query strings and trailing slashes.
func normalizePath(path string) string {
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
