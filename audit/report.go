package audit

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sixgroup-security/guardian-backend/core"
)

// EndpointCoverage is one row of the per-endpoint scope table. PotentialIssue
// flags endpoints whose HTTP method has no scope with the matching verb
// suffix (GET→_read, POST→_create, PUT→_update, DELETE→_delete).
type EndpointCoverage struct {
	Method         string   `json:"method"`
	Path           string   `json:"path"`
	Scopes         []string `json:"scopes"`
	PotentialIssue bool     `json:"potential_issue"`
}

// MatrixRow maps one scope to the roles granting it.
type MatrixRow struct {
	Scope string   `json:"scope"`
	Roles []string `json:"roles"`
}

// Report is the operator-facing envelope around one audit run. The finding
// sequence itself stays deterministic; only the run id and timestamp vary.
type Report struct {
	RunID       uuid.UUID           `json:"run_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Findings    []core.AuditFinding `json:"findings"`
	Endpoints   []EndpointCoverage  `json:"endpoints"`
	Matrix      []MatrixRow         `json:"matrix"`
}

var methodSuffix = map[string]string{
	"GET":    "_read",
	"POST":   "_create",
	"PUT":    "_update",
	"DELETE": "_delete",
}

// BuildReport runs the audit and assembles the full report. The output is
// handed to an external formatter; no file format is defined here.
func BuildReport(clock core.Clock, endpoints []core.EndpointDescriptor, bindings []core.RoleBinding, opts ...Option) (*Report, error) {
	findings, err := Run(endpoints, bindings, opts...)
	if err != nil {
		return nil, err
	}
	r := &Report{
		RunID:       uuid.New(),
		GeneratedAt: clock.Now().UTC(),
		Findings:    findings,
		Endpoints:   coverage(endpoints),
		Matrix:      matrix(bindings),
	}
	return r, nil
}

func coverage(endpoints []core.EndpointDescriptor) []EndpointCoverage {
	rows := make([]EndpointCoverage, 0, len(endpoints))
	for _, e := range endpoints {
		row := EndpointCoverage{Method: e.Method, Path: e.Path, Scopes: e.RequiredScopes}
		if suffix, ok := methodSuffix[e.Method]; ok {
			row.PotentialIssue = true
			for _, s := range e.RequiredScopes {
				if strings.HasSuffix(s, suffix) {
					row.PotentialIssue = false
					break
				}
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Path != rows[j].Path {
			return rows[i].Path < rows[j].Path
		}
		return rows[i].Method < rows[j].Method
	})
	return rows
}

func matrix(bindings []core.RoleBinding) []MatrixRow {
	byScope := make(map[string][]string)
	for _, b := range bindings {
		for _, s := range b.GrantedScopes {
			byScope[s] = append(byScope[s], b.Role)
		}
	}
	rows := make([]MatrixRow, 0, len(byScope))
	for scope, roles := range byScope {
		rows = append(rows, MatrixRow{Scope: scope, Roles: sortedUnique(roles)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Scope < rows[j].Scope })
	return rows
}
