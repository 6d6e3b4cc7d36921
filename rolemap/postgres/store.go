// Package pgstore reads role bindings from a relational table kept in sync
// with the identity provider by the surrounding system. This package only
// reads; the table's schema is owned elsewhere.
package pgstore

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

// Store provides role-binding lookups against the auth schema.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

// NewStore creates a store over the given pool. Schema defaults to "auth".
func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "auth"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) bindingsTable() string { return s.schema + ".role_scopes" }

// Bindings returns the current role → scope rows grouped per role.
func (s *Store) Bindings(ctx context.Context) ([]core.RoleBinding, error) {
	rows, err := s.pg.Query(ctx, `SELECT role_name, scope FROM `+s.bindingsTable()+` ORDER BY role_name, scope`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byRole := make(map[string][]string)
	for rows.Next() {
		var role, scope string
		if err := rows.Scan(&role, &scope); err != nil {
			return nil, err
		}
		byRole[role] = append(byRole[role], scope)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rolemap.FromMap(byRole), nil
}
