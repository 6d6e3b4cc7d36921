package core

import (
	"context"
)

// DecisionLogger records authorization outcomes to an external sink (e.g.,
// ClickHouse). Implementations should be non-blocking and best-effort; the
// gate itself never calls this, adapters do.
type DecisionLogger interface {
	LogDecision(ctx context.Context, subject, method, path string, allowed bool, missingScopes []string) error
}
