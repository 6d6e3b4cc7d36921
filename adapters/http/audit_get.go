package authhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sixgroup-security/guardian-backend/audit"
	"github.com/sixgroup-security/guardian-backend/authz"
	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

// AuditReportHandler runs the audit on demand and returns the report as
// JSON. Operator-facing; callers mount it behind their own access control.
func AuditReportHandler(reg *authz.Registry, src rolemap.Source, clock core.Clock, log logrus.FieldLogger, opts ...audit.Option) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bindings, err := src.Bindings(r.Context())
		if err != nil {
			log.WithError(err).Error("role binding fetch failed")
			http.Error(w, "role mapping source unavailable", http.StatusBadGateway)
			return
		}
		report, err := audit.BuildReport(clock, reg.Snapshot(), bindings, opts...)
		if err != nil {
			var invalid *core.InvalidInputError
			if errors.As(err, &invalid) {
				http.Error(w, invalid.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, "audit failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	})
}
