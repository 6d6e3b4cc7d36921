package scheduler

import (
	"testing"

	"github.com/sixgroup-security/guardian-backend/authz"
	"github.com/sixgroup-security/guardian-backend/keyset"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

func TestAddJobsValidateSpec(t *testing.T) {
	s := New(nil)
	cache := keyset.New("http://localhost/jwks")

	if err := s.AddKeyRefresh("not a cron spec", cache); err == nil {
		t.Error("invalid cron spec should fail")
	}
	if err := s.AddKeyRefresh("@every 5m", cache); err != nil {
		t.Errorf("AddKeyRefresh: %v", err)
	}
	if err := s.AddAudit("@daily", authz.NewRegistry(), rolemap.Static{}, nil); err != nil {
		t.Errorf("AddAudit: %v", err)
	}

	s.Start()
	s.Stop()
}
