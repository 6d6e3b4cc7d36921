// Package scheduler runs the periodic background work: key-set refreshes so
// provider key rotation never lands on the request path, and scheduled audit
// runs whose findings go to a caller-supplied sink.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/sixgroup-security/guardian-backend/audit"
	"github.com/sixgroup-security/guardian-backend/authz"
	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/keyset"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

const jobTimeout = 30 * time.Second

// Scheduler owns the cron instance and its jobs.
type Scheduler struct {
	cron *cron.Cron
	log  logrus.FieldLogger
}

// New creates an empty scheduler.
func New(log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{cron: cron.New(), log: log}
}

// AddKeyRefresh refreshes the key set on the given cron spec whenever it has
// exceeded its max age. Failures are logged and retried on the next tick;
// the cache keeps serving its last snapshot meanwhile.
func (s *Scheduler) AddKeyRefresh(spec string, cache *keyset.Cache) error {
	_, err := s.cron.AddFunc(spec, func() {
		if !cache.Stale() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := cache.Refresh(ctx); err != nil {
			s.log.WithError(err).Warn("scheduled key set refresh failed")
		}
	})
	return err
}

// AddAudit runs the audit on the given cron spec and hands each report to
// sink. Findings are also logged per category so drift shows up in the logs
// even without a sink.
func (s *Scheduler) AddAudit(spec string, reg *authz.Registry, src rolemap.Source, sink func(*audit.Report), opts ...audit.Option) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		bindings, err := src.Bindings(ctx)
		if err != nil {
			s.log.WithError(err).Error("scheduled audit could not fetch role bindings")
			return
		}
		report, err := audit.BuildReport(core.SystemClock{}, reg.Snapshot(), bindings, opts...)
		if err != nil {
			s.log.WithError(err).Error("scheduled audit failed")
			return
		}
		counts := make(map[core.FindingCategory]int)
		for _, f := range report.Findings {
			counts[f.Category]++
		}
		s.log.WithFields(logrus.Fields{
			"run_id":      report.RunID,
			"findings":    len(report.Findings),
			"by_category": counts,
		}).Info("scheduled audit finished")
		if sink != nil {
			sink(report)
		}
	})
	return err
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
