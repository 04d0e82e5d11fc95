package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	appmarketing "github.com/opencrm/backend/internal/application/marketing"
	"github.com/opencrm/backend/internal/domain/automation"
	"github.com/opencrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Built-in job names
const (
	JobQuoteExpiry       = "quote-expiry"
	JobOverdueTasks      = "overdue-tasks"
	JobCampaignLifecycle = "campaign-lifecycle"
	JobWorkflowRefresh   = "workflow-refresh"

	workflowJobPrefix = "workflow:"
)

// QuoteExpirer expires sent quotes past their valid-until date
type QuoteExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueTaskMarker flags open tasks past their due date
type OverdueTaskMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// CampaignLifecycle starts and completes campaigns by date
type CampaignLifecycle interface {
	RunLifecycle(ctx context.Context, now time.Time) (appmarketing.LifecycleResult, error)
}

// ScheduledWorkflows lists and runs workflows with the scheduled trigger
type ScheduledWorkflows interface {
	ScheduledWorkflows(ctx context.Context) ([]automation.Workflow, error)
	RunScheduled(ctx context.Context, tenantID, workflowID uuid.UUID) (int, error)
}

// CRMJobs holds the services the built-in jobs drive. Nil services are skipped.
type CRMJobs struct {
	Quotes    QuoteExpirer
	Tasks     OverdueTaskMarker
	Campaigns CampaignLifecycle
	Workflows ScheduledWorkflows
}

// RegisterCRMJobs registers the sweeps and the workflow refresh job
func RegisterCRMJobs(s *CronScheduler, cfg config.SchedulerConfig, jobs CRMJobs) error {
	if jobs.Quotes != nil {
		if err := s.Register(JobQuoteExpiry, cfg.QuoteExpiryCron, func(ctx context.Context) error {
			n, err := jobs.Quotes.ExpireOverdue(ctx, s.now())
			s.logger.Info("quotes expired", zap.Int("count", n))
			return err
		}); err != nil {
			return err
		}
	}
	if jobs.Tasks != nil {
		if err := s.Register(JobOverdueTasks, cfg.OverdueTaskCron, func(ctx context.Context) error {
			n, err := jobs.Tasks.MarkOverdue(ctx, s.now())
			s.logger.Info("tasks marked overdue", zap.Int("count", n))
			return err
		}); err != nil {
			return err
		}
	}
	if jobs.Campaigns != nil {
		if err := s.Register(JobCampaignLifecycle, cfg.CampaignLifecycleCron, func(ctx context.Context) error {
			result, err := jobs.Campaigns.RunLifecycle(ctx, s.now())
			s.logger.Info("campaign lifecycle",
				zap.Int("started", result.Started),
				zap.Int("completed", result.Completed),
			)
			return err
		}); err != nil {
			return err
		}
	}
	if jobs.Workflows != nil {
		ws := NewWorkflowSync(s, jobs.Workflows)
		if err := s.Register(JobWorkflowRefresh, cfg.WorkflowRefreshCron, ws.Refresh); err != nil {
			return err
		}
	}
	return nil
}

// WorkflowSync keeps one cron job per active scheduled workflow
type WorkflowSync struct {
	scheduler *CronScheduler
	workflows ScheduledWorkflows
}

// NewWorkflowSync creates the sync
func NewWorkflowSync(s *CronScheduler, workflows ScheduledWorkflows) *WorkflowSync {
	return &WorkflowSync{scheduler: s, workflows: workflows}
}

// WorkflowJobName is the job name used for a scheduled workflow
func WorkflowJobName(workflowID uuid.UUID) string {
	return workflowJobPrefix + workflowID.String()
}

// Refresh adds jobs for new or rescheduled workflows and removes jobs for
// workflows that were deactivated, deleted or moved off the scheduled trigger.
// A workflow with an unparsable schedule is logged and left out.
func (w *WorkflowSync) Refresh(ctx context.Context) error {
	workflows, err := w.workflows.ScheduledWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled workflows: %w", err)
	}

	wanted := make(map[string]struct{}, len(workflows))
	for i := range workflows {
		wf := workflows[i]
		name := WorkflowJobName(wf.ID)
		wanted[name] = struct{}{}

		if spec, ok := w.scheduler.Schedule(name); ok && spec == wf.Schedule {
			continue
		}
		tenantID, workflowID := wf.TenantID, wf.ID
		err := w.scheduler.Replace(name, wf.Schedule, func(ctx context.Context) error {
			runs, err := w.workflows.RunScheduled(ctx, tenantID, workflowID)
			w.scheduler.logger.Info("scheduled workflow ran",
				zap.String("workflow_id", workflowID.String()),
				zap.String("tenant_id", tenantID.String()),
				zap.Int("entities", runs),
			)
			return err
		})
		if err != nil {
			delete(wanted, name)
			w.scheduler.logger.Warn("skipping workflow with bad schedule",
				zap.String("workflow_id", wf.ID.String()),
				zap.Error(err),
			)
		}
	}

	for _, info := range w.scheduler.Jobs() {
		if !strings.HasPrefix(info.Name, workflowJobPrefix) {
			continue
		}
		if _, ok := wanted[info.Name]; !ok {
			w.scheduler.Remove(info.Name)
		}
	}
	return nil
}
