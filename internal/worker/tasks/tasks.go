package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
	"github.com/bivex/subscription-renewals/internal/infrastructure/notification"
)

// Task names
const (
	TypeSweepDueRenewals = "renewal:sweep_due"
	TypeProcessRenewal   = "renewal:process"
	TypeSendReminders    = "renewal:send_reminders"
	TypeCheckGraceExpiry = "renewal:check_grace_expiry"
	TypeSendNotification = notification.TaskTypeSend
)

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Registrar is satisfied by *asynq.Scheduler
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterHandlers registers all task handlers with the server mux.
func RegisterHandlers(mux *asynq.ServeMux, renewals *RenewalJobHandler, notifications *NotificationJobHandler) {
	mux.HandleFunc(TypeSweepDueRenewals, renewals.HandleSweepDueRenewals)
	mux.HandleFunc(TypeProcessRenewal, renewals.HandleProcessRenewal)
	mux.HandleFunc(TypeSendReminders, renewals.HandleSendReminders)
	mux.HandleFunc(TypeCheckGraceExpiry, renewals.HandleCheckGraceExpiry)
	mux.HandleFunc(TypeSendNotification, notifications.HandleSendNotification)
}

// RegisterScheduledTasks registers the renewal cron entries
func RegisterScheduledTasks(scheduler Registrar, cfg config.RenewalConfig) error {
	entries := []struct {
		spec     string
		taskType string
	}{
		{cfg.ProcessSchedule, TypeSweepDueRenewals},
		{cfg.ReminderSchedule, TypeSendReminders},
		{cfg.GraceSchedule, TypeCheckGraceExpiry},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		// one sweep at a time even if a run overlaps the next tick
		if _, err := scheduler.Register(e.spec, asynq.NewTask(e.taskType, nil), asynq.Unique(cfg.LockTTL), asynq.MaxRetry(0)); err != nil {
			return fmt.Errorf("schedule %s: %w", e.taskType, err)
		}
	}
	return nil
}

func mustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
