package tasks

import (
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypePruneRateLimits  = "maintenance:prune_rate_limits"
	TypePurgeInvitations = "maintenance:purge_invitations"
)

// Both maintenance tasks are parameterless ticks; retention windows come from
// the worker's own config so stale payloads cannot resurrect old settings.

func NewPruneRateLimitsTask() *asynq.Task {
	return asynq.NewTask(TypePruneRateLimits, nil)
}

func NewPurgeInvitationsTask() *asynq.Task {
	return asynq.NewTask(TypePurgeInvitations, nil)
}
