package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/redis"
	"github.com/kirklandnuts/ontology-batch-query/tasks"
)

type redisTransactions interface {
	getRunTask(ctx context.Context, runID string) (*tasks.RunTask, error)
	lockAPIKey(ctx context.Context, apiKey string, ttl time.Duration) (redis.ReleaseLock, error)
	onTaskStarted(task *Task) error
	onTaskCancelled(task *Task, errorMessages ...string) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskComplete(task *Task, summary runSummary) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) getRunTask(ctx context.Context, runID string) (*tasks.RunTask, error) {
	return wrapper.tasksClient.Runs.Get(ctx, runID)
}

func (wrapper *redisClientWrapper) lockAPIKey(ctx context.Context, apiKey string, ttl time.Duration) (redis.ReleaseLock, error) {
	return wrapper.tasksClient.LockAPIKey(ctx, apiKey, ttl)
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.tasksClient.Runs.Update(context.Background(), task.message.RunID, func(runTask *tasks.RunTask) {
		runTask.Status = tasks.TaskStatusStarted
		runTask.Attempts += 1
		runTask.StartedAt = getFormattedNow()
		runTask.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task, errorMessages ...string) error {
	return wrapper.tasksClient.Runs.Update(context.Background(), task.message.RunID, func(runTask *tasks.RunTask) {
		runTask.Status = tasks.TaskStatusCanceled
		runTask.CompletedAt = getFormattedNow()
		runTask.ErrorMessages = append(runTask.ErrorMessages, errorMessages...)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	return wrapper.tasksClient.Runs.Update(context.Background(), task.message.RunID, func(runTask *tasks.RunTask) {
		runTask.Status = tasks.TaskStatusCompletedFailure
		runTask.CompletedAt = getFormattedNow()
		runTask.ErrorMessages = append(
			runTask.ErrorMessages,
			fmt.Sprintf(
				"Run has exceeded retries. (Attempts: %d, max retries: %d )",
				runTask.Attempts,
				maxRetries,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.tasksClient.Runs.Update(context.Background(), task.message.RunID, func(runTask *tasks.RunTask) {
		runTask.Status = tasks.TaskStatusFailed
		runTask.CompletedAt = getFormattedNow()
		runTask.ErrorMessages = append(runTask.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task, summary runSummary) error {
	return wrapper.tasksClient.Runs.Update(context.Background(), task.message.RunID, func(runTask *tasks.RunTask) {
		if !runTask.Status.Complete() {
			runTask.Status = tasks.TaskStatusCompletedSuccess
		}
		runTask.CompletedAt = getFormattedNow()
		runTask.TermCount = summary.termCount
		runTask.MatchCount = summary.matchCount
		runTask.UnresolvedTerms = summary.unresolved
		runTask.ResultsFileKey = getResultsFileKey(task)
	})
}
