package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirklandnuts/ontology-batch-query/report"
	"github.com/kirklandnuts/ontology-batch-query/tasks"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/kirklandnuts/ontology-batch-query/utils"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// Message requests one batch run. The term list lives in S3 under InputKey.
type Message struct {
	RunID       string   `json:"run_id"`
	InputKey    string   `json:"input_key"`
	OutputKey   string   `json:"output_key,omitempty"`
	Scope       []string `json:"scope,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	OmitParents bool     `json:"omit_parents,omitempty"`
	Sender      string   `json:"sender,omitempty"`
	Status      string   `json:"status,omitempty"`
}

type Task struct {
	delivery  *amqp.Delivery
	runTask   *tasks.RunTask
	message   *Message
	outcome   tasks.TaskStatus
	obqLogger *zerolog.Logger
}

type runSummary struct {
	termCount  int
	matchCount int
	unresolved []types.Term
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.obqLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.obqLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("body", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.publishResult(task, *task.message); err != nil {
		task.obqLogger.Err(err).Msg("Got error while publishing run result")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.obqLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.obqLogger.Info().Str("status", string(task.outcome)).Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	if message.RunID == "" || message.InputKey == "" {
		return nil, errors.New("message needs both run_id and input_key")
	}
	runTask, err := worker.redis.getRunTask(context.Background(), message.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run task for message, got error %w", err)
	}
	taskLogger := worker.obqLogger.With().Str("run_id", message.RunID).Logger()
	task := Task{
		delivery:  delivery,
		runTask:   runTask,
		message:   &message,
		obqLogger: &taskLogger,
	}
	return &task, nil
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.obqLogger.Err(err).
			Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onTaskStarted(task); err != nil {
		task.obqLogger.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update RunTask: %w", err)
	}
	summary, err := worker.runBatch(task)
	if err != nil {
		task.obqLogger.Err(err).Msg("Got error while resolving batch")
		task.outcome = tasks.TaskStatusFailed
		task.message.Status = string(task.outcome)
		if err = worker.redis.onTaskFailedWithError(task, err); err != nil {
			return err
		}
		return nil
	}
	task.obqLogger.Info().Msg("Saved report, marking task as complete")
	if err = worker.redis.onTaskComplete(task, summary); err != nil {
		task.obqLogger.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	task.outcome = tasks.TaskStatusCompletedSuccess
	task.message.Status = string(task.outcome)
	return nil
}

func (worker *Worker) runBatch(task *Task) (summary runSummary, err error) {
	defer utils.RecoverWithError(&err)
	ctx := context.Background()
	task.obqLogger.Info().Msgf("Processing batch request from RMQ, attempt # %d", task.runTask.Attempts+1)

	releaseLock, err := worker.redis.lockAPIKey(ctx, worker.config.APIKey, worker.config.RunLockTTL)
	if err != nil {
		return summary, fmt.Errorf("failed to lock API key: %w", err)
	}
	defer func() {
		if releaseErr := releaseLock(); releaseErr != nil {
			task.obqLogger.Err(releaseErr).Msg("Failed to release API key lock")
		}
	}()

	data, err := worker.s3.getTermList(ctx, task)
	if err != nil {
		task.obqLogger.Err(err).Caller().Msg("Could not fetch term list from s3")
		return summary, fmt.Errorf("failed fetch term list from s3: %w", err)
	}
	terms, err := utils.ReadTerms(bytes.NewReader(data))
	if err != nil {
		return summary, fmt.Errorf("failed to read term list: %w", err)
	}

	scope := types.ParseScope(task.message.Scope...)
	results, err := worker.batch.ResolveBatch(ctx, terms, scope, getMatchLimit(task.message))
	if err != nil {
		return summary, err
	}

	var buf bytes.Buffer
	if err = report.WriteCSV(&buf, results, report.Options{OmitParents: task.message.OmitParents}); err != nil {
		return summary, fmt.Errorf("failed to render report: %w", err)
	}
	task.obqLogger.Info().Msg("Finished batch, saving report to s3")
	if err = worker.s3.saveReport(ctx, task, buf.Bytes()); err != nil {
		task.obqLogger.Err(err).Msg("Got error while trying to save report")
		return summary, err
	}
	return runSummary{
		termCount:  len(terms),
		matchCount: results.MatchCount(),
		unresolved: results.Unresolved(),
	}, nil
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	runTask := task.runTask
	taskLogger := task.obqLogger

	if runTask.Status.Complete() {
		taskLogger.Info().Msg("Run is already done. (might indicate issue acking message with RMQ). Publishing result again.")
		task.outcome = runTask.Status
		task.message.Status = string(runTask.Status)
		return false, nil
	}
	if runTask.UserCanceled {
		taskLogger.Info().Msg("Run was canceled, no need to perform it.")
		task.outcome = tasks.TaskStatusCanceled
		task.message.Status = string(task.outcome)
		return false, worker.redis.onTaskCancelled(task)
	}
	if runTask.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Run has exceeded retries.")
		task.outcome = tasks.TaskStatusCompletedFailure
		task.message.Status = string(task.outcome)
		return false, worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxRetries)
	}
	return true, nil
}
