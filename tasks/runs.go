package tasks

import (
	"context"

	"github.com/kirklandnuts/ontology-batch-query/redis"
	"github.com/kirklandnuts/ontology-batch-query/types"
)

const RunsDB redis.DB = 0

type TaskStatus string

const (
	TaskStatusSubmitted        TaskStatus = "submitted"
	TaskStatusStarted          TaskStatus = "started"
	TaskStatusFailed           TaskStatus = "failed"
	TaskStatusCompletedSuccess TaskStatus = "completed - success"
	TaskStatusCompletedFailure TaskStatus = "completed - failure"
	TaskStatusCanceled         TaskStatus = "canceled"
)

func (s TaskStatus) Complete() bool {
	return s == TaskStatusCompletedSuccess || s == TaskStatusCompletedFailure || s == TaskStatusCanceled
}

func (s TaskStatus) Submitted() bool {
	return s == TaskStatusSubmitted || s == TaskStatusStarted
}

// RunTask is the state of one queued batch run, stored under run:<id>.
type RunTask struct {
	RunID           string       `json:"run_id"`
	Status          TaskStatus   `json:"status"`
	UserCanceled    bool         `json:"user_canceled"`
	Attempts        int          `json:"attempts"`
	StartedAt       *string      `json:"started_at"`
	CompletedAt     *string      `json:"completed_at"`
	TermCount       int          `json:"term_count"`
	MatchCount      int          `json:"match_count"`
	UnresolvedTerms []types.Term `json:"unresolved_terms"`
	ResultsFileKey  string       `json:"results_file_key"`
	ErrorMessages   []string     `json:"error_messages"`
}

type RunTasks struct {
	client redis.Client
}

func (tasks RunTasks) Get(ctx context.Context, runID string) (*RunTask, error) {
	var task RunTask
	err := tasks.client.GetDocument(ctx, runKey(runID), &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks RunTasks) Create(ctx context.Context, task *RunTask) error {
	if task.Status == "" {
		task.Status = TaskStatusSubmitted
	}
	return tasks.client.SaveDoc(ctx, runKey(task.RunID), task)
}

func (tasks RunTasks) Update(ctx context.Context, runID string, updateFunc func(task *RunTask)) error {
	var task RunTask
	return tasks.client.UpdateDocument(ctx, runKey(runID), &task, func() {
		updateFunc(&task)
	})
}
