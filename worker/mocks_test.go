package worker

import (
	"context"
	"errors"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/redis"
	"github.com/kirklandnuts/ontology-batch-query/tasks"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type batchMock struct {
	config batchMockConfig
	calls  batchCall
	scope  types.OntologyScope
	limit  int
	terms  []types.Term
}

type batchMockConfig struct {
	fail    bool
	results types.ResultSet
}

type batchCall struct {
	resolveBatch bool
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
	task   *tasks.RunTask
	sum    runSummary
}

type redisMockConfig struct {
	getRunTask            withValue
	lockAPIKey            failingMethod
	onTaskCancelled       failingMethod
	onTaskStarted         failingMethod
	onTaskExceededRetries failingMethod
	onTaskFailedWithError failingMethod
	onTaskComplete        failingMethod
}

type redisMockCalls struct {
	getRunTask            bool
	lockAPIKey            bool
	releaseLock           bool
	onTaskCancelled       bool
	onTaskStarted         bool
	onTaskExceededRetries bool
	onTaskFailedWithError bool
	onTaskComplete        bool
}

type rmqMock struct {
	config     rmqMockConfig
	calls      rmqMockCalls
	published  []Message
	deliveries chan amqp.Delivery
	closed     bool
}

type rmqMockConfig struct {
	publishResult       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	publishResult       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
	report []byte
}

type s3MockConfig struct {
	getTermList withValue
	saveReport  failingMethod
}

type s3MockCalls struct {
	getTermList bool
	saveReport  bool
}

func (mock *s3Mock) close() {}

func (mock *rmqMock) close() {
	mock.closed = true
}

func (mock *redisMock) close() {}

func (mock *batchMock) ResolveBatch(
	ctx context.Context, terms []types.Term, scope types.OntologyScope, limit int,
) (types.ResultSet, error) {
	mock.calls.resolveBatch = true
	mock.terms = terms
	mock.scope = scope
	mock.limit = limit
	if mock.config.fail {
		return nil, errors.New("search request failed")
	}
	return mock.config.results, nil
}

func (mock *redisMock) getRunTask(ctx context.Context, runID string) (*tasks.RunTask, error) {
	mock.calls.getRunTask = true
	if mock.config.getRunTask.fail {
		return nil, errors.New("failed to get run task")
	}
	switch mock.config.getRunTask.returnedValue.(type) {
	case tasks.RunTask:
		task := mock.config.getRunTask.returnedValue.(tasks.RunTask)
		mock.task = &task
	default:
		mock.task = &tasks.RunTask{RunID: runID, Status: tasks.TaskStatusSubmitted}
	}
	return mock.task, nil
}

func (mock *redisMock) lockAPIKey(ctx context.Context, apiKey string, ttl time.Duration) (redis.ReleaseLock, error) {
	mock.calls.lockAPIKey = true
	if mock.config.lockAPIKey.fail {
		return nil, errors.New("failed to obtain lock")
	}
	return func() error {
		mock.calls.releaseLock = true
		return nil
	}, nil
}

func (mock *redisMock) onTaskStarted(task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update run task on start")
	}
	return nil
}

func (mock *redisMock) onTaskCancelled(task *Task, errorMessages ...string) error {
	mock.calls.onTaskCancelled = true
	if mock.config.onTaskCancelled.fail {
		return errors.New("failed to update run task on cancel")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(task *Task, maxRetries int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update run task on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(task *Task, err error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update run task on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskComplete(task *Task, summary runSummary) error {
	mock.calls.onTaskComplete = true
	mock.sum = summary
	if mock.config.onTaskComplete.fail {
		return errors.New("failed to update run task on complete")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, obqLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return mock.deliveries
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) publishResult(task *Task, message Message) error {
	mock.calls.publishResult = true
	mock.published = append(mock.published, message)
	if mock.config.publishResult.fail {
		return errors.New("failed to publish result")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getTermList(ctx context.Context, task *Task) ([]byte, error) {
	mock.calls.getTermList = true
	if mock.config.getTermList.fail {
		return nil, errors.New("mock: failed to load from s3")
	}
	switch mock.config.getTermList.returnedValue.(type) {
	case []byte:
		return mock.config.getTermList.returnedValue.([]byte), nil
	default:
		return []byte("eye\nheart\n"), nil
	}
}

func (mock *s3Mock) saveReport(ctx context.Context, task *Task, report []byte) error {
	mock.calls.saveReport = true
	mock.report = report
	if mock.config.saveReport.fail {
		return errors.New("failed to upload report")
	}
	return nil
}
