package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/kirklandnuts/ontology-batch-query/logger"
	"github.com/kirklandnuts/ontology-batch-query/rmq"
	"github.com/kirklandnuts/ontology-batch-query/s3client"
	"github.com/kirklandnuts/ontology-batch-query/tasks"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Config struct {
	TaskMaxRetries int           `envconfig:"OBQ_RUN_MAX_RETRIES" default:"3"`
	APIKey         string        `envconfig:"BIOPORTAL_API_KEY" required:"true"`
	RunLockTTL     time.Duration `envconfig:"OBQ_RUN_LOCK_TTL" default:"30m"`
}

type batchResolver interface {
	ResolveBatch(ctx context.Context, terms []types.Term, scope types.OntologyScope, limit int) (types.ResultSet, error)
}

type Worker struct {
	config    Config
	redis     redisTransactions
	s3        s3Transactions
	rmq       rmqTransactions
	obqLogger *zerolog.Logger
	batch     batchResolver
}

func New(batch batchResolver) (*Worker, error) {
	obqLogger := logger.NewLogger("Worker")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		obqLogger.Error().Err(err).Msg("Could not read config")
		return nil, err
	}

	worker := Worker{
		config:    config,
		obqLogger: &obqLogger,
		batch:     batch,
	}
	for _, connect := range []struct {
		name string
		fn   func() error
	}{
		{"batch queue", worker.connectQueue},
		{"report storage", worker.connectStorage},
		{"run store", worker.connectRunStore},
	} {
		if err := connect.fn(); err != nil {
			obqLogger.Error().Err(err).Str("backend", connect.name).Msg("Could not connect")
			return nil, err
		}
	}
	return &worker, nil
}

// StartWorker runs queued batches one at a time until the queue connection
// is lost and cannot be re-established.
func (worker *Worker) StartWorker() error {
	defer worker.Close()
	for {
		select {
		case delivery, ok := <-worker.rmq.getDeliveriesCh():
			if ok {
				worker.processMessage(&delivery)
				continue
			}
			if err := worker.reconnectQueue("batch request channel closed", nil); err != nil {
				return err
			}
		case rmqErr := <-worker.rmq.getRespChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			if err := worker.reconnectQueue("results channel closed", rmqErr); err != nil {
				return err
			}
		case rmqErr := <-worker.rmq.getReqChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			if err := worker.reconnectQueue("batch request channel closed", rmqErr); err != nil {
				return err
			}
		}
	}
}

func (worker *Worker) Close() {
	worker.redis.close()
	worker.s3.close()
	worker.rmq.close()
}

func (worker *Worker) reconnectQueue(reason string, cause *amqp.Error) error {
	event := worker.obqLogger.Warn().Str("reason", reason)
	if cause != nil {
		event = event.Err(cause)
	}
	event.Msg("Reconnecting to the batch queue")
	if err := worker.connectQueue(); err != nil {
		return fmt.Errorf("%s and reconnecting failed: %w", reason, err)
	}
	return nil
}

func (worker *Worker) connectRunStore() error {
	if previous := worker.redis; previous != nil {
		defer previous.close()
	}
	tasksClient, err := tasks.NewClient()
	if err != nil {
		return fmt.Errorf("run store: %w", err)
	}
	worker.redis = &redisClientWrapper{&tasksClient}
	worker.obqLogger.Info().Msg("Connected to run store")
	return nil
}

func (worker *Worker) connectQueue() error {
	if previous := worker.rmq; previous != nil {
		defer previous.close()
	}
	rmqClient, err := rmq.NewClient()
	if err != nil {
		return fmt.Errorf("batch queue: %w", err)
	}
	worker.rmq = &rmqClientWrapper{rmqClient}
	worker.obqLogger.Info().Msg("Connected to batch queue")
	return nil
}

func (worker *Worker) connectStorage() error {
	if previous := worker.s3; previous != nil {
		defer previous.close()
	}
	s3Client, err := s3client.New()
	if err != nil {
		return fmt.Errorf("report storage: %w", err)
	}
	worker.s3 = &s3ClientWrapper{s3Client}
	worker.obqLogger.Info().Msg("Connected to report storage")
	return nil
}
