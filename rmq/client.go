package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/kirklandnuts/ontology-batch-query/logger"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Config struct {
	Host     string `envconfig:"OBQ_RMQ_HOST" required:"true"`
	Port     string `envconfig:"OBQ_RMQ_PORT" required:"true"`
	Username string `envconfig:"OBQ_RMQ_USERNAME" required:"true"`
	Password string `envconfig:"OBQ_RMQ_PASSWORD" required:"true"`
	Exchange string `envconfig:"OBQ_RMQ_DEFAULT_EXCHANGE" default:"ontology-batch-query-exchange"`
	// One batch at a time keeps a single outstanding BioPortal request per worker.
	Prefetch     int    `envconfig:"OBQ_RMQ_PREFETCH" default:"1"`
	BatchQueue   string `envconfig:"OBQ_BATCH_TASK_QUEUE" required:"true"`
	ResultsQueue string `envconfig:"OBQ_BATCH_RESULTS_QUEUE" required:"true"`
}

type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	obqLogger      *zerolog.Logger
}

func NewClient() (*Client, error) {
	obqLogger := logger.NewLogger("RMQ client")
	var err error
	var config Config
	if err = envconfig.Process("", &config); err != nil {
		obqLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := getURL(config)
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("failed connection: %w", err)
	}

	q, err := reqChannel.QueueDeclarePassive(
		config.BatchQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return nil, err
	}
	if err := reqChannel.QueueBind(
		config.BatchQueue,
		config.BatchQueue,
		config.Exchange,
		false,
		nil); err != nil {
		return nil, err
	}
	if err := reqChannel.Qos(config.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}

	deliveries, err := reqChannel.Consume(
		q.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %w", err)
	}
	reqChanErrors := reqChannel.NotifyClose(make(chan *amqp.Error))
	respChanErrors := respChannel.NotifyClose(make(chan *amqp.Error))

	obqLogger.Info().Str("queue", q.Name).Msg("Consuming batch requests")
	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChanErrors,
		RespChanErrors: respChanErrors,
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		obqLogger:      &obqLogger,
	}, nil
}

func (c *Client) PublishResult(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.ResultsQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
