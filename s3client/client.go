package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/kirklandnuts/ontology-batch-query/logger"
	"github.com/rs/zerolog"
)

// Client moves term lists and reports in and out of one bucket.
type Client struct {
	sess       *session.Session
	bucketName string
	env        EnvironmentConfig
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	errLogger := clientLogger.With().Caller().Logger()
	env, err := readEnvironment(&errLogger)
	if err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{
		bucketName: env.BucketName,
		env:        env,
	}
	if err := client.acquireSession(); err != nil {
		return nil, err
	}
	return &client, nil
}

func (client *Client) Upload(ctx context.Context, data []byte, key string) (*s3manager.UploadOutput, error) {
	params := &s3manager.UploadInput{
		Bucket:      &client.bucketName,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	}
	fileLogger := client.fileLogger(clientLogger, key)
	uploader := s3manager.NewUploader(client.sess.Copy(&aws.Config{Logger: getLogger(client.fileLogger(sdkLogger, key))}))
	fileLogger.Debug().Int("bytes", len(data)).Msg("Uploading the file")
	output, err := uploader.UploadWithContext(ctx, params)
	if err != nil {
		fileLogger.Error().Err(err).Msg("Failed to upload file")
		return nil, err
	}
	return output, nil
}

func (client *Client) Download(ctx context.Context, key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: &client.bucketName,
		Key:    &key,
	}
	fileLogger := client.fileLogger(clientLogger, key)
	downloader := s3manager.NewDownloader(client.sess.Copy(&aws.Config{Logger: getLogger(client.fileLogger(sdkLogger, key))}))
	buf := aws.NewWriteAtBuffer([]byte{})

	fileLogger.Debug().Msg("Downloading file")
	size, err := downloader.DownloadWithContext(ctx, buf, params)
	if err != nil {
		fileLogger.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	fileLogger.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func (client *Client) Close() {
	clientLogger.Info().Msg("Closing client")
}

func (client *Client) fileLogger(base zerolog.Logger, key string) zerolog.Logger {
	return base.With().
		Str("key", key).
		Str("bucket", client.bucketName).Logger()
}

func (client *Client) createEC2Config() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.env.Region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

func (client *Client) createEnvConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(
		client.env.AccessKeyID,
		client.env.AccessKey,
		"")
	if _, err := creds.Get(); err != nil {
		return nil, fmt.Errorf("credentials from environment: %w", err)
	}
	cfg := aws.NewConfig().
		WithRegion(client.env.Region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)

	if len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

// acquireSession prefers the instance role and falls back to static
// credentials from the environment.
func (client *Client) acquireSession() error {
	sess, err := session.NewSession(client.createEC2Config())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			client.sess = sess
			clientLogger.Info().Msg("S3 session successfully initialized using EC2")
			return nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session using EC2, trying env credentials")
	envConfig, err := client.createEnvConfig()
	if err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	sess, err = session.NewSession(envConfig)
	if err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil && client.env.AwsEndpoint == "" {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return errors.New("could not initialize S3 session")
	}
	client.sess = sess
	clientLogger.Info().Msg("S3 session successfully initialized using env credentials")
	return nil
}

type EnvironmentConfig struct {
	BucketName  string `envconfig:"OBQ_STORAGE_CONTAINER_NAME" required:"true"`
	Region      string `envconfig:"OBQ_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"OBQ_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"OBQ_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"OBQ_AWS_ACCESS_KEY" default:""`
}

func readEnvironment(errLogger *zerolog.Logger) (EnvironmentConfig, error) {
	var config EnvironmentConfig
	err := envconfig.Process("", &config)
	if err != nil {
		errLogger.Err(err).Msg("Got error while processing environment")
		return config, err
	}
	return config, nil
}

type s3Logger struct {
	obqLogger zerolog.Logger
}

func getLogger(obqLogger zerolog.Logger) *s3Logger {
	return &s3Logger{
		obqLogger,
	}
}

func (logger *s3Logger) Log(v ...interface{}) {
	//nolint
	logger.obqLogger.Debug().Msg(fmt.Sprint(v...))
}
