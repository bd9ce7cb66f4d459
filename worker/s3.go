package worker

import (
	"context"

	"github.com/kirklandnuts/ontology-batch-query/s3client"
)

type s3Transactions interface {
	saveReport(ctx context.Context, task *Task, report []byte) error
	getTermList(ctx context.Context, task *Task) ([]byte, error)
	close()
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.s3Client.Close()
}

func (wrapper *s3ClientWrapper) saveReport(ctx context.Context, task *Task, report []byte) error {
	_, err := wrapper.s3Client.Upload(ctx, report, getResultsFileKey(task))
	return err
}

func (wrapper *s3ClientWrapper) getTermList(ctx context.Context, task *Task) ([]byte, error) {
	return wrapper.s3Client.Download(ctx, task.message.InputKey)
}
