package worker

import (
	"path"
	"strings"
	"time"

	"github.com/kirklandnuts/ontology-batch-query/types"
)

func getResultsFileKey(task *Task) string {
	if task.message.OutputKey != "" {
		return task.message.OutputKey
	}
	input := path.Base(task.message.InputKey)
	return path.Join(
		"reports",
		task.message.RunID,
		strings.TrimSuffix(input, path.Ext(input))+"_resolved.csv",
	)
}

func getMatchLimit(message *Message) int {
	if message.Limit <= 0 {
		return types.DefaultMatchLimit
	}
	return message.Limit
}

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func getFormattedNow() *string {
	now := time.Now().UTC().Format(RFC3339Micro)
	return &now
}
