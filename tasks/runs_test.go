package tasks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskStatus(t *testing.T) {
	require.True(t, TaskStatusCompletedSuccess.Complete())
	require.True(t, TaskStatusCompletedFailure.Complete())
	require.True(t, TaskStatusCanceled.Complete())
	require.False(t, TaskStatusFailed.Complete())
	require.False(t, TaskStatusStarted.Complete())

	require.True(t, TaskStatusSubmitted.Submitted())
	require.True(t, TaskStatusStarted.Submitted())
	require.False(t, TaskStatusFailed.Submitted())
}

func TestKeys(t *testing.T) {
	require.Equal(t, "run:42", runKey("42"))

	key := apiKeyLockKey("a2580539-secret")
	require.True(t, strings.HasPrefix(key, "lock:bioportal:"))
	require.NotContains(t, key, "secret")
	require.Equal(t, key, apiKeyLockKey("a2580539-secret"))
}
