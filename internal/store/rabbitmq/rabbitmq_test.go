package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuesFor_Topology(t *testing.T) {
	q := QueuesFor("generation_jobs")
	assert.Equal(t, "generation_jobs.retry", q.Retry)
	assert.Equal(t, "generation_jobs.dlq", q.DLQ)

	args := q.args()
	assert.Nil(t, args[q.DLQ])
	assert.Equal(t, q.Main, args[q.Retry]["x-dead-letter-routing-key"])
	assert.Equal(t, q.DLQ, args[q.Main]["x-dead-letter-routing-key"])
}

func TestDecodeJob(t *testing.T) {
	m, err := DecodeJob([]byte(`{"job_id":"j1","request_id":"r1","retries":2}`))
	require.NoError(t, err)
	assert.Equal(t, JobMessage{JobID: "j1", RequestID: "r1", Retries: 2}, m)

	_, err = DecodeJob([]byte(`{"request_id":"r1"}`))
	assert.Error(t, err)

	_, err = DecodeJob([]byte(`not json`))
	assert.Error(t, err)
}
