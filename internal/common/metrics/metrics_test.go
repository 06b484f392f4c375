package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestJobTimer(t *testing.T) {
	const taskType = "metrics-test-task"

	timer := StartJob(taskType)
	assert.Equal(t, 1.0, testutil.ToFloat64(WorkerJobsActive.WithLabelValues(taskType)))
	timer.Completed()
	assert.Equal(t, 0.0, testutil.ToFloat64(WorkerJobsActive.WithLabelValues(taskType)))
	assert.Equal(t, 1.0, testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues(taskType)))

	StartJob(taskType).Failed("INVALID_JOB_INPUT")
	assert.Equal(t, 1.0, testutil.ToFloat64(WorkerJobsFailed.WithLabelValues(taskType, "INVALID_JOB_INPUT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(WorkerJobsActive.WithLabelValues(taskType)))
}

func TestSetQueueSizes(t *testing.T) {
	SetQueueSizes(map[string]int{"hot": 4, "follow_up": 2})
	assert.Equal(t, 4.0, testutil.ToFloat64(LeadQueueSize.WithLabelValues("hot")))
	assert.Equal(t, 2.0, testutil.ToFloat64(LeadQueueSize.WithLabelValues("follow_up")))

	SetQueueSizes(map[string]int{"hot": 0})
	assert.Equal(t, 0.0, testutil.ToFloat64(LeadQueueSize.WithLabelValues("hot")))
}
