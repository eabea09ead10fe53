package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(runner domain.JobRunner, maxAttempts int) *JobBridge {
	return NewJobBridge(JobBridgeDependencies{
		Runner:     runner,
		PollConfig: PollConfig{Interval: 0, MaxAttempts: maxAttempts},
		Wait:       instantWait,
	})
}

func TestJobBridge_Execute(t *testing.T) {
	tests := []struct {
		name             string
		triggerErrs      []error
		retrieveErrs     []error
		runs             []domain.JobRun
		maxAttempts      int
		expectedErr      error
		expectedOutput   map[string]any
		expectedTriggers int
		expectedPolls    int
		expectedMessage  string
	}{
		{
			name:             "completes after two polls",
			runs:             []domain.JobRun{executing(), completed(map[string]any{"result": "hi"})},
			maxAttempts:      60,
			expectedOutput:   map[string]any{"result": "hi"},
			expectedTriggers: 1,
			expectedPolls:    2,
		},
		{
			name:             "queued and unknown statuses keep polling",
			runs:             []domain.JobRun{{Status: domain.JobStatusQueued}, {Status: "WAITING_FOR_DEPLOY"}, completed(map[string]any{"imageUrl": "u"})},
			maxAttempts:      60,
			expectedOutput:   map[string]any{"imageUrl": "u"},
			expectedTriggers: 1,
			expectedPolls:    3,
		},
		{
			name:             "failed job carries provider message",
			runs:             []domain.JobRun{failedRun(domain.JobStatusFailed, "quota exceeded")},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobFailed,
			expectedTriggers: 1,
			expectedPolls:    1,
			expectedMessage:  "quota exceeded",
		},
		{
			name:             "crashed job is a failure",
			runs:             []domain.JobRun{executing(), failedRun(domain.JobStatusCrashed, "worker died")},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobFailed,
			expectedTriggers: 1,
			expectedPolls:    2,
			expectedMessage:  "worker died",
		},
		{
			name:             "canceled job is a failure",
			runs:             []domain.JobRun{failedRun(domain.JobStatusCanceled, "")},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobFailed,
			expectedTriggers: 1,
			expectedPolls:    1,
		},
		{
			name:             "job timed out on the runner is a failure not a poll timeout",
			runs:             []domain.JobRun{failedRun(domain.JobStatusTimedOut, "max duration exceeded")},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobFailed,
			expectedTriggers: 1,
			expectedPolls:    1,
			expectedMessage:  "max duration exceeded",
		},
		{
			name:             "executing beyond the budget times out",
			runs:             []domain.JobRun{executing()},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobTimeout,
			expectedTriggers: 1,
			expectedPolls:    60,
		},
		{
			name:             "trigger transport failure is retried once",
			triggerErrs:      []error{transportErr()},
			runs:             []domain.JobRun{completed(map[string]any{"result": "ok"})},
			maxAttempts:      60,
			expectedOutput:   map[string]any{"result": "ok"},
			expectedTriggers: 2,
			expectedPolls:    1,
		},
		{
			name:             "second trigger transport failure surfaces",
			triggerErrs:      []error{transportErr(), transportErr()},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobTransport,
			expectedTriggers: 2,
			expectedPolls:    0,
		},
		{
			name:             "rejected trigger is not retried",
			triggerErrs:      []error{errors.New("unknown task")},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobFailed,
			expectedTriggers: 1,
			expectedPolls:    0,
		},
		{
			name:             "poll transport failure is retried silently",
			retrieveErrs:     []error{transportErr()},
			runs:             []domain.JobRun{completed(map[string]any{"result": "ok"})},
			maxAttempts:      60,
			expectedOutput:   map[string]any{"result": "ok"},
			expectedTriggers: 1,
			expectedPolls:    2,
		},
		{
			name:             "repeated poll transport failure surfaces",
			retrieveErrs:     []error{transportErr(), transportErr()},
			runs:             []domain.JobRun{completed(map[string]any{"result": "ok"})},
			maxAttempts:      60,
			expectedErr:      domain.ErrJobTransport,
			expectedTriggers: 1,
			expectedPolls:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeJobRunner{
				triggerErrs:  tt.triggerErrs,
				retrieveErrs: tt.retrieveErrs,
				runs:         tt.runs,
			}

			var triggeredID string

			result, err := newTestBridge(runner, tt.maxAttempts).Execute(context.Background(), ExecuteJobParams{
				Kind:        domain.JobKindRunLLMTask,
				Payload:     map[string]any{"prompt": "hello"},
				OnTriggered: func(jobID string) { triggeredID = jobID },
			})

			triggers, polls := runner.calls()
			assert.Equal(t, tt.expectedTriggers, triggers, "trigger calls")
			assert.Equal(t, tt.expectedPolls, polls, "poll calls")

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)

				var jobErr *domain.JobError
				require.ErrorAs(t, err, &jobErr)
				assert.Contains(t, jobErr.Message, tt.expectedMessage)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedOutput, result.Output)
			assert.Equal(t, "run_test", result.JobID)
			assert.Equal(t, "run_test", triggeredID)
			assert.Equal(t, domain.JobKindRunLLMTask, runner.lastKind)
		})
	}
}

func TestJobBridge_TimeoutAfterBudget(t *testing.T) {
	runner := &fakeJobRunner{runs: []domain.JobRun{executing()}}

	result, err := newTestBridge(runner, 60).Execute(context.Background(), ExecuteJobParams{
		Kind:    domain.JobKindExtractVideoFrame,
		Payload: map[string]any{"videoUrl": "v", "timestamp": 1.0},
	})

	assert.ErrorIs(t, err, domain.ErrJobTimeout)
	assert.NotErrorIs(t, err, domain.ErrJobFailed)
	assert.Equal(t, 60, result.Attempts)

	_, polls := runner.calls()
	assert.Equal(t, 60, polls, "the 61st poll is never made")
}

func TestJobBridge_ContextCanceledDuringPoll(t *testing.T) {
	runner := &fakeJobRunner{runs: []domain.JobRun{executing()}}

	ctx, cancel := context.WithCancel(context.Background())

	polls := 0
	bridge := NewJobBridge(JobBridgeDependencies{
		Runner:     runner,
		PollConfig: DefaultPollConfig(),
		Wait: func(ctx context.Context, _ time.Duration) error {
			polls++
			if polls == 3 {
				cancel()
			}
			return ctx.Err()
		},
	})

	_, err := bridge.Execute(ctx, ExecuteJobParams{Kind: domain.JobKindRunLLMTask})
	assert.ErrorIs(t, err, context.Canceled)

	_, retrieves := runner.calls()
	assert.Equal(t, 2, retrieves)
}

func TestDefaultPollConfig(t *testing.T) {
	config := DefaultPollConfig()

	assert.Equal(t, time.Second, config.Interval)
	assert.Equal(t, 60, config.MaxAttempts)
}

func TestJobBridge_TriggerRetryReusesIdempotencyKey(t *testing.T) {
	runner := &fakeJobRunner{
		triggerErrs: []error{transportErr()},
		runs:        []domain.JobRun{completed(map[string]any{"result": "ok"})},
	}
	bridge := newTestBridge(runner, 10)

	_, err := bridge.Execute(context.Background(), ExecuteJobParams{Kind: domain.JobKindRunLLMTask})
	require.NoError(t, err)

	_, err = bridge.Execute(context.Background(), ExecuteJobParams{Kind: domain.JobKindRunLLMTask})
	require.NoError(t, err)

	require.Len(t, runner.triggerKeys, 3)
	assert.NotEmpty(t, runner.triggerKeys[0])
	assert.Equal(t, runner.triggerKeys[0], runner.triggerKeys[1], "retry reuses the key")
	assert.NotEqual(t, runner.triggerKeys[1], runner.triggerKeys[2], "each execution gets its own key")

	_, err = bridge.Execute(context.Background(), ExecuteJobParams{Kind: domain.JobKindRunLLMTask, IdempotencyKey: "click-1"})
	require.NoError(t, err)
	assert.Equal(t, "click-1", runner.triggerKeys[3])
}
