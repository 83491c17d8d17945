package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ni30kp/lula-Task/internal/model"
)

type fakeEnqueueStore struct {
	created bool
	err     error
	calls   int
}

func (f *fakeEnqueueStore) CreateOrResetSummary(ctx context.Context, issueID string, maxRetries int) (bool, error) {
	f.calls++
	return f.created, f.err
}

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishSummarizeJob(ctx context.Context, job *model.SummarizeJob) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job.IssueID)
	return nil
}

func TestOnConversationClosedPublishesNewJob(t *testing.T) {
	store := &fakeEnqueueStore{created: true}
	pub := &fakePublisher{}
	e := NewEnqueuer(store, pub, 3, jobsLogger(t))

	scheduled, err := e.OnConversationClosed(context.Background(), "i1")
	require.NoError(t, err)
	assert.True(t, scheduled)
	assert.Equal(t, []string{"i1"}, pub.published)
}

func TestOnConversationClosedCoalesces(t *testing.T) {
	// In-flight or completed summary: no second job.
	store := &fakeEnqueueStore{created: false}
	pub := &fakePublisher{}
	e := NewEnqueuer(store, pub, 3, jobsLogger(t))

	scheduled, err := e.OnConversationClosed(context.Background(), "i1")
	require.NoError(t, err)
	assert.False(t, scheduled)
	assert.Empty(t, pub.published)
}

func TestOnConversationClosedStoreError(t *testing.T) {
	store := &fakeEnqueueStore{err: errors.New("db down")}
	e := NewEnqueuer(store, &fakePublisher{}, 3, jobsLogger(t))

	_, err := e.OnConversationClosed(context.Background(), "i1")
	assert.Error(t, err)
}

func TestOnConversationClosedPublishError(t *testing.T) {
	store := &fakeEnqueueStore{created: true}
	e := NewEnqueuer(store, &fakePublisher{err: errors.New("nats down")}, 3, jobsLogger(t))

	scheduled, err := e.OnConversationClosed(context.Background(), "i1")
	assert.Error(t, err)
	assert.False(t, scheduled)
}
