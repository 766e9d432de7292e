package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	Indicator  string `json:"indicator"`
	AdminLevel int    `json:"admin_level"`
}

func TestDecode(t *testing.T) {
	got, err := Decode[task](json.RawMessage(`{"indicator":"s_p","admin_level":0}`))
	require.NoError(t, err)
	assert.Equal(t, "s_p", got.Indicator)
	assert.Equal(t, 0, got.AdminLevel)

	_, err = Decode[task](nil)
	assert.Error(t, err)

	_, err = Decode[task](json.RawMessage(`[`))
	assert.Error(t, err)
}

type nopJob struct{ typ string }

func (j nopJob) Type() string                                  { return j.typ }
func (j nopJob) Handle(context.Context, json.RawMessage) error { return nil }

func TestEnqueueRequiresStart(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	q := NewRedisQueue(nil, Config{}, client, WithKeyPrefix("test:queue"))
	q.RegisterJob(nopJob{typ: "a"})
	q.RegisterJob(nopJob{typ: "a"})

	_, err := q.Enqueue(context.Background(), "a", task{Indicator: "s_p"})
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Len(t, q.jobs, 1)
	assert.Equal(t, "test:queue:messages", q.queueKey())
	assert.Equal(t, "test:queue:retry", q.retryKey())
	assert.Equal(t, "test:queue:dlq", q.deadLetterKey())

	// Stop on a queue that never started is a no-op.
	assert.NoError(t, q.Stop(context.Background()))
}
