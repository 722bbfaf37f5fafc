package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fortec-chat-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommitter struct {
	committed []kafka.Message
}

func (c *recordingCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.committed = append(c.committed, msgs...)
	return nil
}

type handlerFunc func(ctx context.Context, event tasks.UsageEvent) error

func (f handlerFunc) Apply(ctx context.Context, event tasks.UsageEvent) error { return f(ctx, event) }

func TestHandleMessageAppliesAndCommits(t *testing.T) {
	event := tasks.UsageEvent{EventID: "e1", Kind: tasks.UsageKindSearch, Email: "ada@example.com", Query: "go", Succeeded: true}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var got tasks.UsageEvent
	c := &recordingCommitter{}
	handleMessage(context.Background(), c, kafka.Message{Value: payload}, handlerFunc(func(_ context.Context, e tasks.UsageEvent) error {
		got = e
		return nil
	}), nil)

	assert.Equal(t, "go", got.Query)
	assert.Len(t, c.committed, 1)
}

func TestHandleMessageCommitsMalformed(t *testing.T) {
	called := false
	c := &recordingCommitter{}
	handleMessage(context.Background(), c, kafka.Message{Value: []byte("{")}, handlerFunc(func(context.Context, tasks.UsageEvent) error {
		called = true
		return nil
	}), nil)

	assert.False(t, called)
	assert.Len(t, c.committed, 1)
}

func TestHandleMessageFailureWithoutRedisCommits(t *testing.T) {
	payload, _ := json.Marshal(tasks.UsageEvent{EventID: "e2", Kind: tasks.UsageKindChat})
	c := &recordingCommitter{}
	handleMessage(context.Background(), c, kafka.Message{Value: payload}, handlerFunc(func(context.Context, tasks.UsageEvent) error {
		return errors.New("db down")
	}), nil)

	assert.Len(t, c.committed, 1)
}

func TestBrokerList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokerList(" a:9092, ,b:9092 "))
}
