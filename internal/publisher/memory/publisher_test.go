package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "jobs", map[string]string{"job_id": "job-1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	_, err = p.Publish(context.Background(), "jobs", "second")
	require.NoError(t, err)

	messages := p.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "jobs", messages[0].Topic)
	require.Equal(t, "second", messages[1].Payload)
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "jobs", "payload")
	require.NoError(t, err)

	first := p.Messages()
	first[0].Topic = "mutated"

	second := p.Messages()
	require.Equal(t, "jobs", second[0].Topic)
}
