package accounts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Cognio-so/agt-tester/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{Writer: w}

	u := model.NewUser("Ada", "ada@example.com")
	u.Key = "u1"
	require.NoError(t, p.Publish(context.Background(), EventSignedUp, u))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("u1"), w.msgs[0].Key)

	var ev AccountEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, EventSignedUp, ev.EventType)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "ada@example.com", ev.Email)
	assert.Equal(t, "user", ev.Role)
	assert.Equal(t, "v1", ev.SchemaVersion)
	assert.NotEmpty(t, ev.EventID)
	assert.False(t, ev.EventTime.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), EventDeleted, &model.User{}))
}
