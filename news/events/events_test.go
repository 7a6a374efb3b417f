package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	p := New(Config{Brokers: []string{" ", ""}})
	require.IsType(t, Nop{}, p)
	require.NoError(t, p.Publish(context.Background(), Delivery{}))
	require.NoError(t, p.Close())
}

func TestKafkaPublishEncodesDelivery(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafka(w, 0)
	sent := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), Delivery{
		UserID: "u-1", Kind: "topic", Descriptor: "tech_US", Entries: 3, Format: "pdf", SentAt: sent,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	require.Equal(t, "u-1", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	require.Equal(t, "topic", got["kind"])
	require.Equal(t, "tech_US", got["descriptor"])
	require.EqualValues(t, 3, got["entries"])
	require.Equal(t, "2024-05-01T12:00:00Z", got["sent_at"])

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestKafkaPublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafka(&fakeWriter{err: boom}, time.Second)
	err := p.Publish(context.Background(), Delivery{UserID: "u", Kind: "top"})
	require.ErrorIs(t, err, boom)
}
