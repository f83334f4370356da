package events

import (
	"context"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCloseClosesEveryWriter(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, zap.NewNop())
	require.NoError(t, p.Close())

	// A closed writer rejects writes before dialing anything.
	msg := kafka.Message{Value: []byte("{}")}
	err := p.created.WriteMessages(context.Background(), msg)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	err = p.updated.WriteMessages(context.Background(), msg)
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
