package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palletwatch/internal/notify"
)

func TestSender_Records(t *testing.T) {
	var s Sender
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, notify.Message{To: []string{"a@example.com"}, Subject: "one"}))
	require.NoError(t, s.Send(ctx, notify.Message{To: []string{"b@example.com"}, Subject: "two"}))

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "one", sent[0].Subject)
	assert.Equal(t, "two", sent[1].Subject)

	s.Reset()
	assert.Empty(t, s.Sent())
}

func TestSender_Err(t *testing.T) {
	boom := errors.New("smtp down")
	s := Sender{Err: boom}

	err := s.Send(context.Background(), notify.Message{Subject: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Sent())
}

func TestSender_ImplementsSender(t *testing.T) {
	var _ notify.Sender = &Sender{}
}
