package openai

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/callcentre/model"
	"github.com/stretchr/testify/assert"
)

func TestSendPartialDeliversToConsumer(t *testing.T) {
	out := make(chan model.Response, 1)

	ok := sendPartial(context.Background(), out, "chunk")

	assert.True(t, ok)
	resp := <-out
	assert.True(t, resp.Partial)
	assert.Equal(t, "chunk", resp.Text)
}

func TestSendPartialReturnsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan model.Response) // nobody reading

	done := make(chan bool, 1)
	go func() { done <- sendPartial(ctx, out, "chunk") }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send blocked on an abandoned consumer")
	}
}
