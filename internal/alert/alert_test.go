package alert

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer(t *testing.T) {
	buf := NewBuffer()
	_, ok := buf.Last()
	assert.False(t, ok)

	c := context.Background()
	buf.Emit(c, Success("added"))
	buf.Emit(c, Error("failed"))

	events := buf.Events()
	assert.Equal(t, []Event{
		{Kind: KindSuccess, Message: "added"},
		{Kind: KindError, Message: "failed"},
	}, events)

	last, ok := buf.Last()
	assert.True(t, ok)
	assert.Equal(t, KindError, last.Kind)

	events[0].Message = "mutated"
	assert.Equal(t, "added", buf.Events()[0].Message)
}

func TestBufferConcurrentEmit(t *testing.T) {
	buf := NewBuffer()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf.Emit(context.Background(), Info("tick"))
		}()
	}
	wg.Wait()
	assert.Len(t, buf.Events(), 50)
}
