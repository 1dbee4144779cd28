package dispose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispose_CloseRunsHandlersInReverse(t *testing.T) {
	d := NewDispose(context.Background(), "loop")

	var order []int
	d.AddCleanHandler(func() error { order = append(order, 1); return nil })
	d.AddCleanHandler(func() error { order = append(order, 2); return nil })

	result := d.Close()
	assert.True(t, result.ActualDisposal)
	assert.False(t, result.HasErrors())
	assert.Equal(t, []int{2, 1}, order)
	assert.True(t, d.IsClosed())
	assert.Error(t, d.Ctx().Err())

	// 重复关闭不再执行清理
	again := d.Close()
	assert.False(t, again.ActualDisposal)
	assert.Equal(t, []int{2, 1}, order)
}

func TestDispose_CollectsErrors(t *testing.T) {
	d := NewDispose(context.Background(), "channel")
	boom := errors.New("boom")
	d.AddCleanHandler(func() error { return boom })
	d.AddCleanHandler(func() error { return nil })

	result := d.Close()
	require.True(t, result.HasErrors())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "channel", result.Errors[0].ResourceName)
	assert.ErrorIs(t, result.Errors[0], boom)
	assert.Contains(t, result.Error(), "1 errors")

	assert.Len(t, d.Close().Errors, 1)
}

func TestDispose_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager("session-loop", parent)

	var mu sync.Mutex
	cleaned := false
	m.AddCleanHandler(func() error {
		mu.Lock()
		cleaned = true
		mu.Unlock()
		return nil
	})

	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("cleanup not triggered by parent cancel")
	}
	mu.Lock()
	assert.True(t, cleaned)
	mu.Unlock()
	assert.True(t, m.IsClosed())
	assert.Equal(t, "session-loop", m.Name())
}

func TestDispose_AddAfterClose(t *testing.T) {
	s := NewService("host", context.Background())
	s.Close()

	called := false
	s.AddCleanHandler(func() error { called = true; return nil })
	assert.True(t, called)
}

func TestDispose_ZeroValue(t *testing.T) {
	var d Dispose
	assert.NotNil(t, d.Ctx())
	result := d.Close()
	assert.True(t, result.ActualDisposal)
	<-d.Done()
}
