package netcheck

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := NewStatic(true)
	assert.True(t, s.Available())
	s.Set(false)
	assert.False(t, s.Available())
}

func TestFuncAndAny(t *testing.T) {
	up := Func(func() bool { return true })
	down := Func(func() bool { return false })

	assert.True(t, Any{down, up}.Available())
	assert.False(t, Any{down, nil}.Available())
	assert.False(t, Any{}.Available())
}

func TestAvailable_Nil(t *testing.T) {
	assert.False(t, Available(nil))
	assert.True(t, Available(NewStatic(true)))
}

func TestInterfaces_ListError(t *testing.T) {
	c := &Interfaces{list: func() ([]net.Interface, error) { return nil, errors.New("boom") }}
	assert.False(t, c.Available())
}

func TestInterfaces_LoopbackOnly(t *testing.T) {
	c := &Interfaces{list: func() ([]net.Interface, error) {
		return []net.Interface{
			{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
			{Index: 2, Name: "down0", Flags: 0},
		}, nil
	}}
	assert.False(t, c.Available())
}

func TestProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	p := &Probe{Address: ln.Addr().String(), Timeout: time.Second}
	assert.True(t, p.Available())

	addr := ln.Addr().String()
	ln.Close()
	p = &Probe{Address: addr, Timeout: 200 * time.Millisecond}
	assert.False(t, p.Available())
}
