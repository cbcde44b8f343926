package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeServer struct {
	name     string
	rec      *recorder
	startErr error
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.rec.add("start " + f.name)
	return nil
}

func (f *fakeServer) Stop(context.Context) error {
	f.rec.add("stop " + f.name)
	return nil
}

func TestManager_Order(t *testing.T) {
	rec := &recorder{}
	m := NewManager(&fakeServer{name: "a", rec: rec})
	m.AddServer(&fakeServer{name: "b", rec: rec})
	m.OnStop(func(context.Context) error { rec.add("close"); return nil })

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	assert.Error(t, m.Start(ctx))
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx))

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a", "close"}, rec.snapshot())
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	m := NewManager(
		&fakeServer{name: "a", rec: rec},
		&fakeServer{name: "b", rec: rec, startErr: errors.New("bind: address in use")},
	)

	err := m.Start(context.Background())
	assert.ErrorContains(t, err, "address in use")
	assert.Equal(t, []string{"start a", "stop a"}, rec.snapshot())
}

func TestManager_Run(t *testing.T) {
	rec := &recorder{}
	m := NewManager(&fakeServer{name: "a", rec: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Second) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"start a", "stop a"}, rec.snapshot())
}
