package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id    string
	title string
}

func (i item) Key() string { return i.id }

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

var pageMessages = Messages{
	Status:   "Failed to fetch dansal events",
	Fallback: "Error fetching dansal events",
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestControllerStartsIdleAndRendersLoading(t *testing.T) {
	c := New(func(ctx context.Context) ([]item, error) { return nil, nil })

	assert.Equal(t, StatusIdle, c.Snapshot().Status)
	assert.True(t, c.View().IsLoading())
}

func TestControllerLoadingUntilSettled(t *testing.T) {
	release := make(chan struct{})
	c := New(func(ctx context.Context) ([]item, error) {
		<-release
		return []item{{id: "a"}}, nil
	})
	c.Mount(context.Background())

	assert.True(t, c.Snapshot().Loading())
	assert.Equal(t, ViewLoading, c.View().Kind)

	close(release)
	s := c.Wait(waitCtx(t))
	assert.Equal(t, StatusSuccess, s.Status)
	assert.False(t, s.Loading())
}

func TestControllerPopulatedKeepsServerOrder(t *testing.T) {
	want := []item{{id: "n3", title: "c"}, {id: "n1", title: "a"}, {id: "n2", title: "b"}}
	c := New(func(ctx context.Context) ([]item, error) { return want, nil })
	c.Mount(context.Background())
	c.Wait(waitCtx(t))

	v := c.View()
	require.True(t, v.IsPopulated())
	require.Len(t, v.Rows, 3)
	for i, row := range v.Rows {
		assert.Equal(t, want[i].id, row.Key)
		assert.Equal(t, want[i], row.Item)
	}
}

func TestControllerEmptyIsDistinctFromPopulated(t *testing.T) {
	for name, result := range map[string][]item{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			c := New(func(ctx context.Context) ([]item, error) { return result, nil })
			c.Mount(context.Background())
			s := c.Wait(waitCtx(t))

			assert.Equal(t, StatusSuccess, s.Status)
			assert.NotNil(t, s.Items)
			v := c.View()
			assert.True(t, v.IsEmpty())
			assert.False(t, v.IsPopulated())
			assert.Empty(t, v.Message)
		})
	}
}

func TestControllerFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"status", fmt.Errorf("listing: %w", statusErr(500)), "Failed to fetch dansal events"},
		{"network", errors.New("connection refused"), "Error fetching dansal events"},
		{"decode", errors.New("invalid character '<'"), "Error fetching dansal events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(func(ctx context.Context) ([]item, error) { return nil, tt.err },
				WithMessages(pageMessages))
			c.Mount(context.Background())
			s := c.Wait(waitCtx(t))

			assert.Equal(t, StatusFailure, s.Status)
			assert.False(t, s.Loading())
			v := c.View()
			assert.True(t, v.IsError())
			assert.Equal(t, tt.want, v.Message)
			assert.Empty(t, v.Rows)
		})
	}
}

func TestControllerRecoversFromPanic(t *testing.T) {
	c := New(func(ctx context.Context) ([]item, error) { panic("boom") },
		WithMessages(pageMessages))
	c.Mount(context.Background())
	s := c.Wait(waitCtx(t))

	assert.Equal(t, StatusFailure, s.Status)
	assert.Equal(t, "Error fetching dansal events", s.Message)
}

func TestControllerTimeout(t *testing.T) {
	c := New(func(ctx context.Context) ([]item, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithTimeout(20*time.Millisecond), WithMessages(pageMessages))
	c.Mount(context.Background())
	s := c.Wait(waitCtx(t))

	assert.Equal(t, StatusFailure, s.Status)
	assert.Equal(t, "Error fetching dansal events", s.Message)
}

func TestControllerDisposeDropsLateResult(t *testing.T) {
	release := make(chan struct{})
	var sawCancel atomic.Bool
	c := New(func(ctx context.Context) ([]item, error) {
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return []item{{id: "late"}}, nil
	})
	c.Mount(context.Background())
	c.Dispose()
	close(release)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller never finished")
	}
	assert.True(t, sawCancel.Load(), "fetch context should be cancelled on dispose")
	assert.Equal(t, StatusLoading, c.Snapshot().Status)
	assert.Nil(t, c.Snapshot().Items)
}

func TestControllerMountIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		return []item{{id: "x"}}, nil
	})
	c.Mount(context.Background())
	c.Mount(context.Background())
	c.Wait(waitCtx(t))
	c.Mount(context.Background())

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, c.View().IsPopulated())
}

func TestControllerDisposedBeforeMountNeverFetches(t *testing.T) {
	var calls atomic.Int32
	c := New(func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		return nil, nil
	})
	c.Dispose()
	c.Mount(context.Background())

	assert.Equal(t, StatusIdle, c.Wait(waitCtx(t)).Status)
	assert.Zero(t, calls.Load())
}

func TestIndependentActivationsIssueOwnRequests(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]item, error) {
		calls.Add(1)
		return []item{{id: "a"}}, nil
	}
	for i := 0; i < 3; i++ {
		v := Load(waitCtx(t), fetch)
		assert.True(t, v.IsPopulated())
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoadReturnsLoadingWhenCallerGivesUp(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	v := Load(ctx, func(ctx context.Context) ([]item, error) {
		<-release
		return nil, nil
	})
	assert.True(t, v.IsLoading())
}

func TestDeriveKeysFallBackToIndex(t *testing.T) {
	v := Derive(State[item]{Status: StatusSuccess, Items: []item{{id: ""}, {id: "k"}}})
	require.Len(t, v.Rows, 2)
	assert.Equal(t, "0", v.Rows[0].Key)
	assert.Equal(t, "k", v.Rows[1].Key)

	plain := Derive(State[string]{Status: StatusSuccess, Items: []string{"a", "b"}})
	assert.Equal(t, "1", plain.Rows[1].Key)
}

func TestMessagesDescribeDefaults(t *testing.T) {
	assert.Equal(t, DefaultMessages.Status, DefaultMessages.Describe(statusErr(404)))
	assert.Equal(t, DefaultMessages.Fallback, DefaultMessages.Describe(errors.New("x")))
	assert.Equal(t, "raw", Messages{}.Describe(errors.New("raw")))
	assert.Equal(t, DefaultMessages.Fallback, Messages{}.Describe(nil))
}
