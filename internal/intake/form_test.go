package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func fill(t *testing.T, f *Form, title, description, priority string) {
	t.Helper()
	require.NoError(t, f.SetTitle(title))
	require.NoError(t, f.SetDescription(description))
	require.NoError(t, f.SetPriority(priority))
}

func TestBlankFieldsNeverInvokeCallback(t *testing.T) {
	cases := []struct {
		name, title, description string
	}{
		{"blank title", "  ", "valid text"},
		{"blank description", "Printer broken", "\t\n"},
		{"both empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var slept bool
			f := NewForm(withSleep(func(time.Duration) { slept = true }))
			fill(t, f, tc.title, tc.description, "high")

			assert.False(t, f.CanSubmit())
			called := false
			err := f.Submit(context.Background(), func(context.Context, domain.CreateTicketData) error {
				called = true
				return nil
			})
			assert.ErrorIs(t, err, ErrIncomplete)
			assert.False(t, called)
			assert.False(t, slept)
			assert.False(t, f.Busy())
			assert.Equal(t, domain.CreateTicketData{Title: tc.title, Description: tc.description, Priority: domain.TicketPriorityHigh}, f.Fields())
		})
	}
}

func TestValidSubmitPassesExactDataAndResets(t *testing.T) {
	var delays []time.Duration
	f := NewForm(WithDelay(time.Second), withSleep(func(d time.Duration) { delays = append(delays, d) }))
	fill(t, f, "Printer broken", "The printer on floor 2 is down", "high")
	require.True(t, f.CanSubmit())

	var got []domain.CreateTicketData
	err := f.Submit(context.Background(), func(_ context.Context, data domain.CreateTicketData) error {
		assert.True(t, f.Busy(), "busy while the callback runs")
		assert.False(t, f.CanSubmit())
		got = append(got, data)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, domain.CreateTicketData{
		Title:       "Printer broken",
		Description: "The printer on floor 2 is down",
		Priority:    domain.TicketPriorityHigh,
	}, got[0])
	assert.Equal(t, []time.Duration{time.Second}, delays)
	assert.False(t, f.Busy())
	assert.Equal(t, domain.CreateTicketData{Title: "", Description: "", Priority: domain.TicketPriorityMedium}, f.Fields())
}

func TestPriorityDefaultsToMedium(t *testing.T) {
	f := NewForm(WithDelay(0))
	require.NoError(t, f.SetTitle("VPN"))
	require.NoError(t, f.SetDescription("não conecta"))

	var got domain.CreateTicketData
	require.NoError(t, f.Submit(context.Background(), func(_ context.Context, data domain.CreateTicketData) error {
		got = data
		return nil
	}))
	assert.Equal(t, domain.TicketPriorityMedium, got.Priority)

	assert.ErrorIs(t, f.SetPriority("urgent"), domain.ErrInvalidPriority)
	assert.Equal(t, domain.TicketPriorityMedium, f.Fields().Priority)
}

func TestCloseWhileBusyIsIgnored(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	closed := 0
	f := NewForm(WithDelay(time.Millisecond), WithOnClose(func() { closed++ }), withSleep(func(time.Duration) {
		close(entered)
		<-release
	}))
	fill(t, f, "Printer broken", "down", "low")

	var (
		wg  sync.WaitGroup
		got domain.CreateTicketData
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = f.Submit(context.Background(), func(_ context.Context, data domain.CreateTicketData) error {
			got = data
			return nil
		})
	}()

	<-entered
	assert.True(t, f.Busy())
	assert.False(t, f.Close())
	assert.ErrorIs(t, f.SetTitle("changed"), ErrBusy)
	assert.ErrorIs(t, f.Submit(context.Background(), func(context.Context, domain.CreateTicketData) error { return nil }), ErrBusy)
	assert.Equal(t, "Printer broken", f.Fields().Title, "in-flight fields untouched")
	assert.Zero(t, closed)

	close(release)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, "Printer broken", got.Title)
	assert.Equal(t, domain.TicketPriorityLow, got.Priority)
}

func TestCloseWhileIdleResetsAndSignals(t *testing.T) {
	closed := 0
	f := NewForm(WithOnClose(func() { closed++ }))
	fill(t, f, "x", "y", "high")

	assert.True(t, f.Close())
	assert.Equal(t, 1, closed)
	assert.Equal(t, domain.CreateTicketData{Priority: domain.TicketPriorityMedium}, f.Fields())
}

func TestCallbackFailureKeepsFields(t *testing.T) {
	f := NewForm(WithDelay(0))
	fill(t, f, "Printer broken", "down", "high")
	boom := errors.New("network down")

	err := f.Submit(context.Background(), func(context.Context, domain.CreateTicketData) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.Busy())
	assert.Equal(t, "Printer broken", f.Fields().Title)
	assert.True(t, f.CanSubmit(), "user may retry")
}

func TestLimits(t *testing.T) {
	f := NewForm(WithDelay(0), WithLimits(5, 10))
	fill(t, f, "ação!", "ok", "")
	assert.True(t, f.CanSubmit(), "limits count characters, not bytes")

	require.NoError(t, f.SetTitle("título longo"))
	assert.False(t, f.CanSubmit())
	assert.ErrorIs(t, f.Submit(context.Background(), func(context.Context, domain.CreateTicketData) error { return nil }), ErrTooLong)

	require.NoError(t, f.SetTitle("curto"))
	require.NoError(t, f.SetDescription(strings.Repeat("a", 11)))
	assert.False(t, f.CanSubmit())
}
