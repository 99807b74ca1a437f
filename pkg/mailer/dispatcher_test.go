package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spana/mailgate/pkg/cache"
)

// MockProvider is a mock implementation of Provider.
type MockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) Send(ctx context.Context, msg *Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Verify(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type recordingObserver struct {
	attempts []string
	liveness []string
	mu       sync.Mutex
}

func (o *recordingObserver) AttemptFinished(provider, msgType string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.attempts = append(o.attempts, provider+"/"+msgType+"/"+status)
}

func (o *recordingObserver) LivenessChecked(provider string, live bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.liveness = append(o.liveness, provider)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(opts ...Option) *Dispatcher {
	return NewDispatcher(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func hiMessage() *Message {
	return &Message{To: "a@b.com", Subject: "Hi", Text: "hello"}
}

func TestDispatch_RelaySucceeds(t *testing.T) {
	t.Parallel()

	relay := newMockProvider(ProviderRelay)
	hosted := newMockProvider(ProviderHostedAPI)
	relay.On("Send", mock.Anything, mock.Anything).Return("<id-1@spana.co.za>", nil)

	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d := newTestDispatcher(WithProviders(relay, hosted), WithClock(func() time.Time { return fixed }))

	res, err := d.Dispatch(context.Background(), hiMessage())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, ProviderRelay, res.Provider)
	require.Equal(t, "<id-1@spana.co.za>", res.MessageID)
	require.Equal(t, TypeGeneric, res.Type)
	require.Equal(t, "a@b.com", res.To)
	require.Equal(t, "Hi", res.Subject)
	require.Equal(t, fixed, res.Timestamp)

	relay.AssertExpectations(t)
	hosted.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatch_FallsBackToHostedAPI(t *testing.T) {
	t.Parallel()

	relay := newMockProvider(ProviderRelay)
	hosted := newMockProvider(ProviderHostedAPI)
	relay.On("Send", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
	hosted.On("Send", mock.Anything, mock.Anything).Return("re_123", nil)

	obs := &recordingObserver{}
	d := newTestDispatcher(WithProviders(relay, hosted), WithObserver(obs))

	msg := hiMessage()
	msg.Type = "otp"
	res, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, ProviderHostedAPI, res.Provider)
	require.Equal(t, "re_123", res.MessageID)
	require.Equal(t, "otp", res.Type)
	require.Equal(t, []string{"relay/otp/error", "hosted_api/otp/ok"}, obs.attempts)

	relay.AssertNumberOfCalls(t, "Send", 1)
	hosted.AssertNumberOfCalls(t, "Send", 1)
}

func TestDispatch_AllProvidersFail(t *testing.T) {
	t.Parallel()

	relayErr := errors.New("relay down")
	apiErr := errors.New("api down")

	relay := newMockProvider(ProviderRelay)
	hosted := newMockProvider(ProviderHostedAPI)
	relay.On("Send", mock.Anything, mock.Anything).Return("", relayErr)
	hosted.On("Send", mock.Anything, mock.Anything).Return("", apiErr)

	d := newTestDispatcher(WithProviders(relay, hosted))

	res, err := d.Dispatch(context.Background(), hiMessage())
	require.Nil(t, res)
	require.ErrorIs(t, err, ErrDelivery)
	require.ErrorIs(t, err, relayErr)
	require.ErrorIs(t, err, apiErr)

	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	require.Len(t, derr.Attempts, 2)
	require.Equal(t, ProviderRelay, derr.Attempts[0].Provider)
	require.Equal(t, ProviderHostedAPI, derr.Attempts[1].Provider)
	require.Equal(t, apiErr, derr.Last())
}

func TestDispatch_OnlyRelayFails(t *testing.T) {
	t.Parallel()

	relayErr := errors.New("auth failed")
	relay := newMockProvider(ProviderRelay)
	relay.On("Send", mock.Anything, mock.Anything).Return("", relayErr)

	d := newTestDispatcher(WithProviders(relay))

	_, err := d.Dispatch(context.Background(), hiMessage())
	require.ErrorIs(t, err, ErrDelivery)
	require.ErrorIs(t, err, relayErr)
}

func TestDispatch_NoProviders(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()

	_, err := d.Dispatch(context.Background(), hiMessage())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDispatch_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *Message
	}{
		{name: "nil message", msg: nil},
		{name: "missing to", msg: &Message{Subject: "Hi"}},
		{name: "missing subject", msg: &Message{To: "a@b.com"}},
		{name: "whitespace subject", msg: &Message{To: "a@b.com", Subject: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			relay := newMockProvider(ProviderRelay)
			d := newTestDispatcher(WithProviders(relay))

			_, err := d.Dispatch(context.Background(), tt.msg)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, []string{"to", "subject"}, verr.Required)
			relay.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}

	t.Run("bodies are optional", func(t *testing.T) {
		t.Parallel()

		relay := newMockProvider(ProviderRelay)
		relay.On("Send", mock.Anything, mock.Anything).Return("id", nil)
		d := newTestDispatcher(WithProviders(relay))

		_, err := d.Dispatch(context.Background(), &Message{To: "a@b.com", Subject: "Hi"})
		require.NoError(t, err)
	})
}

func TestDispatch_Authorization(t *testing.T) {
	t.Parallel()

	t.Run("mismatched credential is rejected before validation", func(t *testing.T) {
		t.Parallel()

		relay := newMockProvider(ProviderRelay)
		d := newTestDispatcher(WithProviders(relay), WithSharedSecret("s3cret"))

		_, err := d.Dispatch(context.Background(), &Message{Credential: "wrong"})
		require.ErrorIs(t, err, ErrUnauthorized)
		relay.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("missing credential is rejected", func(t *testing.T) {
		t.Parallel()

		d := newTestDispatcher(WithSharedSecret("s3cret"))
		require.ErrorIs(t, d.Authorize(""), ErrUnauthorized)
	})

	t.Run("matching credential passes", func(t *testing.T) {
		t.Parallel()

		relay := newMockProvider(ProviderRelay)
		relay.On("Send", mock.Anything, mock.Anything).Return("id", nil)
		d := newTestDispatcher(WithProviders(relay), WithSharedSecret("s3cret"))

		msg := hiMessage()
		msg.Credential = "s3cret"
		_, err := d.Dispatch(context.Background(), msg)
		require.NoError(t, err)
	})

	blank := map[string]string{"empty": "", "spaces": "   ", "tab and newline": "\t\n"}
	for name, secret := range blank {
		t.Run("blank secret is open/"+name, func(t *testing.T) {
			t.Parallel()

			d := newTestDispatcher(WithSharedSecret(secret))
			require.True(t, d.Open())
			require.NoError(t, d.Authorize("anything"))
			require.NoError(t, d.Authorize(""))
		})
	}
}

func TestDispatcher_Providers(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(WithProviders(nil, newMockProvider(ProviderRelay), newMockProvider(ProviderHostedAPI)))
	require.Equal(t, []string{ProviderRelay, ProviderHostedAPI}, d.Providers())
	require.True(t, d.Configured(ProviderRelay))

	empty := newTestDispatcher()
	require.False(t, empty.Configured(ProviderHostedAPI))
	require.False(t, empty.CheckRelayLiveness(context.Background()))
	require.False(t, empty.CheckHostedAPILiveness(context.Background()))
}

func TestCheckRelayLiveness_NotCached(t *testing.T) {
	t.Parallel()

	relay := newMockProvider(ProviderRelay)
	relay.On("Verify", mock.Anything).Return(nil).Once()
	relay.On("Verify", mock.Anything).Return(errors.New("timeout")).Once()

	d := newTestDispatcher(WithProviders(relay))

	require.True(t, d.CheckRelayLiveness(context.Background()))
	require.False(t, d.CheckRelayLiveness(context.Background()))
	relay.AssertNumberOfCalls(t, "Verify", 2)
}

func TestCheckHostedAPILiveness_Cached(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := cache.NewMemory[LivenessEntry](cache.WithClock(clock.Now), cache.WithSweepInterval(0))
	live := NewLivenessCache(store, WithLivenessClock(clock.Now))

	hosted := newMockProvider(ProviderHostedAPI)
	hosted.On("Verify", mock.Anything).Return(nil)

	obs := &recordingObserver{}
	d := newTestDispatcher(WithProviders(hosted), WithLivenessCache(live), WithObserver(obs))
	defer d.Close()

	ctx := context.Background()
	require.True(t, d.CheckHostedAPILiveness(ctx))
	clock.Advance(4 * time.Minute)
	require.True(t, d.CheckHostedAPILiveness(ctx))
	hosted.AssertNumberOfCalls(t, "Verify", 1)

	clock.Advance(time.Minute)
	require.True(t, d.CheckHostedAPILiveness(ctx))
	hosted.AssertNumberOfCalls(t, "Verify", 2)
	require.Equal(t, []string{ProviderHostedAPI, ProviderHostedAPI}, obs.liveness)
}

func TestCheckHostedAPILiveness_CallerCancelled(t *testing.T) {
	t.Parallel()

	live, _ := newTestLiveness(t)

	release := make(chan struct{})
	var (
		mu        sync.Mutex
		verifyErr error
	)
	hosted := newMockProvider(ProviderHostedAPI)
	hosted.On("Verify", mock.Anything).Run(func(args mock.Arguments) {
		<-release
		mu.Lock()
		verifyErr = args.Get(0).(context.Context).Err()
		mu.Unlock()
	}).Return(nil).Once()

	d := newTestDispatcher(WithProviders(hosted), WithLivenessCache(live))

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, d.CheckHostedAPILiveness(gone))
	close(release)

	// The check started by the departed caller still completes and is cached.
	require.Eventually(t, func() bool {
		entry, ok := live.Peek(context.Background(), ProviderHostedAPI)
		return ok && entry.Verified
	}, time.Second, 5*time.Millisecond)

	require.True(t, d.CheckHostedAPILiveness(context.Background()))
	hosted.AssertNumberOfCalls(t, "Verify", 1)

	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, verifyErr)
}
