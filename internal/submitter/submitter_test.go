package submitter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/photo-relay/internal/correlation"
	"github.com/cuongbtq/photo-relay/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstreamCall struct {
	jobID      string
	webhook    string
	photo      []byte
	authHeader string
}

// fakeUpstream records job-start requests and answers with a fixed status.
type fakeUpstream struct {
	mu     sync.Mutex
	calls  []upstreamCall
	status int
}

func (f *fakeUpstream) handler(fileField, authHeaderName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile(fileField)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		photo, _ := io.ReadAll(file)
		file.Close()

		f.mu.Lock()
		f.calls = append(f.calls, upstreamCall{
			jobID:      r.FormValue("id_gen"),
			webhook:    r.FormValue("webhook"),
			photo:      photo,
			authHeader: r.Header.Get(authHeaderName),
		})
		f.mu.Unlock()

		w.WriteHeader(f.status)
		w.Write([]byte(`{"ok":true}`))
	}
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestSubmitter(t *testing.T, upstreamURL string) (*Submitter, *correlation.MemoryStore, *ledger.MemoryLedger) {
	t.Helper()

	store := correlation.NewMemoryStore(0, slog.New(slog.DiscardHandler))
	t.Cleanup(store.Close)
	l := ledger.NewMemoryLedger()

	s := New(store, l, &Config{
		URL:             upstreamURL,
		CallbackURL:     "https://relay.example.com/webhook/photo",
		FileField:       "photo",
		AuthHeaderName:  "X-Api-Key",
		AuthHeaderValue: "secret",
		Timeout:         5 * time.Second,
	}, slog.New(slog.DiscardHandler))

	return s, store, l
}

func TestSubmit_Success(t *testing.T) {
	upstream := &fakeUpstream{status: http.StatusOK}
	srv := httptest.NewServer(upstream.handler("photo", "X-Api-Key"))
	defer srv.Close()

	s, store, l := newTestSubmitter(t, srv.URL)
	ctx := context.Background()

	_, err := l.Credit(ctx, "user-1", 1)
	require.NoError(t, err)

	handle, err := s.Submit(ctx, []byte("jpeg-bytes"), "user-1", "chat-42")
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.Equal(t, "chat-42", handle.Destination)
	assert.NotEmpty(t, handle.JobID)

	// One credit consumed, one live record
	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	assert.Equal(t, 1, store.Len())

	// Upstream saw the job id, the callback URL, the photo, and the auth header
	require.Equal(t, 1, upstream.callCount())
	call := upstream.calls[0]
	assert.Equal(t, handle.JobID, call.jobID)
	assert.Equal(t, "https://relay.example.com/webhook/photo", call.webhook)
	assert.Equal(t, []byte("jpeg-bytes"), call.photo)
	assert.Equal(t, "secret", call.authHeader)

	// The registered record routes back to the origin
	dest, err := store.ResolveAndRemove(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, "chat-42", dest)
}

func TestSubmit_ZeroBalanceNeverReachesUpstream(t *testing.T) {
	upstream := &fakeUpstream{status: http.StatusOK}
	srv := httptest.NewServer(upstream.handler("photo", "X-Api-Key"))
	defer srv.Close()

	s, store, _ := newTestSubmitter(t, srv.URL)

	handle, err := s.Submit(context.Background(), []byte("jpeg-bytes"), "user-1", "chat-42")
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
	assert.Nil(t, handle)

	assert.Equal(t, 0, upstream.callCount(), "no network side effect on zero balance")
	assert.Equal(t, 0, store.Len())
}

func TestSubmit_UpstreamFailureRollsBack(t *testing.T) {
	upstream := &fakeUpstream{status: http.StatusInternalServerError}
	srv := httptest.NewServer(upstream.handler("photo", "X-Api-Key"))
	defer srv.Close()

	s, store, l := newTestSubmitter(t, srv.URL)
	ctx := context.Background()

	_, err := l.Credit(ctx, "user-1", 3)
	require.NoError(t, err)

	handle, err := s.Submit(ctx, []byte("jpeg-bytes"), "user-1", "chat-42")
	require.Error(t, err)
	assert.Nil(t, handle)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusInternalServerError, upErr.Status)

	// Credit refunded, registration rolled back
	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
	assert.Equal(t, 0, store.Len())
}

func TestSubmit_TransportFailureRollsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	s, store, l := newTestSubmitter(t, srv.URL)
	ctx := context.Background()

	_, err := l.Credit(ctx, "user-1", 1)
	require.NoError(t, err)

	_, err = s.Submit(ctx, []byte("jpeg-bytes"), "user-1", "chat-42")
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 0, upErr.Status)

	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
	assert.Equal(t, 0, store.Len())
}

func TestSubmit_RegisterCollisionRetries(t *testing.T) {
	upstream := &fakeUpstream{status: http.StatusOK}
	srv := httptest.NewServer(upstream.handler("photo", "X-Api-Key"))
	defer srv.Close()

	s, _, l := newTestSubmitter(t, srv.URL)
	ctx := context.Background()

	// A store that rejects the first registration attempt
	s.store = &collidingStore{Store: s.store, collisions: 1}

	_, err := l.Credit(ctx, "user-1", 1)
	require.NoError(t, err)

	handle, err := s.Submit(ctx, []byte("jpeg-bytes"), "user-1", "chat-42")
	require.NoError(t, err)
	assert.NotEmpty(t, handle.JobID)
}

func TestSubmit_IDGenerationExhausted(t *testing.T) {
	s, _, l := newTestSubmitter(t, "http://unused.invalid")
	ctx := context.Background()

	s.store = &collidingStore{Store: s.store, collisions: maxRegisterAttempts}

	_, err := l.Credit(ctx, "user-1", 1)
	require.NoError(t, err)

	_, err = s.Submit(ctx, []byte("jpeg-bytes"), "user-1", "chat-42")
	assert.ErrorIs(t, err, ErrIDGenerationExhausted)

	// Nothing was debited
	balance, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

// collidingStore reports ErrAlreadyExists for the first n registrations.
type collidingStore struct {
	correlation.Store
	collisions int
}

func (c *collidingStore) Register(ctx context.Context, jobID, destination string) error {
	if c.collisions > 0 {
		c.collisions--
		return correlation.ErrAlreadyExists
	}
	return c.Store.Register(ctx, jobID, destination)
}

func TestIDGenerator_UniqueUnderBurst(t *testing.T) {
	var g idGenerator

	const burst = 1000
	seen := make(map[string]struct{}, burst)

	for i := 0; i < burst; i++ {
		id := g.next("chat-42")
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}
