package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sovid/internal/platform/config"
	id "sovid/pkg/domain"
	"sovid/pkg/platform/sentinel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.LedgerConfig{Endpoint: srv.URL, Timeout: time.Second})
}

func TestHTTPClientWrite(t *testing.T) {
	ctx := context.Background()
	did := id.DID("did:key:z6MkTest")
	owner := id.PrincipalID("p-1")

	t.Run("created is success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/registry/dids", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
		})
		require.NoError(t, client.Write(ctx, did, owner))
	})

	t.Run("duplicate DID maps to ErrConflict", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"duplicate_did"}`))
		})
		err := client.Write(ctx, did, owner)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("registered owner maps to ErrInvalidState", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"owner_registered"}`))
		})
		err := client.Write(ctx, did, owner)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("gateway timeout maps to ErrAmbiguous", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
		})
		err := client.Write(ctx, did, owner)
		assert.ErrorIs(t, err, sentinel.ErrAmbiguous)
	})

	t.Run("deadline hit maps to ErrAmbiguous", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
		})
		client.timeout = 10 * time.Millisecond
		err := client.Write(ctx, did, owner)
		assert.ErrorIs(t, err, sentinel.ErrAmbiguous)
	})

	t.Run("server error maps to ErrUnavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		err := client.Write(ctx, did, owner)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestHTTPClientRead(t *testing.T) {
	ctx := context.Background()

	t.Run("returns owner", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/registry/dids/did:key:z6MkTest", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"did":"did:key:z6MkTest","owner":"p-1"}`))
		})
		owner, err := client.Read(ctx, id.DID("did:key:z6MkTest"))
		require.NoError(t, err)
		assert.Equal(t, id.PrincipalID("p-1"), owner)
	})

	t.Run("absent DID maps to ErrNotFound", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := client.Read(ctx, id.DID("did:key:z6MkMissing"))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryClientUniqueness(t *testing.T) {
	ctx := context.Background()
	client := NewInMemoryClient()

	require.NoError(t, client.Write(ctx, "did:key:z6MkA", "p-1"))

	err := client.Write(ctx, "did:key:z6MkA", "p-2")
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	err = client.Write(ctx, "did:key:z6MkB", "p-1")
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	owner, err := client.Read(ctx, "did:key:z6MkA")
	require.NoError(t, err)
	assert.Equal(t, id.PrincipalID("p-1"), owner)

	did, err := client.OwnerDID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, id.DID("did:key:z6MkA"), did)
}
