package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "gw.test"

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, root cid.Cid, path string) ([]byte, error) {
	data, ok := m[root.String()+"/"+path]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return data, nil
}

func testCID(t *testing.T, data string) cid.Cid {
	t.Helper()

	prefix := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: multihash.SHA2_256, MhLength: -1}
	c, err := prefix.Sum([]byte(data))
	require.NoError(t, err)

	return c
}

func newTestGateway(t *testing.T, fetcher Fetcher) (*Gateway, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	handler := Handler(fetcher, testHost)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	gateway, err := New("http", testHost, WithDialAddress(server.Listener.Addr().String()))
	require.NoError(t, err)

	return gateway, &requests
}

func TestURLUsesSubdomainLayout(t *testing.T) {
	t.Parallel()

	root := testCID(t, "hello")

	gateway, err := New("", "")
	require.NoError(t, err)
	assert.Equal(t, "https://"+root.String()+".ipfs.storacha.link", gateway.URL(root))

	custom, err := New("http", ".gw.test")
	require.NoError(t, err)
	assert.Equal(t, "http://"+root.String()+".gw.test", custom.URL(root))
}

func TestFetchReadsPathAndCaches(t *testing.T) {
	t.Parallel()

	root := testCID(t, "dir")
	gateway, requests := newTestGateway(t, mapFetcher{
		root.String() + "/profile.json": []byte(`{"name":"Ada"}`),
	})

	first, err := gateway.Fetch(context.Background(), root, "profile.json")
	require.NoError(t, err)
	second, err := gateway.Fetch(context.Background(), root, "/profile.json")
	require.NoError(t, err)

	assert.JSONEq(t, `{"name":"Ada"}`, string(first))
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, requests.Load())
}

func TestFetchMissingIsNotFound(t *testing.T) {
	t.Parallel()

	gateway, requests := newTestGateway(t, mapFetcher{})
	root := testCID(t, "absent")

	_, err := gateway.Fetch(context.Background(), root, "profile.json")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = gateway.Fetch(context.Background(), root, "profile.json")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 2, requests.Load())
}

func TestFetchReportsServerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	gateway, err := New("http", testHost, WithDialAddress(server.Listener.Addr().String()))
	require.NoError(t, err)

	_, err = gateway.Fetch(context.Background(), testCID(t, "x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	gateway, requests := newTestGateway(t, mapFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.Fetch(ctx, testCID(t, "x"), "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, requests.Load())
}

func TestHandlerRejectsForeignHosts(t *testing.T) {
	t.Parallel()

	handler := Handler(mapFetcher{}, testHost)

	for _, host := range []string{"gw.test", "example.com", "not-a-cid.gw.test", "a.b.gw.test"} {
		req := httptest.NewRequest(http.MethodGet, "http://"+host+"/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, host)
	}

	req := httptest.NewRequest(http.MethodPost, "http://x.gw.test/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
