package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"nhbchain/execcore/breaker"
	"nhbchain/execcore/dlq"
	"nhbchain/execcore/stream"
)

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T) (http.Handler, *breaker.Breaker, *dlq.Manager, *stream.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := stream.NewFromRedisClient(rdb)
	dlqMgr := dlq.NewManager(client, dlq.Config{MainStreamName: "main", DLQStreamName: "dlq", MaxStreamLength: 1000})
	b := breaker.New(breaker.Config{Enabled: true, FailureThreshold: 3, CooldownPeriod: time.Minute, HalfOpenMaxAttempts: 1}, nil)

	handler := New(Config{
		Breakers:  map[string]*breaker.Breaker{"eth": b},
		DLQ:       dlqMgr,
		JWTSecret: "test-secret",
	})
	return handler, b, dlqMgr, client
}

func TestHealthzReportsOkWhenBreakerClosed(t *testing.T) {
	handler, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthzResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
}

func TestHealthzReportsDegradedWhenBreakerOpen(t *testing.T) {
	handler, b, _, _ := newTestServer(t)
	b.ForceOpen()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdminRouteRejectsMissingToken(t *testing.T) {
	handler, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/breaker/force-open", "application/json", bytes.NewBufferString(`{"chain":"eth"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminForceOpenAndForceCloseWithValidToken(t *testing.T) {
	handler, b, _, _ := newTestServer(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()
	token := signToken(t, "test-secret")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/breaker/force-open", bytes.NewBufferString(`{"chain":"eth"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, breaker.StateOpen, b.State())

	req2, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/breaker/force-close", bytes.NewBufferString(`{"chain":"eth"}`))
	require.NoError(t, err)
	req2.Header.Set("Authorization", "Bearer "+token)
	resp2, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNoContent, resp2.StatusCode)
	require.Equal(t, breaker.StateClosed, b.State())
}

func TestAdminDLQReplayRequeuesEntry(t *testing.T) {
	handler, _, _, client := newTestServer(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()
	token := signToken(t, "test-secret")

	id, err := client.XAdd(context.Background(), "dlq", map[string]interface{}{"data": `{"originalMessageId":"1","originalPayload":"{}","error":"[VAL_LOW_CONFIDENCE] nope"}`})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/dlq/replay/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	mainLen, err := client.XLen(context.Background(), "main")
	require.NoError(t, err)
	require.EqualValues(t, 1, mainLen)
}
