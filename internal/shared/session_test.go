package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "tramatex_session", "segredo-de-teste", time.Hour, false)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tramatex_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("42", "USUARIO_CD")
	sess.Set("loja", "3")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookie := sessionCookie(t, rec)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/pedidos", nil)
	next.AddCookie(cookie)
	restored, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Equal(t, "42", restored.User())
	require.Equal(t, "USUARIO_CD", restored.Role())
	require.Equal(t, "3", restored.Get("loja"))
}

func TestSessionDestroyExpiresCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("7", "ADMIN")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookie := sessionCookie(t, rec)

	sm.Destroy(sess)
	logoutRec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, logoutRec, req, sess))
	expired := sessionCookie(t, logoutRec)
	require.Equal(t, -1, expired.MaxAge)

	next := httptest.NewRequest(http.MethodGet, "/pedidos", nil)
	next.AddCookie(cookie)
	restored, err := sm.Load(ctx, next)
	require.NoError(t, err)
	require.Empty(t, restored.User())
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "tramatex_session", Value: "inexistente"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, sess.User())
}
