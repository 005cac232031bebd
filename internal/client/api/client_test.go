package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nil)
}

func TestLogin(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "pw", body["password"])

		w.Header().Set(common.TokenHeaderName, "tok-1")
		_, _ = w.Write([]byte(`{"username":"alice","role":"ROLE_ADMIN"}`))
	})

	token, u, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "ROLE_ADMIN", u.Role)
}

func TestLogin_MissingHeader(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username":"alice"}`))
	})

	_, _, err := c.Login(context.Background(), "alice", "pw")
	assert.ErrorContains(t, err, common.TokenHeaderName)
}

func TestErrorBodyDecoded(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"httpStatusCode":400,"message":"USERNAME / PASSWORD INCORRECT"}`))
	})

	_, _, err := c.Login(context.Background(), "alice", "bad")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "USERNAME / PASSWORD INCORRECT", apiErr.Message)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestListUsers_SendsToken(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"username":"a"},{"username":"b","locked":true}]`))
	})

	_, err := c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	c.SetToken("tok")
	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[1].Locked)
}

func TestResetPassword(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/reset-password/a@x.com", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"AN EMAIL WITH A NEW PASSWORD WAS SENT TO: A@X.COM"}`))
	})

	msg, err := c.ResetPassword(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Contains(t, msg, "A@X.COM")
}

func TestFindAndDelete(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"username":"bob","email":"b@x.com"}`))
		case http.MethodDelete:
			assert.Equal(t, "/user/delete/bob", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	u, err := c.FindUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", u.Email)
	assert.NoError(t, c.DeleteUser(context.Background(), "bob"))
}
