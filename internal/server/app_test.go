package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/userportal/internal/logging"
	"github.com/dmitrijs2005/userportal/internal/server/attempts"
	"github.com/dmitrijs2005/userportal/internal/server/config"
	"github.com/dmitrijs2005/userportal/internal/server/mail"
	"github.com/dmitrijs2005/userportal/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.ImageDir = t.TempDir()
	return c
}

func TestNewTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		tr, closeFn, err := newTracker(ctx, testConfig(t))
		require.NoError(t, err)
		assert.Nil(t, closeFn)
		assert.IsType(t, &attempts.MemoryTracker{}, tr)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c := testConfig(t)
		c.AttemptsBackend = config.BackendRedis
		c.RedisAddr = mr.Addr()

		tr, closeFn, err := newTracker(ctx, c)
		require.NoError(t, err)
		require.NotNil(t, closeFn)
		t.Cleanup(func() { _ = closeFn() })

		require.NoError(t, tr.RecordFailure(ctx, "alice"))
		assert.True(t, mr.Exists("login_attempts:alice"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c := testConfig(t)
		c.AttemptsBackend = config.BackendRedis
		c.RedisAddr = mr.Addr()
		mr.Close()

		_, _, err := newTracker(ctx, c)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		c := testConfig(t)
		c.AttemptsBackend = "etcd"

		_, _, err := newTracker(ctx, c)
		assert.ErrorContains(t, err, "etcd")
	})
}

func TestNewImageStore(t *testing.T) {
	c := testConfig(t)

	st, err := newImageStore(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &storage.FSStore{}, st)

	c.ImageBackend = "ftp"
	_, err = newImageStore(context.Background(), c)
	assert.ErrorContains(t, err, "ftp")
}

func TestNewMailer(t *testing.T) {
	c := testConfig(t)
	assert.Equal(t, mail.Nop{}, newMailer(c, logging.Nop{}))

	c.SMTPHost = "smtp.example"
	assert.IsType(t, &mail.SMTPSender{}, newMailer(c, logging.Nop{}))
}

func TestNewLogger(t *testing.T) {
	c := testConfig(t)
	assert.IsType(t, &logging.ZapLogger{}, newLogger(c))

	c.LogBackend = config.BackendSlog
	assert.IsType(t, &logging.SlogLogger{}, newLogger(c))
}

func TestNewApp_DatabaseFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })

	boom := errors.New("connection refused")
	openDB = func(context.Context, string) (*sql.DB, error) { return nil, boom }

	app, err := NewApp(context.Background(), testConfig(t))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, app)
}

func TestAppClose_ReverseOrder(t *testing.T) {
	var order []string
	app := &App{logger: logging.Nop{}}
	app.closers = []func() error{
		func() error { order = append(order, "db"); return nil },
		func() error { order = append(order, "redis"); return errors.New("redis close") },
	}

	err := app.close()
	assert.ErrorContains(t, err, "redis close")
	assert.Equal(t, []string{"redis", "db"}, order)
	assert.NoError(t, app.close(), "second close is a no-op")
}
