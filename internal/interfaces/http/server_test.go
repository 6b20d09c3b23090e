package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

func TestNewServerAppliesDefaults(t *testing.T) {
	srv := NewServer(config.ServerConfig{Port: 8080}, http.NewServeMux(), logging.NewNopLogger())

	assert.Equal(t, ":8080", srv.srv.Addr)
	assert.Equal(t, 15*time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 15*time.Second, srv.srv.WriteTimeout)
	assert.Equal(t, 60*time.Second, srv.srv.IdleTimeout)
	assert.Equal(t, 30*time.Second, srv.shutdownTimeout)
}

func TestNewServerHonorsConfiguredTimeouts(t *testing.T) {
	cfg := config.ServerConfig{
		Port:            9090,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
	srv := NewServer(cfg, http.NewServeMux(), nil)

	assert.Equal(t, 5*time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, srv.srv.WriteTimeout)
	assert.Equal(t, 2*time.Second, srv.shutdownTimeout)
}

func TestServerStopBeforeStart(t *testing.T) {
	srv := NewServer(config.ServerConfig{Port: 0}, http.NewServeMux(), logging.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, srv.Stop(ctx))
}
