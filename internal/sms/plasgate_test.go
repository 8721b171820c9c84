package sms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/sms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPlasGateClient_Send(t *testing.T) {
	var got struct {
		Sender  string `json:"sender"`
		To      string `json:"to"`
		Content string `json:"content"`
	}
	var secret, key string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/send", r.URL.Path)
		key = r.URL.Query().Get("private_key")
		secret = r.Header.Get("X-Secret")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"queued":true}`))
	}))
	defer srv.Close()

	client := sms.NewPlasGateClient(config.SMS{
		PrivateKey: "pk+1",
		Secret:     "shh",
		Sender:     "Jober",
		BaseURL:    srv.URL,
	}, srv.Client())

	err := client.Send(context.Background(), "+855 12-345-678", "123456")
	require.NoError(t, err)

	assert.Equal(t, "pk+1", key)
	assert.Equal(t, "shh", secret)
	assert.Equal(t, "Jober", got.Sender)
	assert.Equal(t, "85512345678", got.To)
	assert.Contains(t, got.Content, "123456")
}

func TestPlasGateClient_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid sender", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := sms.NewPlasGateClient(config.SMS{PrivateKey: "pk", Secret: "s", Sender: "x", BaseURL: srv.URL}, srv.Client())

	err := client.Send(context.Background(), "+85512345678", "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid sender")
}

func TestNewSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	tests := []struct {
		name string
		cfg  *config.Config
		want any
	}{
		{
			name: "provider configured",
			cfg:  &config.Config{SMS: config.SMS{PrivateKey: "pk", Secret: "s", Sender: "x"}},
			want: &sms.PlasGateClient{},
		},
		{
			name: "development without provider logs codes",
			cfg:  &config.Config{Environment: "development"},
			want: &sms.LogSender{},
		},
		{
			name: "production without provider drops codes",
			cfg:  &config.Config{Environment: "production"},
			want: sms.NoopSender{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.IsType(t, tt.want, sms.NewSender(tt.cfg, logger))
		})
	}

	assert.Equal(t, 1, logs.FilterMessage("sms provider not configured; OTP delivery disabled").Len())
}

func TestLogSender_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := sms.NewLogSender(zap.New(core))

	require.NoError(t, sender.Send(context.Background(), "+85512345678", "654321"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "654321", entries[0].ContextMap()["otp"])
}
