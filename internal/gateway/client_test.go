package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"whatsapp-channel/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(config.GatewayConfig{BaseURL: server.URL, APIKey: "secret-key"})
	return client, server
}

func TestStartSessionSendsWebhookConfig(t *testing.T) {
	var captured struct {
		Config struct {
			Webhooks []struct {
				URL    string   `json:"url"`
				Events []string `json:"events"`
			} `json:"webhooks"`
		} `json:"config"`
	}
	var apiKey string

	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-Api-Key")
		require.Equal(t, "/api/sessions/org1_primary/start", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
	})
	defer server.Close()

	err := client.StartSession(context.Background(), "org1_primary", "https://crm.example/api/v1/webhook")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", apiKey)
	require.Len(t, captured.Config.Webhooks, 1)
	assert.Equal(t, "https://crm.example/api/v1/webhook", captured.Config.Webhooks[0].URL)
	assert.Contains(t, captured.Config.Webhooks[0].Events, "message.ack")
}

func TestStartSessionAlreadyExists(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "Session already exists"}`))
	})
	defer server.Close()

	err := client.StartSession(context.Background(), "org1_primary", "")
	assert.ErrorIs(t, err, ErrSessionAlreadyExists)
}

func TestSendTextExtractsSerializedID(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sendText", r.URL.Path)
		w.Write([]byte(`{"id": {"_serialized": "true_5511999999999@c.us_ABC123"}}`))
	})
	defer server.Close()

	resp, err := client.SendText(context.Background(), "org1_primary", "5511999999999@c.us", "Oi", "")
	require.NoError(t, err)
	assert.Equal(t, "true_5511999999999@c.us_ABC123", resp.ExternalMessageID)
}

func TestErrorBodyIsAttached(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "chatId inválido"}`))
	})
	defer server.Close()

	_, err := client.SendText(context.Background(), "org1_primary", "nonsense", "Oi", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "chatId inválido")
	assert.False(t, IsTransient(err))
}

func TestServerErrorIsTransient(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.GetSessionStatus(context.Background(), "org1_primary")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestGetSessionStatusDecodesIdentity(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "org1_primary", "status": "WORKING",
			"me": {"id": "5511888888888@c.us", "pushName": "Empresa"}}`))
	})
	defer server.Close()

	info, err := client.GetSessionStatus(context.Background(), "org1_primary")
	require.NoError(t, err)
	assert.Equal(t, StatusWorking, info.Status)
	require.NotNil(t, info.Me)
	assert.Equal(t, "5511888888888@c.us", info.Me.ID)
}

func TestDownloadMediaSendsAPIKey(t *testing.T) {
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-Api-Key")
		w.Write([]byte("media-bytes"))
	}))
	defer server.Close()

	client := NewClient(config.GatewayConfig{BaseURL: server.URL, APIKey: "secret-key"})
	data, err := client.DownloadMedia(context.Background(), server.URL+"/media/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("media-bytes"), data)
	assert.Equal(t, "secret-key", apiKey)
}

func TestExtractMessageID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "plain string",
			payload: `{"id": "false_5511999999999@c.us_ABC123"}`,
			want:    "false_5511999999999@c.us_ABC123",
		},
		{
			name:    "serialized object",
			payload: `{"id": {"_serialized": "true_5511999999999@c.us_DEF456", "id": "DEF456"}}`,
			want:    "true_5511999999999@c.us_DEF456",
		},
		{
			name:    "key triple",
			payload: `{"key": {"id": "GHI789", "remoteJid": "5511999999999@c.us", "fromMe": true}}`,
			want:    "true_5511999999999@c.us_GHI789",
		},
		{
			name:    "nested in _data",
			payload: `{"_data": {"id": {"_serialized": "false_5511999999999@c.us_JKL000"}}}`,
			want:    "false_5511999999999@c.us_JKL000",
		},
		{
			name:    "missing",
			payload: `{"something": "else"}`,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMessageID(json.RawMessage(tt.payload)))
		})
	}
}
