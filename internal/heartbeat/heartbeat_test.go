package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Disabled(t *testing.T) {
	c := New("", nil)
	assert.False(t, c.Enabled())
	err := c.Send(context.Background(), Payload{NodeID: "n1"})
	assert.NoError(t, err)
	assert.Nil(t, c.LastHeartbeat())
}

func TestClient_SendSuccessUpdatesLastHeartbeat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nodes/heartbeat", r.URL.Path)
		var body Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "n1", body.NodeID)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, nil)
	require.True(t, c.Enabled())
	assert.Nil(t, c.LastHeartbeat())

	err := c.Send(context.Background(), Payload{NodeID: "n1"})
	require.NoError(t, err)
	require.NotNil(t, c.LastHeartbeat())
}

func TestClient_SendFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, nil)
	err := c.Send(context.Background(), Payload{NodeID: "n1"})
	assert.Error(t, err)
	assert.Nil(t, c.LastHeartbeat())
}

func TestClient_SendUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	err := c.Send(context.Background(), Payload{NodeID: "n1"})
	assert.Error(t, err)
}
