package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	PostID string `json:"postId"`
}

func TestEventEnvelopeCarriesPayloadAndMetadata(t *testing.T) {
	emitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	evt, err := NewEvent("post.deleted", "p1", samplePayload{PostID: "p1"}, emitted)
	require.NoError(t, err)
	require.Equal(t, EventDeleted, evt.Type)
	require.NotEmpty(t, evt.ID)

	body, err := Encode(evt.WithSource("post-service"))
	require.NoError(t, err)

	decoded, err := Decode(body)
	require.NoError(t, err)
	require.Equal(t, evt.ID, decoded.ID)
	require.Equal(t, "post.deleted", decoded.RoutingKey)
	require.Equal(t, "post-service", decoded.Source)
	require.Equal(t, "p1", decoded.PartitionKey)
	require.True(t, emitted.Equal(decoded.EmittedAt))

	var payload samplePayload
	require.NoError(t, decoded.Decode(&payload))
	require.Equal(t, "p1", payload.PostID)
}

func TestEventPayloadIsNotAliased(t *testing.T) {
	evt, err := NewEvent("post.created", "p1", samplePayload{PostID: "p1"}, time.Now())
	require.NoError(t, err)

	raw := evt.Payload()
	raw[0] = 'X'

	var payload samplePayload
	require.NoError(t, evt.Decode(&payload))
	require.Equal(t, "p1", payload.PostID)
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"routing_key":"post.created","occurred_at":"2026-01-01T00:00:00Z","data":{}}`,
		`{"event_id":"e1","routing_key":"post.created","occurred_at":"2026-01-01T00:00:00Z"}`,
	} {
		_, err := Decode([]byte(body))
		require.ErrorIs(t, err, ErrDecode, body)
	}
}
