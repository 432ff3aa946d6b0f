package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelopeShape(t *testing.T) {
	frame, err := Encode(OnlineUsers{"u1", "u2"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(frame, &raw))
	require.Equal(t, "getOnlineUsers", raw["event"])
	require.Equal(t, float64(1), raw["v"])
	require.Equal(t, []any{"u1", "u2"}, raw["data"])
}

func TestDecodeEachEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payloads := []Payload{
		OnlineUsers{"a"},
		Message{ID: "m1", SenderID: "a", RecipientID: "b", Text: "hi", CreatedAt: at},
		ProfileUpdate{UserID: "a", ProfilePic: "https://cdn/x.png", FullName: "Ann"},
		AdmissionError{Code: "UNAUTHORIZED", Message: "no token"},
	}
	for _, want := range payloads {
		frame, err := Encode(want)
		require.NoError(t, err)

		got, err := Decode(frame)
		require.NoError(t, err)
		require.Equal(t, want.Event(), got.Event())
		require.Equal(t, want, got)
	}
}

func TestDecodeEmptyPresence(t *testing.T) {
	got, err := Decode([]byte(`{"event":"getOnlineUsers","v":1,"data":null}`))
	require.NoError(t, err)
	require.Equal(t, OnlineUsers{}, got)
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"typing","v":1,"data":{}}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeRejectsOtherVersion(t *testing.T) {
	_, err := Decode([]byte(`{"event":"newMessage","v":2,"data":{}}`))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Message{ID: "m1", SenderID: "a", RecipientID: "b", ImageURL: "u"})
	require.NoError(t, err)
	require.NotContains(t, string(data), `"text"`)
	require.Contains(t, string(data), `"imageUrl":"u"`)
}
