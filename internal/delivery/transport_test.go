package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lattice-agent/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportSendsCompressedEnvelope(t *testing.T) {
	var got *model.Envelope
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		env, err := DecodeEnvelope(body, r.Header.Get("Content-Encoding"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got = env
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "ingest-key", "srv-1", time.Second)
	body, err := EncodeEnvelope(model.NewEnvelope("srv-1", []*model.EventRecord{record(1)}), EncodingGzip)
	require.NoError(t, err)

	require.NoError(t, tr.Send(context.Background(), EncodingGzip, body))
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.SchemaVersion)
	assert.Len(t, got.Events, 1)
	assert.Equal(t, "gzip", headers.Get("Content-Encoding"))
	assert.Equal(t, "srv-1", headers.Get("X-Server-Id"))
	assert.Equal(t, "Bearer ingest-key", headers.Get("Authorization"))
}

func TestHTTPTransportClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		permanent bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNoContent, false, false},
		{http.StatusBadRequest, true, true},
		{http.StatusUnprocessableEntity, true, true},
		{http.StatusUnauthorized, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusServiceUnavailable, true, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPTransport(srv.URL, "", "srv-1", time.Second).Send(context.Background(), EncodingGzip, []byte("x"))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, isPermanent(err))
		})
	}
}

func TestHTTPTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := NewHTTPTransport(srv.URL, "", "srv-1", 50*time.Millisecond).Send(context.Background(), EncodingGzip, []byte("x"))
	require.Error(t, err)
	assert.False(t, isPermanent(err))
}

func TestCodecRoundTrip(t *testing.T) {
	env := model.NewEnvelope("srv-1", []*model.EventRecord{record(1), record(2)})
	for _, enc := range []string{EncodingGzip, EncodingZstd} {
		body, err := EncodeEnvelope(env, enc)
		require.NoError(t, err)

		back, err := DecodeEnvelope(body, enc)
		require.NoError(t, err)
		assert.Equal(t, env.Events[1].EventID, back.Events[1].EventID)
	}
}

func TestEncodeRejectsIncompleteEnvelope(t *testing.T) {
	_, err := EncodeEnvelope(&model.Envelope{}, EncodingGzip)
	assert.True(t, isPermanent(err))
}
