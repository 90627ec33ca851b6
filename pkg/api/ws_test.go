package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"node-pulse/pkg/logging"
)

func TestHubReplayNeverOvertakesNewerPublish(t *testing.T) {
	const total = 200

	for round := 0; round < 5; round++ {
		hub := NewHub(logging.Discard())
		srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
		hub.Publish(WSMessage{Type: "seq", Payload: 0})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i < total; i++ {
				hub.Publish(WSMessage{Type: "seq", Payload: i})
			}
		}()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/", nil)
		require.NoError(t, err)
		wg.Wait()
		hub.Publish(WSMessage{Type: "seq", Payload: total})

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		prev := -1.0
		for {
			var msg WSMessage
			require.NoError(t, conn.ReadJSON(&msg))
			seq, ok := msg.Payload.(float64)
			require.True(t, ok)
			assert.GreaterOrEqual(t, seq, prev, "message %v arrived after %v", seq, prev)
			prev = seq
			if seq == total {
				break
			}
		}

		conn.Close()
		hub.Close()
		srv.Close()
	}
}
