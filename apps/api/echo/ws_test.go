package echoapi_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/simonmuehling/educafric-app-sub019/apps/api/echo"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/testutil"
)

func Test_websocket(t *testing.T) {
	env := setup(t)
	f := newFixtures(t, env)

	srv := httptest.NewServer(env.app)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	t.Run("token required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 401, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, f.parent), nil)
	require.NoError(t, err)
	defer conn.Close()

	// the socket is registered asynchronously: notify until the push comes through
	var msg struct {
		Type string                    `json:"type"`
		Data notification.Notification `json:"data"`
	}
	for attempt := 0; ; attempt++ {
		require.Less(t, attempt, 50, "no notification pushed")

		_, err = env.notifSvc.Create(ctxBg, notification.NewNotification{
			UserIDs: []string{f.parent.ID, f.teacher.ID}, SchoolID: f.school.ID,
			TitleFR: "Réunion", TitleEN: "Meeting", MessageFR: "Demain 10h.", MessageEN: "Tomorrow 10am.",
			Category: notification.CategoryCommunication,
		})
		require.NoError(t, err)

		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, rErr := conn.ReadMessage()
		if rErr != nil {
			// a timed out read leaves the connection unusable
			conn.Close()
			conn, _, err = websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, f.parent), nil)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		break
	}

	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, f.parent.ID, msg.Data.UserID)
	assert.Equal(t, "Meeting", msg.Data.TitleEN)
}

func TestHub_closed(t *testing.T) {
	hub := NewHub(testutil.NewLogger())
	hub.Close()
	hub.Close() // idempotent

	err := hub.Dispatch(ctxBg, notification.Notification{UserID: "u1"})
	assert.NoError(t, err)
}
