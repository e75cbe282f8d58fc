package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"github.com/relabs-tech/pedestrian_status/internal/logging"
	"github.com/relabs-tech/pedestrian_status/internal/notify"
	"github.com/relabs-tech/pedestrian_status/internal/status"
)

func report(st status.Status) notify.Report {
	return notify.Report{Title: notify.Title, Status: st, Text: st.Text()}
}

func TestWebStatusEndpoint(t *testing.T) {
	hub := newStatusHub(logging.NewTestLogger(t), nil)
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusServiceUnavailable)

	test.That(t, hub.Notify(report(status.Moving)), test.ShouldBeNil)
	test.That(t, hub.Notify(report(status.Pocketed)), test.ShouldBeNil)

	resp, err = http.Get(srv.URL + "/api/status")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)

	var got notify.Report
	test.That(t, json.NewDecoder(resp.Body).Decode(&got), test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, status.Pocketed)
	test.That(t, got.Text, test.ShouldEqual, "Phone is in the Pocket or you are on Call.")
}

func TestWebSocketPushesLatestStatus(t *testing.T) {
	hub := newStatusHub(logging.NewTestLogger(t), nil)
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	test.That(t, hub.Notify(report(status.StillLooking)), test.ShouldBeNil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	test.That(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)), test.ShouldBeNil)

	var got notify.Report
	test.That(t, conn.ReadJSON(&got), test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, status.StillLooking)

	// the first message proves the client is registered
	test.That(t, hub.Notify(report(status.MovingLooking)), test.ShouldBeNil)
	test.That(t, conn.ReadJSON(&got), test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, status.MovingLooking)
}

func TestWebControlEndpoint(t *testing.T) {
	var sent []string
	hub := newStatusHub(logging.NewTestLogger(t), func(cmd string) error {
		sent = append(sent, cmd)
		if cmd == ControlStop {
			return errors.New("broker gone")
		}
		return nil
	})
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	post := func(body string) int {
		resp, err := http.Post(srv.URL+"/api/control", "text/plain", strings.NewReader(body))
		test.That(t, err, test.ShouldBeNil)
		resp.Body.Close()
		return resp.StatusCode
	}

	test.That(t, post("Start\n"), test.ShouldEqual, http.StatusNoContent)
	test.That(t, post("stop"), test.ShouldEqual, http.StatusBadGateway)
	test.That(t, post("reboot"), test.ShouldEqual, http.StatusBadRequest)
	test.That(t, sent, test.ShouldResemble, []string{"start", "stop"})

	resp, err := http.Get(srv.URL + "/api/control")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusMethodNotAllowed)
}

func TestWebControlDisabled(t *testing.T) {
	hub := newStatusHub(logging.NewTestLogger(t), nil)
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/control", "text/plain", strings.NewReader("start"))
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)
}

func TestWebIgnoresOlderReport(t *testing.T) {
	hub := newStatusHub(logging.NewTestLogger(t), nil)
	srv := httptest.NewServer(hub.routes())
	defer srv.Close()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	newer := report(status.Moving)
	newer.Time = at.Add(time.Second)
	test.That(t, hub.Notify(newer), test.ShouldBeNil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	test.That(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)), test.ShouldBeNil)

	var got notify.Report
	test.That(t, conn.ReadJSON(&got), test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, status.Moving)

	older := report(status.Still)
	older.Time = at
	test.That(t, hub.Notify(older), test.ShouldBeNil)
	latest, _ := hub.slot.Latest()
	test.That(t, latest.Status, test.ShouldEqual, status.Moving)

	// the next pushed message is the newer report, not the stale one
	next := report(status.Pocketed)
	next.Time = at.Add(2 * time.Second)
	test.That(t, hub.Notify(next), test.ShouldBeNil)
	test.That(t, conn.ReadJSON(&got), test.ShouldBeNil)
	test.That(t, got.Status, test.ShouldEqual, status.Pocketed)
}
