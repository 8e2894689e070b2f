package station

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/push"
)

func TestDecodeNewScan(t *testing.T) {
	ev, err := decodeNewScan([]byte(`{"type":"new_scan","timestamp":"x","data":{"id":"9","qr_code":"A","status":"PASS","today_total":4}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ScanID("9"), ev.ID)
	assert.Equal(t, 4, ev.TodayTotal)

	_, err = decodeNewScan([]byte(`{"type":"other","data":{}}`))
	assert.ErrorIs(t, err, errOtherType)

	_, err = decodeNewScan([]byte(`nope`))
	assert.Error(t, err)
}

func TestSubscriberFeedsController(t *testing.T) {
	hub := push.NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := NewController(&mockAPI{}, &recordingView{})
	connected := make(chan struct{}, 1)
	sub := &Subscriber{
		URL:             "ws" + strings.TrimPrefix(srv.URL, "http"),
		OnScan:          func(ev domain.NewScanEvent) { c.OnPushedScan(ev.Scan) },
		OnConnect:       func() { connected <- struct{}{} },
		Log:             zerolog.Nop(),
		InitialInterval: 10 * time.Millisecond,
	}
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not connect")
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	scan := *passScan("p1", "A1")
	hub.Publish(ctx, domain.NewScanEvent{Scan: scan})
	hub.Publish(ctx, domain.NewScanEvent{Scan: scan})

	require.Eventually(t, func() bool { return len(c.Rows()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.Counters().TodayTotal)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriberRedialsSilentServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	held := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// never writes, never closes
		select {
		case held <- conn:
		default:
			conn.Close()
		}
	}))
	defer func() {
		srv.Close()
		for {
			select {
			case conn := <-held:
				conn.Close()
			default:
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connects := make(chan struct{}, 4)
	sub := &Subscriber{
		URL:             "ws" + strings.TrimPrefix(srv.URL, "http"),
		OnConnect:       func() { connects <- struct{}{} },
		Log:             zerolog.Nop(),
		InitialInterval: 10 * time.Millisecond,
		ReadTimeout:     100 * time.Millisecond,
	}
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(2 * time.Second):
			t.Fatalf("connect %d did not happen", i+1)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriberAnswersPings(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pongs := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPongHandler(func(data string) error {
			select {
			case pongs <- data:
			default:
			}
			return nil
		})
		conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		// pong handlers only run while reading
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &Subscriber{
		URL:             "ws" + strings.TrimPrefix(srv.URL, "http"),
		Log:             zerolog.Nop(),
		InitialInterval: 10 * time.Millisecond,
	}
	go sub.Run(ctx)

	select {
	case data := <-pongs:
		assert.Equal(t, "hb", data)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong")
	}
}
