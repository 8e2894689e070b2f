package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/push"
)

// Subscriber follows the server push feed and hands every new scan to
// OnScan. It redials with exponential backoff until its context ends.
type Subscriber struct {
	URL    string
	OnScan func(domain.NewScanEvent)
	// OnConnect runs after every successful dial, e.g. to resync rows
	// missed while offline.
	OnConnect func()
	Log       zerolog.Logger

	Dialer          *websocket.Dialer
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// ReadTimeout drops the connection when neither a message nor a ping
	// arrives in time. Defaults to 60s.
	ReadTimeout time.Duration
}

// Run blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			return err
		}
		if s.OnConnect != nil {
			s.OnConnect()
		}
		err = s.read(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Log.Warn().Err(err).Msg("push feed lost, reconnecting")
	}
}

func (s *Subscriber) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 0
	if s.InitialInterval > 0 {
		expBackoff.InitialInterval = s.InitialInterval
	}
	if s.MaxInterval > 0 {
		expBackoff.MaxInterval = s.MaxInterval
	}

	var conn *websocket.Conn
	operation := func() error {
		c, _, err := dialer.DialContext(ctx, s.URL, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.Log.Debug().Err(err).Dur("retry_in", wait).Str("url", s.URL).Msg("push dial failed")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(expBackoff, ctx), notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dialing push feed: %w", err)
	}
	s.Log.Info().Str("url", s.URL).Msg("push feed connected")
	return conn, nil
}

func (s *Subscriber) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// the hub pings well inside ReadTimeout; silence means the server is gone
	wait := s.ReadTimeout
	if wait <= 0 {
		wait = defaultReadTimeout
	}
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(wait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := decodeNewScan(raw)
		if errors.Is(err, errOtherType) {
			continue
		}
		if err != nil {
			s.Log.Warn().Err(err).Msg("bad push message")
			continue
		}
		if s.OnScan != nil {
			s.OnScan(ev)
		}
	}
}

const (
	defaultReadTimeout = 60 * time.Second
	writeWait          = 10 * time.Second
)

var errOtherType = errors.New("not a new_scan message")

func decodeNewScan(raw []byte) (domain.NewScanEvent, error) {
	var msg push.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.NewScanEvent{}, err
	}
	if msg.Type != push.TypeNewScan {
		return domain.NewScanEvent{}, errOtherType
	}
	var ev domain.NewScanEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return domain.NewScanEvent{}, err
	}
	return ev, nil
}
