package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Handlers — необязательные колбэки для UI-слоя. nil-поля игнорируются.
type Handlers struct {
	OnRoomUpdate func(controllerID string, members []MemberInfo)
	OnRole       func(controller bool)
	OnDenied     func(reason string)
	OnChat       func(userID, text string)
	OnQueue      func(items []QueueInfo)
}

// Client is one room session: a WS connection plus the clock reconciler
// and the playback scheduler wired together.
type Client struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	clockSyn *ClockSync
	sched    *Scheduler
	handlers Handlers
	cancel   context.CancelFunc

	writeMu sync.Mutex

	mu        sync.Mutex
	lastTrack string // трек из последнего state/track_loaded/play

	done chan struct{}
}

// Dial connects to ws(s)://host/ws/rooms/{roomID}?token=... and starts the
// read and clock-sync loops. host is a bare host[:port] (plain ws) or a
// base URL with a ws/wss/http/https scheme for TLS deployments. The
// renderer belongs to the caller.
func Dial(ctx context.Context, host, roomID, token string, renderer Renderer, handlers Handlers) (*Client, error) {
	endpoint, err := wsURL(host, roomID, token)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	clock := clockwork.NewRealClock()
	cs := NewClockSync(clock)

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:     conn,
		clock:    clock,
		clockSyn: cs,
		handlers: handlers,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.sched = NewScheduler(clock, renderer, cs.OffsetMs)

	go c.readLoop()
	go cs.Run(runCtx, func(t0 int64) error {
		return c.write(outMessage{Type: typeTimePing, Payload: timePingPayload{T0: t0}})
	})

	return c, nil
}

// wsURL собирает endpoint комнаты. http/https переписываются в ws/wss,
// голый host получает ws по умолчанию.
func wsURL(host, roomID, token string) (string, error) {
	base := host
	if !strings.Contains(base, "://") {
		base = "ws://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse host %q: %w", host, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = fmt.Sprintf("/ws/rooms/%s", roomID)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Close tears the session down: scheduler cancelled, speed reset, socket
// closed.
func (c *Client) Close() error {
	c.cancel()
	c.sched.Stop()
	return c.conn.Close()
}

// Done closes when the server side goes away.
func (c *Client) Done() <-chan struct{} { return c.done }

// OffsetMs exposes the current clock estimate (diagnostics).
func (c *Client) OffsetMs() float64 { return c.clockSyn.OffsetMs() }

// RTTMs exposes the smoothed round-trip estimate (diagnostics).
func (c *Client) RTTMs() float64 { return c.clockSyn.RTTMs() }

// --- controller commands; сервер сам решит, есть ли у нас право ---

func (c *Client) Load(trackRef string) error {
	return c.write(outMessage{Type: typeLoad, Payload: loadPayload{TrackRef: trackRef}})
}

func (c *Client) Play() error {
	return c.write(outMessage{Type: typePlay})
}

func (c *Client) Pause() error {
	return c.write(outMessage{Type: typePause})
}

func (c *Client) Seek(positionSec float64) error {
	return c.write(outMessage{Type: typeSeek, Payload: seekPayload{PositionSec: positionSec}})
}

func (c *Client) TransferControl(targetID string) error {
	return c.write(outMessage{Type: typeTransfer, Payload: transferPayload{TargetID: targetID}})
}

func (c *Client) QueueAdd(trackRef string) error {
	return c.write(outMessage{Type: typeQueueAdd, Payload: queueAddPayload{TrackRef: trackRef}})
}

func (c *Client) QueueRemove(entryID string) error {
	return c.write(outMessage{Type: typeQueueRemove, Payload: queueRemovePayload{EntryID: entryID}})
}

// TrackEnded reports the renderer reached end-of-track; with a queued
// successor the server auto-advances the whole room.
func (c *Client) TrackEnded() error {
	return c.write(outMessage{Type: typeTrackEnded})
}

func (c *Client) SendChat(text string) error {
	return c.write(outMessage{Type: typeChat, Payload: chatPayload{Message: text}})
}

func (c *Client) write(msg outMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop() {
	defer func() {
		c.cancel()
		c.sched.Stop()
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env envelope) {
	switch env.Type {
	case typeTimePong:
		var p timePongPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			c.clockSyn.OnPong(p.T0, p.ServerMs)
		}

	case typeState:
		var p statePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		c.setTrack(p.TrackRef)
		c.sched.Apply(Snapshot{
			TrackRef:    p.TrackRef,
			Running:     p.Running,
			PositionSec: p.PositionSec,
			EpochMs:     p.EpochMs,
		})
		if c.handlers.OnRoomUpdate != nil {
			c.handlers.OnRoomUpdate(p.ControllerID, p.Members)
		}
		if c.handlers.OnQueue != nil {
			c.handlers.OnQueue(p.Queue)
		}

	case typeTrackLoaded:
		var p trackLoadedPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		c.setTrack(p.TrackRef)
		c.sched.Apply(Snapshot{TrackRef: p.TrackRef, PositionSec: p.PositionSec})

	case typePlay:
		var p playEventPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		c.setTrack(p.TrackRef)
		c.sched.Apply(Snapshot{
			TrackRef:    p.TrackRef,
			Running:     true,
			PositionSec: p.PositionSec,
			EpochMs:     p.StartAtMs,
		})

	case typePause:
		var p pauseEventPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		c.sched.Apply(Snapshot{TrackRef: c.track(), PositionSec: p.PositionSec})

	case typeSeek:
		var p seekEventPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		snap := Snapshot{TrackRef: c.track(), PositionSec: p.PositionSec}
		if p.StartAtMs != nil {
			snap.Running = true
			snap.EpochMs = *p.StartAtMs
		}
		c.sched.Apply(snap)

	case typeRoomUpdate:
		var p roomUpdatePayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnRoomUpdate != nil {
			c.handlers.OnRoomUpdate(p.ControllerID, p.Members)
		}

	case typeRole:
		var p rolePayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnRole != nil {
			c.handlers.OnRole(p.Controller)
		}

	case typeDenied:
		var p deniedPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			slog.Debug("command denied", "reason", p.Reason)
			if c.handlers.OnDenied != nil {
				c.handlers.OnDenied(p.Reason)
			}
		}

	case typeQueue:
		var p queuePayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnQueue != nil {
			c.handlers.OnQueue(p.Items)
		}

	case typeChat:
		var p chatPayload
		if json.Unmarshal(env.Payload, &p) == nil && c.handlers.OnChat != nil {
			c.handlers.OnChat(p.UserID, p.Message)
		}

	default:
		// ignore (chat_ack, peer_joined, peer_left и будущие типы)
	}
}

func (c *Client) setTrack(trackRef string) {
	c.mu.Lock()
	c.lastTrack = trackRef
	c.mu.Unlock()
}

func (c *Client) track() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTrack
}
