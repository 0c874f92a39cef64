// Package redis mirrors output and button state into a Redis hash, announces
// changes on a pub/sub channel and accepts output commands from a list.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/logic"
	"github.com/sweeney/battery-controller/internal/mqtt"
	"github.com/sweeney/battery-controller/internal/softswitch"
)

const (
	// Hash holds the current state; Channel announces which field changed.
	Hash    = "battery"
	Channel = "battery"
	// CommandList is popped for "<output>:on|off" commands.
	CommandList = "battery:output"
)

var ErrBadCommand = errors.New("redis: bad command")

// popTimeout bounds each BRPOP so the listener notices cancellation.
const popTimeout = 5 * time.Second

// Update is one mirrored change: the hash fields to set and the message
// announced on Channel.
type Update struct {
	Fields  map[string]string
	Message string
}

// UpdateForEvent maps a button or output event onto hash fields.
func UpdateForEvent(ev logic.Event) Update {
	switch ev.Type {
	case logic.EventOutputOn, logic.EventOutputOff:
		v := "off"
		if ev.Type == logic.EventOutputOn {
			v = "on"
		}
		return Update{
			Fields:  map[string]string{ev.Source: v},
			Message: ev.Source,
		}
	default:
		field := fmt.Sprintf("button:%d", ev.Pin)
		state := string(logic.StateReleased)
		if ev.Type == logic.EventButtonPressed {
			state = string(logic.StatePressed)
		}
		return Update{
			Fields:  map[string]string{field: strings.ToLower(state)},
			Message: field,
		}
	}
}

// UpdateForSystem records the last lifecycle event.
func UpdateForSystem(ev mqtt.SystemEvent) Update {
	return Update{
		Fields: map[string]string{
			"system":           strings.ToLower(ev.Event),
			"system:timestamp": ev.Timestamp.UTC().Format(time.RFC3339),
		},
		Message: "system",
	}
}

// ParseCommand decodes "<output>:on|off".
func ParseCommand(cmd string) (softswitch.OutputID, bool, error) {
	name, action, ok := strings.Cut(strings.TrimSpace(cmd), ":")
	if !ok {
		return -1, false, fmt.Errorf("%w: %q", ErrBadCommand, cmd)
	}
	id, err := softswitch.ParseOutputID(name)
	if err != nil {
		return -1, false, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	switch action {
	case "on":
		return id, true, nil
	case "off":
		return id, false, nil
	}
	return -1, false, fmt.Errorf("%w: action %q", ErrBadCommand, action)
}

// CommandFunc applies a decoded output command.
type CommandFunc func(id softswitch.OutputID, on bool) error

// Mirror implements mqtt.Publisher against Redis.
type Mirror struct {
	client *goredis.Client
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMirror connects to addr and checks the server answers.
func NewMirror(addr string) (*Mirror, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Mirror{
		client: goredis.NewClient(&goredis.Options{Addr: addr, DB: 0}),
		ctx:    ctx,
		cancel: cancel,
	}

	log.Printf("redis: connecting to %s", addr)
	if err := m.client.Ping(ctx).Err(); err != nil {
		cancel()
		m.client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return m, nil
}

func (m *Mirror) apply(u Update) error {
	pipe := m.client.Pipeline()
	for k, v := range u.Fields {
		pipe.HSet(m.ctx, Hash, k, v)
	}
	pipe.Publish(m.ctx, Channel, u.Message)
	if _, err := pipe.Exec(m.ctx); err != nil {
		return fmt.Errorf("redis: %s: %w", u.Message, err)
	}
	return nil
}

// Publish mirrors a button or output event.
func (m *Mirror) Publish(ev logic.Event) error {
	return m.apply(UpdateForEvent(ev))
}

// PublishSystem mirrors a lifecycle event.
func (m *Mirror) PublishSystem(ev mqtt.SystemEvent) error {
	return m.apply(UpdateForSystem(ev))
}

// Listen pops commands from CommandList until Close. Bad commands are logged
// and dropped.
func (m *Mirror) Listen(fn CommandFunc) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			res, err := m.client.BRPop(m.ctx, popTimeout, CommandList).Result()
			if err != nil {
				if errors.Is(err, goredis.Nil) {
					continue
				}
				if m.ctx.Err() != nil {
					return
				}
				log.Warnf("redis: BRPOP %s: %v", CommandList, err)
				time.Sleep(time.Second)
				continue
			}
			// res is [key, value]
			if len(res) != 2 {
				continue
			}
			id, on, err := ParseCommand(res[1])
			if err != nil {
				log.Warnf("redis: %v", err)
				continue
			}
			if err := fn(id, on); err != nil {
				log.Warnf("redis: command %q: %v", res[1], err)
			}
		}
	}()
}

// Close stops the listener and closes the client. Closing the client
// interrupts a BRPOP in flight.
func (m *Mirror) Close() error {
	m.cancel()
	err := m.client.Close()
	m.wg.Wait()
	return err
}
