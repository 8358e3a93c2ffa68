// Package fanout relays garrison messages between realm processes over
// redis pub/sub. A player is reached on <prefix>player:<id>, everyone on a
// map on <prefix>map:<id>.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPrefix = "garrison:"

const (
	kindPlayer = "player:"
	kindMap    = "map:"
)

// envelope wraps every payload so a process can ignore its own publications
// and so map broadcasts can skip the player that caused them.
type envelope struct {
	Origin  string          `json:"origin"`
	Exclude uint64          `json:"exclude,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Receiver is the realm side of a subscription.
type Receiver interface {
	DeliverRemote(playerID uint64, payload []byte)
	DeliverMap(mapID uint32, exclude uint64, payload []byte)
}

type Redis struct {
	client *redis.Client
	prefix string
	origin string
	log    *zap.Logger
}

func New(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, prefix: prefix, origin: uuid.NewString(), log: logger}
}

// Dial connects to addr and checks the connection with PING.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}

func (f *Redis) publish(ctx context.Context, channel string, exclude uint64, payload []byte) error {
	b, err := json.Marshal(envelope{Origin: f.origin, Exclude: exclude, Payload: payload})
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, channel, b).Err()
}

func (f *Redis) Publish(ctx context.Context, playerID uint64, payload []byte) error {
	return f.publish(ctx, f.prefix+kindPlayer+strconv.FormatUint(playerID, 10), 0, payload)
}

func (f *Redis) PublishMap(ctx context.Context, mapID uint32, exclude uint64, payload []byte) error {
	return f.publish(ctx, f.prefix+kindMap+strconv.FormatUint(uint64(mapID), 10), exclude, payload)
}

type Subscription struct {
	ps     *redis.PubSub
	prefix string
	origin string
	log    *zap.Logger
}

// Subscribe returns once redis has confirmed the pattern subscription.
func (f *Redis) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := f.client.PSubscribe(ctx, f.prefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe %s*: %w", f.prefix, err)
	}
	return &Subscription{ps: ps, prefix: f.prefix, origin: f.origin, log: f.log}, nil
}

// Run hands every message published by another process to recv until ctx
// is done.
func (s *Subscription) Run(ctx context.Context, recv Receiver) error {
	defer s.ps.Close()
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatch(msg, recv)
		}
	}
}

func (s *Subscription) dispatch(msg *redis.Message, recv Receiver) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || len(env.Payload) == 0 {
		s.log.Warn("fanout: bad envelope", zap.String("channel", msg.Channel))
		return
	}
	if env.Origin == s.origin {
		return
	}
	name := strings.TrimPrefix(msg.Channel, s.prefix)
	switch {
	case strings.HasPrefix(name, kindPlayer):
		id, err := strconv.ParseUint(strings.TrimPrefix(name, kindPlayer), 10, 64)
		if err != nil {
			break
		}
		recv.DeliverRemote(id, env.Payload)
		return
	case strings.HasPrefix(name, kindMap):
		id, err := strconv.ParseUint(strings.TrimPrefix(name, kindMap), 10, 32)
		if err != nil {
			break
		}
		recv.DeliverMap(uint32(id), env.Exclude, env.Payload)
		return
	}
	s.log.Warn("fanout: bad channel", zap.String("channel", msg.Channel))
}
