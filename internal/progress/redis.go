package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis implements Broker over Redis Pub/Sub so progress reaches every API replica.
type Redis struct {
	rdb *redis.Client
	log logrus.FieldLogger

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

// NewRedis connects to url (redis://...).
func NewRedis(url string, log logrus.FieldLogger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisClient(redis.NewClient(opt), log), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client, log logrus.FieldLogger) *Redis {
	return &Redis{rdb: rdb, log: log, subs: map[chan Event]*redis.PubSub{}}
}

// Ping checks connectivity.
func (b *Redis) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *Redis) Subscribe(solveID string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, chanName(solveID))
	// wait for the subscription confirmation so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		b.log.WithError(err).WithField("solve_id", solveID).Warn("progress subscribe failed")
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the subscription; ch is closed once its reader goroutine drains.
func (b *Redis) Unsubscribe(_ string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *Redis) Publish(solveID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, chanName(solveID), data).Err(); err != nil {
		b.log.WithError(err).WithField("solve_id", solveID).Debug("progress publish failed")
	}
}

// Close releases the client.
func (b *Redis) Close() error { return b.rdb.Close() }

func chanName(solveID string) string { return "vrp:solve:" + solveID }
