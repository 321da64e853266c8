package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mossy-p/classroom-signaling/config"
	"github.com/mossy-p/classroom-signaling/internal/models"
	"github.com/redis/go-redis/v9"
)

// Connect opens a client and checks the connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

type opKind int

const (
	opJoined opKind = iota
	opLeft
)

type op struct {
	kind  opKind
	entry models.RosterEntry
}

const presenceQueueSize = 128

// Presence mirrors the live roster into a Redis hash for external observers.
// Joined and Left never block; a background worker applies them in order.
type Presence struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *slog.Logger

	// refreshEvery is how often Run pushes the hash expiry forward.
	refreshEvery time.Duration

	ops       chan op
	done      chan struct{}
	closeOnce sync.Once
}

func NewPresence(client *redis.Client, cfg config.RedisConfig, log *slog.Logger) *Presence {
	if log == nil {
		log = slog.Default()
	}
	return &Presence{
		client: client,
		key:    cfg.Prefix + ":participants",
		ttl:    cfg.TTL,
		log:    log,
		ops:    make(chan op, presenceQueueSize),
		done:   make(chan struct{}),

		refreshEvery: cfg.TTL / 2,
	}
}

// Key is the Redis hash holding the roster.
func (p *Presence) Key() string {
	return p.key
}

// Reset drops whatever an earlier process left behind.
func (p *Presence) Reset(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("presence reset: %w", err)
	}
	return nil
}

func (p *Presence) Joined(entry models.RosterEntry) {
	p.enqueue(op{kind: opJoined, entry: entry})
}

func (p *Presence) Left(id string) {
	p.enqueue(op{kind: opLeft, entry: models.RosterEntry{ID: id}})
}

func (p *Presence) enqueue(o op) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.ops <- o:
	default:
		p.log.Warn("presence queue full, dropping update", "id", o.entry.ID)
	}
}

// Run applies queued updates until ctx is cancelled or Close is called.
// While running it keeps the hash alive, so the TTL only reaps a roster
// whose broker has gone away.
func (p *Presence) Run(ctx context.Context) {
	var refresh <-chan time.Time
	if p.ttl > 0 && p.refreshEvery > 0 {
		ticker := time.NewTicker(p.refreshEvery)
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			p.drain(ctx)
			return
		case o := <-p.ops:
			p.apply(ctx, o)
		case <-refresh:
			if err := p.client.Expire(ctx, p.key, p.ttl).Err(); err != nil {
				p.log.Warn("presence ttl refresh failed", "error", err)
			}
		}
	}
}

func (p *Presence) drain(ctx context.Context) {
	for {
		select {
		case o := <-p.ops:
			p.apply(ctx, o)
		default:
			return
		}
	}
}

func (p *Presence) apply(ctx context.Context, o op) {
	pipe := p.client.TxPipeline()
	switch o.kind {
	case opJoined:
		data, err := json.Marshal(o.entry)
		if err != nil {
			p.log.Warn("presence update failed", "id", o.entry.ID, "error", err)
			return
		}
		pipe.HSet(ctx, p.key, o.entry.ID, data)
	case opLeft:
		pipe.HDel(ctx, p.key, o.entry.ID)
	}
	if p.ttl > 0 {
		pipe.Expire(ctx, p.key, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("presence update failed", "id", o.entry.ID, "error", err)
	}
}

// List reads the mirrored roster back. Order is not meaningful.
func (p *Presence) List(ctx context.Context) ([]models.RosterEntry, error) {
	values, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}

	list := make([]models.RosterEntry, 0, len(values))
	for id, raw := range values {
		var entry models.RosterEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			p.log.Warn("skipping corrupt presence entry", "id", id, "error", err)
			continue
		}
		list = append(list, entry)
	}
	return list, nil
}

// Close stops accepting updates; Run flushes what is queued and returns.
func (p *Presence) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
