package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	settingsChannel     = "crm:settings:invalidate"
	defaultCloseTimeout = 5 * time.Second
)

// SettingsInvalidator broadcasts settings changes over Redis Pub/Sub so that
// every instance drops its local copy of the tenant's settings
type SettingsInvalidator struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
	running  bool
	doneCh   chan struct{}
	doneOnce sync.Once
}

// NewSettingsInvalidator creates an invalidator on a shared client
func NewSettingsInvalidator(client *redis.Client, logger *zap.Logger) *SettingsInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsInvalidator{
		client:  client,
		channel: settingsChannel,
		logger:  logger.Named("settings_invalidator"),
		doneCh:  make(chan struct{}),
	}
}

// Publish announces that a tenant's settings changed
func (i *SettingsInvalidator) Publish(ctx context.Context, tenantID uuid.UUID) error {
	if err := i.client.Publish(ctx, i.channel, tenantID.String()).Err(); err != nil {
		return fmt.Errorf("publish settings invalidation: %w", err)
	}
	return nil
}

// Subscribe blocks, calling onTenant for every announced tenant until ctx is
// cancelled or Close is called
func (i *SettingsInvalidator) Subscribe(ctx context.Context, onTenant func(uuid.UUID)) error {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	subCtx, cancel := context.WithCancel(ctx)
	i.running = true
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.running = false
		i.mu.Unlock()
		i.doneOnce.Do(func() { close(i.doneCh) })
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", i.channel, err)
	}
	i.logger.Info("subscribed to settings invalidations", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("settings invalidation channel closed")
				return nil
			}
			tenantID, err := uuid.Parse(msg.Payload)
			if err != nil {
				i.logger.Warn("ignoring malformed invalidation", zap.String("payload", msg.Payload))
				continue
			}
			onTenant(tenantID)
		}
	}
}

// Close stops the subscription and waits briefly for it to end
func (i *SettingsInvalidator) Close() error {
	i.mu.Lock()
	cancel := i.cancelFn
	i.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-i.doneCh:
	case <-time.After(defaultCloseTimeout):
		i.logger.Warn("timeout waiting for settings subscription to stop")
	}
	return nil
}
