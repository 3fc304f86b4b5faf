// Package notify delivers sale notifications to the seller's Telegram chat.
// Delivery is best effort: the order transaction never waits on it and a
// full queue drops messages instead of blocking a sale.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sks-store/merchant-api/internal/app"
)

const (
	defaultBaseURL   = "https://api.telegram.org"
	defaultQueueSize = 256
	sendTimeout      = 10 * time.Second
)

// Telegram implements app.SaleNotifier over the Telegram Bot API.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
	logger *zap.Logger

	queue chan app.Sale
	wg    sync.WaitGroup

	closeOnce sync.Once
}

type Option func(*Telegram)

// WithBaseURL points the client at a different API host (used in tests).
func WithBaseURL(url string) Option {
	return func(t *Telegram) {
		t.client.SetBaseURL(url)
	}
}

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) Option {
	return func(t *Telegram) {
		if n > 0 {
			t.queue = make(chan app.Sale, n)
		}
	}
}

func NewTelegram(token, chatID string, logger *zap.Logger, opts ...Option) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telegram{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(sendTimeout).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second),
		token:  token,
		chatID: chatID,
		logger: logger,
		queue:  make(chan app.Sale, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.wg.Add(1)
	go t.run()
	return t
}

// NotifySale queues one sale for delivery. Never blocks; when the queue is
// full the message is dropped with a warning.
func (t *Telegram) NotifySale(sale app.Sale) {
	select {
	case t.queue <- sale:
	default:
		t.logger.Warn("notification queue full, dropping sale",
			zap.String("game", sale.GameName),
			zap.String("prefix", sale.Prefix),
		)
	}
}

// Close stops accepting notifications and waits for the queue to drain.
func (t *Telegram) Close() {
	t.closeOnce.Do(func() {
		close(t.queue)
	})
	t.wg.Wait()
}

func (t *Telegram) run() {
	defer t.wg.Done()
	for sale := range t.queue {
		if err := t.send(sale); err != nil {
			t.logger.Warn("failed to send sale notification",
				zap.String("game", sale.GameName),
				zap.Error(err),
			)
		}
	}
}

func (t *Telegram) send(sale app.Sale) error {
	text := fmt.Sprintf("Sold: %s\nKey: %s\nPrice: %.2f\nBatch: %s",
		sale.GameName, sale.KeyValue, sale.Price, sale.Prefix)

	resp, err := t.client.R().
		SetBody(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("telegram responded %s", resp.Status())
	}
	return nil
}
