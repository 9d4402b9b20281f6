package memstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/queue"
)

// Gateway records checkout sessions and returns a fake hosted URL.
type Gateway struct {
	mu       sync.Mutex
	Sessions []model.PaymentSession
	Err      error
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, s model.PaymentSession) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.Sessions = append(g.Sessions, s)
	return fmt.Sprintf("https://pay.test/session/%d", s.OrderID), nil
}

// Publisher records published order.paid events.
type Publisher struct {
	mu     sync.Mutex
	Events []queue.OrderPaidEvent
	Err    error
}

func (p *Publisher) PublishOrderPaid(_ context.Context, ev queue.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, ev)
	return nil
}

// Published returns a copy of the recorded events.
func (p *Publisher) Published() []queue.OrderPaidEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.OrderPaidEvent(nil), p.Events...)
}

// Images keeps uploaded bytes in memory and hands out sequential paths.
type Images struct {
	mu    sync.Mutex
	Saved map[string][]byte
	Err   error
}

func (im *Images) Save(_ context.Context, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.Err != nil {
		return "", im.Err
	}
	if im.Saved == nil {
		im.Saved = map[string][]byte{}
	}
	path := fmt.Sprintf("/uploads/img-%d.jpg", len(im.Saved)+1)
	im.Saved[path] = b
	return path, nil
}
