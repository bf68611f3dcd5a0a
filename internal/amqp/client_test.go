package amqp

import (
	"context"
	"errors"
	"testing"

	"jizhang/internal/core"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

type published struct {
	exchange, key string
	msg           amqp091.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	sent       []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewClientDeclaresTopicExchange(t *testing.T) {
	ch := &fakeChannel{}
	if _, err := newClient(ch, "jizhang"); err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "jizhang:topic" {
		t.Errorf("unexpected declarations: %v", ch.declared)
	}

	ch = &fakeChannel{declareErr: errors.New("access refused")}
	if _, err := newClient(ch, "jizhang"); err == nil {
		t.Error("expected setup error")
	}
}

func TestPublishEntryCreated(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newClient(ch, "jizhang")

	e := core.Entry{Date: core.NewDate(2024, 6, 1), Category: core.Food, Amount: decimal.NewFromInt(100), Note: "lunch"}
	if err := c.PublishEntryCreated(context.Background(), e); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.sent))
	}
	got := ch.sent[0]
	if got.exchange != "jizhang" || got.key != EventEntryCreated {
		t.Errorf("routing = %s/%s", got.exchange, got.key)
	}
	if got.msg.DeliveryMode != amqp091.Persistent || got.msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing properties: %+v", got.msg)
	}

	ev, err := EventFromJSON(got.msg.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ID != got.msg.MessageId || ev.Entry == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Entry.Date != "2024-06-01" || ev.Entry.Amount != "100.00" || ev.Entry.Category != "Food" {
		t.Errorf("unexpected entry payload: %+v", ev.Entry)
	}
	if ev.Budget != nil {
		t.Errorf("entry event must not carry a budget")
	}
}

func TestPublishBudgetUpdated(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newClient(ch, "jizhang")
	if err := c.PublishBudgetUpdated(context.Background(), 25000); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ev, err := EventFromJSON(ch.sent[0].msg.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventBudgetUpdated || ev.Budget == nil || *ev.Budget != 25000 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{}
	c, _ := newClient(ch, "jizhang")
	ch.publishErr = amqp091.ErrClosed
	err := c.PublishBudgetUpdated(context.Background(), 1)
	if !errors.Is(err, amqp091.ErrClosed) {
		t.Errorf("expected wrapped ErrClosed, got %v", err)
	}
	if err := c.Close(); err != nil || !ch.closed {
		t.Errorf("close: %v closed=%v", err, ch.closed)
	}
}
