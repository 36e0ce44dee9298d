package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream carrying chain events.
	StreamName = "ECDP_EVENTS"

	streamMaxAge = 72 * time.Hour
)

// Message is the payload published for every indexed event.
type Message struct {
	Height     uint64            `json:"height"`
	BlockHash  string            `json:"block_hash"`
	TxIndex    int               `json:"tx_index"`
	TxHash     string            `json:"tx_hash,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	BlockTime  int64             `json:"block_time"`
}

// NATSPublisher fans indexed events out over JetStream. Subjects follow
// <subject>.<event type>.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
}

// ConnectNATS dials url and ensures the event stream exists.
func ConnectNATS(ctx context.Context, url, subject string) (*NATSPublisher, error) {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		return nil, errors.New("indexer: nats subject required")
	}
	nc, err := nats.Connect(url, nats.Name("ecdpd-indexer"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(ctx, js, subject); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, subject: subject}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, subject string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subject + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    streamMaxAge,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create event stream: %w", err)
	}
	return nil
}

// Publish sends the records of one block in order. The message id makes
// redelivery of the same event idempotent on the server.
func (p *NATSPublisher) Publish(ctx context.Context, records []EventRecord) error {
	for i, rec := range records {
		attrs, err := rec.Attrs()
		if err != nil {
			return err
		}
		data, err := json.Marshal(Message{
			Height:     rec.Height,
			BlockHash:  rec.BlockHash,
			TxIndex:    rec.TxIndex,
			TxHash:     rec.TxHash,
			Type:       rec.Type,
			Attributes: attrs,
			BlockTime:  rec.BlockTime,
		})
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := p.js.Publish(ctx, p.Subject(rec.Type), data, jetstream.WithMsgID(messageID(rec, i))); err != nil {
			return fmt.Errorf("publish %s at %d: %w", rec.Type, rec.Height, err)
		}
	}
	return nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.subject + "." + sanitizeToken(eventType)
}

func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// messageID is unique per event as long as records holds a whole block in
// index order.
func messageID(rec EventRecord, ordinal int) string {
	return fmt.Sprintf("%s-%d", rec.BlockHash, ordinal)
}

// sanitizeToken maps an event type onto a single NATS subject token.
func sanitizeToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
