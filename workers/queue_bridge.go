package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"battle-arena-system/services"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	admissionsStream   = "MATCHMAKING_ADMISSIONS"
	admissionsSubject  = "matchmaking.admissions"
	admissionsConsumer = "admissions-audit"

	bridgePublishTimeout = 5 * time.Second
)

// QueueBridge mirrors queue admissions onto a durable JetStream stream.
// It is an audit trail, not the matching mechanism: the consumer side
// acknowledges messages and hands them to the archiver, and nothing it does
// ever feeds back into pairing.
type QueueBridge struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
}

// NewQueueBridge connects to NATS and ensures the admissions stream and its
// durable audit consumer exist. File storage makes every published admission
// survive a broker restart.
func NewQueueBridge(natsURL string) (*QueueBridge, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, admissionsStream)
	if err != nil {
		stream, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      admissionsStream,
			Subjects:  []string{admissionsSubject},
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
			Replicas:  1,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create admissions stream: %w", err)
		}
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       admissionsConsumer,
		FilterSubject: admissionsSubject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create admissions consumer: %w", err)
	}

	log.Printf("✅ [BRIDGE] Connected to NATS, stream: %s", admissionsStream)
	return &QueueBridge{conn: conn, js: js, consumer: consumer}, nil
}

// Publish mirrors one admission onto the durable stream. Best-effort from
// the queue's point of view; callers log failures and move on.
func (b *QueueBridge) Publish(entry services.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgePublishTimeout)
	defer cancel()

	if _, err := b.js.Publish(ctx, admissionsSubject, data); err != nil {
		return fmt.Errorf("failed to publish admission: %w", err)
	}
	return nil
}

// StartConsumer drains the admissions stream, acknowledging each message and
// passing it to handle. Messages that fail to decode are terminated rather
// than redelivered forever.
func (b *QueueBridge) StartConsumer(ctx context.Context, handle func(services.QueueEntry)) error {
	consumeCtx, err := b.consumer.Consume(func(msg jetstream.Msg) {
		var entry services.QueueEntry
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			log.Printf("⚠️ [BRIDGE] Dropping undecodable admission message: %v", err)
			_ = msg.Term()
			return
		}

		handle(entry)

		if err := msg.Ack(); err != nil {
			log.Printf("⚠️ [BRIDGE] Failed to ack admission for %s: %v", entry.PlayerID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start admissions consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
		log.Println("⏹️ [BRIDGE] Admissions consumer stopped")
	}()

	log.Println("🔁 [BRIDGE] Consuming admissions for audit trail…")
	return nil
}

// Close tears down the NATS connection.
func (b *QueueBridge) Close() {
	b.conn.Close()
	log.Println("🔌 [BRIDGE] NATS connection closed")
}
