package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"canteen/internal/databases"

	"github.com/segmentio/kafka-go"
)

// DBSink stores events in the notifications table. Role-addressed events
// become one row per user holding the role.
type DBSink struct {
	db *sql.DB
}

func NewDBSink(db *sql.DB) *DBSink {
	return &DBSink{db: db}
}

func (s *DBSink) Name() string { return "database" }

func (s *DBSink) Write(ctx context.Context, events []Event) error {
	return databases.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, ev := range events {
			var err error
			if ev.UserID != nil {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO notifications (user_id, role, event, title, message, created_at)
					VALUES (?, NULL, ?, ?, ?, ?)`, *ev.UserID, ev.Kind, ev.Title, ev.Message, ev.OccurredAt.UTC())
			} else {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO notifications (user_id, role, event, title, message, created_at)
					SELECT id, role, ?, ?, ?, ? FROM users WHERE role = ?`,
					ev.Kind, ev.Title, ev.Message, ev.OccurredAt.UTC(), ev.Role)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// messageWriter is the part of *kafka.Writer the sink uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event as JSON keyed by its kind
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink writing to topic on brokers
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, events []Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Kind),
			Value: value,
			Time:  ev.OccurredAt,
		})
	}
	return s.writer.WriteMessages(ctx, msgs...)
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
