package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/coinfrs/recon/internal/recon"
)

// Notifier delivers reconciliation findings to whoever watches them.
type Notifier interface {
	NotifyDiscrepancies(ctx context.Context, result *recon.Result) error
	Close() error
}

// LogNotifier writes findings to the process log. It is the default when
// no broker is configured.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{log: logger.WithField("component", "notifier")}
}

func (n *LogNotifier) NotifyDiscrepancies(_ context.Context, result *recon.Result) error {
	for _, d := range result.Discrepancies {
		n.log.WithFields(logrus.Fields{
			"email":      d.Email,
			"date":       d.Date.Format("2006-01-02"),
			"wallet":     d.Wallet,
			"asset":      d.Asset,
			"expected":   d.Expected.String(),
			"actual":     d.Actual.String(),
			"difference": d.Difference.String(),
		}).Warn("reconciliation discrepancy")
	}
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// discrepancyEvent is the wire shape published per finding.
type discrepancyEvent struct {
	Email      string    `json:"email"`
	Date       string    `json:"date"`
	Wallet     string    `json:"wallet"`
	Asset      string    `json:"asset"`
	Expected   string    `json:"expected"`
	Actual     string    `json:"actual"`
	Difference string    `json:"difference"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// KafkaNotifier publishes one message per discrepancy, keyed by account so
// consumers see each account's findings in order.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *logrus.Entry
}

func NewKafkaNotifier(brokers []string, topic string, logger *logrus.Logger) *KafkaNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 100 * time.Millisecond,
		},
		log: logger.WithField("component", "kafka-notifier"),
	}
}

func (n *KafkaNotifier) NotifyDiscrepancies(ctx context.Context, result *recon.Result) error {
	if len(result.Discrepancies) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(result.Discrepancies))
	now := time.Now().UTC()
	for _, d := range result.Discrepancies {
		payload, err := json.Marshal(discrepancyEvent{
			Email:      d.Email,
			Date:       d.Date.Format("2006-01-02"),
			Wallet:     string(d.Wallet),
			Asset:      d.Asset,
			Expected:   d.Expected.String(),
			Actual:     d.Actual.String(),
			Difference: d.Difference.String(),
			EmittedAt:  now,
		})
		if err != nil {
			return err
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(d.Email),
			Value: payload,
		})
	}
	if err := n.writer.WriteMessages(ctx, messages...); err != nil {
		return err
	}
	n.log.WithFields(logrus.Fields{
		"email": result.Email,
		"count": len(messages),
	}).Info("discrepancies published")
	return nil
}

func (n *KafkaNotifier) Close() error { return n.writer.Close() }
