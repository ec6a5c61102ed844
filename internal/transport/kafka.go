package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

// #region kafka-publisher
// kafkaMessageWriter is the subset of kafka.Writer the publisher needs.
// Tests substitute a recorder.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TransitionPublisher forwards phase transitions to a Kafka topic for
// downstream display and analytics consumers. Delivery is asynchronous so a
// slow broker never stalls an evaluation; the queue drops on overflow.
type TransitionPublisher struct {
	writer kafkaMessageWriter
	queue  chan governance.TransitionRecord

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

const publisherQueueSize = 256

// PublisherConfig holds the Kafka connection settings.
type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// NewTransitionPublisher connects a writer for the topic and starts the
// delivery loop.
func NewTransitionPublisher(config PublisherConfig) (*TransitionPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(config.Brokers...),
		Topic:    config.Topic,
		Balancer: &kafka.Hash{},
	}
	return newTransitionPublisher(w), nil
}

func newTransitionPublisher(w kafkaMessageWriter) *TransitionPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &TransitionPublisher{
		writer: w,
		queue:  make(chan governance.TransitionRecord, publisherQueueSize),
		cancel: cancel,
	}
	p.wg.Add(1)
	go p.run(ctx)
	return p
}

// RecordTransition queues one transition. Implements
// governance.TransitionSink; it never blocks the evaluation path.
func (p *TransitionPublisher) RecordTransition(rec governance.TransitionRecord) error {
	select {
	case p.queue <- rec:
		return nil
	default:
		return fmt.Errorf("transition queue full, dropping %s→%s", rec.FromPhase, rec.ToPhase)
	}
}

// Close stops the delivery loop and closes the writer.
func (p *TransitionPublisher) Close() error {
	var err error
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		err = p.writer.Close()
	})
	return err
}

func (p *TransitionPublisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case rec := <-p.queue:
			p.deliver(ctx, rec)
		}
	}
}

func (p *TransitionPublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-p.queue:
			p.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (p *TransitionPublisher) deliver(ctx context.Context, rec governance.TransitionRecord) {
	payload, err := json.Marshal(transitionMessage(rec))
	if err != nil {
		log.Printf("[KAFKA] encode transition: %v", err)
		return
	}
	msg := kafka.Message{Key: []byte(rec.SessionID), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[KAFKA] publish transition: %v", err)
	}
}

func transitionMessage(rec governance.TransitionRecord) map[string]interface{} {
	return map[string]interface{}{
		"session_id":     rec.SessionID,
		"media_id":       rec.MediaID,
		"from_phase":     string(rec.FromPhase),
		"to_phase":       string(rec.ToPhase),
		"trigger":        string(rec.Trigger),
		"reason":         rec.Reason,
		"video_locked":   rec.VideoLocked,
		"satisfied_once": rec.SatisfiedOnce,
		"at":             rec.At.UTC().Format(time.RFC3339Nano),
	}
}

// #endregion kafka-publisher

// #region fanout
// FanoutSink delivers each transition to every sink, e.g. the sqlite
// journal plus the Kafka publisher.
type FanoutSink []governance.TransitionSink

func (f FanoutSink) RecordTransition(rec governance.TransitionRecord) error {
	var firstErr error
	for _, s := range f {
		if err := s.RecordTransition(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// #endregion fanout
