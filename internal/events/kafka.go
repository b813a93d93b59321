// v1
// internal/events/kafka.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"github.com/auton88n/tradeayn-sub003/internal/circuitbreaker"
)

// Partitioner enumerates the supported Kafka partition strategies.
type Partitioner string

const (
	PartitionerHash       Partitioner = "hash"
	PartitionerRoundRobin Partitioner = "roundrobin"
)

// KeyMode describes how the Kafka message key is derived.
type KeyMode string

const (
	// KeyModeProject keeps all runs of a project on one partition.
	KeyModeProject KeyMode = "project"
	KeyModeRun     KeyMode = "run"
	KeyModeNone    KeyMode = "none"
)

// KafkaConfig encapsulates the options required to publish run events.
type KafkaConfig struct {
	Topic       string
	Brokers     []string
	Acks        int
	Partitioner Partitioner
	KeyMode     KeyMode
	// Breaker and Publish come from the circuit.* settings shared with the
	// remote codes client.
	Breaker circuitbreaker.Config
	Publish circuitbreaker.PublishPolicy
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaWriteCloser interface {
	Close() error
}

type publishRequest struct {
	key   []byte
	value []byte
	runID string
}

// KafkaPublisher asynchronously publishes run events to a Kafka topic.
type KafkaPublisher struct {
	cfg       KafkaConfig
	log       *slog.Logger
	rec       Recorder
	writer    kafkaMessageWriter
	closer    kafkaWriteCloser
	guard     *circuitbreaker.PublishGuard
	queue     chan publishRequest
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

const (
	publisherQueueSize = 256
	kafkaBreakerName   = "compliance-runs-writer"
	sinkKafka          = "kafka"
)

var (
	errPublisherNilLogger  = errors.New("publisher requires a logger")
	errPublisherNilWriter  = errors.New("publisher requires a writer")
	errPublisherNotStarted = errors.New("run publisher not started")
	errPublisherStopped    = errors.New("run publisher stopped")
)

// NewKafkaPublisher constructs a publisher backed by a Kafka writer guarded
// by cfg.Breaker and cfg.Publish.
func NewKafkaPublisher(cfg KafkaConfig, log *slog.Logger, rec Recorder, opts ...circuitbreaker.Option) (*KafkaPublisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	balancer, err := resolveBalancer(cfg.Partitioner)
	if err != nil {
		return nil, err
	}
	baseWriter := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		AllowAutoTopicCreation: false,
		Balancer:               balancer,
	}
	guard, err := circuitbreaker.NewPublishGuard(kafkaBreakerName, cfg.Breaker, cfg.Publish, opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka breaker: %w", err)
	}
	if guard != nil {
		log.Info("run_publisher_cb_enabled", slog.String("name", kafkaBreakerName), slog.Int("attempts", guard.Attempts()))
	} else {
		log.Info("run_publisher_cb_disabled", slog.String("name", kafkaBreakerName))
	}
	wrapped := circuitbreaker.NewGuardedWriter(baseWriter, guard)
	pub, err := newKafkaPublisherWithWriter(cfg, log, rec, wrapped, baseWriter)
	if err != nil {
		return nil, err
	}
	pub.guard = guard
	return pub, nil
}

func newKafkaPublisherWithWriter(cfg KafkaConfig, log *slog.Logger, rec Recorder, writer kafkaMessageWriter, closer kafkaWriteCloser) (*KafkaPublisher, error) {
	if log == nil {
		return nil, errPublisherNilLogger
	}
	if writer == nil {
		return nil, errPublisherNilWriter
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if cfg.KeyMode == "" {
		cfg.KeyMode = KeyModeProject
	}
	return &KafkaPublisher{
		cfg:    cfg,
		log:    log.With(slog.String("component", "run_publisher")),
		rec:    rec,
		writer: writer,
		closer: closer,
		queue:  make(chan publishRequest, publisherQueueSize),
	}, nil
}

// Start launches the background publishing loop.
func (p *KafkaPublisher) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context must not be nil")
	}
	p.startOnce.Do(func() {
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.started.Store(true)
		p.wg.Add(1)
		go p.run()
		p.log.Info("run_publisher_started", slog.String("topic", p.cfg.Topic))
	})
	if !p.started.Load() {
		return errPublisherNotStarted
	}
	return nil
}

// Stop shuts the loop down, delivering whatever is already queued.
func (p *KafkaPublisher) Stop(ctx context.Context) error {
	var stopErr error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if p.closer != nil {
			if err := p.closer.Close(); err != nil {
				p.log.Error("run_publisher_close_err", slog.Any("err", err))
			}
		}
		if stopErr != nil {
			p.log.Error("run_publisher_stop_err", slog.Any("err", stopErr))
		}
		p.log.Info("run_publisher_stopped")
	})
	return stopErr
}

// Notify queues an event for asynchronous delivery.
func (p *KafkaPublisher) Notify(ctx context.Context, ev RunCompleted) error {
	if !p.started.Load() {
		p.log.Error("run_publish_not_started")
		return errPublisherNotStarted
	}
	key, err := p.messageKey(ev)
	if err != nil {
		p.rec.Published(sinkKafka, "fail")
		p.log.Error("run_publish_key_err", slog.Any("err", err), slog.String("run", ev.RunID))
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.rec.Published(sinkKafka, "fail")
		return err
	}
	req := publishRequest{key: key, value: value, runID: ev.RunID}
	select {
	case p.queue <- req:
		p.log.Debug("run_publish_enqueued", slog.String("run", ev.RunID))
		return nil
	case <-ctx.Done():
		p.rec.Published(sinkKafka, "fail")
		return ctx.Err()
	case <-p.runCtx.Done():
		p.rec.Published(sinkKafka, "fail")
		return errPublisherStopped
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			p.drain()
			p.started.Store(false)
			p.log.Info("run_publisher_loop_exit")
			return
		case req := <-p.queue:
			p.deliver(p.runCtx, req)
		}
	}
}

// drain flushes queued events after cancellation using a fresh context so the
// writes are not aborted immediately.
func (p *KafkaPublisher) drain() {
	for {
		select {
		case req := <-p.queue:
			p.deliver(context.WithoutCancel(p.runCtx), req)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) deliver(ctx context.Context, req publishRequest) {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: req.key, Value: req.value}); err != nil {
		p.rec.Published(sinkKafka, "fail")
		p.log.Error("run_publish_err", slog.Any("err", err), slog.String("run", req.runID))
		return
	}
	p.rec.Published(sinkKafka, "ok")
	p.log.Info("run_publish_success", slog.String("run", req.runID))
}

func (p *KafkaPublisher) messageKey(ev RunCompleted) ([]byte, error) {
	switch p.cfg.KeyMode {
	case KeyModeProject:
		if strings.TrimSpace(ev.ProjectID) == "" {
			// unscoped runs still need a stable key
			return []byte(ev.RunID), nil
		}
		return []byte(ev.ProjectID), nil
	case KeyModeRun:
		if strings.TrimSpace(ev.RunID) == "" {
			return nil, errors.New("runId is required for run key mode")
		}
		return []byte(ev.RunID), nil
	case KeyModeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported key mode: %s", p.cfg.KeyMode)
	}
}

func resolveBalancer(partitioner Partitioner) (kafka.Balancer, error) {
	switch partitioner {
	case PartitionerHash, "":
		return &kafka.Hash{}, nil
	case PartitionerRoundRobin:
		return &kafka.RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("unsupported partitioner: %s", partitioner)
	}
}
