// v0
// internal/events/topics.go
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicSpec is the desired layout of the run events topic.
type TopicSpec struct {
	Brokers     []string
	Topic       string
	Partitions  int
	Replication int
}

func (s TopicSpec) validate() error {
	switch {
	case len(s.Brokers) == 0:
		return errors.New("at least one broker is required")
	case strings.TrimSpace(s.Topic) == "":
		return errors.New("topic must not be empty")
	case s.Partitions < 1:
		return errors.New("partitions must be at least 1")
	case s.Replication < 1:
		return errors.New("replication must be positive")
	}
	return nil
}

const adminTimeout = 10 * time.Second

// EnsureTopic creates the topic through the cluster controller when missing
// and checks its partition count afterwards. It returns the partition count
// found on the broker.
func EnsureTopic(ctx context.Context, log *slog.Logger, spec TopicSpec) (int, error) {
	if err := spec.validate(); err != nil {
		return 0, err
	}
	if log == nil {
		log = slog.Default()
	}
	broker := spec.Brokers[0]
	dialCtx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()
	conn, err := kafka.DialContext(dialCtx, "tcp", broker)
	if err != nil {
		return 0, fmt.Errorf("dial broker %s: %w", broker, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("broker_close", slog.Any("err", cerr))
		}
	}()
	controller, err := conn.Controller()
	if err != nil {
		return 0, fmt.Errorf("fetch controller metadata: %w", err)
	}
	ctrlAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrlCtx, ctrlCancel := context.WithTimeout(ctx, adminTimeout)
	defer ctrlCancel()
	admin, err := kafka.DialContext(ctrlCtx, "tcp", ctrlAddr)
	if err != nil {
		return 0, fmt.Errorf("dial controller %s: %w", ctrlAddr, err)
	}
	defer func() {
		if cerr := admin.Close(); cerr != nil {
			log.Warn("controller_close", slog.Any("err", cerr))
		}
	}()
	if err := admin.SetDeadline(time.Now().Add(adminTimeout)); err != nil {
		log.Warn("controller_deadline", slog.Any("err", err))
	}

	err = admin.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Topic,
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.Replication,
	})
	switch {
	case err == nil:
		log.Info("topic_created", slog.String("topic", spec.Topic),
			slog.Int("partitions", spec.Partitions), slog.Int("replication", spec.Replication))
	case isAlreadyExists(err):
		log.Info("topic_exists", slog.String("topic", spec.Topic))
	default:
		return 0, fmt.Errorf("create topic %s: %w", spec.Topic, err)
	}

	parts, err := admin.ReadPartitions(spec.Topic)
	if err != nil {
		return 0, fmt.Errorf("read partitions for %s: %w", spec.Topic, err)
	}
	count := countPartitions(parts, spec.Topic)
	if count < spec.Partitions {
		return count, fmt.Errorf("topic %s has %d partitions; expected at least %d", spec.Topic, count, spec.Partitions)
	}
	log.Info("topic_ready", slog.String("topic", spec.Topic), slog.Int("partitions", count))
	return count, nil
}

func countPartitions(parts []kafka.Partition, topic string) int {
	seen := map[int]struct{}{}
	for _, p := range parts {
		if p.Topic != topic {
			continue
		}
		seen[p.ID] = struct{}{}
	}
	return len(seen)
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return true
	}
	return strings.Contains(err.Error(), "Topic with this name already exists")
}
