// v0
// internal/events/topics_test.go
package events

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestCountPartitionsIgnoresOtherTopics(t *testing.T) {
	parts := []kafka.Partition{
		{Topic: "compliance.runs", ID: 0},
		{Topic: "compliance.runs", ID: 1},
		{Topic: "compliance.runs", ID: 1},
		{Topic: "other", ID: 2},
	}
	assert.Equal(t, 2, countPartitions(parts, "compliance.runs"))
	assert.Zero(t, countPartitions(nil, "compliance.runs"))
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, isAlreadyExists(kafka.TopicAlreadyExists))
	assert.True(t, isAlreadyExists(fmt.Errorf("create: %w", kafka.TopicAlreadyExists)))
	assert.True(t, isAlreadyExists(errors.New("[36] Topic Already Exists: Topic with this name already exists")))
	assert.False(t, isAlreadyExists(errors.New("broker not available")))
	assert.False(t, isAlreadyExists(nil))
}

func TestEnsureTopicValidatesSpec(t *testing.T) {
	cases := map[string]TopicSpec{
		"no brokers":      {Topic: "t", Partitions: 1, Replication: 1},
		"no topic":        {Brokers: []string{"b:9092"}, Partitions: 1, Replication: 1},
		"zero partitions": {Brokers: []string{"b:9092"}, Topic: "t", Replication: 1},
		"no replication":  {Brokers: []string{"b:9092"}, Topic: "t", Partitions: 1},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := EnsureTopic(context.Background(), nil, spec)
			assert.Error(t, err)
		})
	}
}
