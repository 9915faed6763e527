package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

// eventSink delivers one encoded outbox row to a broker topic. The key is the
// aggregate id so every event of one order stays ordered.
type eventSink interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error
}

type pubsubPublisherSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubSink keeps one ordered publisher per topic. The publisher loop is
// single-goroutine so the cache needs no lock.
type pubsubSink struct {
	client     pubsubPublisherSource
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubSink(client pubsubPublisherSource) *pubsubSink {
	return &pubsubSink{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (s *pubsubSink) publisher(topic string) *gcppubsub.Publisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.client.Publisher(topic)
	if pub == nil {
		return nil
	}
	pub.EnableMessageOrdering = true
	s.publishers[topic] = pub
	return pub
}

// Stop flushes every cached publisher.
func (s *pubsubSink) Stop() {
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}

func (s *pubsubSink) Name() string { return "pubsub" }

func (s *pubsubSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *pubsubSink) Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error {
	pub := s.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: key,
	})
	if result == nil {
		return errors.New("publish result is nil")
	}
	if _, err := result.Get(ctx); err != nil {
		pub.ResumePublish(key)
		return err
	}
	return nil
}

type kafkaPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

type kafkaSink struct {
	producer kafkaPublisher
}

func newKafkaSink(producer kafkaPublisher) *kafkaSink {
	return &kafkaSink{producer: producer}
}

func (s *kafkaSink) Name() string { return "kafka" }

func (s *kafkaSink) Ping(ctx context.Context) error {
	return s.producer.Ping(ctx)
}

func (s *kafkaSink) Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error {
	return s.producer.Publish(ctx, topic, key, data, attrs)
}
