// Package pubsub wraps the Pub/Sub v2 client the outbox publisher writes
// order events through.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("orders topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds one Pub/Sub connection for a GCP project.
type Client struct {
	client    *pubsub.Client
	projectID string
	topic     string
	cfg       config.PubSubConfig
}

// NewClient connects and fails unless the orders topic exists, along with
// the orders subscription when one is configured.
func NewClient(ctx context.Context, gcp config.GCPConfig, events config.EventsConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	topic := strings.TrimSpace(events.OrdersTopic)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case topic == "":
		return nil, errTopicRequired
	}

	conn, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	c := &Client{client: conn, projectID: projectID, topic: topic, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"topic":   topic,
		}), "pubsub client ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

// Publisher returns a handle for topic with the configured batching applied,
// or nil when the name cannot be resolved.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := topicResourceName(c.projectID, topic)
	if name == "" {
		return nil
	}
	pub := c.client.Publisher(name)
	if c.cfg.PublishDelay > 0 {
		pub.PublishSettings.DelayThreshold = c.cfg.PublishDelay
	}
	if c.cfg.PublishCount > 0 {
		pub.PublishSettings.CountThreshold = c.cfg.PublishCount
	}
	return pub
}

// Ping checks that the orders topic, and the subscription if set, exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	topic := topicResourceName(c.projectID, c.topic)
	if err := exists(ctx, "topic", topic, func(ctx context.Context) error {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		return err
	}); err != nil {
		return err
	}

	sub := subscriptionResourceName(c.projectID, c.cfg.OrdersSubscription)
	if sub == "" {
		return nil
	}
	return exists(ctx, "subscription", sub, func(ctx context.Context) error {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
		return err
	})
}

// exists maps the admin API's NotFound onto a readable error.
func exists(ctx context.Context, kind, name string, get func(context.Context) error) error {
	if name == "" {
		return fmt.Errorf("%s name is empty", kind)
	}
	err := get(ctx)
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %s does not exist", kind, name)
	default:
		return fmt.Errorf("check %s %s: %w", kind, name, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func subscriptionResourceName(projectID, name string) string {
	return resourceName(projectID, name, "subscriptions")
}

func topicResourceName(projectID, name string) string {
	return resourceName(projectID, name, "topics")
}

// resourceName expands a short id to projects/<p>/<kind>/<id>. Full names
// pass through unchanged.
func resourceName(projectID, name, kind string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/" + kind + "/" + n
}
