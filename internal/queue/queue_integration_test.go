//go:build integration
// +build integration

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rajinder-mohan/yt2txt/internal/config"
)

func setupTestRabbitMQ(t *testing.T) (*config.RabbitMQConfig, func()) {
	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	host, err := rabbitmqContainer.Host(ctx)
	require.NoError(t, err)

	port, err := rabbitmqContainer.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	cfg := &config.RabbitMQConfig{
		Host:       host,
		Port:       port.Int(),
		User:       "guest",
		Password:   "guest",
		Exchange:   "test.transcription",
		Queue:      "test.transcription.jobs",
		RoutingKey: "test.requested",
	}

	cleanup := func() {
		if err := rabbitmqContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return cfg, cleanup
}

func TestPublisher_PublishJob(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.IsHealthy())

	err = p.PublishJob(context.Background(), NewTranscribeJob("dQw4w9WgXcQ", false))
	assert.NoError(t, err)
}

// A request can enqueue a whole batch through one publisher; every publish
// must get its own confirmation back on the shared channel.
func TestPublisher_PublishJobBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 10; i++ {
		err := p.PublishJob(context.Background(), NewTranscribeJob("dQw4w9WgXcQ", false))
		require.NoErrorf(t, err, "publish %d should be confirmed", i+1)
	}
}

func TestPublishConsume_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer p.Close()

	received := make(chan *TranscribeJob, 1)
	consumer, err := NewConsumer(cfg, func(_ context.Context, job *TranscribeJob) error {
		received <- job
		return nil
	})
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Run(ctx) }()

	sent := NewTranscribeJob("dQw4w9WgXcQ", true)
	require.NoError(t, p.PublishJob(context.Background(), sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.VideoID, got.VideoID)
		assert.True(t, got.AllowRetry)
	case <-time.After(10 * time.Second):
		t.Fatal("job was not consumed in time")
	}
}

func TestPublisher_IsHealthyAfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg, cleanup := setupTestRabbitMQ(t)
	defer cleanup()

	time.Sleep(2 * time.Second)

	p, err := NewPublisher(cfg)
	require.NoError(t, err)

	assert.True(t, p.IsHealthy())
	p.Close()
	assert.False(t, p.IsHealthy())
}
