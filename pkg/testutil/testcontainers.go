package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type ContainerConfig struct {
	MongoDBVersion  string
	RedisVersion    string
	RabbitMQVersion string
}

func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		MongoDBVersion:  "7.0",
		RedisVersion:    "7.2",
		RabbitMQVersion: "3.13-management",
	}
}

// container is embedded by every typed container so tests share one Close.
type container struct {
	Container testcontainers.Container
}

func (c *container) Close(ctx context.Context) error {
	if c.Container == nil {
		return nil
	}
	return c.Container.Terminate(ctx)
}

// start runs req and resolves the host endpoint of its single exposed port. The container is
// terminated when any step after creation fails.
func start(ctx context.Context, req testcontainers.ContainerRequest, ready func(testcontainers.Container) error) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start %s: %w", req.Image, err)
	}

	if ready != nil {
		if err := ready(c); err != nil {
			c.Terminate(ctx)
			return nil, "", err
		}
	}

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		c.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get %s endpoint: %w", req.Image, err)
	}
	return c, endpoint, nil
}

// MongoDBContainer runs a single-node replica set so multi-document transactions work.
type MongoDBContainer struct {
	container
	URI          string
	DatabaseName string
}

func StartMongoContainer(ctx context.Context) (*MongoDBContainer, error) {
	return StartMongoContainerWithConfig(ctx, DefaultContainerConfig())
}

func StartMongoContainerWithConfig(ctx context.Context, config ContainerConfig) (*MongoDBContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "mongo:" + config.MongoDBVersion,
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Waiting for connections"),
			wait.ForListeningPort("27017/tcp"),
		).WithDeadline(60 * time.Second),
	}

	initReplicaSet := func(c testcontainers.Container) error {
		code, _, err := c.Exec(ctx, []string{
			"mongosh", "--quiet", "--eval",
			`rs.initiate({_id: "rs0", members: [{_id: 0, host: "localhost:27017"}]})`,
		})
		if err != nil || code != 0 {
			return fmt.Errorf("failed to initiate replica set (exit %d): %v", code, err)
		}
		return nil
	}

	c, endpoint, err := start(ctx, req, initReplicaSet)
	if err != nil {
		return nil, err
	}

	return &MongoDBContainer{
		container:    container{Container: c},
		URI:          fmt.Sprintf("mongodb://%s/?directConnection=true", endpoint),
		DatabaseName: "testdb",
	}, nil
}

type RedisContainer struct {
	container
	Addr string
}

func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	return StartRedisContainerWithConfig(ctx, DefaultContainerConfig())
}

func StartRedisContainerWithConfig(ctx context.Context, config ContainerConfig) (*RedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:" + config.RedisVersion,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithDeadline(30 * time.Second),
	}

	c, endpoint, err := start(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return &RedisContainer{container: container{Container: c}, Addr: endpoint}, nil
}

type RabbitMQContainer struct {
	container
	URI string
}

func StartRabbitMQContainer(ctx context.Context) (*RabbitMQContainer, error) {
	return StartRabbitMQContainerWithConfig(ctx, DefaultContainerConfig())
}

func StartRabbitMQContainerWithConfig(ctx context.Context, config ContainerConfig) (*RabbitMQContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:" + config.RabbitMQVersion,
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "test",
			"RABBITMQ_DEFAULT_PASS": "test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("Server startup complete"),
			wait.ForListeningPort("5672/tcp"),
		).WithDeadline(90 * time.Second),
	}

	c, endpoint, err := start(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return &RabbitMQContainer{
		container: container{Container: c},
		URI:       fmt.Sprintf("amqp://test:test@%s/", endpoint),
	}, nil
}
