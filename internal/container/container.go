package container

import (
	"prizeledger/internal/authz"
	"prizeledger/internal/config"
	"prizeledger/internal/token"
	"prizeledger/pkg/logger"
	"prizeledger/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	Registry    *authz.Registry
	Bank        *token.Bank
}

// New creates a new dependency injection container
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	// Initialize Redis client if Redis URL is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			redisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without caching")
	}

	// The role registry is seeded with the configured admin, who can then
	// grant organizer, judge and pauser roles over the API.
	registry := authz.NewRegistry(cfg.AdminAddress)

	return &Container{
		Config:      cfg,
		Logger:      log,
		RedisClient: redisClient,
		Registry:    registry,
		Bank:        token.NewBank(),
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// GetRegistry returns the role registry
func (c *Container) GetRegistry() *authz.Registry {
	return c.Registry
}

// GetBank returns the in-process token bank
func (c *Container) GetBank() *token.Bank {
	return c.Bank
}
