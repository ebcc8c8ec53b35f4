package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Ledger key builders

func (kb *KeyBuilder) KeyHackathonInfo(hackathonID int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyHackathonInfo, hackathonID))
}

func (kb *KeyBuilder) KeyPrizeAmount(hackathonID int64, winner string) string {
	return kb.BuildKey(fmt.Sprintf(KeyPrizeAmount, hackathonID, winner))
}

func (kb *KeyBuilder) KeyStats() string {
	return kb.BuildKey(KeyStats)
}

// KeyCustom builds an arbitrary prefixed key
func (kb *KeyBuilder) KeyCustom(format string, args ...interface{}) string {
	return kb.BuildKey(fmt.Sprintf(format, args...))
}
