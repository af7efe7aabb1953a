package cache

import "context"

// NoOpCache never stores anything.
type NoOpCache struct{}

func (c *NoOpCache) Get(ctx context.Context, key string) (*Entry, error) {
	return nil, ErrMiss
}

func (c *NoOpCache) Set(ctx context.Context, key string, payload []byte) error {
	return nil
}

func (c *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}
