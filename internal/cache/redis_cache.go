package cache

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"

	"loungeerp/backend/internal/domain"
)

// RedisBuckets keeps the serialized bucket lists in redis so a restarted
// process can skip the initial full-ledger read. Invalidation is a DEL, so
// the layer stays consistent under the single-writer convention.
type RedisBuckets struct {
	client *redis.Client
	prefix string
}

func NewRedisBuckets(addr string, password string, db int) *RedisBuckets {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisBuckets{client: client, prefix: "loungeerp:"}
}

func (c *RedisBuckets) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBuckets) Close() error {
	return c.client.Close()
}

func (c *RedisBuckets) get(ctx context.Context, bucket string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, c.prefix+bucket).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisBuckets) set(ctx context.Context, bucket string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+bucket, payload, 0).Err()
}

func (c *RedisBuckets) GetProducts(ctx context.Context) ([]domain.Product, bool, error) {
	var products []domain.Product
	ok, err := c.get(ctx, BucketProducts, &products)
	return products, ok, err
}

func (c *RedisBuckets) SetProducts(ctx context.Context, products []domain.Product) error {
	return c.set(ctx, BucketProducts, products)
}

func (c *RedisBuckets) GetSalesmen(ctx context.Context) ([]domain.Salesman, bool, error) {
	var salesmen []domain.Salesman
	ok, err := c.get(ctx, BucketSalesmen, &salesmen)
	return salesmen, ok, err
}

func (c *RedisBuckets) SetSalesmen(ctx context.Context, salesmen []domain.Salesman) error {
	return c.set(ctx, BucketSalesmen, salesmen)
}

func (c *RedisBuckets) GetTransactions(ctx context.Context) ([]domain.Transaction, bool, error) {
	var transactions []domain.Transaction
	ok, err := c.get(ctx, BucketTransactions, &transactions)
	return transactions, ok, err
}

func (c *RedisBuckets) SetTransactions(ctx context.Context, transactions []domain.Transaction) error {
	return c.set(ctx, BucketTransactions, transactions)
}

func (c *RedisBuckets) Invalidate(ctx context.Context, bucket string) error {
	return c.client.Del(ctx, c.prefix+bucket).Err()
}
