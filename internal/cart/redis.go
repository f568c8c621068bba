package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisCart stores each cart as a hash cart:{account} of product id -> JSON line.
type RedisCart struct {
	rdb redis.Cmdable
}

func NewRedisCart(rdb redis.Cmdable) *RedisCart {
	return &RedisCart{rdb: rdb}
}

func cartKey(accountID string) string {
	return "cart:" + accountID
}

// Put sets a line, replacing any existing line for the same product.
func (c *RedisCart) Put(ctx context.Context, accountID string, line Line) error {
	b, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal cart line: %w", err)
	}
	return c.rdb.HSet(ctx, cartKey(accountID), line.ProductID, b).Err()
}

func (c *RedisCart) Items(ctx context.Context, accountID string) ([]Line, error) {
	raw, err := c.rdb.HGetAll(ctx, cartKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read cart %s: %w", accountID, err)
	}
	lines := make([]Line, 0, len(raw))
	for productID, v := range raw {
		var l Line
		if err := json.Unmarshal([]byte(v), &l); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", productID, err)
		}
		l.ProductID = productID
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (c *RedisCart) Clear(ctx context.Context, accountID string) error {
	return c.rdb.Del(ctx, cartKey(accountID)).Err()
}

var _ Cart = (*RedisCart)(nil)
