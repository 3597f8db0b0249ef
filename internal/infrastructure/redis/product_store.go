package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	codeMissing      = -1
	codeInsufficient = -2
	codeExists       = -3
)

// KEYS[1]: id sequence, KEYS[2]: product index, ARGV[1]: requested id or 0,
// ARGV[2]: product key prefix, ARGV[3..]: hash field/value pairs.
// The sequence is raised to every explicit id so auto ids never collide with it.
var createScript = goredis.NewScript(`
local id = tonumber(ARGV[1])
if id == 0 then
    repeat
        id = redis.call('incr', KEYS[1])
    until redis.call('exists', ARGV[2] .. '{' .. id .. '}') == 0
else
    if redis.call('exists', ARGV[2] .. '{' .. id .. '}') == 1 then
        return -3
    end
    local seq = tonumber(redis.call('get', KEYS[1]) or '0')
    if seq < id then
        redis.call('set', KEYS[1], id)
    end
end
redis.call('hset', ARGV[2] .. '{' .. id .. '}', unpack(ARGV, 3))
redis.call('zadd', KEYS[2], id, id)
return id
`)

// KEYS[1]: product hash, ARGV[1]: units, ARGV[2]: updated_at
var reserveScript = goredis.NewScript(`
if redis.call('exists', KEYS[1]) == 0 then
    return -1
end
local available = tonumber(redis.call('hget', KEYS[1], 'available'))
local units = tonumber(ARGV[1])
if available < units then
    return -2
end
redis.call('hset', KEYS[1], 'updated_at', ARGV[2])
return redis.call('hincrby', KEYS[1], 'available', -units)
`)

// KEYS[1]: product hash, ARGV[1]: units, ARGV[2]: updated_at
var releaseScript = goredis.NewScript(`
if redis.call('exists', KEYS[1]) == 0 then
    return -1
end
redis.call('hset', KEYS[1], 'updated_at', ARGV[2])
return redis.call('hincrby', KEYS[1], 'available', tonumber(ARGV[1]))
`)

// ProductStore keeps products as hashes. Stock changes run as Lua scripts so the
// check and the decrement are one atomic step.
type ProductStore struct {
	client goredis.UniversalClient
	prefix string
}

var _ dominv.Repository = (*ProductStore)(nil)

func NewProductStore(client goredis.UniversalClient, prefix string) *ProductStore {
	return &ProductStore{client: client, prefix: prefix}
}

func (s *ProductStore) productKey(id int64) string {
	return key(s.prefix, "product", "{"+strconv.FormatInt(id, 10)+"}")
}

// Create stores p under its id, or under the next sequence value when the id is zero.
// An id already in use yields ErrConflict and leaves the stored product untouched.
func (s *ProductStore) Create(ctx context.Context, p *dominv.Product) (*dominv.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID < 0 {
		return nil, fmt.Errorf("%w: id must not be negative", dominv.ErrInvalidProduct)
	}
	stored := *p
	if stored.Code == "" {
		stored.Code = uuid.NewString()
	}
	stored.UpdatedAt = time.Now().UTC()

	id, err := createScript.Run(ctx, s.client,
		[]string{key(s.prefix, "product", "seq"), key(s.prefix, "products")},
		stored.ID, key(s.prefix, "product")+":",
		"code", stored.Code,
		"name", stored.Name,
		"description", stored.Description,
		"category", stored.Category,
		"brand", stored.Brand,
		"price", stored.Price,
		"available", stored.AvailableQuantity,
		"updated_at", stored.UpdatedAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("redis: create product: %w", err)
	}
	if id == codeExists {
		return nil, fmt.Errorf("%w: %d", dominv.ErrConflict, stored.ID)
	}
	stored.ID = id
	return &stored, nil
}

func (s *ProductStore) Get(ctx context.Context, id int64) (*dominv.Product, error) {
	fields, err := s.client.HGetAll(ctx, s.productKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get product %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, dominv.NotFoundError(id)
	}
	return decodeProduct(id, fields)
}

func (s *ProductStore) List(ctx context.Context) ([]*dominv.Product, error) {
	ids, err := s.client.ZRange(ctx, key(s.prefix, "products"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list products: %w", err)
	}

	out := make([]*dominv.Product, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		p, err := s.Get(ctx, id)
		if errors.Is(err, dominv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProductStore) Reserve(ctx context.Context, id int64, units int) (int, error) {
	if units <= 0 {
		return 0, dominv.ErrInvalidQuantity
	}
	return s.run(ctx, reserveScript, id, units)
}

func (s *ProductStore) Release(ctx context.Context, id int64, units int) (int, error) {
	if units <= 0 {
		return 0, dominv.ErrInvalidQuantity
	}
	return s.run(ctx, releaseScript, id, units)
}

func (s *ProductStore) run(ctx context.Context, script *goredis.Script, id int64, units int) (int, error) {
	code, err := script.Run(ctx, s.client,
		[]string{s.productKey(id)},
		units, time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis: adjust stock of %d: %w", id, err)
	}
	switch code {
	case codeMissing:
		return 0, dominv.NotFoundError(id)
	case codeInsufficient:
		return 0, dominv.ErrInsufficientStock
	}
	return int(code), nil
}

func decodeProduct(id int64, f map[string]string) (*dominv.Product, error) {
	price, err := strconv.ParseInt(f["price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: product %d price: %w", id, err)
	}
	available, err := strconv.Atoi(f["available"])
	if err != nil {
		return nil, fmt.Errorf("redis: product %d available: %w", id, err)
	}
	updated, _ := time.Parse(time.RFC3339Nano, f["updated_at"])

	return &dominv.Product{
		ID:                id,
		Code:              f["code"],
		Name:              f["name"],
		Description:       f["description"],
		Category:          f["category"],
		Brand:             f["brand"],
		Price:             price,
		AvailableQuantity: available,
		UpdatedAt:         updated,
	}, nil
}
