package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"palmshell-dispatch/internal/domain"
)

// PositionTTL is how long the latest position stays cached.
const PositionTTL = 30 * time.Minute

// PositionKey returns the cache key of a delivery's latest position.
func PositionKey(deliveryID int64) string {
	return "delivery:position:" + strconv.FormatInt(deliveryID, 10)
}

type position struct {
	ID         int64     `json:"id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
	// Micros is recorded_at in unix microseconds; it stays exact as a Lua number.
	Micros int64 `json:"ts"`
}

// putNewer writes ARGV[1] unless the cached point was recorded after ARGV[2].
const putNewer = `
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, v = pcall(cjson.decode, cur)
  if ok and type(v) == 'table' and tonumber(v['ts']) and tonumber(v['ts']) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`

// Positions caches the latest position per delivery.
type Positions struct {
	c   *Client
	ttl time.Duration
}

// NewPositions returns the position cache. ttl <= 0 uses PositionTTL.
func NewPositions(c *Client, ttl time.Duration) *Positions {
	if ttl <= 0 {
		ttl = PositionTTL
	}
	return &Positions{c: c, ttl: ttl}
}

// Put stores tp as the latest position of its delivery unless a point
// recorded later is already cached. Concurrent writers may finish in any order.
func (p *Positions) Put(ctx context.Context, tp domain.TrackPoint) error {
	micros := tp.RecordedAt.UnixMicro()
	raw, err := json.Marshal(position{ID: tp.ID, Lat: tp.Lat, Lng: tp.Lng, RecordedAt: tp.RecordedAt, Micros: micros})
	if err != nil {
		return err
	}
	err = p.c.store.Eval(ctx, putNewer, []string{PositionKey(tp.DeliveryID)},
		string(raw), micros, p.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("cache position of delivery %d: %w", tp.DeliveryID, err)
	}
	return nil
}

// Latest returns the cached position, or nil on a miss.
func (p *Positions) Latest(ctx context.Context, deliveryID int64) (*domain.TrackPoint, error) {
	raw, err := p.c.store.Get(ctx, PositionKey(deliveryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read position of delivery %d: %w", deliveryID, err)
	}
	var v position
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode position of delivery %d: %w", deliveryID, err)
	}
	return &domain.TrackPoint{
		ID:         v.ID,
		DeliveryID: deliveryID,
		Location:   domain.Location{Lat: v.Lat, Lng: v.Lng},
		RecordedAt: v.RecordedAt,
	}, nil
}
