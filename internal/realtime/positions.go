// README: Last-known driver positions in Redis GEO.
package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"

	"fastdelivery/internal/types"
)

const driverGeoKey = "drivers:positions"

// PositionCache keeps each driver's most recent reported position. Pings
// themselves are ephemeral; this cache only answers "where was the driver
// last seen" for late joiners.
type PositionCache struct {
	redis *redis.Client
}

func NewPositionCache(redis *redis.Client) *PositionCache {
	return &PositionCache{redis: redis}
}

func (p *PositionCache) Set(ctx context.Context, driverID types.ID, pos types.Point) error {
	return p.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (p *PositionCache) Get(ctx context.Context, driverID types.ID) (types.Point, bool, error) {
	res, err := p.redis.GeoPos(ctx, driverGeoKey, string(driverID)).Result()
	if err != nil {
		return types.Point{}, false, err
	}
	if len(res) == 0 || res[0] == nil {
		return types.Point{}, false, nil
	}
	return types.Point{Lat: res[0].Latitude, Lng: res[0].Longitude}, true, nil
}
