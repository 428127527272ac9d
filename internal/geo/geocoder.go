// README: Address geocoding through the Google Maps API.
package geo

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"fastdelivery/internal/types"
)

// Client resolves free-form delivery addresses to coordinates. It satisfies
// the order service's Geocoder; callers treat failures as best-effort.
type Client struct {
	maps *maps.Client
}

func NewClient(apiKey string) (*Client, error) {
	mc, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Client{maps: mc}, nil
}

func (c *Client) Geocode(ctx context.Context, address string) (types.Point, error) {
	results, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return types.Point{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("geocode %q: no results", address)
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
