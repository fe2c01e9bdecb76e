// README: Google Maps directions client used for route ETA enrichment.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"ridewire/internal/types"
)

// RouteService answers travel estimates between two coordinates.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Estimate returns the driving duration and a human-readable distance from
// origin to destination.
func (s *RouteService) Estimate(ctx context.Context, origin, destination types.Point) (time.Duration, string, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, "", fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, "", fmt.Errorf("no route found")
	}
	leg := routes[0].Legs[0]
	return leg.Duration, leg.Distance.HumanReadable, nil
}
