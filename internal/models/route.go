package models

import (
	"encoding/json"
	"fmt"
)

type RoutePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type RoutePolyline struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Color  string       `json:"color"`
	Points []RoutePoint `json:"points"`
}

// EncodeRoutes serializes drawn detour polylines into the text form stored on
// the alert record. Geometry is validated before it is accepted.
func EncodeRoutes(routes []RoutePolyline) (string, error) {
	if len(routes) == 0 {
		return "", nil
	}
	if err := ValidateRoutes(routes); err != nil {
		return "", err
	}
	b, err := json.Marshal(routes)
	if err != nil {
		return "", fmt.Errorf("error encoding routes: %w", err)
	}
	return string(b), nil
}

// DecodeRoutes parses a stored route blob and re-checks its shape. Callers
// serving reads should treat an error as "no routes" rather than failing the
// whole response; the blob is denormalized client-drawn data.
func DecodeRoutes(raw string) ([]RoutePolyline, error) {
	if raw == "" {
		return nil, nil
	}
	var routes []RoutePolyline
	if err := json.Unmarshal([]byte(raw), &routes); err != nil {
		return nil, fmt.Errorf("error decoding routes: %w", err)
	}
	if err := ValidateRoutes(routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func ValidateRoutes(routes []RoutePolyline) error {
	for i, r := range routes {
		if len(r.Points) < 2 {
			return fmt.Errorf("route %d: needs at least two points", i)
		}
		for j, p := range r.Points {
			if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
				return fmt.Errorf("route %d point %d: coordinates out of range", i, j)
			}
		}
	}
	return nil
}
