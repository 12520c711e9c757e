package domain

import "context"

// Planner answers route and rescue-coverage queries.
type Planner interface {
	// Route returns a route between two points.
	Route(ctx context.Context, origin, dest Coordinates) (RouteResult, error)

	// Coverage returns the reachability isolines around a rescue station.
	Coverage(ctx context.Context, origin Coordinates) (CoverageResult, error)
}

// ImageComparer analyzes an uploaded disaster image against reference
// imagery at a location.
type ImageComparer interface {
	CompareImage(ctx context.Context, at Coordinates, zoom int, img ImageUpload) (ImageComparison, error)
}
