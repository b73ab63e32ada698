package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tourforge/backend/internal/config"
	polyline "github.com/twpayne/go-polyline"
)

// RouteService proxies directions lookups to a Valhalla server. Tour editing
// only needs the road-following path between waypoints; everything else about
// routing stays external.
type RouteService struct {
	cfg    *config.Config
	client *http.Client
}

func NewRouteService(cfg *config.Config) *RouteService {
	return &RouteService{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Valhalla encodes leg shapes with 6 decimal digits of precision
var valhallaCodec = polyline.Codec{Dim: 2, Scale: 1e6}

type valhallaLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type valhallaRequest struct {
	Locations []valhallaLocation `json:"locations"`
	Costing   string             `json:"costing"`
}

type valhallaResponse struct {
	Trip struct {
		Legs []struct {
			Shape string `json:"shape"`
		} `json:"legs"`
	} `json:"trip"`
}

// Directions returns the driving path through the given (lat, lng) locations
// as a polyline with longitude-first coordinate order.
func (s *RouteService) Directions(ctx context.Context, locations [][2]float64) (string, error) {
	if len(locations) < 2 {
		return "", errors.New("at least two locations are required")
	}

	req := valhallaRequest{Costing: "auto"}
	for _, loc := range locations {
		req.Locations = append(req.Locations, valhallaLocation{Lat: loc[0], Lon: loc[1]})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ValhallaURL+"/route", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("routing service returned status %d", resp.StatusCode)
	}

	var routeResp valhallaResponse
	if err := json.NewDecoder(resp.Body).Decode(&routeResp); err != nil {
		return "", err
	}

	var path [][]float64
	for _, leg := range routeResp.Trip.Legs {
		coords, _, err := valhallaCodec.DecodeCoords([]byte(leg.Shape))
		if err != nil {
			return "", fmt.Errorf("failed to decode route shape: %w", err)
		}
		for _, c := range coords {
			// swap to (lng, lat) for the frontend's geojson ordering
			path = append(path, []float64{c[1], c[0]})
		}
	}

	return string(polyline.EncodeCoords(path)), nil
}
