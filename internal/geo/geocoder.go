package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

const defaultGeocoderURL = "https://geocode-maps.yandex.ru/1.x"

// Geocoder resolves free-form addresses through the Yandex geocoder API.
type Geocoder struct {
	http   *http.Client
	apiKey string
	base   string
}

// GeocoderOptions configures a Geocoder.
type GeocoderOptions struct {
	APIKey string
	// BaseURL defaults to the public Yandex geocoder endpoint.
	BaseURL string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// NewGeocoder constructs a Yandex geocoder client.
func NewGeocoder(opts GeocoderOptions) *Geocoder {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultGeocoderURL
	}
	return &Geocoder{http: httpClient, apiKey: opts.APIKey, base: base}
}

type geocodeResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// Geocode resolves an address to coordinates. found is false when the
// geocoder recognizes nothing in the text, which is not an error.
func (g *Geocoder) Geocode(ctx context.Context, address string) (point Point, found bool, err error) {
	query := url.Values{
		"geocode": []string{address},
		"apikey":  []string{g.apiKey},
		"format":  []string{"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"?"+query.Encode(), nil)
	if err != nil {
		return Point{}, false, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return Point{}, false, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Point{}, false, fmt.Errorf("read geocode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Point{}, false, fmt.Errorf("geocoder returned status %d: %s",
			resp.StatusCode, logger.SanitizeLimit(string(body), 256))
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Point{}, false, fmt.Errorf("parse geocode response: %w", err)
	}

	members := parsed.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		logger.Debug(ctx, "geo", "geocode.miss", slog.String("address", logger.SanitizeLimit(address, 128)))
		return Point{}, false, nil
	}

	// The most relevant match comes first; pos is "lon lat".
	point, err = parsePos(members[0].GeoObject.Point.Pos)
	if err != nil {
		return Point{}, false, err
	}
	return point, true, nil
}

func parsePos(pos string) (Point, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("malformed point %q", pos)
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed latitude %q", parts[1])
	}
	return Point{Lat: lat, Lon: lon}, nil
}
