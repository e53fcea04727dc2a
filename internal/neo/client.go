package neo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client proxies the NASA NeoWs API. The upstream API key never leaves this
// package; callers authenticate against this service, not NASA.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type Object struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	AbsoluteMagnitude      float64 `json:"absolute_magnitude_h"`
	IsPotentiallyHazardous bool    `json:"is_potentially_hazardous_asteroid"`
	IsSentryObject         bool    `json:"is_sentry_object"`
	NASAJPLURL             string  `json:"nasa_jpl_url"`

	EstimatedDiameter struct {
		Kilometers struct {
			Min float64 `json:"estimated_diameter_min"`
			Max float64 `json:"estimated_diameter_max"`
		} `json:"kilometers"`
	} `json:"estimated_diameter"`

	CloseApproaches []CloseApproach `json:"close_approach_data"`
}

type CloseApproach struct {
	Date             string `json:"close_approach_date"`
	OrbitingBody     string `json:"orbiting_body"`
	RelativeVelocity struct {
		KMPerSecond string `json:"kilometers_per_second"`
	} `json:"relative_velocity"`
	MissDistance struct {
		Kilometers   string `json:"kilometers"`
		Lunar        string `json:"lunar"`
		Astronomical string `json:"astronomical"`
	} `json:"miss_distance"`
}

type Feed struct {
	ElementCount int                 `json:"element_count"`
	Objects      map[string][]Object `json:"near_earth_objects"`
}

// GetFeed returns the close-approach feed for the inclusive date range.
// NASA caps a single request at 7 days.
func (c *Client) GetFeed(ctx context.Context, startDate, endDate string) (Feed, error) {
	params := url.Values{}
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)

	var feed Feed
	if err := c.get(ctx, "/neo/rest/v1/feed", params, &feed); err != nil {
		return Feed{}, err
	}
	return feed, nil
}

func (c *Client) GetObject(ctx context.Context, neoID string) (Object, error) {
	var object Object
	if err := c.get(ctx, "/neo/rest/v1/neo/"+url.PathEscape(neoID), nil, &object); err != nil {
		return Object{}, err
	}
	return object, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dst any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	requestURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build nasa request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nasa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nasa api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode nasa response: %w", err)
	}
	return nil
}

var ErrNotFound = fmt.Errorf("neo object not found")
