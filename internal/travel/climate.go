package travel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Wex47/Orbi/pkg/httpclient"
)

const (
	climateStart = "2010-01-01"
	climateEnd   = "2020-12-31"
)

var (
	ErrInvalidMonth  = errors.New("invalid month: use a month name or a number from 1 to 12")
	ErrPlaceNotFound = errors.New("no coordinates found for place")
	ErrNoClimateData = errors.New("no climate data for the given month")
)

// ClimateReport is the historical monthly average for one place.
type ClimateReport struct {
	Place                  string  `json:"place"`
	Country                string  `json:"country"`
	Month                  string  `json:"month"`
	AverageTemperatureC    float64 `json:"average_temperature_c"`
	AveragePrecipitationMM float64 `json:"average_precipitation_mm"`
}

// ClimateClient geocodes a place and averages ERA5 archive data for a month.
type ClimateClient struct {
	http       *http.Client
	geocodeURL string
	archiveURL string
}

func NewClimateClient(client *http.Client, geocodeURL, archiveURL string) *ClimateClient {
	return &ClimateClient{http: client, geocodeURL: geocodeURL, archiveURL: archiveURL}
}

type geoResult struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type dailyArchive struct {
	Daily struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m_mean"`
		Precipitation []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// ParseMonth accepts an English month name (any case) or a number 1-12.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, ErrInvalidMonth
		}
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, ErrInvalidMonth
}

func (c *ClimateClient) Climate(ctx context.Context, place, month string) (*ClimateReport, error) {
	m, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	loc, err := c.geocode(ctx, place)
	if err != nil {
		return nil, err
	}
	temp, rain, err := c.monthly(ctx, loc, m)
	if err != nil {
		return nil, err
	}

	country := loc.Country
	if country == "" {
		country = "Unknown"
	}
	return &ClimateReport{
		Place:                  loc.Name,
		Country:                country,
		Month:                  m.String(),
		AverageTemperatureC:    temp,
		AveragePrecipitationMM: rain,
	}, nil
}

func (c *ClimateClient) geocode(ctx context.Context, place string) (geoResult, error) {
	q := url.Values{}
	q.Set("name", place)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")
	req, err := http.NewRequest(http.MethodGet, c.geocodeURL+"?"+q.Encode(), nil)
	if err != nil {
		return geoResult{}, err
	}

	var body struct {
		Results []geoResult `json:"results"`
	}
	if err := httpclient.DoJSON(ctx, c.http, req, &body); err != nil {
		return geoResult{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	if len(body.Results) == 0 {
		return geoResult{}, fmt.Errorf("%w: %q", ErrPlaceNotFound, place)
	}
	return body.Results[0], nil
}

// monthly returns the mean daily temperature over every day of month m and
// the mean per-year precipitation total for that month.
func (c *ClimateClient) monthly(ctx context.Context, loc geoResult, m time.Month) (float64, float64, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("start_date", climateStart)
	q.Set("end_date", climateEnd)
	q.Set("daily", "temperature_2m_mean,precipitation_sum")
	q.Set("timezone", "UTC")
	req, err := http.NewRequest(http.MethodGet, c.archiveURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}

	var body dailyArchive
	if err := httpclient.DoJSON(ctx, c.http, req, &body); err != nil {
		return 0, 0, fmt.Errorf("climate archive: %w", err)
	}

	var (
		tempSum   float64
		tempCount int
		rainByYr  = map[int]float64{}
	)
	d := body.Daily
	for i, day := range d.Time {
		t, err := time.Parse(time.DateOnly, day)
		if err != nil || t.Month() != m {
			continue
		}
		if i < len(d.Temperature) && d.Temperature[i] != nil {
			tempSum += *d.Temperature[i]
			tempCount++
		}
		if i < len(d.Precipitation) && d.Precipitation[i] != nil {
			rainByYr[t.Year()] += *d.Precipitation[i]
		} else if _, ok := rainByYr[t.Year()]; !ok {
			rainByYr[t.Year()] = 0
		}
	}
	if tempCount == 0 {
		return 0, 0, ErrNoClimateData
	}

	var rainSum float64
	for _, v := range rainByYr {
		rainSum += v
	}
	return round1(tempSum / float64(tempCount)), round1(rainSum / float64(len(rainByYr))), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
