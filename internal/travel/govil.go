package travel

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Wex47/Orbi/internal/datacache"
	"github.com/Wex47/Orbi/pkg/httpclient"
)

const (
	warningsResourceID  = "2a01d234-b2b0-4d46-baa0-cec05c401e7d"
	embassiesResourceID = "6fc859cb-8a6f-458b-bd5a-9bd0cfbfce11"
	warningsLimit       = 32000

	datasetKey = "all"
)

//go:embed data/country_en_to_he.json
var countryEnToHeJSON []byte

// CountryEnToHe maps lower-case English country names to the Hebrew names used by data.gov.il.
var CountryEnToHe = mustCountryMap(countryEnToHeJSON)

func mustCountryMap(raw []byte) map[string]string {
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("travel: country map: %v", err))
	}
	return m
}

type datastoreResponse[R any] struct {
	Result struct {
		Records []R `json:"records"`
	} `json:"result"`
}

func fetchDatastore[R any](ctx context.Context, client *http.Client, baseURL, resourceID string, limit int) ([]R, error) {
	q := url.Values{}
	q.Set("resource_id", resourceID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequest(http.MethodGet, baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var body datastoreResponse[R]
	if err := httpclient.DoJSON(ctx, client, req, &body); err != nil {
		return nil, fmt.Errorf("data.gov.il %s: %w", resourceID, err)
	}
	return body.Result.Records, nil
}

// WarningRecord is one row of the travel warnings dataset.
type WarningRecord struct {
	Country         string `json:"country"`
	Recommendations string `json:"recommendations"`
}

// WarningsClient serves travel warnings from a TTL cache of the full dataset.
type WarningsClient struct {
	cache *datacache.Cache[[]WarningRecord]
}

func NewWarningsClient(client *http.Client, baseURL string, ttl time.Duration, opts ...datacache.Option) *WarningsClient {
	fetch := func(ctx context.Context, _ string) ([]WarningRecord, error) {
		return fetchDatastore[WarningRecord](ctx, client, baseURL, warningsResourceID, warningsLimit)
	}
	return &WarningsClient{cache: datacache.New("travel_warnings", ttl, fetch, opts...)}
}

// Warnings returns the distinct recommendations for an English country
// name. Countries without a Hebrew mapping yield an empty list.
func (c *WarningsClient) Warnings(ctx context.Context, countryEN string) ([]string, error) {
	hebrew, ok := CountryEnToHe[strings.ToLower(strings.TrimSpace(countryEN))]
	if !ok {
		return []string{}, nil
	}
	records, err := c.cache.Get(ctx, datasetKey)
	if err != nil {
		return nil, err
	}

	out := []string{}
	for _, r := range records {
		if r.Country == hebrew && r.Recommendations != "" && !slices.Contains(out, r.Recommendations) {
			out = append(out, r.Recommendations)
		}
	}
	return out, nil
}

// Embassy is a normalised embassy or consulate contact.
type Embassy struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Type    string `json:"type"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

type embassyRecord struct {
	Country string `json:"shem_mdn_a"`
	City    string `json:"shem_ntz_a"`
	Type    string `json:"maamad_a"`
	Address string `json:"Addrs"`
	Phone   string `json:"tel"`
	Email   string `json:"email"`
	Website string `json:"Atar"`
}

var (
	emailRe = regexp.MustCompile(`(?i)mailto:([^"'>\s]+)`)
	urlRe   = regexp.MustCompile(`(?i)https?://[^"'>\s]+`)
)

// ExtractEmail pulls the mailto address out of an HTML fragment.
func ExtractEmail(v string) string {
	if m := emailRe.FindStringSubmatch(html.UnescapeString(v)); m != nil {
		return m[1]
	}
	return ""
}

// ExtractWebsite pulls the first http(s) URL out of an HTML fragment.
func ExtractWebsite(v string) string {
	return urlRe.FindString(html.UnescapeString(v))
}

// EmbassiesClient serves the Israeli embassy directory from a TTL cache.
type EmbassiesClient struct {
	cache *datacache.Cache[[]Embassy]
}

func NewEmbassiesClient(client *http.Client, baseURL string, ttl time.Duration, opts ...datacache.Option) *EmbassiesClient {
	fetch := func(ctx context.Context, _ string) ([]Embassy, error) {
		records, err := fetchDatastore[embassyRecord](ctx, client, baseURL, embassiesResourceID, 0)
		if err != nil {
			return nil, err
		}
		out := make([]Embassy, 0, len(records))
		for _, r := range records {
			out = append(out, Embassy{
				Country: r.Country,
				City:    r.City,
				Type:    r.Type,
				Address: r.Address,
				Phone:   r.Phone,
				Email:   ExtractEmail(r.Email),
				Website: ExtractWebsite(r.Website),
			})
		}
		return out, nil
	}
	return &EmbassiesClient{cache: datacache.New("israeli_embassies", ttl, fetch, opts...)}
}

// Embassies lists every mission, or those whose country matches case-insensitively.
func (c *EmbassiesClient) Embassies(ctx context.Context, country string) ([]Embassy, error) {
	all, err := c.cache.Get(ctx, datasetKey)
	if err != nil {
		return nil, err
	}
	country = strings.TrimSpace(country)
	if country == "" {
		return all, nil
	}
	out := []Embassy{}
	for _, e := range all {
		if strings.EqualFold(e.Country, country) {
			out = append(out, e)
		}
	}
	return out, nil
}
