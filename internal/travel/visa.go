package travel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Wex47/Orbi/pkg/httpclient"
)

const (
	visaSource     = "Travel Buddy (RapidAPI)"
	visaDisclaimer = "Visa rules may change. Always verify with official sources."
)

var ErrInvalidCountryCode = errors.New("country codes must be ISO alpha-2 or alpha-3")

// VisaRule is a normalised rule from the visa dataset.
type VisaRule struct {
	Name          string   `json:"name,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	Color         string   `json:"color,omitempty"`
	Link          string   `json:"link,omitempty"`
	FullText      string   `json:"full_text,omitempty"`
	ExceptionType string   `json:"exception_type,omitempty"`
	CountryCodes  []string `json:"country_codes,omitempty"`
}

type VisaSummary struct {
	Summary       string    `json:"summary"`
	PrimaryRule   *VisaRule `json:"primary_rule"`
	SecondaryRule *VisaRule `json:"secondary_rule"`
	ExceptionRule *VisaRule `json:"exception_rule"`
}

type VisaReport struct {
	Passport              json.RawMessage `json:"passport,omitempty"`
	Destination           json.RawMessage `json:"destination,omitempty"`
	Visa                  VisaSummary     `json:"visa"`
	MandatoryRegistration *VisaRule       `json:"mandatory_registration"`
	Source                string          `json:"source"`
	Disclaimer            string          `json:"disclaimer"`
}

type rawRule struct {
	Name              string   `json:"name"`
	Duration          string   `json:"duration"`
	Color             string   `json:"color"`
	Link              string   `json:"link"`
	FullText          string   `json:"full_text"`
	ExceptionTypeName string   `json:"exception_type_name"`
	CountryCodes      []string `json:"country_codes"`
}

type visaResponse struct {
	Data struct {
		Passport    json.RawMessage `json:"passport"`
		Destination json.RawMessage `json:"destination"`
		VisaRules   struct {
			Primary   *rawRule `json:"primary_rule"`
			Secondary *rawRule `json:"secondary_rule"`
			Exception *rawRule `json:"exception_rule"`
		} `json:"visa_rules"`
		MandatoryRegistration *rawRule `json:"mandatory_registration"`
	} `json:"data"`
}

// VisaClient queries Travel Buddy visa rules through RapidAPI.
type VisaClient struct {
	http   *http.Client
	url    string
	apiKey string
}

func NewVisaClient(client *http.Client, endpoint, apiKey string) *VisaClient {
	return &VisaClient{http: client, url: endpoint, apiKey: apiKey}
}

func (c *VisaClient) Requirements(ctx context.Context, passport, destination string) (*VisaReport, error) {
	passport = strings.ToUpper(strings.TrimSpace(passport))
	destination = strings.ToUpper(strings.TrimSpace(destination))
	if !validCountryCode(passport) || !validCountryCode(destination) {
		return nil, ErrInvalidCountryCode
	}

	payload, err := json.Marshal(map[string]string{"passport": passport, "destination": destination})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	if u, err := url.Parse(c.url); err == nil {
		req.Header.Set("X-RapidAPI-Host", u.Host)
	}

	var raw visaResponse
	if err := httpclient.DoJSON(ctx, c.http, req, &raw); err != nil {
		return nil, fmt.Errorf("visa requirements: %w", err)
	}

	d := raw.Data
	primary := normalizeRule(d.VisaRules.Primary)
	secondary := normalizeRule(d.VisaRules.Secondary)
	return &VisaReport{
		Passport:    d.Passport,
		Destination: d.Destination,
		Visa: VisaSummary{
			Summary:       VisaSummaryLine(primary, secondary),
			PrimaryRule:   primary,
			SecondaryRule: secondary,
			ExceptionRule: normalizeRule(d.VisaRules.Exception),
		},
		MandatoryRegistration: normalizeRule(d.MandatoryRegistration),
		Source:                visaSource,
		Disclaimer:            visaDisclaimer,
	}, nil
}

func validCountryCode(s string) bool {
	if len(s) != 2 && len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// normalizeRule maps missing or empty rules to nil.
func normalizeRule(r *rawRule) *VisaRule {
	if r == nil || (r.Name == "" && r.Duration == "" && r.FullText == "" && r.Link == "") {
		return nil
	}
	return &VisaRule{
		Name:          r.Name,
		Duration:      r.Duration,
		Color:         r.Color,
		Link:          r.Link,
		FullText:      r.FullText,
		ExceptionType: r.ExceptionTypeName,
		CountryCodes:  r.CountryCodes,
	}
}

// VisaSummaryLine renders "primary / secondary – duration".
func VisaSummaryLine(primary, secondary *VisaRule) string {
	if primary == nil && secondary == nil {
		return "Visa information unavailable"
	}
	var names []string
	duration := ""
	for _, r := range []*VisaRule{primary, secondary} {
		if r == nil {
			continue
		}
		if r.Name != "" {
			names = append(names, r.Name)
		}
		if duration == "" {
			duration = r.Duration
		}
	}
	line := strings.Join(names, " / ")
	if duration == "" {
		return line
	}
	return line + " – " + duration
}
