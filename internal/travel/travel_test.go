package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Wex47/Orbi/internal/credential"
	"github.com/Wex47/Orbi/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Month
		wantErr bool
	}{
		{"may", time.May, false},
		{"  December ", time.December, false},
		{"3", time.March, false},
		{"0", 0, true},
		{"13", 0, true},
		{"smarch", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMonth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClimateAveragesMonthAcrossYears(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Lisbon", r.URL.Query().Get("name"))
		_, _ = io.WriteString(w, `{"results":[{"name":"Lisbon","country":"Portugal","latitude":38.7,"longitude":-9.1}]}`)
	})
	mux.HandleFunc("/archive", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2010-01-01", r.URL.Query().Get("start_date"))
		_, _ = io.WriteString(w, `{"daily":{
			"time":["2010-05-01","2010-05-02","2010-06-01","2011-05-01"],
			"temperature_2m_mean":[18,20,25,null],
			"precipitation_sum":[1.0,2.0,50,3.0]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClimateClient(srv.Client(), srv.URL+"/geo", srv.URL+"/archive")
	got, err := c.Climate(context.Background(), "Lisbon", "May")
	require.NoError(t, err)

	assert.Equal(t, "Lisbon", got.Place)
	assert.Equal(t, "Portugal", got.Country)
	assert.Equal(t, "May", got.Month)
	assert.Equal(t, 19.0, got.AverageTemperatureC)
	// 2010: 3.0, 2011: 3.0
	assert.Equal(t, 3.0, got.AveragePrecipitationMM)
}

func TestClimatePlaceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClimateClient(srv.Client(), srv.URL, srv.URL)
	_, err := c.Climate(context.Background(), "Atlantis", "1")
	assert.ErrorIs(t, err, ErrPlaceNotFound)
}

func newAmadeus(t *testing.T, offersHandler http.HandlerFunc) (*FlightClient, *atomic.Int32) {
	t.Helper()
	var tokens atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":1799}`, n)
	})
	mux.HandleFunc(flightOffersPath, offersHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	creds := credential.New(credential.NewClientCredentials("id", "secret", srv.URL+"/token", srv.Client()))
	return NewFlightClient(srv.Client(), srv.URL, creds), &tokens
}

const offersBody = `{"data":[{"id":"1","price":{"total":"420.00","currency":"EUR"},
  "itineraries":[{"duration":"PT5H","segments":[
    {"departure":{"iataCode":"TLV","at":"2026-11-01T08:00"},"arrival":{"iataCode":"FCO","at":"2026-11-01T11:00"},"carrierCode":"LY","number":"381"}]}]}]}`

func TestSearchFlightsMapsOffers(t *testing.T) {
	c, tokens := newAmadeus(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "TLV", q.Get("originLocationCode"))
		assert.Equal(t, "1", q.Get("adults"))
		assert.Equal(t, "5", q.Get("max"))
		assert.Empty(t, q.Get("returnDate"))
		_, _ = io.WriteString(w, offersBody)
	})

	offers, err := c.SearchFlights(context.Background(), FlightQuery{Origin: "tlv", Destination: "FCO", DepartureDate: "2026-11-01"})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "420.00", offers[0].TotalPrice)
	assert.Equal(t, "LY", offers[0].Segments[0].Carrier)

	_, err = c.SearchFlights(context.Background(), FlightQuery{Origin: "TLV", Destination: "FCO", DepartureDate: "2026-11-02"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, tokens.Load(), "token is reused")
}

func TestSearchFlightsRefreshesTokenOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c, tokens := newAmadeus(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, offersBody)
	})

	offers, err := c.SearchFlights(context.Background(), FlightQuery{Origin: "TLV", Destination: "FCO", DepartureDate: "2026-11-01"})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.EqualValues(t, 2, tokens.Load())
}

func TestSearchFlightsValidatesQuery(t *testing.T) {
	c, _ := newAmadeus(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.SearchFlights(context.Background(), FlightQuery{Origin: "TLV", Destination: "FCO", DepartureDate: "01/11/2026"})
	assert.ErrorIs(t, err, ErrInvalidFlightQuery)
}

func fastPolicy() retry.Policy {
	p := WorldTimePolicy
	p.InitialInterval = time.Millisecond
	p.MaxInterval = time.Millisecond
	return p
}

func TestCurrentTimeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/timezone/America/Argentina/Salta", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"timezone":"America/Argentina/Salta","utc_offset":"-03:00"}`)
	}))
	defer srv.Close()

	c := NewTimeClient(srv.Client(), srv.URL).WithPolicy(fastPolicy())
	got, err := c.CurrentTime(context.Background(), "America/Argentina/Salta")
	require.NoError(t, err)
	assert.Equal(t, "-03:00", got["utc_offset"])
	assert.EqualValues(t, 3, calls.Load())
}

func TestCurrentTimeGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewTimeClient(srv.Client(), srv.URL).WithPolicy(fastPolicy())
	_, err := c.CurrentTime(context.Background(), "Europe/London")
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestCurrentTimeUnknownTimezoneIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewTimeClient(srv.Client(), srv.URL).WithPolicy(fastPolicy())
	_, err := c.CurrentTime(context.Background(), "Mars/Olympus")
	assert.ErrorIs(t, err, ErrUnknownTimezone)
	assert.EqualValues(t, 1, calls.Load())

	_, err = c.CurrentTime(context.Background(), "London")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestCurrentTimeMalformedBodyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"timezone":`)
	}))
	defer srv.Close()

	c := NewTimeClient(srv.Client(), srv.URL).WithPolicy(fastPolicy())
	_, err := c.CurrentTime(context.Background(), "Europe/London")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWarningsFiltersByHebrewNameAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, warningsResourceID, r.URL.Query().Get("resource_id"))
		assert.Equal(t, "32000", r.URL.Query().Get("limit"))
		body := map[string]any{"result": map[string]any{"records": []map[string]string{
			{"country": CountryEnToHe["france"], "recommendations": "avoid demonstrations"},
			{"country": CountryEnToHe["france"], "recommendations": "avoid demonstrations"},
			{"country": CountryEnToHe["france"], "recommendations": "stay alert"},
			{"country": CountryEnToHe["spain"], "recommendations": "none"},
		}}}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := NewWarningsClient(srv.Client(), srv.URL, time.Hour)
	got, err := c.Warnings(context.Background(), " France ")
	require.NoError(t, err)
	assert.Equal(t, []string{"avoid demonstrations", "stay alert"}, got)

	_, err = c.Warnings(context.Background(), "spain")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	unknown, err := c.Warnings(context.Background(), "Narnia")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestEmbassiesExtractsContactsAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, embassiesResourceID, r.URL.Query().Get("resource_id"))
		_, _ = io.WriteString(w, `{"result":{"records":[
			{"shem_mdn_a":"Italy","shem_ntz_a":"Rome","maamad_a":"Embassy","Addrs":"Via M. Mercati 14","tel":"+39 06","email":"&lt;a href=&quot;mailto:info@rome.mfa.gov.il&quot;&gt;","Atar":"<a href=\"https://embassies.gov.il/rome\">site</a>"},
			{"shem_mdn_a":"France","shem_ntz_a":"Paris","maamad_a":"Embassy"}]}}`)
	}))
	defer srv.Close()

	c := NewEmbassiesClient(srv.Client(), srv.URL, time.Hour)
	all, err := c.Embassies(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	it, err := c.Embassies(context.Background(), "italy")
	require.NoError(t, err)
	require.Len(t, it, 1)
	assert.Equal(t, "info@rome.mfa.gov.il", it[0].Email)
	assert.Equal(t, "https://embassies.gov.il/rome", it[0].Website)
}

func TestEmbassiesUpstreamFailureWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEmbassiesClient(srv.Client(), srv.URL, time.Hour)
	_, err := c.Embassies(context.Background(), "")
	assert.Error(t, err)
}

func TestVisaRequirements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-RapidAPI-Key"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]string{"passport": "IL", "destination": "JP"}, in)
		_, _ = io.WriteString(w, `{"data":{"passport":{"code":"IL"},"destination":{"code":"JP"},
			"visa_rules":{"primary_rule":{"name":"Visa-free","duration":"90 days","color":"green"},"secondary_rule":{}},
			"mandatory_registration":null}}`)
	}))
	defer srv.Close()

	c := NewVisaClient(srv.Client(), srv.URL, "secret")
	got, err := c.Requirements(context.Background(), "il", "jp")
	require.NoError(t, err)
	assert.Equal(t, "Visa-free – 90 days", got.Visa.Summary)
	assert.Nil(t, got.Visa.SecondaryRule)
	assert.Nil(t, got.MandatoryRegistration)
	assert.Equal(t, visaSource, got.Source)

	_, err = c.Requirements(context.Background(), "Israel", "JP")
	assert.True(t, errors.Is(err, ErrInvalidCountryCode))
}

func TestVisaSummaryLine(t *testing.T) {
	assert.Equal(t, "Visa information unavailable", VisaSummaryLine(nil, nil))
	assert.Equal(t, "eVisa / Visa on arrival",
		VisaSummaryLine(&VisaRule{Name: "eVisa"}, &VisaRule{Name: "Visa on arrival"}))
	assert.Equal(t, "eVisa / VOA – 30 days",
		VisaSummaryLine(&VisaRule{Name: "eVisa"}, &VisaRule{Name: "VOA", Duration: "30 days"}))
	assert.True(t, strings.HasPrefix(VisaSummaryLine(&VisaRule{Name: "x", Duration: "1"}, nil), "x"))
}
