package travel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Wex47/Orbi/internal/credential"
	"github.com/Wex47/Orbi/internal/retry"
	"github.com/Wex47/Orbi/pkg/httpclient"
)

const flightOffersPath = "/v2/shopping/flight-offers"

var ErrInvalidFlightQuery = errors.New("invalid flight query")

// FlightQuery uses IATA codes and YYYY-MM-DD dates.
type FlightQuery struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Adults        int
	MaxResults    int
}

type FlightSegment struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	Carrier      string `json:"carrier,omitempty"`
	FlightNumber string `json:"flight_number,omitempty"`
}

type FlightOffer struct {
	ID         string          `json:"id"`
	TotalPrice string          `json:"total_price"`
	Currency   string          `json:"currency"`
	Duration   string          `json:"duration"`
	Segments   []FlightSegment `json:"segments"`
}

// FlightClient searches Amadeus flight offers with a cached bearer token.
type FlightClient struct {
	http    *http.Client
	baseURL string
	creds   *credential.Cache
}

func NewFlightClient(client *http.Client, baseURL string, creds *credential.Cache) *FlightClient {
	return &FlightClient{http: client, baseURL: strings.TrimRight(baseURL, "/"), creds: creds}
}

type amadeusOffers struct {
	Data []struct {
		ID    string `json:"id"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				Departure struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"arrival"`
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
			} `json:"segments"`
		} `json:"itineraries"`
	} `json:"data"`
}

func (q *FlightQuery) normalize() error {
	q.Origin = strings.ToUpper(strings.TrimSpace(q.Origin))
	q.Destination = strings.ToUpper(strings.TrimSpace(q.Destination))
	if q.Origin == "" || q.Destination == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrInvalidFlightQuery)
	}
	for _, d := range []string{q.DepartureDate, q.ReturnDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidFlightQuery, d)
		}
	}
	if q.DepartureDate == "" {
		return fmt.Errorf("%w: departure_date is required", ErrInvalidFlightQuery)
	}
	if q.Adults <= 0 {
		q.Adults = 1
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 5
	}
	return nil
}

// SearchFlights returns offers for q. A 401 drops the cached token and the
// request is tried once more with a fresh one.
func (c *FlightClient) SearchFlights(ctx context.Context, q FlightQuery) ([]FlightOffer, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.DepartureDate)
	params.Set("adults", strconv.Itoa(q.Adults))
	params.Set("max", strconv.Itoa(q.MaxResults))
	if q.ReturnDate != "" {
		params.Set("returnDate", q.ReturnDate)
	}

	policy := retry.Policy{
		Name:        "amadeus",
		MaxAttempts: 2,
		Retryable: func(err error) bool {
			return httpclient.StatusCode(err) == http.StatusUnauthorized
		},
	}
	body, err := retry.Do(ctx, policy, func(ctx context.Context) (*amadeusOffers, error) {
		tok, err := c.creds.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("amadeus token: %w", err)
		}
		req, err := http.NewRequest(http.MethodGet, c.baseURL+flightOffersPath+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

		var out amadeusOffers
		if err := httpclient.DoJSON(ctx, c.http, req, &out); err != nil {
			if httpclient.StatusCode(err) == http.StatusUnauthorized {
				c.creds.Invalidate()
			}
			return nil, fmt.Errorf("amadeus flight offers: %w", err)
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	offers := make([]FlightOffer, 0, len(body.Data))
	for _, item := range body.Data {
		if len(item.Itineraries) == 0 {
			continue
		}
		it := item.Itineraries[0]
		offer := FlightOffer{
			ID:         item.ID,
			TotalPrice: item.Price.Total,
			Currency:   item.Price.Currency,
			Duration:   it.Duration,
		}
		for _, s := range it.Segments {
			offer.Segments = append(offer.Segments, FlightSegment{
				From:         s.Departure.IATACode,
				To:           s.Arrival.IATACode,
				Departure:    s.Departure.At,
				Arrival:      s.Arrival.At,
				Carrier:      s.CarrierCode,
				FlightNumber: s.Number,
			})
		}
		offers = append(offers, offer)
	}
	return offers, nil
}
