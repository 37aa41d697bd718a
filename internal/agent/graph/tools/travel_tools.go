package tools

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Wex47/Orbi/internal/agent/model"
	"github.com/Wex47/Orbi/internal/travel"
)

// ===================================
// Climate
// ===================================

type PlaceClimateInput struct {
	PlaceName string `json:"place_name"`
	Month     string `json:"month"`
}

func createPlaceClimateTool(c *travel.ClimateClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolPlaceClimate,
			Desc: "Returns historical climate averages (2010-2020) for a place and month: average daily temperature in Celsius " +
				"and average monthly precipitation in millimetres. Use it when climate data supports a travel or seasonal decision.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"place_name": {Type: schema.String, Desc: "City, town or region, e.g. Lisbon", Required: true},
				"month":      {Type: schema.String, Desc: "Month name (e.g. May) or number 1-12", Required: true},
			}),
		},
		func(ctx context.Context, in *PlaceClimateInput) (*model.ToolResult, error) {
			if in.PlaceName == "" {
				return nil, errors.New("place_name is required")
			}
			report, err := c.Climate(ctx, in.PlaceName, in.Month)
			if err != nil {
				return nil, err
			}
			return model.ToolOK(report), nil
		},
	)
}

// ===================================
// Flights
// ===================================

type SearchFlightsInput struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Adults        int    `json:"adults,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
}

func createSearchFlightsTool(c *travel.FlightClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchFlights,
			Desc: "Search commercial flight offers between two airports or cities. Inputs use IATA codes (e.g. TLV, JFK) and " +
				"YYYY-MM-DD dates. Returns offers with price, duration and segments. Use it for flight availability, prices or routes.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"origin":         {Type: schema.String, Desc: "IATA code of the departure airport or city", Required: true},
				"destination":    {Type: schema.String, Desc: "IATA code of the arrival airport or city", Required: true},
				"departure_date": {Type: schema.String, Desc: "Outbound date, YYYY-MM-DD", Required: true},
				"return_date":    {Type: schema.String, Desc: "Return date for round trips, YYYY-MM-DD"},
				"adults":         {Type: schema.Integer, Desc: "Number of adult travellers (default 1)"},
				"max_results":    {Type: schema.Integer, Desc: "Maximum number of offers (default 5, max 20)"},
			}),
		},
		func(ctx context.Context, in *SearchFlightsInput) (*model.ToolResult, error) {
			offers, err := c.SearchFlights(ctx, travel.FlightQuery{
				Origin:        in.Origin,
				Destination:   in.Destination,
				DepartureDate: in.DepartureDate,
				ReturnDate:    in.ReturnDate,
				Adults:        in.Adults,
				MaxResults:    in.MaxResults,
			})
			if err != nil {
				return nil, err
			}
			return model.ToolOK(offers), nil
		},
	)
}

// ===================================
// Time
// ===================================

type CurrentTimeInput struct {
	Timezone string `json:"timezone"`
}

func createCurrentTimeTool(c *travel.TimeClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCurrentTime,
			Desc: "Current local time and timezone metadata for an IANA timezone. ALWAYS use it for the date or time in a " +
				"specific place. Examples: Europe/London, Asia/Tokyo, America/Argentina/Salta.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"timezone": {Type: schema.String, Desc: "Area/Location or Area/Location/Region", Required: true},
			}),
		},
		func(ctx context.Context, in *CurrentTimeInput) (*model.ToolResult, error) {
			data, err := c.CurrentTime(ctx, in.Timezone)
			if err != nil {
				return nil, err
			}
			return model.ToolOK(data), nil
		},
	)
}

type LocalDatetimeInput struct{}

func createLocalDatetimeTool(now func() time.Time) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolLocalDatetime,
			Desc: "Returns the current local date and time. Use it for any question about today's date.",
		},
		func(ctx context.Context, _ *LocalDatetimeInput) (*model.ToolResult, error) {
			return model.ToolOK(now().Format(localDatetimeLayout)), nil
		},
	)
}

// ===================================
// data.gov.il
// ===================================

type TravelWarningsInput struct {
	Country string `json:"country"`
}

func createTravelWarningsTool(c *travel.WarningsClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolTravelWarnings,
			Desc: "Israeli National Security Council travel warnings for a country, as published on data.gov.il. " +
				"Recommendations are in Hebrew; an empty list means no warning is published for that country.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"country": {Type: schema.String, Desc: "Country name in English, e.g. Thailand", Required: true},
			}),
		},
		func(ctx context.Context, in *TravelWarningsInput) (*model.ToolResult, error) {
			if in.Country == "" {
				return nil, errors.New("country is required")
			}
			warnings, err := c.Warnings(ctx, in.Country)
			if err != nil {
				return nil, err
			}
			return model.ToolOK(map[string]any{"country": in.Country, "recommendations": warnings}), nil
		},
	)
}

type EmbassiesInput struct {
	Country string `json:"country,omitempty"`
}

func createEmbassiesTool(c *travel.EmbassiesClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolIsraeliEmbassies,
			Desc: "Contact details (address, phone, email, website) of Israeli embassies and consulates, optionally filtered by country.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"country": {Type: schema.String, Desc: "Country name as listed in the directory, e.g. Italy"},
			}),
		},
		func(ctx context.Context, in *EmbassiesInput) (*model.ToolResult, error) {
			embassies, err := c.Embassies(ctx, in.Country)
			if err != nil {
				return nil, err
			}
			return model.ToolOK(embassies), nil
		},
	)
}

// ===================================
// Visa
// ===================================

type VisaRequirementsInput struct {
	PassportCountryCode    string `json:"passport_country_code"`
	DestinationCountryCode string `json:"destination_country_code"`
}

func createVisaTool(c *travel.VisaClient) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolVisaRequirements,
			Desc: "Visa and entry requirements for a passport travelling to a destination, with a one-line summary. " +
				"Use ISO country codes, e.g. IL and JP.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"passport_country_code":    {Type: schema.String, Desc: "ISO code of the passport country", Required: true},
				"destination_country_code": {Type: schema.String, Desc: "ISO code of the destination country", Required: true},
			}),
		},
		func(ctx context.Context, in *VisaRequirementsInput) (*model.ToolResult, error) {
			report, err := c.Requirements(ctx, in.PassportCountryCode, in.DestinationCountryCode)
			if err != nil {
				return nil, err
			}
			return model.ToolOK(report), nil
		},
	)
}
