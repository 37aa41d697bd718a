// Package travel holds the clients behind the executor's travel tools.
package travel

import "time"

// Config is populated by envconfig.
type Config struct {
	AmadeusAPIKey    string `envconfig:"AMADEUS_API_KEY"`
	AmadeusAPISecret string `envconfig:"AMADEUS_API_SECRET"`
	AmadeusBaseURL   string `envconfig:"AMADEUS_BASE_URL" default:"https://test.api.amadeus.com"`
	AmadeusTokenURL  string `envconfig:"AMADEUS_TOKEN_URL" default:"https://test.api.amadeus.com/v1/security/oauth2/token"`

	OpenMeteoGeocodeURL string `envconfig:"OPEN_METEO_GEOCODE_URL" default:"https://geocoding-api.open-meteo.com/v1/search"`
	OpenMeteoArchiveURL string `envconfig:"OPEN_METEO_ARCHIVE_URL" default:"https://archive-api.open-meteo.com/v1/era5"`

	WorldTimeAPIURL string `envconfig:"WORLD_TIME_API_URL" default:"http://worldtimeapi.org/api"`

	GovILAPIURL   string        `envconfig:"GOV_IL_API_URL" default:"https://data.gov.il/api/3/action/datastore_search"`
	WarningsTTL   time.Duration `envconfig:"TRAVEL_WARNINGS_TTL" default:"24h"`
	EmbassiesTTL  time.Duration `envconfig:"EMBASSIES_TTL" default:"168h"`
	DataCacheDir  string        `envconfig:"DATA_CACHE_DIR" default:".orbi/cache"`

	RapidAPIKey string `envconfig:"RAPIDAPI_KEY"`
	VisaAPIURL  string `envconfig:"VISA_API_URL" default:"https://visa-requirement.p.rapidapi.com/v2/visa/check"`
}
