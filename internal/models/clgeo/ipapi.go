package clgeo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultIPAPIURL = "http://ip-api.com/json"

	// offre gratuite: 45 requêtes par minute
	ipAPIRequestsPerMinute = 45
)

type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

// IPAPI interroge ip-api.com derrière un limiteur et un disjoncteur
type IPAPI struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*ipAPIResponse]
}

func NewIPAPI(baseURL string, timeout time.Duration) *IPAPI {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &IPAPI{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(time.Minute/ipAPIRequestsPerMinute), ipAPIRequestsPerMinute),
		breaker: gobreaker.NewCircuitBreaker[*ipAPIResponse](gobreaker.Settings{
			Name:        "ip-api",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// une IP inconnue d'ip-api n'est pas une panne du service
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNoData)
			},
		}),
	}
}

func (p *IPAPI) Name() string { return "ipapi" }

func (p *IPAPI) Lookup(ctx context.Context, ip string, accuracy string) (*Location, error) {
	if !p.limiter.Allow() {
		return nil, ErrRateLimited
	}

	result, err := p.breaker.Execute(func() (*ipAPIResponse, error) {
		return p.query(ctx, ip, accuracy)
	})
	if err != nil {
		return nil, err
	}

	loc := &Location{Country: result.Country}
	if accuracy != AccuracyLow {
		loc.Region = result.RegionName
		loc.City = result.City
	}
	return loc, nil
}

func (p *IPAPI) query(ctx context.Context, ip string, accuracy string) (*ipAPIResponse, error) {
	fields := "status,message,country,regionName,city"
	if accuracy == AccuracyLow {
		fields = "status,message,country"
	}
	url := fmt.Sprintf("%s/%s?fields=%s", p.baseURL, ip, fields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("création requête ip-api: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requête ip-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api a répondu %d", resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("décodage réponse ip-api: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrNoData, result.Message)
	}

	return &result, nil
}
