package projectx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"LevelCast/internal/domain/models"
	drepo "LevelCast/internal/domain/repository"
	apphttp "LevelCast/pkg/http"
	applogger "LevelCast/pkg/logger"
	xutil "LevelCast/pkg/util"
)

const (
	loginPath        = "/api/Auth/loginKey"
	retrieveBarsPath = "/api/History/retrieveBars"

	// unitMinute selects minute-denominated bars in the history API.
	unitMinute = 2
)

// Config holds the gateway connection settings.
type Config struct {
	BaseURL    string
	Username   string
	APIKey     string
	ContractID string
	Live       bool
}

// Client implements a BarFeed backed by the ProjectX history REST API. The
// session token is fetched lazily and refreshed once when a request comes
// back unauthorized.
type Client struct {
	cfg  Config
	http *apphttp.Client
	loc  *time.Location
	l    *applogger.Logger

	mu    sync.Mutex
	token string
}

// New creates a ProjectX BarFeed.
func New(cfg Config, httpClient *apphttp.Client, loc *time.Location, l *applogger.Logger) drepo.BarFeed {
	return &Client{cfg: cfg, http: httpClient, loc: loc, l: l}
}

type loginRequest struct {
	UserName string `json:"userName"`
	APIKey   string `json:"apiKey"`
}

type loginResponse struct {
	Success      bool   `json:"success"`
	Token        string `json:"token"`
	ErrorMessage string `json:"errorMessage"`
}

type retrieveBarsRequest struct {
	ContractID        string `json:"contractId"`
	Live              bool   `json:"live"`
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	Unit              int    `json:"unit"`
	UnitNumber        int    `json:"unitNumber"`
	Limit             int    `json:"limit"`
	IncludePartialBar bool   `json:"includePartialBar"`
}

type apiBar struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type retrieveBarsResponse struct {
	Bars         []apiBar `json:"bars"`
	Success      bool     `json:"success"`
	ErrorMessage string   `json:"errorMessage"`
}

// authenticate exchanges the API key for a bearer token.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	var resp loginResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodPost,
		URL:    c.cfg.BaseURL + loginPath,
		Body:   loginRequest{UserName: c.cfg.Username, APIKey: c.cfg.APIKey},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("projectx login: %w", err)
	}
	if !resp.Success || resp.Token == "" {
		return "", fmt.Errorf("projectx login rejected: %s", resp.ErrorMessage)
	}

	c.token = resp.Token
	if c.l != nil {
		c.l.Info("projectx authenticated")
	}
	return c.token, nil
}

// isUnauthorized reports whether the gateway rejected the session token.
// Network failures and cancellations must not trigger re-authentication.
func isUnauthorized(err error) bool {
	var ae *apphttp.AppError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// RetrieveBars fetches minute-denominated history ending now and converts bar
// timestamps into the market timezone.
func (c *Client) RetrieveBars(ctx context.Context, p drepo.RetrieveParams) ([]models.Bar, error) {
	end := time.Now().UTC()
	req := retrieveBarsRequest{
		ContractID:        c.cfg.ContractID,
		Live:              c.cfg.Live,
		StartTime:         end.Add(-p.Lookback).Format(time.RFC3339),
		EndTime:           end.Format(time.RFC3339),
		Unit:              unitMinute,
		UnitNumber:        int(p.Unit.Duration() / time.Minute),
		Limit:             p.Limit,
		IncludePartialBar: p.IncludePartial,
	}

	resp, err := c.retrieve(ctx, req)
	if err != nil {
		if !isUnauthorized(err) {
			return nil, err
		}
		// One retry with a fresh token covers session expiry.
		c.invalidateToken()
		if resp, err = c.retrieve(ctx, req); err != nil {
			return nil, err
		}
	}

	bars := make([]models.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		ts, ok := xutil.ParseTime(b.T)
		if !ok {
			return nil, fmt.Errorf("projectx bar timestamp %q unparseable", b.T)
		}
		bars = append(bars, models.Bar{
			Time:   ts.In(c.loc),
			Open:   b.O,
			High:   b.H,
			Low:    b.L,
			Close:  b.C,
			Volume: b.V,
		})
	}
	return bars, nil
}

func (c *Client) retrieve(ctx context.Context, req retrieveBarsRequest) (*retrieveBarsResponse, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var resp retrieveBarsResponse
	err = c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodPost,
		URL:     c.cfg.BaseURL + retrieveBarsPath,
		Headers: map[string]string{"Authorization": "Bearer " + token},
		Body:    req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("projectx retrieve bars: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("projectx retrieve bars rejected: %s", resp.ErrorMessage)
	}
	return &resp, nil
}

// Latest returns the most recent bar of the given resolution, or nil when the
// gateway has nothing yet.
func (c *Client) Latest(ctx context.Context, unit drepo.Timeframe) (*models.Bar, error) {
	bars, err := c.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit:     unit,
		Lookback: 4 * unit.Duration(),
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	newest := bars[0]
	for _, b := range bars[1:] {
		if b.Time.After(newest.Time) {
			newest = b
		}
	}
	return &newest, nil
}

// Health verifies that authentication works.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.authenticate(ctx)
	return err
}
