package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ------------------- Ingestion -------------------

// Observation is one country-year value as reported by the source.
// Value is nil when the source has no figure for that year.
type Observation struct {
	CountryCode string
	Year        int
	Value       *float64
}

// Source fetches indicator observations for a set of countries and years.
type Source interface {
	Fetch(ctx context.Context, indicator string, codes []string, startYear, endYear int) ([]Observation, error)
}

// FailureKind classifies why acquisition failed.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureDecode    FailureKind = "decode"
	FailureAPI       FailureKind = "api"
	FailureEmpty     FailureKind = "empty"
)

// AcquisitionError is the typed failure returned by a Source or by Acquire.
type AcquisitionError struct {
	Kind FailureKind
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func acquisitionErr(kind FailureKind, format string, args ...any) *AcquisitionError {
	return &AcquisitionError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WorldBankClient reads indicators from the World Bank API v2.
type WorldBankClient struct {
	BaseURL string
	HTTP    *http.Client
	PerPage int
}

// NewWorldBankClient creates a client with the given base URL and request timeout.
func NewWorldBankClient(baseURL string, timeout time.Duration) *WorldBankClient {
	return &WorldBankClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		PerPage: 1000,
	}
}

type wbHeader struct {
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	Total   int         `json:"total"`
	Message []wbMessage `json:"message"`
}

type wbMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wbObservation struct {
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
	Country     struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
}

// Fetch reads every page of the indicator for the given countries. Any
// failure aborts the whole fetch; there is no partial result.
func (c *WorldBankClient) Fetch(ctx context.Context, indicator string, codes []string, startYear, endYear int) ([]Observation, error) {
	var all []Observation
	for page := 1; ; page++ {
		obs, header, err := c.fetchPage(ctx, indicator, codes, startYear, endYear, page)
		if err != nil {
			return nil, err
		}
		all = append(all, obs...)
		if header.Pages <= page {
			break
		}
	}
	return all, nil
}

func (c *WorldBankClient) pageURL(indicator string, codes []string, startYear, endYear, page int) string {
	return fmt.Sprintf("%s/country/%s/indicator/%s?format=json&date=%d:%d&per_page=%d&page=%d",
		c.BaseURL, strings.Join(codes, ";"), indicator, startYear, endYear, c.PerPage, page)
}

func (c *WorldBankClient) fetchPage(ctx context.Context, indicator string, codes []string, startYear, endYear, page int) ([]Observation, wbHeader, error) {
	url := c.pageURL(indicator, codes, startYear, endYear, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, wbHeader{}, acquisitionErr(FailureTransport, "failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, wbHeader{}, acquisitionErr(FailureTransport, "failed to GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wbHeader{}, acquisitionErr(FailureStatus, "unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wbHeader{}, acquisitionErr(FailureTransport, "failed to read body: %w", err)
	}
	return decodePage(body)
}

// decodePage parses the [header, observations] envelope.
func decodePage(body []byte) ([]Observation, wbHeader, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, wbHeader{}, acquisitionErr(FailureDecode, "failed to decode JSON: %w", err)
	}
	if len(envelope) == 0 {
		return nil, wbHeader{}, acquisitionErr(FailureDecode, "empty response envelope")
	}

	var header wbHeader
	if err := json.Unmarshal(envelope[0], &header); err != nil {
		return nil, wbHeader{}, acquisitionErr(FailureDecode, "failed to decode header: %w", err)
	}
	if len(header.Message) > 0 {
		m := header.Message[0]
		return nil, header, acquisitionErr(FailureAPI, "%s (%s): %s", m.Key, m.ID, m.Value)
	}
	if len(envelope) < 2 || string(envelope[1]) == "null" {
		return nil, header, nil
	}

	var raw []wbObservation
	if err := json.Unmarshal(envelope[1], &raw); err != nil {
		return nil, header, acquisitionErr(FailureDecode, "failed to decode observations: %w", err)
	}

	obs := make([]Observation, 0, len(raw))
	for _, r := range raw {
		year, err := strconv.Atoi(r.Date)
		if err != nil {
			return nil, header, acquisitionErr(FailureDecode, "bad date %q for %s", r.Date, r.CountryISO3)
		}
		code := r.CountryISO3
		if code == "" {
			code = r.Country.ID
		}
		obs = append(obs, Observation{CountryCode: code, Year: year, Value: r.Value})
	}
	return obs, header, nil
}
