package attendanceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize    = 200
	defaultWindowDays  = 7
	defaultConcurrency = 4

	maxResponseBytes = 10 << 20
)

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	PageSize    int
	WindowDays  int
	Concurrency int
}

// Client pulls attendance intervals from the provider's REST API. The
// requested range is split into windows that are fetched concurrently.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	pageSize    int
	windowDays  int
	concurrency int
}

// NewClient authenticates with the OAuth2 client-credentials grant.
func NewClient(ctx context.Context, cfg Config) *Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return NewClientWithHTTP(cfg, cc.Client(ctx))
}

// NewClientWithHTTP uses an already authenticated HTTP client.
func NewClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		pageSize:    cfg.PageSize,
		windowDays:  cfg.WindowDays,
		concurrency: cfg.Concurrency,
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultPageSize
	}
	if c.windowDays <= 0 {
		c.windowDays = defaultWindowDays
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultConcurrency
	}
	return c
}

func (c *Client) Name() string { return "attendance-api" }

type recordPayload struct {
	ID           string              `json:"id"`
	EmployeeCode string              `json:"employee_code"`
	Date         string              `json:"date"`
	StartTime    timesheet.ClockTime `json:"start_time"`
	EndTime      timesheet.ClockTime `json:"end_time"`
	EntryType    timesheet.EntryType `json:"entry_type"`
	CompanyID    string              `json:"company_id"`
	CompanyName  string              `json:"company_name"`
}

type pageResponse struct {
	Data     []recordPayload `json:"data"`
	NextPage int             `json:"next_page"`
}

// Fetch implements attendance.Provider. Records come back in date-window
// order; any failed window fails the whole fetch.
func (c *Client) Fetch(ctx context.Context, from, to time.Time) ([]attendance.Record, error) {
	windows := splitWindows(timesheet.TruncateDate(from), timesheet.TruncateDate(to), c.windowDays)
	results := make([][]attendance.Record, len(windows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, w := range windows {
		g.Go(func() error {
			records, err := c.fetchWindow(ctx, w[0], w[1])
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []attendance.Record
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (c *Client) fetchWindow(ctx context.Context, from, to time.Time) ([]attendance.Record, error) {
	var records []attendance.Record
	for page := 1; page > 0; {
		resp, err := c.fetchPage(ctx, from, to, page)
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Data {
			rec, err := p.toRecord()
			if err != nil {
				return nil, &attendance.ExternalServiceError{Op: "decode record", Err: err}
			}
			records = append(records, rec)
		}
		if resp.NextPage != 0 && resp.NextPage <= page {
			return nil, &attendance.ExternalServiceError{
				Op:  "paginate attendance",
				Err: fmt.Errorf("next_page %d does not advance past page %d", resp.NextPage, page),
			}
		}
		page = resp.NextPage
	}
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, from, to time.Time, page int) (pageResponse, error) {
	q := url.Values{}
	q.Set("from", from.Format(timesheet.DateLayout))
	q.Set("to", to.Format(timesheet.DateLayout))
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))
	endpoint := c.baseURL + "/attendance?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pageResponse{}, &attendance.ExternalServiceError{Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pageResponse{}, &attendance.ExternalServiceError{Op: "fetch attendance", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return pageResponse{}, &attendance.ExternalServiceError{Op: "read response", StatusCode: resp.StatusCode, Err: err}
	}
	if len(body) > maxResponseBytes {
		return pageResponse{}, &attendance.ExternalServiceError{
			Op:         "read response",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body exceeds %d bytes", maxResponseBytes),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return pageResponse{}, &attendance.ExternalServiceError{
			Op:         "fetch attendance",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	var out pageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return pageResponse{}, &attendance.ExternalServiceError{Op: "decode response", StatusCode: resp.StatusCode, Err: err}
	}
	return out, nil
}

func (p recordPayload) toRecord() (attendance.Record, error) {
	date, err := timesheet.ParseDate(p.Date)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("record %s: invalid date %q", p.ID, p.Date)
	}
	return attendance.Record{
		ExternalID:   p.ID,
		EmployeeCode: strings.TrimSpace(p.EmployeeCode),
		Date:         date,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		EntryType:    p.EntryType,
		CompanyID:    strings.TrimSpace(p.CompanyID),
		CompanyName:  strings.TrimSpace(p.CompanyName),
	}, nil
}

// splitWindows cuts [from, to] into inclusive ranges of at most days days.
func splitWindows(from, to time.Time, days int) [][2]time.Time {
	var windows [][2]time.Time
	for start := from; !start.After(to); start = start.AddDate(0, 0, days) {
		end := start.AddDate(0, 0, days-1)
		if end.After(to) {
			end = to
		}
		windows = append(windows, [2]time.Time{start, end})
	}
	return windows
}
