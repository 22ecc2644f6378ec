// Package cds retrieves datasets from the Copernicus Climate Data Store.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rtm0/era5fetch/internal/errs"
)

// Job states reported by the retrieve API.
const (
	StatusAccepted   = "accepted"
	StatusRunning    = "running"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusRejected   = "rejected"
	StatusDismissed  = "dismissed"
)

// DefaultPollInterval is the delay between two job status requests.
const DefaultPollInterval = 5 * time.Second

// Client submits retrieve requests and downloads their results.
type Client struct {
	logger       *slog.Logger
	httpCli      *http.Client
	baseURL      string
	key          string
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets the delay between two job status requests.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpCli = h }
}

// NewClient creates a new client for the archive described by cfg.
func NewClient(logger *slog.Logger, cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported archive URL %q", cfg.URL)
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("no API key for %s", cfg.URL)
	}
	c := &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          4,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConnsPerHost:   4,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: time.Minute,
			},
		},
		baseURL:      strings.TrimRight(u.String(), "/"),
		key:          cfg.Key,
		pollInterval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type jobStatus struct {
	JobID  string `json:"jobID"`
	Status string `json:"status"`
}

type jobResults struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Size int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}

// problem is the error document returned by the API.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (p problem) message() string {
	switch {
	case p.Title != "" && p.Detail != "":
		return p.Title + ": " + p.Detail
	case p.Detail != "":
		return p.Detail
	}
	return p.Title
}

// Retrieve submits a request for dataset with params, waits for the job to
// finish and downloads its result to target.
func (c *Client) Retrieve(ctx context.Context, dataset string, params map[string]string, target string) error {
	job, err := c.submit(ctx, dataset, params)
	if err != nil {
		return err
	}
	c.logger.Info("Request submitted", "dataset", dataset, "job", job.JobID, "status", job.Status)

	if err := c.wait(ctx, job); err != nil {
		return err
	}

	var res jobResults
	if err := c.do(ctx, http.MethodGet, c.jobURL(job.JobID)+"/results", nil, &res); err != nil {
		return err
	}
	href := res.Asset.Value.Href
	if href == "" {
		return &errs.RemoteError{Job: job.JobID, Msg: "results carry no download link"}
	}
	n, err := c.download(ctx, href, target)
	if err != nil {
		return err
	}
	c.logger.Info("Download finished", "job", job.JobID, "file", target, "bytes", n, "expected", res.Asset.Value.Size)
	return nil
}

func (c *Client) submit(ctx context.Context, dataset string, params map[string]string) (*jobStatus, error) {
	body := map[string]any{"inputs": params}
	u := c.baseURL + "/retrieve/v1/processes/" + url.PathEscape(dataset) + "/execution"
	var job jobStatus
	if err := c.do(ctx, http.MethodPost, u, body, &job); err != nil {
		return nil, err
	}
	if job.JobID == "" {
		return nil, &errs.RemoteError{Msg: "no job id in response"}
	}
	return &job, nil
}

// wait polls the job until it reaches a final state.
func (c *Client) wait(ctx context.Context, job *jobStatus) error {
	status := job.Status
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()
	for {
		switch status {
		case StatusSuccessful:
			return nil
		case StatusFailed, StatusRejected, StatusDismissed:
			return &errs.RemoteError{Job: job.JobID, Msg: c.reason(ctx, job.JobID, status)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		var st jobStatus
		if err := c.do(ctx, http.MethodGet, c.jobURL(job.JobID), nil, &st); err != nil {
			return err
		}
		if st.Status != status {
			c.logger.Info("Job status", "job", job.JobID, "status", st.Status)
		}
		status = st.Status
	}
}

// reason fetches the error document of a failed job.
func (c *Client) reason(ctx context.Context, id, status string) string {
	err := c.do(ctx, http.MethodGet, c.jobURL(id)+"/results", nil, nil)
	var rerr *errs.RemoteError
	if errors.As(err, &rerr) && rerr.Msg != "" {
		return rerr.Msg
	}
	return "job " + status
}

func (c *Client) jobURL(id string) string {
	return c.baseURL + "/retrieve/v1/jobs/" + url.PathEscape(id)
}

// do sends a JSON request and decodes the JSON response into out. Non-2xx
// responses become *errs.RemoteError.
func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", c.key)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.httpCli.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if _, err := io.Copy(io.Discard, res.Body); err != nil {
			c.logger.Error("Failed to drain response body", "err", err)
		}
		res.Body.Close()
	}()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return remoteError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, u, err)
	}
	return nil
}

func remoteError(res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var p problem
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &p) == nil && p.message() != "" {
		msg = p.message()
	}
	if msg == "" {
		msg = http.StatusText(res.StatusCode)
	}
	return &errs.RemoteError{Status: res.StatusCode, Msg: msg}
}

// download streams href to target. The data is written to target.part and
// renamed once complete.
func (c *Client) download(ctx context.Context, href, target string) (int64, error) {
	u, err := url.Parse(href)
	if err != nil {
		return 0, err
	}
	if !u.IsAbs() {
		base, err := url.Parse(c.baseURL + "/")
		if err != nil {
			return 0, err
		}
		u = base.ResolveReference(u)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, err
	}
	res, err := c.httpCli.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, remoteError(res)
	}

	part := target + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, &errs.IOError{Op: "create", Path: part, Err: err}
	}
	n, err := io.Copy(out, res.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && res.ContentLength >= 0 && n != res.ContentLength {
		err = fmt.Errorf("received %d of %d bytes", n, res.ContentLength)
	}
	if err != nil {
		os.Remove(part)
		return n, &errs.IOError{Op: "download", Path: target, Err: err}
	}
	if err := os.Rename(part, target); err != nil {
		os.Remove(part)
		return n, &errs.IOError{Op: "rename", Path: target, Err: err}
	}
	return n, nil
}
