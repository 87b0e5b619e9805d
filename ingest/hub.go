package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/poiesic/clinicalner/core"
)

const (
	// DefaultDataset is the public corpus of augmented clinical notes.
	DefaultDataset = "AGBonnet/augmented-clinical-notes"

	// DefaultHubURL is the Hugging Face dataset viewer API.
	DefaultHubURL = "https://datasets-server.huggingface.co"

	// maxHubPage is the largest page the rows endpoint serves.
	maxHubPage = 100
)

// hubPage is one response of the /rows endpoint.
type hubPage struct {
	Rows []struct {
		RowIdx int64           `json:"row_idx"`
		Row    core.DatasetRow `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

type hubError struct {
	Error string `json:"error"`
}

// HubSource pages through a dataset split on the Hugging Face dataset server.
type HubSource struct {
	client   *resty.Client
	dataset  string
	config   string
	split    string
	pageSize int
	logger   *slog.Logger
}

// HubOption configures a HubSource.
type HubOption func(*HubSource)

// WithHubURL points the source at a different server, such as a mirror.
func WithHubURL(url string) HubOption {
	return func(s *HubSource) {
		s.client.SetBaseURL(url)
	}
}

// WithSplit selects the dataset config and split. Default is default/train.
func WithSplit(config, split string) HubOption {
	return func(s *HubSource) {
		s.config = config
		s.split = split
	}
}

// WithPageSize sets rows per request, capped at the server maximum of 100.
func WithPageSize(size int) HubOption {
	return func(s *HubSource) {
		if size < 1 || size > maxHubPage {
			size = maxHubPage
		}
		s.pageSize = size
	}
}

// WithHubToken sends a bearer token, needed for gated datasets.
func WithHubToken(token string) HubOption {
	return func(s *HubSource) {
		if token != "" {
			s.client.SetAuthToken(token)
		}
	}
}

// WithHubLogger sets a custom logger.
// Default is slog.Default().
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(s *HubSource) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewHubSource returns a source for dataset. An empty name uses DefaultDataset.
func NewHubSource(dataset string, opts ...HubOption) *HubSource {
	if dataset == "" {
		dataset = DefaultDataset
	}
	client := resty.New().
		SetBaseURL(DefaultHubURL).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Accept", "application/json")

	s := &HubSource{
		client:   client,
		dataset:  dataset,
		config:   "default",
		split:    "train",
		pageSize: maxHubPage,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "hub-source", "dataset", dataset)
	return s
}

// ForEachRow implements RowSource.
func (s *HubSource) ForEachRow(ctx context.Context, fn func(row core.DatasetRow) error) error {
	offset := 0
	for {
		page, err := s.fetch(ctx, offset)
		if err != nil {
			return err
		}
		if offset == 0 {
			s.logger.Info("streaming dataset", "rows", page.NumRowsTotal)
		}
		if len(page.Rows) == 0 {
			return nil
		}

		for _, r := range page.Rows {
			if err := fn(r.Row); err != nil {
				return err
			}
		}

		offset += len(page.Rows)
		if offset >= page.NumRowsTotal {
			return nil
		}
	}
}

func (s *HubSource) fetch(ctx context.Context, offset int) (*hubPage, error) {
	var page hubPage
	var failure hubError
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"dataset": s.dataset,
			"config":  s.config,
			"split":   s.split,
			"offset":  strconv.Itoa(offset),
			"length":  strconv.Itoa(s.pageSize),
		}).
		SetResult(&page).
		SetError(&failure).
		Get("/rows")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: offset %d: %w", ErrHubRequest, offset, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: offset %d: status %d: %s", ErrHubRequest, offset, resp.StatusCode(), failure.Error)
	}

	s.logger.Debug("fetched page", "offset", offset, "rows", len(page.Rows))
	return &page, nil
}
