package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/services"
)

// SheetStore implements Store on a Google Sheets tab.
type SheetStore struct {
	svc    *sheets.Service
	cfg    config.Sheet
	logger *slog.Logger

	attempts  int
	baseDelay time.Duration

	mu   sync.Mutex
	cols *columns
}

// NewSheetStore builds the production store. Extra client options are
// appended after the credential options so tests can redirect the service
// at a fake endpoint.
func NewSheetStore(ctx context.Context, cfg config.Sheet, logger *slog.Logger, opts ...option.ClientOption) (*SheetStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	clientOpts := make([]option.ClientOption, 0, len(opts)+2)
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		)
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sheet", "new service", "", err)
	}
	return &SheetStore{
		svc:       svc,
		cfg:       cfg,
		logger:    logger,
		attempts:  services.DefaultRetryAttempts,
		baseDelay: services.DefaultRetryBaseDelay,
	}, nil
}

// SetRetry overrides the retry budget, mainly to keep tests fast.
func (s *SheetStore) SetRetry(attempts int, baseDelay time.Duration) {
	s.attempts = attempts
	s.baseDelay = baseDelay
}

// columns maps sheet column indexes discovered from the header row.
// -1 marks a column the sheet does not carry.
type columns struct {
	headerRow int
	status    int
	script    int
	scheduled int
	title     int
	thumbnail int
	result    int
	errorCol  int
	cost      int
	started   int
}

func (c *columns) forField(f Field) int {
	switch f {
	case FieldStatus:
		return c.status
	case FieldResultURL:
		return c.result
	case FieldError:
		return c.errorCol
	case FieldCost:
		return c.cost
	case FieldStartedAt:
		return c.started
	default:
		return -1
	}
}

// ReadRows fetches the whole tab and converts data rows below the header
// into jobs. An empty tab is a valid empty queue.
func (s *SheetStore) ReadRows(ctx context.Context) ([]Job, error) {
	resp, err := s.fetchValues(ctx, s.dataRange())
	if err != nil {
		return nil, err
	}
	rows := resp.Values
	if len(rows) == 0 {
		return []Job{}, nil
	}

	cols, err := s.mapColumns(rows)
	if err != nil {
		return nil, err
	}
	s.cacheColumns(cols)

	// cols.headerRow is 1-based, so the first data row sits at that slice index.
	jobs := make([]Job, 0, len(rows)-cols.headerRow)
	for i := cols.headerRow; i < len(rows); i++ {
		cells := rows[i]
		if rowEmpty(cells) {
			continue
		}
		job := Job{Row: i + 1}
		if status, ok := ParseStatus(cellAt(cells, cols.status)); ok {
			job.Status = status
		}
		job.Script = cellAt(cells, cols.script)
		job.ScheduledAt = ParseSheetTime(cellAt(cells, cols.scheduled))
		job.TitleOverride = strings.TrimSpace(cellAt(cells, cols.title))
		job.ThumbnailOverride = strings.TrimSpace(cellAt(cells, cols.thumbnail))
		job.ResultURL = strings.TrimSpace(cellAt(cells, cols.result))
		job.ErrorMessage = strings.TrimSpace(cellAt(cells, cols.errorCol))
		if cost, err := strconv.ParseFloat(strings.TrimSpace(cellAt(cells, cols.cost)), 64); err == nil {
			job.CostEstimate = cost
		}
		job.ProcessingStartedAt = ParseSheetTime(cellAt(cells, cols.started))
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateCell rewrites one cell of the given row using RAW input so values
// land exactly as written.
func (s *SheetStore) UpdateCell(ctx context.Context, row int, field Field, value string) error {
	cols, err := s.ensureColumns(ctx)
	if err != nil {
		return err
	}
	col := cols.forField(field)
	if col < 0 {
		return services.Wrap(services.ErrConfiguration, "sheet", "update cell",
			fmt.Sprintf("no column mapped for field %q", field), nil)
	}
	if row <= cols.headerRow {
		return services.Wrap(services.ErrConfiguration, "sheet", "update cell",
			fmt.Sprintf("row %d is inside the header area", row), nil)
	}

	rng := fmt.Sprintf("%s!%s%d", quoteSheetName(s.cfg.SheetName), columnLetter(col), row)
	body := &sheets.ValueRange{
		Range:  rng,
		Values: [][]interface{}{{value}},
	}

	op := fmt.Sprintf("update %s", field)
	return services.RetryTransient(ctx, s.retryPolicy(op), func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.
			Update(s.cfg.SpreadsheetID, rng, body).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return s.classify(op, err)
		}
		return nil
	})
}

func (s *SheetStore) fetchValues(ctx context.Context, rng string) (*sheets.ValueRange, error) {
	var resp *sheets.ValueRange
	err := services.RetryTransient(ctx, s.retryPolicy("read rows"), func(ctx context.Context) error {
		out, err := s.svc.Spreadsheets.Values.
			Get(s.cfg.SpreadsheetID, rng).
			Context(ctx).
			Do()
		if err != nil {
			return s.classify("read rows", err)
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SheetStore) ensureColumns(ctx context.Context) (*columns, error) {
	s.mu.Lock()
	cached := s.cols
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	resp, err := s.fetchValues(ctx, s.headerRange())
	if err != nil {
		return nil, err
	}
	cols, err := s.mapColumns(resp.Values)
	if err != nil {
		return nil, err
	}
	s.cacheColumns(cols)
	return cols, nil
}

func (s *SheetStore) cacheColumns(cols *columns) {
	s.mu.Lock()
	s.cols = cols
	s.mu.Unlock()
}

// mapColumns locates the header row: the first row carrying both the status
// and script headers. Columns are matched by exact trimmed cell text, so
// the sheet can be reordered freely.
func (s *SheetStore) mapColumns(rows [][]interface{}) (*columns, error) {
	for i, row := range rows {
		byName := make(map[string]int, len(row))
		for idx, cell := range row {
			name := strings.TrimSpace(cellString(cell))
			if name == "" {
				continue
			}
			if _, exists := byName[name]; !exists {
				byName[name] = idx
			}
		}
		statusIdx, hasStatus := byName[s.cfg.HeaderStatus]
		scriptIdx, hasScript := byName[s.cfg.HeaderScript]
		if !hasStatus || !hasScript {
			continue
		}
		cols := &columns{
			headerRow: i + 1,
			status:    statusIdx,
			script:    scriptIdx,
			scheduled: lookupColumn(byName, s.cfg.HeaderScheduled),
			title:     lookupColumn(byName, s.cfg.HeaderTitle),
			thumbnail: lookupColumn(byName, s.cfg.HeaderThumbnail),
			result:    lookupColumn(byName, s.cfg.HeaderResultURL),
			errorCol:  lookupColumn(byName, s.cfg.HeaderError),
			cost:      lookupColumn(byName, s.cfg.HeaderCost),
			started:   lookupColumn(byName, s.cfg.HeaderStartedAt),
		}
		return cols, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "sheet", "map columns",
		fmt.Sprintf("header row with %q and %q not found", s.cfg.HeaderStatus, s.cfg.HeaderScript), nil)
}

func lookupColumn(byName map[string]int, header string) int {
	header = strings.TrimSpace(header)
	if header == "" {
		return -1
	}
	if idx, ok := byName[header]; ok {
		return idx
	}
	return -1
}

func (s *SheetStore) retryPolicy(op string) services.RetryPolicy {
	return services.RetryPolicy{
		Operation: "sheet " + op,
		Attempts:  s.attempts,
		BaseDelay: s.baseDelay,
		Logger:    s.logger,
	}
}

// classify maps Sheets API failures onto the error taxonomy: 5xx and 429
// are worth retrying, any other 4xx is a deterministic rejection.
func (s *SheetStore) classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		detail := fmt.Sprintf("status %d", apiErr.Code)
		switch {
		case apiErr.Code >= 500 || apiErr.Code == 429:
			return services.Wrap(services.ErrTransientBackend, "sheet", op, detail, err)
		case apiErr.Code == 404:
			return services.Wrap(services.ErrNotFound, "sheet", op, detail, err)
		default:
			return services.Wrap(services.ErrProviderRejected, "sheet", op, detail, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "sheet", op, "", err)
	}
	return services.Wrap(services.ErrTransientBackend, "sheet", op, "", err)
}

func (s *SheetStore) dataRange() string {
	return fmt.Sprintf("%s!A:Z", quoteSheetName(s.cfg.SheetName))
}

func (s *SheetStore) headerRange() string {
	return fmt.Sprintf("%s!A1:Z50", quoteSheetName(s.cfg.SheetName))
}

func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func columnLetter(idx int) string {
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}

func cellAt(cells []interface{}, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cellString(cells[idx])
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func rowEmpty(cells []interface{}) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cellString(cell)) != "" {
			return false
		}
	}
	return true
}
