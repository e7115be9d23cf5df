// Package pipeline runs one broker export through extraction, mapping,
// reconciliation and post-processing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers"
	"github.com/username/tradejournal/backend/src/parsers/reconcile"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
	"github.com/username/tradejournal/backend/src/processors"
	"github.com/username/tradejournal/backend/src/utils"
)

// Request is one import call.
type Request struct {
	Data          []byte
	FileType      tabular.FileType // Inferred from Filename when empty
	Filename      string
	BrokerKey     string
	DateFormat    utils.DateFormat // Pipeline default when empty
	CustomAliases brokers.CustomAliases
}

// Pipeline is safe for concurrent use: every Run works on call-scoped state
// and the registry is read-only.
type Pipeline struct {
	registry      *brokers.Registry
	processor     *processors.TradeProcessor
	policy        utils.FallbackPolicy
	defaultFormat utils.DateFormat
	now           func() time.Time
}

type Option func(*Pipeline)

// WithFallbackPolicy selects what unparseable dates become.
func WithFallbackPolicy(policy utils.FallbackPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithDefaultDateFormat sets the hint used when a request has none.
func WithDefaultDateFormat(format utils.DateFormat) Option {
	return func(p *Pipeline) { p.defaultFormat = format }
}

// WithClock replaces the wall clock used by the "now" fallback.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(registry *brokers.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:      registry,
		processor:     processors.NewTradeProcessor(),
		policy:        utils.FallbackNow,
		defaultFormat: utils.DateFormatDMY,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry exposes the broker catalog the pipeline resolves profiles from.
func (p *Pipeline) Registry() *brokers.Registry {
	return p.registry
}

// Run imports one file. Structural problems and the first bad row abort the
// whole call; date and number degradations are absorbed and reported as
// warnings on the result.
func (p *Pipeline) Run(ctx context.Context, req Request) (result *models.ImportResult, err error) {
	ctx, op := logger.StartOperation(ctx, "import.run",
		attribute.String("import.broker", req.BrokerKey),
		attribute.String("import.filename", req.Filename),
	)
	defer func() { op.End(err, "broker", req.BrokerKey, "filename", req.Filename) }()

	profile, err := p.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	fileType := req.FileType
	if fileType == "" {
		if fileType, err = tabular.DetectFileType(req.Filename); err != nil {
			return nil, err
		}
	}
	if !profile.Supports(fileType) {
		return nil, fmt.Errorf("%w: %s exports are not read from %s files", tabular.ErrUnsupportedFormat, profile.Name, fileType)
	}

	format := req.DateFormat
	if format == "" {
		format = p.defaultFormat
	}
	if _, err := utils.ParseDateFormat(string(format)); err != nil {
		return nil, err
	}

	rows, err := p.extract(ctx, req.Data, fileType, profile)
	if err != nil {
		return nil, err
	}

	legs := make([]models.Leg, len(rows))
	for i, row := range rows {
		legs[i] = models.Leg{Row: i + 1, Raw: row}
	}

	parser, err := parsers.GetParser(profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBroker, err)
	}

	dates := utils.NewDateParser(p.policy)
	dates.Now = p.now
	env := reconcile.NewEnv(dates, format)

	trades, err := parser.Parse(ctx, legs, profile, env)
	if err != nil {
		var rowErr *reconcile.RowError
		if errors.As(err, &rowErr) {
			return nil, p.rowFailure(ctx, rowErr.Row, rowErr.Err)
		}
		return nil, err
	}
	if len(trades) == 0 {
		logger.WarnFromContext(ctx, "Import found no trade rows", "broker", profile.Key, "rowsRead", len(rows), "skipped", len(env.Warnings()))
		return nil, fmt.Errorf("%w: %d rows read, none describe a trade", ErrNoTradesFound, len(rows))
	}

	processed, badIdx, err := p.processor.Process(trades)
	if err != nil {
		row := 0
		if sourceRows := env.TradeRows(); badIdx >= 0 && badIdx < len(sourceRows) {
			row = sourceRows[badIdx]
		}
		return nil, p.rowFailure(ctx, row, err)
	}

	result = &models.ImportResult{
		Broker:       profile.Key,
		RowsRead:     len(rows),
		Trades:       processed,
		Warnings:     env.Warnings(),
		DegradedRows: env.DegradedRows(),
	}
	logger.InfoFromContext(ctx, "Import completed",
		"broker", profile.Key,
		"rowsRead", result.RowsRead,
		"trades", len(result.Trades),
		"warnings", len(result.Warnings),
		"degradedRows", result.DegradedRows,
	)
	return result, nil
}

// resolveProfile looks the broker up. Custom aliases are layered over a known
// profile; unknown keys fall back to the generic profile only when the caller
// supplied its own column aliases.
func (p *Pipeline) resolveProfile(req Request) (brokers.BrokerProfile, error) {
	profile, err := p.registry.Lookup(req.BrokerKey)
	switch {
	case err == nil && len(req.CustomAliases) == 0:
		return profile, nil
	case err == nil:
		return profile.WithAliases(req.CustomAliases)
	case errors.Is(err, brokers.ErrBrokerNotFound) && len(req.CustomAliases) > 0:
		return p.registry.GenericWith(req.BrokerKey, req.CustomAliases)
	default:
		return brokers.BrokerProfile{}, fmt.Errorf("%w: %q", ErrUnsupportedBroker, req.BrokerKey)
	}
}

func (p *Pipeline) extract(ctx context.Context, data []byte, fileType tabular.FileType, profile brokers.BrokerProfile) (rows []models.RawRow, err error) {
	_, op := logger.StartOperation(ctx, "import.extract", attribute.String("import.file_type", string(fileType)))
	defer func() { op.End(err, "rows", len(rows)) }()
	return tabular.Extract(data, fileType, tabular.WithHeaderDetector(profile.IsHeaderRow))
}

func (p *Pipeline) rowFailure(ctx context.Context, row int, cause error) error {
	logger.ErrorFromContext(ctx, "Import aborted on row", "row", row, "error", cause)
	return &RowProcessingError{Row: row, Err: cause}
}
