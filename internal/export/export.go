package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mtlprog/nerkh/internal/domain"
)

// MarketSource provides the market data that is exported.
type MarketSource interface {
	Snapshot(ctx context.Context, date time.Time) (domain.MarketSnapshot, error)
	TopDigitalCurrencies(ctx context.Context, limit int) ([]domain.DigitalCurrencyRecord, error)
}

// SheetWriter writes tables to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, tables []Table) error
	AppendHistory(ctx context.Context, header, row []any) error
}

// digitalExportLimit is the number of digital currencies exported, by market cap.
const digitalExportLimit = 100

// Service builds market tables and hands them to a writer or an xlsx workbook.
type Service struct {
	source MarketSource
	writer SheetWriter
	now    func() time.Time
}

// NewService creates a new export Service. writer may be nil when only workbook
// downloads are needed.
func NewService(source MarketSource, writer SheetWriter) *Service {
	return &Service{
		source: source,
		writer: writer,
		now:    time.Now,
	}
}

// Export writes today's market tables and appends one history row.
// It runs as an after-ingest hook.
func (s *Service) Export(ctx context.Context) error {
	if s.writer == nil {
		return fmt.Errorf("no sheet writer configured")
	}

	now := s.now().UTC()
	snap, records, err := s.load(ctx, now)
	if err != nil {
		return err
	}

	if err := s.writer.Write(ctx, BuildTables(snap, records, now)); err != nil {
		return fmt.Errorf("writing market sheets: %w", err)
	}

	header, row := buildHistoryRow(snap, now)
	if err := s.writer.AppendHistory(ctx, header, row); err != nil {
		return fmt.Errorf("appending history row: %w", err)
	}
	return nil
}

// Workbook writes the market tables for date as an xlsx workbook to w.
func (s *Service) Workbook(ctx context.Context, date time.Time, w io.Writer) error {
	snap, records, err := s.load(ctx, date)
	if err != nil {
		return err
	}
	return WriteWorkbook(w, BuildTables(snap, records, s.now().UTC()))
}

func (s *Service) load(ctx context.Context, date time.Time) (domain.MarketSnapshot, []domain.DigitalCurrencyRecord, error) {
	snap, err := s.source.Snapshot(ctx, date)
	if err != nil {
		return domain.MarketSnapshot{}, nil, fmt.Errorf("loading market snapshot: %w", err)
	}

	var records []domain.DigitalCurrencyRecord
	if !domain.DateOnly(date).Before(domain.DateOnly(s.now())) {
		records, err = s.source.TopDigitalCurrencies(ctx, digitalExportLimit)
		if err != nil {
			return domain.MarketSnapshot{}, nil, fmt.Errorf("loading digital currencies: %w", err)
		}
	}
	return snap, records, nil
}
