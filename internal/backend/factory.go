package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jizhang/internal/amqp"
	"jizhang/internal/services"
	"jizhang/internal/sheets"
	gsheet "jizhang/internal/sheets/google"
	"jizhang/internal/sheets/memory"
	"jizhang/internal/storage"
)

// JournalReader lists recorded write attempts.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]storage.Attempt, error)
	FailureCount(ctx context.Context, since time.Time) (int, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// openSheets is replaced in tests.
	openSheets func(ctx context.Context, cfg gsheet.Config) (sheets.Workbook, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		openSheets: func(ctx context.Context, cfg gsheet.Config) (sheets.Workbook, error) {
			return gsheet.Open(ctx, cfg)
		},
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		wb  sheets.Workbook
		err error
	)
	switch config.Type {
	case SheetsBackend:
		wb, err = f.createSheetsWorkbook(ctx, config)
	case MemoryBackend:
		wb = f.createMemoryWorkbook(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	opts := []services.Option{services.WithLogger(f.logger)}
	var closers []func() error
	result := &BackendResult{Workbook: wb}

	if config.JournalDBPath != "" {
		journal, err := storage.Open(config.JournalDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open write journal: %w", err)
		}
		opts = append(opts, services.WithJournal(journal))
		result.Journal = journal
		closers = append(closers, journal.Close)
		f.logger.Info("Opened write journal", "db_path", config.JournalDBPath)
	}

	// AMQP is optional
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(client))
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
		}
	}

	result.Service = services.NewExpenseService(wb, opts...)
	result.Cleanup = func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createSheetsWorkbook(ctx context.Context, config Config) (sheets.Workbook, error) {
	wb, err := f.openSheets(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: []byte(config.GoogleServiceAccountJSON),
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return wb, nil
}

func (f *DefaultFactory) createMemoryWorkbook(config Config) sheets.Workbook {
	if config.DataDirectory == "" {
		f.logger.Info("Initialized memory backend")
		return memory.New()
	}
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	return memory.NewFromFiles(config.DataDirectory)
}
