package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pocketbalance/internal/log"
)

// SuggestRequest is the body of a category suggestion call.
type SuggestRequest struct {
	Description string `json:"description"`
}

// SuggestResponse carries the raw, unvalidated label.
type SuggestResponse struct {
	Category string `json:"category"`
}

// ScanRequest is the body of a receipt scan call.
type ScanRequest struct {
	ReceiptImage string `json:"receiptImage"`
}

// ScanResponse is the extracted draft.
type ScanResponse struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Service is the use-case layer in front of the providers. Provider errors
// are logged and replaced by the generic ErrSuggestionFailed / ErrScanFailed.
type Service struct {
	suggester CategorySuggester
	extractor ReceiptExtractor
	logger    *log.Logger
	timeout   time.Duration

	scanSem chan struct{}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTimeout bounds each provider call. Zero disables the bound.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// WithMaxConcurrentScans limits scans in flight; extra callers wait.
func WithMaxConcurrentScans(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.scanSem = make(chan struct{}, n)
		}
	}
}

func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentAssist)
		}
	}
}

// NewService wires the providers. Either may be nil, in which case the
// matching call fails with the generic error.
func NewService(suggester CategorySuggester, extractor ReceiptExtractor, opts ...ServiceOption) *Service {
	s := &Service{
		suggester: suggester,
		extractor: extractor,
		logger:    log.Discard(),
		scanSem:   make(chan struct{}, 3),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether any provider is configured.
func (s *Service) Enabled() bool {
	return s.suggester != nil || s.extractor != nil
}

// SuggestCategory implements CategorySuggester, so the service can sit in
// front of the entry layer.
func (s *Service) SuggestCategory(ctx context.Context, description string) (string, error) {
	resp, err := s.Suggest(ctx, SuggestRequest{Description: description})
	if err != nil {
		return "", err
	}
	return resp.Category, nil
}

// Suggest asks the provider for a category label. The label is returned as
// is; membership checks belong to the caller.
func (s *Service) Suggest(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return SuggestResponse{}, ErrEmptyDescription
	}
	if s.suggester == nil {
		s.logger.Warn("Category suggestion requested but no provider is configured")
		return SuggestResponse{}, ErrSuggestionFailed
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	start := time.Now()
	label, err := s.suggester.SuggestCategory(ctx, desc)
	if err != nil {
		s.logger.Failure(ctx, "Category suggestion failed", err,
			log.FieldOperation, log.OpSuggest,
			log.FieldDuration, time.Since(start).Milliseconds(),
		)
		return SuggestResponse{}, ErrSuggestionFailed
	}

	s.logger.Debug("Category suggested",
		log.FieldOperation, log.OpSuggest,
		log.FieldCategory, label,
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	return SuggestResponse{Category: label}, nil
}

// Scan extracts a draft from a receipt image data URI.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (ScanResponse, error) {
	if strings.TrimSpace(req.ReceiptImage) == "" {
		return ScanResponse{}, ErrEmptyImage
	}
	img, err := ParseDataURI(req.ReceiptImage)
	if err != nil {
		if errors.Is(err, ErrEmptyImage) {
			return ScanResponse{}, err
		}
		s.logger.Warn("Rejected receipt image", log.FieldError, err)
		return ScanResponse{}, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}
	if s.extractor == nil {
		s.logger.Warn("Receipt scan requested but no provider is configured")
		return ScanResponse{}, ErrScanFailed
	}

	select {
	case s.scanSem <- struct{}{}:
		defer func() { <-s.scanSem }()
	case <-ctx.Done():
		return ScanResponse{}, ErrScanFailed
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	start := time.Now()
	draft, err := s.extractor.ExtractReceipt(ctx, img)
	if err != nil {
		s.logger.Failure(ctx, "Receipt scan failed", err,
			log.FieldOperation, log.OpScan,
			log.FieldMIMEType, img.MIMEType,
			log.FieldImageBytes, len(img.Data),
			log.FieldDuration, time.Since(start).Milliseconds(),
		)
		return ScanResponse{}, ErrScanFailed
	}

	s.logger.Info("Receipt scanned",
		log.FieldOperation, log.OpScan,
		log.FieldAmount, draft.Amount,
		log.FieldCategory, draft.Category,
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	return ScanResponse(draft), nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
