package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"feedesk/internal/audit"
	"feedesk/internal/receipt/metrics"
	"feedesk/internal/receipt/models"
	"feedesk/pkg/attrs"
	dErrors "feedesk/pkg/domain-errors"
	"feedesk/pkg/email"
	"feedesk/pkg/platform/sentinel"
	"feedesk/pkg/requestcontext"
)

const tracerName = "feedesk/internal/receipt/service"

type LedgerStore interface {
	Exists(ctx context.Context, transactionID string) (bool, error)
	Find(ctx context.Context, transactionID string) (*models.RegistrationEntry, error)
	Count(ctx context.Context) (int, error)
	Append(ctx context.Context, entry models.RegistrationEntry) error
}

type IdentifierGenerator interface {
	NewReceiptNo(now time.Time) string
	NewApplicationNo(now time.Time, ledgerSize int) string
}

type TemplateFiller interface {
	Fill(ctx context.Context, values map[string]string) ([]byte, error)
}

type ArtifactStore interface {
	Save(ctx context.Context, artifact models.Artifact) (string, error)
}

type Converter interface {
	Convert(ctx context.Context, doc models.Artifact) ([]byte, error)
}

type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// TransactionLocker returns sentinel.ErrAlreadyUsed when another request holds the ID.
type TransactionLocker interface {
	TryLock(ctx context.Context, transactionID string) (func(), error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service issues receipts. One call runs the whole pipeline for one request:
// dedup, identify, render, convert, notify, persist. The ledger entry is written last, so any
// earlier failure leaves the transaction free to be resubmitted.
type Service struct {
	ledger         LedgerStore
	ids            IdentifierGenerator
	filler         TemplateFiller
	artifacts      ArtifactStore
	converter      Converter
	notifier       Notifier
	locker         TransactionLocker
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker serializes requests per transaction ID from before the dedup check until the
// entry is persisted. Without it, two concurrent requests for one ID can both pass dedup.
func WithLocker(l TransactionLocker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service. Every collaborator is required.
func New(
	ledger LedgerStore,
	ids IdentifierGenerator,
	filler TemplateFiller,
	artifacts ArtifactStore,
	converter Converter,
	notifier Notifier,
	opts ...Option,
) (*Service, error) {
	switch {
	case ledger == nil:
		return nil, errors.New("ledger store is required")
	case ids == nil:
		return nil, errors.New("identifier generator is required")
	case filler == nil:
		return nil, errors.New("template filler is required")
	case artifacts == nil:
		return nil, errors.New("artifact store is required")
	case converter == nil:
		return nil, errors.New("converter is required")
	case notifier == nil:
		return nil, errors.New("notifier is required")
	}
	s := &Service{
		ledger:    ledger,
		ids:       ids,
		filler:    filler,
		artifacts: artifacts,
		converter: converter,
		notifier:  notifier,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// issuance tracks one request through the pipeline.
type issuance struct {
	req     *models.ReceiptRequest
	state   models.State
	entry   models.RegistrationEntry
	doc     models.Artifact
	pdf     models.Artifact
	docRef  string
	pdfRef  string
	outcome string
}

func (s *Service) advance(ctx context.Context, run *issuance, next models.State) {
	if !run.state.CanTransitionTo(next) {
		s.logger.ErrorContext(ctx, "illegal receipt state transition",
			"transaction_id", run.req.TransactionID,
			"from", string(run.state),
			"to", string(next),
		)
	}
	s.logger.DebugContext(ctx, "receipt state transition",
		"transaction_id", run.req.TransactionID,
		"from", string(run.state),
		"to", string(next),
	)
	run.state = next
}

// IssueReceipt validates req and runs the pipeline. Errors are one of: a validation error
// (dErrors.CodeValidation), *models.DuplicateTransactionError, models.ErrTransactionInProgress
// (wrapped), or *models.StageError naming the failed stage.
func (s *Service) IssueReceipt(ctx context.Context, req *models.ReceiptRequest) (*models.IssueResult, error) {
	if err := req.Validate(); err != nil {
		s.incrementOutcome(models.OutcomeInvalid)
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "receipt.issue",
		trace.WithAttributes(attribute.String("receipt.transaction_id", req.TransactionID)))
	defer span.End()

	run := &issuance{req: req, state: models.StateReceived}
	result, err := s.issue(ctx, run)
	s.incrementOutcome(run.outcome)
	span.SetAttributes(attribute.String("receipt.state", string(run.state)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (s *Service) issue(ctx context.Context, run *issuance) (*models.IssueResult, error) {
	txID := run.req.TransactionID

	if s.locker != nil {
		unlock, err := s.locker.TryLock(ctx, txID)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.advance(ctx, run, models.StateRejectedInProgress)
			run.outcome = models.OutcomeInProgress
			s.logger.WarnContext(ctx, "transaction already in progress",
				"transaction_id", txID,
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, fmt.Errorf("transaction %s: %w", txID, models.ErrTransactionInProgress)
		}
		if err != nil {
			return nil, s.fail(ctx, run, models.NewStageError(models.StageDedup, err))
		}
		defer unlock()
	}

	var exists bool
	if err := s.runStage(ctx, models.StageDedup, func(ctx context.Context) error {
		var err error
		exists, err = s.ledger.Exists(ctx, txID)
		return err
	}); err != nil {
		return nil, s.fail(ctx, run, err)
	}
	s.advance(ctx, run, models.StateDedupChecked)
	if exists {
		return nil, s.rejectDuplicate(ctx, run)
	}

	steps := []struct {
		stage models.Stage
		next  models.State
		fn    func(ctx context.Context, run *issuance) error
	}{
		{models.StageIdentify, models.StateIdentified, s.identify},
		{models.StageRender, models.StateRendered, s.render},
		{models.StageConvert, models.StateConverted, s.convert},
		{models.StageNotify, models.StateNotified, s.notify},
	}
	for _, step := range steps {
		if err := s.runStage(ctx, step.stage, func(ctx context.Context) error {
			return step.fn(ctx, run)
		}); err != nil {
			return nil, s.fail(ctx, run, err)
		}
		s.advance(ctx, run, step.next)
	}

	if err := s.runStage(ctx, models.StagePersist, func(ctx context.Context) error {
		return s.ledger.Append(ctx, run.entry)
	}); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.rejectLateDuplicate(ctx, run)
		}
		return nil, s.fail(ctx, run, err)
	}
	s.advance(ctx, run, models.StatePersisted)
	run.outcome = models.OutcomeIssued

	s.logAudit(ctx, audit.ActionReceiptIssued,
		"transaction_id", txID,
		"receipt_no", run.entry.ReceiptNo,
		"application_no", run.entry.ApplicationNo,
	)
	s.advance(ctx, run, models.StateDone)
	return &models.IssueResult{
		ReceiptNo:     run.entry.ReceiptNo,
		ApplicationNo: run.entry.ApplicationNo,
		DocumentRef:   run.docRef,
		PDFRef:        run.pdfRef,
	}, nil
}

func (s *Service) identify(ctx context.Context, run *issuance) error {
	size, err := s.ledger.Count(ctx)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	run.entry = run.req.NewEntry(now.Format(models.TimestampLayout))
	run.entry.ReceiptNo = s.ids.NewReceiptNo(now)
	run.entry.ApplicationNo = s.ids.NewApplicationNo(now, size)
	return nil
}

func (s *Service) render(ctx context.Context, run *issuance) error {
	data, err := s.filler.Fill(ctx, run.entry.Placeholders())
	if err != nil {
		return fmt.Errorf("fill template: %w", err)
	}
	run.doc = models.Artifact{
		Name:        ArtifactBaseName(run.req.StudentName, run.entry.ReceiptNo) + ".docx",
		ContentType: models.ContentTypeDOCX,
		Data:        data,
	}
	ref, err := s.artifacts.Save(ctx, run.doc)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	run.docRef = ref
	return nil
}

func (s *Service) convert(ctx context.Context, run *issuance) error {
	data, err := s.converter.Convert(ctx, run.doc)
	if err != nil {
		return fmt.Errorf("convert document: %w", err)
	}
	run.pdf = models.Artifact{
		Name:        ArtifactBaseName(run.req.StudentName, run.entry.ReceiptNo) + ".pdf",
		ContentType: models.ContentTypePDF,
		Data:        data,
	}
	ref, err := s.artifacts.Save(ctx, run.pdf)
	if err != nil {
		return fmt.Errorf("save pdf: %w", err)
	}
	run.pdfRef = ref
	return nil
}

func (s *Service) notify(ctx context.Context, run *issuance) error {
	n := models.NewReceiptNotification(run.req.StudentName, run.req.Email, run.pdf)
	if err := s.notifier.Send(ctx, n); err != nil {
		return fmt.Errorf("send receipt to %s: %w", email.Mask(run.req.Email), err)
	}
	return nil
}

// runStage wraps fn in a span and a duration observation. Errors come back as *models.StageError.
func (s *Service) runStage(ctx context.Context, stage models.Stage, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "receipt."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.ObserveStage(stage, start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.NewStageError(stage, err)
	}
	return nil
}

func (s *Service) rejectDuplicate(ctx context.Context, run *issuance) error {
	s.advance(ctx, run, models.StateRejectedDuplicate)
	return s.duplicate(ctx, run)
}

// rejectLateDuplicate handles another writer persisting the same transaction between our
// dedup check and append. Side effects already ran, so the run ends FAILED(persist) while
// the caller still gets the duplicate error.
func (s *Service) rejectLateDuplicate(ctx context.Context, run *issuance) error {
	s.advance(ctx, run, models.StateFailed)
	s.logger.WarnContext(ctx, "transaction persisted concurrently, receipt already sent",
		"transaction_id", run.req.TransactionID,
		"receipt_no", run.entry.ReceiptNo,
		"stage", string(models.StagePersist),
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.duplicate(ctx, run,
		"receipt_no", run.entry.ReceiptNo,
		"stage", string(models.StagePersist),
	)
}

func (s *Service) duplicate(ctx context.Context, run *issuance, extra ...any) error {
	run.outcome = models.OutcomeDuplicate
	dup := &models.DuplicateTransactionError{TransactionID: run.req.TransactionID}
	s.logAudit(ctx, audit.ActionReceiptRejectedDuplicate, append([]any{
		"transaction_id", run.req.TransactionID,
		"reason", dup.Error(),
	}, extra...)...)
	return dup
}

func (s *Service) fail(ctx context.Context, run *issuance, err error) error {
	stage, _ := models.FailedStage(err)
	s.advance(ctx, run, models.StateFailed)
	run.outcome = models.OutcomeFailed
	s.logger.ErrorContext(ctx, "receipt issuance failed",
		"transaction_id", run.req.TransactionID,
		"stage", string(stage),
		"ledger", models.IsLedgerError(err),
		"receipt_no", run.entry.ReceiptNo,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logAudit(ctx, audit.ActionReceiptFailed,
		"transaction_id", run.req.TransactionID,
		"receipt_no", run.entry.ReceiptNo,
		"stage", string(stage),
		"reason", err.Error(),
	)
	return err
}

// GetReceipt returns the ledger entry recorded for transactionID.
func (s *Service) GetReceipt(ctx context.Context, transactionID string) (*models.RegistrationEntry, error) {
	if transactionID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "transaction_id is required")
	}
	entry, err := s.ledger.Find(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no receipt for transaction "+transactionID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return entry, nil
}

func (s *Service) incrementOutcome(outcome string) {
	if s.metrics != nil && outcome != "" {
		s.metrics.IncrementOutcome(outcome)
	}
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(action), "log_type", "audit")
	s.logger.InfoContext(ctx, string(action), args...)
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:        action,
		TransactionID: attrs.ExtractString(attributes, "transaction_id"),
		ReceiptNo:     attrs.ExtractString(attributes, "receipt_no"),
		ApplicationNo: attrs.ExtractString(attributes, "application_no"),
		Stage:         attrs.ExtractString(attributes, "stage"),
		Reason:        attrs.ExtractString(attributes, "reason"),
		RequestID:     attrs.ExtractString(attributes, "request_id"),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(action), "error", err)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ArtifactBaseName builds "<name>_<receiptNo>" with spaces in name turned into underscores
// and every other character outside [A-Za-z0-9_-] removed.
func ArtifactBaseName(studentName, receiptNo string) string {
	safe := unsafeNameChars.ReplaceAllString(strings.ReplaceAll(studentName, " ", "_"), "")
	return safe + "_" + receiptNo
}
