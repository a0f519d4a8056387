package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedesk/internal/audit"
	"feedesk/internal/receipt/artifact"
	"feedesk/internal/receipt/identifier"
	"feedesk/internal/receipt/lock"
	"feedesk/internal/receipt/models"
	"feedesk/internal/receipt/service"
	"feedesk/internal/receipt/store/ledger"
	"feedesk/internal/receipt/template"
	"feedesk/pkg/requestcontext"
	"feedesk/pkg/testutil"
)

// flakyConverter fails the first n calls, then echoes a fake PDF.
type flakyConverter struct {
	failures atomic.Int32
}

func (c *flakyConverter) Convert(_ context.Context, doc models.Artifact) ([]byte, error) {
	if c.failures.Add(-1) >= 0 {
		return nil, errors.New("soffice exited with status 1")
	}
	return append([]byte("%PDF-"), doc.Name...), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Send(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type pipeline struct {
	svc       *service.Service
	ledger    *ledger.InMemory
	converter *flakyConverter
	notifier  *recordingNotifier
	audit     *audit.InMemory
	outDir    string
}

func newPipeline(t *testing.T, convertFailures int32) *pipeline {
	t.Helper()
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.docx")
	doc := testutil.NewDocx(t, map[string]string{
		"word/document.xml": testutil.WordPart("document",
			testutil.Paragraph("Receipt No: ", "{{receipt_", "no}}")+
				testutil.Table(
					testutil.Paragraph("{{student_name}}"),
					testutil.Paragraph("{{amount}}"),
				)),
	})
	require.NoError(t, os.WriteFile(templatePath, doc, 0o644))

	p := &pipeline{
		ledger:    ledger.NewInMemory(),
		converter: &flakyConverter{},
		notifier:  &recordingNotifier{},
		audit:     audit.NewInMemory(),
		outDir:    filepath.Join(dir, "out"),
	}
	p.converter.failures.Store(convertFailures)

	svc, err := service.New(
		p.ledger,
		identifier.New(),
		template.NewFiller(templatePath),
		artifact.NewLocal(p.outDir),
		p.converter,
		p.notifier,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithLocker(lock.NewInMemory()),
		service.WithAuditPublisher(audit.NewPublisher(p.audit)),
	)
	require.NoError(t, err)
	p.svc = svc
	return p
}

func request(txID string) *models.ReceiptRequest {
	return &models.ReceiptRequest{
		StudentName:   "Ravi Kumar",
		Branch:        "ECE",
		Year:          "3",
		College:       "City College",
		Mobile:        "8888888888",
		Email:         "ravi@example.com",
		Course:        "B.E",
		PayFor:        "Exam Fee",
		Amount:        "1200",
		PaymentMode:   "Card",
		TransactionID: txID,
		PaymentDate:   "2024-06-02",
	}
}

func fixedTime(ctx context.Context) context.Context {
	return requestcontext.WithTime(ctx, time.Date(2024, 6, 2, 9, 15, 0, 0, time.UTC))
}

func TestPipelineIssuesAndRendersReceipt(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := fixedTime(context.Background())

	result, err := p.svc.IssueReceipt(ctx, request("TXN-A"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.ReceiptNo, "CTC20240602091500"))
	assert.Equal(t, "202406020915001", result.ApplicationNo)
	assert.Equal(t, filepath.Join(p.outDir, "Ravi_Kumar_"+result.ReceiptNo+".docx"), result.DocumentRef)
	assert.Equal(t, filepath.Join(p.outDir, "Ravi_Kumar_"+result.ReceiptNo+".pdf"), result.PDFRef)

	docx, err := os.ReadFile(result.DocumentRef)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Receipt No: " + result.ReceiptNo,
		"RAVI KUMAR",
		"1200",
	}, testutil.DocxParagraphs(t, docx, "word/document.xml"))

	pdf, err := os.ReadFile(result.PDFRef)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))

	entry, err := p.svc.GetReceipt(ctx, "TXN-A")
	require.NoError(t, err)
	assert.Equal(t, result.ReceiptNo, entry.ReceiptNo)
	assert.Equal(t, "RAVI KUMAR", entry.StudentName)
	assert.Equal(t, "20240602091500", entry.Timestamp)

	require.Equal(t, 1, p.notifier.count())
	assert.Equal(t, "ravi@example.com", p.notifier.sent[0].To)
	assert.Equal(t, "Ravi_Kumar_"+result.ReceiptNo+".pdf", p.notifier.sent[0].Attachment.Name)
}

func TestPipelineRetryAfterConversionFailure(t *testing.T) {
	p := newPipeline(t, 1)
	ctx := fixedTime(context.Background())

	_, err := p.svc.IssueReceipt(ctx, request("TXN-R"))
	require.Error(t, err)
	assert.True(t, models.IsConvertError(err))
	assert.Zero(t, p.notifier.count())

	exists, err := p.ledger.Exists(ctx, "TXN-R")
	require.NoError(t, err)
	assert.False(t, exists, "failed issuance must leave the transaction unrecorded")

	result, err := p.svc.IssueReceipt(ctx, request("TXN-R"))
	require.NoError(t, err)
	assert.Equal(t, "202406020915001", result.ApplicationNo)

	_, err = p.svc.IssueReceipt(ctx, request("TXN-R"))
	assert.True(t, models.IsDuplicate(err))

	n, err := p.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, p.notifier.count())

	events, err := p.audit.ListByTransaction(ctx, "TXN-R")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionReceiptFailed, events[0].Action)
	assert.Equal(t, string(models.StageConvert), events[0].Stage)
	assert.Equal(t, audit.ActionReceiptIssued, events[1].Action)
	assert.Equal(t, audit.ActionReceiptRejectedDuplicate, events[2].Action)
}

func TestPipelineApplicationNumbersFollowLedgerSize(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := fixedTime(context.Background())

	first, err := p.svc.IssueReceipt(ctx, request("TXN-1"))
	require.NoError(t, err)
	second, err := p.svc.IssueReceipt(ctx, request("TXN-2"))
	require.NoError(t, err)

	assert.Equal(t, "202406020915001", first.ApplicationNo)
	assert.Equal(t, "202406020915002", second.ApplicationNo)
	assert.NotEqual(t, first.ReceiptNo, second.ReceiptNo)
}

func TestPipelineConcurrentSameTransaction(t *testing.T) {
	p := newPipeline(t, 0)
	ctx := fixedTime(context.Background())

	const workers = 10
	var (
		wg         sync.WaitGroup
		issued     atomic.Int32
		rejected   atomic.Int32
		unexpected atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.svc.IssueReceipt(ctx, request("TXN-C"))
			switch {
			case err == nil:
				issued.Add(1)
			case models.IsDuplicate(err), errors.Is(err, models.ErrTransactionInProgress):
				rejected.Add(1)
			default:
				unexpected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), issued.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.Zero(t, unexpected.Load())

	n, err := p.ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, p.notifier.count())
}
