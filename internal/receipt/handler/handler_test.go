package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedesk/internal/receipt/handler/mocks"
	"feedesk/internal/receipt/models"
	dErrors "feedesk/pkg/domain-errors"
	"feedesk/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func formFields() map[string]string {
	return map[string]string{
		"student_name":   "Asha Rao",
		"branch":         "CSE",
		"year":           "2",
		"college":        "City College",
		"mobile":         "9999999999",
		"email":          "asha@example.com",
		"course":         "B.Tech",
		"pay_for":        "Tuition",
		"amount":         "45000",
		"payment_mode":   "UPI",
		"transaction_id": "TXN1",
		"payment_date":   "2024-06-01",
	}
}

func (s *HandlerSuite) post(fields map[string]string) *httptest.ResponseRecorder {
	req := testutil.NewFormRequest(s.T(), http.MethodPost, "/generate-receipt/", fields)
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestGenerateReceipt() {
	s.Run("success returns identifiers and artifact paths", func() {
		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.ReceiptRequest) (*models.IssueResult, error) {
				s.Equal("Asha Rao", req.StudentName)
				s.Equal("TXN1", req.TransactionID)
				s.Equal("2024-06-01", req.PaymentDate)
				return &models.IssueResult{
					ReceiptNo:     "CTC20240601103000ABC123",
					ApplicationNo: "202406011030001",
					DocumentRef:   "out/a.docx",
					PDFRef:        "out/a.pdf",
				}, nil
			})

		rr := s.post(formFields())
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[IssueResponse](s.T(), rr)
		s.Equal(issuedMessage, body.Message)
		s.Equal("CTC20240601103000ABC123", body.ReceiptNo)
		s.Equal("202406011030001", body.ApplicationNo)
		s.Equal("out/a.docx", body.DocxPath)
		s.Equal("out/a.pdf", body.PDFPath)
	})

	s.Run("multipart bodies are accepted", func() {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range formFields() {
			s.Require().NoError(mw.WriteField(k, v))
		}
		s.Require().NoError(mw.Close())

		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.ReceiptRequest) (*models.IssueResult, error) {
				s.Equal("asha@example.com", req.Email)
				return &models.IssueResult{ReceiptNo: "R"}, nil
			})

		req := httptest.NewRequest(http.MethodPost, "/generate-receipt/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("field values are passed through untrimmed", func() {
		fields := formFields()
		fields["transaction_id"] = " TXN1 "
		fields["student_name"] = "Asha Rao "

		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.ReceiptRequest) (*models.IssueResult, error) {
				s.Equal(" TXN1 ", req.TransactionID)
				s.Equal("Asha Rao ", req.StudentName)
				return &models.IssueResult{ReceiptNo: "R"}, nil
			})

		rr := s.post(fields)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("duplicate transaction is a conflict", func() {
		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).
			Return(nil, &models.DuplicateTransactionError{TransactionID: "TXN1"})

		rr := s.post(formFields())
		body := testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "duplicate_transaction")
		s.Equal("Transaction ID TXN1 already exists", body["error_description"])
	})

	s.Run("in-progress transaction is a conflict", func() {
		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("transaction TXN1: %w", models.ErrTransactionInProgress))

		rr := s.post(formFields())
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "transaction_in_progress")
	})

	s.Run("validation errors are bad requests", func() {
		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "missing required fields: email"))

		fields := formFields()
		delete(fields, "email")
		rr := s.post(fields)
		body := testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
		s.Equal("missing required fields: email", body["error_description"])
	})

	s.Run("stage failures name the stage", func() {
		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).
			Return(nil, models.NewStageError(models.StageConvert, errors.New("soffice missing")))

		rr := s.post(formFields())
		body := testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "convert_failed")
		s.Equal("convert", body["stage"])
		s.Equal("convert stage failed: soffice missing", body["error_description"])
	})

	s.Run("unclassified errors hide their cause", func() {
		s.service.EXPECT().IssueReceipt(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("secret detail"))

		rr := s.post(formFields())
		body := testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
		s.Empty(body["error_description"])
	})
}

func (s *HandlerSuite) TestGetReceipt() {
	s.Run("found", func() {
		s.service.EXPECT().GetReceipt(gomock.Any(), "TXN1").
			Return(&models.RegistrationEntry{TransactionID: "TXN1", ReceiptNo: "R1"}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/receipts/TXN1"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		entry := testutil.UnmarshalResponse[models.RegistrationEntry](s.T(), rr)
		s.Equal("R1", entry.ReceiptNo)
	})

	s.Run("missing", func() {
		s.service.EXPECT().GetReceipt(gomock.Any(), "NOPE").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no receipt for transaction NOPE"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/receipts/NOPE"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz/"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[map[string]string](s.T(), rr)
	s.Equal("ok", (*body)["status"])
}
