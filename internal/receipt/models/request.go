package models

import (
	"strings"

	dErrors "feedesk/pkg/domain-errors"
)

// ReceiptRequest is one fee-payment submission. All fields are required opaque text;
// nothing is parsed as a number or a date.
type ReceiptRequest struct {
	StudentName   string `json:"student_name"`
	Branch        string `json:"branch"`
	Year          string `json:"year"`
	College       string `json:"college"`
	Mobile        string `json:"mobile"`
	Email         string `json:"email"`
	Course        string `json:"course"`
	PayFor        string `json:"pay_for"`
	Amount        string `json:"amount"`
	PaymentMode   string `json:"payment_mode"`
	TransactionID string `json:"transaction_id"`
	PaymentDate   string `json:"payment_date"`
}

// RequiredFields lists the form field names in submission order.
var RequiredFields = []string{
	"student_name", "branch", "year", "college", "mobile", "email",
	"course", "pay_for", "amount", "payment_mode", "transaction_id", "payment_date",
}

func (r *ReceiptRequest) fields() map[string]string {
	return map[string]string{
		"student_name":   r.StudentName,
		"branch":         r.Branch,
		"year":           r.Year,
		"college":        r.College,
		"mobile":         r.Mobile,
		"email":          r.Email,
		"course":         r.Course,
		"pay_for":        r.PayFor,
		"amount":         r.Amount,
		"payment_mode":   r.PaymentMode,
		"transaction_id": r.TransactionID,
		"payment_date":   r.PaymentDate,
	}
}

// Validate rejects requests with blank fields. Missing names are reported in submission order.
func (r *ReceiptRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	values := r.fields()
	var missing []string
	for _, name := range RequiredFields {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// NewEntry builds the in-memory ledger entry for this request. Identifiers are left
// empty; the pipeline assigns them once deduplication has passed.
func (r *ReceiptRequest) NewEntry(timestamp string) RegistrationEntry {
	return RegistrationEntry{
		StudentName:   strings.ToUpper(r.StudentName),
		Branch:        r.Branch,
		Year:          r.Year,
		College:       r.College,
		Course:        r.Course,
		Mobile:        r.Mobile,
		Email:         r.Email,
		PayFor:        r.PayFor,
		Amount:        r.Amount,
		PaymentMode:   r.PaymentMode,
		PaymentDate:   r.PaymentDate,
		TransactionID: r.TransactionID,
		Timestamp:     timestamp,
	}
}
