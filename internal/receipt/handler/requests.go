package handler

import (
	"mime"
	"net/http"

	"feedesk/internal/receipt/models"
	dErrors "feedesk/pkg/domain-errors"
)

const maxFormMemory = 10 << 20

// decodeReceiptRequest reads the receipt fields from a urlencoded or multipart form body.
// Values are kept as sent; models.ReceiptRequest.Validate treats whitespace-only fields as blank.
func decodeReceiptRequest(r *http.Request) (*models.ReceiptRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body")
	}

	field := r.PostFormValue
	return &models.ReceiptRequest{
		StudentName:   field("student_name"),
		Branch:        field("branch"),
		Year:          field("year"),
		College:       field("college"),
		Mobile:        field("mobile"),
		Email:         field("email"),
		Course:        field("course"),
		PayFor:        field("pay_for"),
		Amount:        field("amount"),
		PaymentMode:   field("payment_mode"),
		TransactionID: field("transaction_id"),
		PaymentDate:   field("payment_date"),
	}, nil
}
