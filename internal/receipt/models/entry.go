package models

// TimestampLayout is the compact YYYYMMDDhhmmss form used in entries and identifiers.
const TimestampLayout = "20060102150405"

// RegistrationEntry is one issued receipt as recorded in the ledger.
//
// Invariants:
//   - TransactionID is unique across the ledger
//   - ReceiptNo is unique (timestamp plus random suffix)
//   - ApplicationNo is derived from the ledger size at issuance and is best effort only
//   - StudentName is stored upper-cased
//   - Entries are append-only; nothing in this module mutates or deletes them
//
// Every field except the generated identifiers and Timestamp is opaque caller text.
type RegistrationEntry struct {
	ReceiptNo     string `yaml:"receipt_no" json:"receipt_no" bson:"receipt_no"`
	ApplicationNo string `yaml:"application_no" json:"application_no" bson:"application_no"`
	StudentName   string `yaml:"student_name" json:"student_name" bson:"student_name"`
	Branch        string `yaml:"branch" json:"branch" bson:"branch"`
	Year          string `yaml:"year" json:"year" bson:"year"`
	College       string `yaml:"college" json:"college" bson:"college"`
	Course        string `yaml:"course" json:"course" bson:"course"`
	Mobile        string `yaml:"mobile" json:"mobile" bson:"mobile"`
	Email         string `yaml:"email" json:"email" bson:"email"`
	PayFor        string `yaml:"pay_for" json:"pay_for" bson:"pay_for"`
	Amount        string `yaml:"amount" json:"amount" bson:"amount"`
	PaymentMode   string `yaml:"payment_mode" json:"payment_mode" bson:"payment_mode"`
	PaymentDate   string `yaml:"payment_date" json:"payment_date" bson:"payment_date"`
	TransactionID string `yaml:"transaction_id" json:"transaction_id" bson:"transaction_id"`
	Timestamp     string `yaml:"timestamp" json:"timestamp" bson:"timestamp"`
}

// Template placeholder tokens recognised in receipt documents.
const (
	TokenReceiptNo     = "{{receipt_no}}"
	TokenApplicationNo = "{{application_no}}"
	TokenDepartment    = "{{department}}"
	TokenStudentName   = "{{student_name}}"
	TokenCourseName    = "{{course_name}}"
	TokenPaymentMode   = "{{payment_mode}}"
	TokenPayFor        = "{{pay_for}}"
	TokenPaymentDate   = "{{payment_date}}"
	TokenAmount        = "{{amount}}"
	TokenTransactionID = "{{transaction_id}}"
)

// Placeholders maps each template token to the entry value it is replaced with.
// Branch fills {{department}} and Course fills {{course_name}}.
func (e RegistrationEntry) Placeholders() map[string]string {
	return map[string]string{
		TokenReceiptNo:     e.ReceiptNo,
		TokenApplicationNo: e.ApplicationNo,
		TokenDepartment:    e.Branch,
		TokenStudentName:   e.StudentName,
		TokenCourseName:    e.Course,
		TokenPaymentMode:   e.PaymentMode,
		TokenPayFor:        e.PayFor,
		TokenPaymentDate:   e.PaymentDate,
		TokenAmount:        e.Amount,
		TokenTransactionID: e.TransactionID,
	}
}

// IssueResult is returned for a fully successful issuance.
type IssueResult struct {
	ReceiptNo     string `json:"receipt_no"`
	ApplicationNo string `json:"application_no"`
	DocumentRef   string `json:"docx_path"`
	PDFRef        string `json:"pdf_path"`
}

// Artifact is a named document produced by the pipeline.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

const (
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
)
