package models

import "fmt"

const ReceiptSubject = "Your Fee Payment Receipt"

// Notification is one outgoing email with a single attachment.
type Notification struct {
	To         string
	Subject    string
	Body       string
	Attachment Artifact
}

// NewReceiptNotification addresses the receipt PDF to the payer. name is the student
// name as submitted, not the upper-cased ledger value.
func NewReceiptNotification(name, to string, pdf Artifact) Notification {
	return Notification{
		To:         to,
		Subject:    ReceiptSubject,
		Body:       fmt.Sprintf("Dear %s,\n\nPlease find attached your payment receipt.\n\nThanks.", name),
		Attachment: pdf,
	}
}
