package audit

import "time"

// Action names a receipt lifecycle event.
type Action string

const (
	ActionReceiptIssued            Action = "receipt_issued"
	ActionReceiptRejectedDuplicate Action = "receipt_rejected_duplicate"
	ActionReceiptFailed            Action = "receipt_failed"
)

// Event is emitted by the receipt pipeline once a request reaches a terminal state. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	TransactionID string    `json:"transaction_id"`
	ReceiptNo     string    `json:"receipt_no,omitempty"`
	ApplicationNo string    `json:"application_no,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}
