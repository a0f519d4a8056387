package handler

import "feedesk/internal/receipt/models"

const issuedMessage = "Receipt generated, saved, and sent successfully!"

// IssueResponse is the HTTP response for POST /generate-receipt/.
type IssueResponse struct {
	Message       string `json:"message"`
	ReceiptNo     string `json:"receipt_no"`
	ApplicationNo string `json:"application_no"`
	DocxPath      string `json:"docx_path"`
	PDFPath       string `json:"pdf_path"`
}

func fromResult(result *models.IssueResult) *IssueResponse {
	return &IssueResponse{
		Message:       issuedMessage,
		ReceiptNo:     result.ReceiptNo,
		ApplicationNo: result.ApplicationNo,
		DocxPath:      result.DocumentRef,
		PDFPath:       result.PDFRef,
	}
}
