package handler

import (
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/gin-gonic/gin"
)

// ToolsHandler serves the stateless helpers: payment references and
// collection dates
type ToolsHandler struct {
	BaseHandler
	clock func() time.Time
}

// NewToolsHandler creates a new ToolsHandler. A nil clock uses time.Now.
func NewToolsHandler(clock func() time.Time) *ToolsHandler {
	if clock == nil {
		clock = time.Now
	}
	return &ToolsHandler{clock: clock}
}

// ChecksumResponse is the payment reference of a number
type ChecksumResponse struct {
	Number    string `json:"number"`
	Reference string `json:"reference"`
}

// DueDateQuery holds the invoice date and the mandate sequence
type DueDateQuery struct {
	InvoiceDate  string `form:"invoice_date" binding:"required,datetime=2006-01-02"`
	SequenceType string `form:"sequence_type" binding:"omitempty,oneof=first recurring final"`
}

// DueDateResponse is the earliest allowed collection date
type DueDateResponse struct {
	InvoiceDate string `json:"invoice_date"`
	DueDate     string `json:"due_date"`
}

// Checksum godoc
// @ID           acceptgiroChecksum
// @Summary      Compute an acceptgiro payment reference
// @Description  Return the 16 digit reference: a check digit followed by the number zero-filled to 15 digits.
// @Tags         tools
// @Produce      json
// @Param        number path string true "Up to 15 digits"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Router       /direct-debit/checksum/{number} [get]
func (h *ToolsHandler) Checksum(c *gin.Context) {
	number := c.Param("number")
	reference, err := directdebit.Checksum(number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ChecksumResponse{Number: number, Reference: reference})
}

// DueDate godoc
// @ID           collectionDueDate
// @Summary      Compute the collection date of an invoice
// @Description  Keep the invoice date when it leaves enough working days, otherwise move it to the earliest allowed working day.
// @Tags         tools
// @Produce      json
// @Param        invoice_date query string true "YYYY-MM-DD"
// @Param        sequence_type query string false "Mandate sequence"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Router       /direct-debit/due-date [get]
func (h *ToolsHandler) DueDate(c *gin.Context) {
	var q DueDateQuery
	if !h.BindQuery(c, &q) {
		return
	}
	invoiceDate, err := time.ParseInLocation(time.DateOnly, q.InvoiceDate, time.UTC)
	if err != nil {
		h.BadRequest(c, "Invalid invoice date")
		return
	}
	sequence := directdebit.SequenceType(q.SequenceType)
	if sequence == "" {
		sequence = directdebit.SequenceFirst
	}

	due := directdebit.DueDate(h.clock(), invoiceDate, sequence)
	h.Success(c, DueDateResponse{
		InvoiceDate: q.InvoiceDate,
		DueDate:     due.Format(time.DateOnly),
	})
}
