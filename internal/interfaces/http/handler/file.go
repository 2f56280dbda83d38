package handler

import (
	"net/http"
	"time"

	ddapp "github.com/erp/directdebit/internal/application/directdebit"
	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/erp/directdebit/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FileHandler handles the direct debit file endpoints
type FileHandler struct {
	BaseHandler
	service *ddapp.ExportService
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(service *ddapp.ExportService) *FileHandler {
	return &FileHandler{service: service}
}

// CreateFileRequest selects the open orders exported into one file
type CreateFileRequest struct {
	OrderIDs     []uuid.UUID `json:"order_ids" binding:"required,min=1"`
	Flavor       string      `json:"flavor" binding:"omitempty,oneof=pain.008.001.02 pain.008.001.03 pain.008.001.04"`
	ChargeBearer string      `json:"charge_bearer" binding:"omitempty,oneof=SLEV SHAR CRED DEBT"`
	BatchBooking *bool       `json:"batch_booking"`
}

// DownloadURLResponse is a presigned link to an archived file
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create godoc
// @ID           createSddFile
// @Summary      Generate a direct debit file
// @Description  Build the pain.008 document of the open orders. Nothing is stored when generation fails.
// @Tags         sdd-files
// @Accept       json
// @Produce      json
// @Param        request body CreateFileRequest true "Orders and export options"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/files [post]
func (h *FileHandler) Create(c *gin.Context) {
	var req CreateFileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	file, err := h.service.CreateFile(c.Request.Context(), ddapp.CreateFileInput{
		OrderIDs:     req.OrderIDs,
		Flavor:       req.Flavor,
		ChargeBearer: directdebit.ChargeBearer(req.ChargeBearer),
		BatchBooking: req.BatchBooking,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, file)
}

// Send godoc
// @ID           sendSddFile
// @Summary      Mark a file as sent to the bank
// @Description  Book the file: mandates advance their sequence and the orders are done.
// @Tags         sdd-files
// @Produce      json
// @Param        id path string true "File ID"
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/files/{id}/send [post]
func (h *FileHandler) Send(c *gin.Context) {
	id, ok := h.ParamID(c, "file")
	if !ok {
		return
	}
	file, err := h.service.SendFile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, file)
}

// Cancel godoc
// @ID           cancelSddFile
// @Summary      Drop a draft file
// @Tags         sdd-files
// @Param        id path string true "File ID"
// @Success      204
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/files/{id} [delete]
func (h *FileHandler) Cancel(c *gin.Context) {
	id, ok := h.ParamID(c, "file")
	if !ok {
		return
	}
	if err := h.service.CancelFile(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Get godoc
// @ID           getSddFile
// @Summary      Get a direct debit file
// @Tags         sdd-files
// @Produce      json
// @Param        id path string true "File ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /direct-debit/files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "file")
	if !ok {
		return
	}
	file, err := h.service.GetFile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, file)
}

// List godoc
// @ID           listSddFiles
// @Summary      List the direct debit files of a company
// @Tags         sdd-files
// @Produce      json
// @Param        company_id query string true "Company ID"
// @Success      200 {object} dto.Response
// @Router       /direct-debit/files [get]
func (h *FileHandler) List(c *gin.Context) {
	var q dto.ListRequest
	if !h.BindQuery(c, &q) {
		return
	}
	q.ApplyDefaults()

	page, err := h.service.ListFiles(c.Request.Context(), uuid.MustParse(q.CompanyID), shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Search:   q.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Content godoc
// @ID           downloadSddFile
// @Summary      Download the XML of a file
// @Tags         sdd-files
// @Produce      xml
// @Param        id path string true "File ID"
// @Success      200 {file} file
// @Failure      404 {object} dto.ErrorResponse
// @Router       /direct-debit/files/{id}/content [get]
func (h *FileHandler) Content(c *gin.Context) {
	id, ok := h.ParamID(c, "file")
	if !ok {
		return
	}
	filename, content, err := h.service.FileContent(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/xml", content)
}

// DownloadURL godoc
// @ID           sddFileDownloadURL
// @Summary      Get a presigned link to the archived file
// @Tags         sdd-files
// @Produce      json
// @Param        id path string true "File ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /direct-debit/files/{id}/download-url [get]
func (h *FileHandler) DownloadURL(c *gin.Context) {
	id, ok := h.ParamID(c, "file")
	if !ok {
		return
	}
	url, expires, err := h.service.DownloadURL(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, DownloadURLResponse{URL: url, ExpiresAt: expires})
}
