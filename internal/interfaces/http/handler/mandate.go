package handler

import (
	"context"

	ddapp "github.com/erp/directdebit/internal/application/directdebit"
	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/erp/directdebit/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MandateHandler handles the direct debit mandate endpoints
type MandateHandler struct {
	BaseHandler
	service *ddapp.MandateService
}

// NewMandateHandler creates a new MandateHandler
func NewMandateHandler(service *ddapp.MandateService) *MandateHandler {
	return &MandateHandler{service: service}
}

// ListMandatesQuery holds the filters of the mandate list
type ListMandatesQuery struct {
	dto.ListRequest
	State       string `form:"state" binding:"omitempty,oneof=draft valid expired cancel"`
	Type        string `form:"type" binding:"omitempty,oneof=recurrent oneoff"`
	PartnerName string `form:"partner_name" binding:"max=200"`
}

// Create godoc
// @ID           createMandate
// @Summary      Register a mandate
// @Description  Create a draft mandate. The reference must be unique per company.
// @Tags         mandates
// @Accept       json
// @Produce      json
// @Param        request body ddapp.CreateMandateInput true "Mandate"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/mandates [post]
func (h *MandateHandler) Create(c *gin.Context) {
	var req ddapp.CreateMandateInput
	if !h.BindJSON(c, &req) {
		return
	}

	mandate, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, mandate)
}

// Get godoc
// @ID           getMandate
// @Summary      Get a mandate
// @Tags         mandates
// @Produce      json
// @Param        id path string true "Mandate ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.ErrorResponse
// @Router       /direct-debit/mandates/{id} [get]
func (h *MandateHandler) Get(c *gin.Context) {
	id, ok := h.ParamID(c, "mandate")
	if !ok {
		return
	}

	mandate, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mandate)
}

// List godoc
// @ID           listMandates
// @Summary      List the mandates of a company
// @Tags         mandates
// @Produce      json
// @Param        company_id query string true "Company ID"
// @Param        state query string false "State"
// @Param        type query string false "Mandate type"
// @Success      200 {object} dto.Response
// @Router       /direct-debit/mandates [get]
func (h *MandateHandler) List(c *gin.Context) {
	var q ListMandatesQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.ApplyDefaults()

	filter := directdebit.MandateFilter{
		Filter: shared.Filter{
			Page:     q.Page,
			PageSize: q.PageSize,
			OrderBy:  q.OrderBy,
			OrderDir: q.OrderDir,
			Search:   q.Search,
		},
		PartnerName: q.PartnerName,
	}
	if q.State != "" {
		state := directdebit.MandateState(q.State)
		filter.State = &state
	}
	if q.Type != "" {
		mandateType := directdebit.MandateType(q.Type)
		filter.Type = &mandateType
	}

	page, err := h.service.List(c.Request.Context(), uuid.MustParse(q.CompanyID), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Validate godoc
// @ID           validateMandate
// @Summary      Validate a draft mandate
// @Tags         mandates
// @Produce      json
// @Param        id path string true "Mandate ID"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/mandates/{id}/validate [post]
func (h *MandateHandler) Validate(c *gin.Context) {
	h.transition(c, h.service.Validate)
}

// Cancel godoc
// @ID           cancelMandate
// @Summary      Cancel a mandate
// @Tags         mandates
// @Produce      json
// @Param        id path string true "Mandate ID"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/mandates/{id}/cancel [post]
func (h *MandateHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// BackToDraft godoc
// @ID           draftMandate
// @Summary      Reset a cancelled mandate to draft
// @Tags         mandates
// @Produce      json
// @Param        id path string true "Mandate ID"
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.ErrorResponse
// @Router       /direct-debit/mandates/{id}/draft [post]
func (h *MandateHandler) BackToDraft(c *gin.Context) {
	h.transition(c, h.service.BackToDraft)
}

// ChangeBankAccount godoc
// @ID           changeMandateBankAccount
// @Summary      Change the debtor account of a mandate
// @Description  A valid recurrent mandate restarts at the first sequence and keeps the old account for the amendment details.
// @Tags         mandates
// @Accept       json
// @Produce      json
// @Param        id path string true "Mandate ID"
// @Param        request body ddapp.BankAccountInput true "Bank account"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.ErrorResponse
// @Router       /direct-debit/mandates/{id}/bank-account [put]
func (h *MandateHandler) ChangeBankAccount(c *gin.Context) {
	id, ok := h.ParamID(c, "mandate")
	if !ok {
		return
	}
	var req ddapp.BankAccountInput
	if !h.BindJSON(c, &req) {
		return
	}

	mandate, err := h.service.ChangeBankAccount(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mandate)
}

func (h *MandateHandler) transition(c *gin.Context, apply func(ctx context.Context, id uuid.UUID) (*ddapp.MandateResponse, error)) {
	id, ok := h.ParamID(c, "mandate")
	if !ok {
		return
	}

	mandate, err := apply(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mandate)
}
