package contracts

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lancehub-io/lancehub/internal/alerts"
	"github.com/lancehub-io/lancehub/internal/models"
)

// Handler exposes the escrow core over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientBalance):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient balance"})
	case errors.Is(err, ErrContractExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a contract already exists for this job"})
	case errors.Is(err, ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}

type CreateContractRequest struct {
	SellerID     string   `json:"seller_id" validate:"required,uuid4"`
	JobID        *string  `json:"job_id" validate:"omitempty,uuid4"`
	ServiceID    *string  `json:"service_id" validate:"omitempty,uuid4"`
	Title        *string  `json:"title"`
	ContractType string   `json:"contract_type" validate:"required,oneof=one-time installment"`
	Amount       int64    `json:"amount" validate:"required,gt=0"`
	Description  string   `json:"description"`
	Attachments  []string `json:"attachments"`
	Currency     string   `json:"currency" validate:"required,len=3"`
}

// CreateContract opens a contract with the caller as buyer.
func (h *Handler) CreateContract(c echo.Context) error {
	buyerID, ok := c.Get("user_id").(string)
	if !ok || buyerID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	req := new(CreateContractRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ct, err := h.svc.CreateContract(c.Request().Context(), CreateContractInput{
		BuyerID:      buyerID,
		SellerID:     req.SellerID,
		JobID:        req.JobID,
		ServiceID:    req.ServiceID,
		Title:        req.Title,
		ContractType: models.ContractType(req.ContractType),
		Amount:       req.Amount,
		Description:  req.Description,
		Attachments:  req.Attachments,
		Currency:     req.Currency,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, ct)
}

// GetContract returns one contract; participants only.
func (h *Handler) GetContract(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	ct, err := h.svc.Contract(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if ct.BuyerID != uid && ct.SellerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this contract"})
	}
	return c.JSON(http.StatusOK, ct)
}

// ListMyContracts returns every contract the caller participates in.
func (h *Handler) ListMyContracts(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.svc.ContractsFor(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []models.Contract{}
	}
	return c.JSON(http.StatusOK, echo.Map{"contracts": items})
}

type UpdateContractRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Amount      *int64   `json:"amount" validate:"omitempty,gt=0"`
	Status      *string  `json:"status" validate:"omitempty,oneof=pending accepted rejected completed"`
	Attachments []string `json:"attachments"`
}

// UpdateContract patches fields; only the buyer may change the amount.
func (h *Handler) UpdateContract(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	req := new(UpdateContractRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ct, err := h.svc.Contract(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if ct.BuyerID != uid && ct.SellerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this contract"})
	}
	if req.Amount != nil && ct.BuyerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the buyer may change the amount"})
	}

	patch := ContractPatch{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Attachments: req.Attachments,
	}
	if req.Status != nil {
		st := models.ContractStatus(*req.Status)
		patch.Status = &st
	}

	updated, err := h.svc.UpdateContract(c.Request().Context(), ct.ID, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

type CreateMilestoneRequest struct {
	Description string     `json:"description" validate:"required"`
	Amount      int64      `json:"amount" validate:"required,gt=0"`
	Sequence    int        `json:"sequence"`
	DueDate     *time.Time `json:"due_date"`
}

// CreateMilestone adds an escrowed milestone; buyer only.
func (h *Handler) CreateMilestone(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	req := new(CreateMilestoneRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ct, err := h.svc.Contract(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if ct.BuyerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the buyer may fund milestones"})
	}

	m, err := h.svc.CreateMilestone(c.Request().Context(), CreateMilestoneInput{
		ContractID:  ct.ID,
		Description: req.Description,
		Amount:      req.Amount,
		Sequence:    req.Sequence,
		DueDate:     req.DueDate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// ListMilestones returns a contract's milestones; participants only.
func (h *Handler) ListMilestones(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	ct, err := h.svc.Contract(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if ct.BuyerID != uid && ct.SellerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this contract"})
	}
	items, err := h.svc.Milestones(c.Request().Context(), ct.ID)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []models.Milestone{}
	}
	return c.JSON(http.StatusOK, echo.Map{"milestones": items})
}

type MilestoneStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected paid"`
}

// UpdateMilestoneStatus releases or withholds escrowed funds. Only the buyer
// confirms approval or payment.
func (h *Handler) UpdateMilestoneStatus(c echo.Context) error {
	uid, _ := c.Get("user_id").(string)
	req := new(MilestoneStatusRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	m, err := h.svc.store.GetMilestone(ctx, c.Param("milestone_id"))
	if err != nil {
		return respondError(c, err)
	}
	if m.ContractID != c.Param("id") {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "milestone not found"})
	}
	ct, err := h.svc.Contract(ctx, m.ContractID)
	if err != nil {
		return respondError(c, err)
	}
	if ct.BuyerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the buyer may settle milestones"})
	}

	updated, err := h.svc.UpdateMilestoneStatus(ctx, m.ID, models.MilestoneStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}

	if updated.Status == models.MilestonePaid {
		_ = alerts.EnqueueMilestonePaid(ct.ID, updated.ID, ct.SellerID, updated.Amount)
		_ = alerts.CreateNotification(ct.SellerID, "milestone:paid", "Milestone paid",
			"A milestone payment has been released to your wallet.", &updated.ID, nil)
	}
	return c.JSON(http.StatusOK, updated)
}

// OrderStats aggregates the caller's milestone amounts by bucket.
func (h *Handler) OrderStats(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := c.QueryParam("role")
	if role == "" {
		role, _ = c.Get("user_type").(string)
	}

	stats, err := h.svc.UserOrderStats(c.Request().Context(), uid, role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
