package handlers

import (
	"fmt"

	"marketplace_chat_service/internal/chat/app"
	"marketplace_chat_service/internal/chat/domain"
	errprocess "marketplace_chat_service/pkg/err"
	"marketplace_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ReportHandler moderation report endpoints
type ReportHandler struct {
	reports *app.ReportUseCase
}

// NewReportHandler create ReportHandler
func NewReportHandler(reports *app.ReportUseCase) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// SubmitRequest body of /reports/submit
type SubmitRequest struct {
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
}

// SubmitResponse result of /reports/submit
type SubmitResponse struct {
	ReportID string `json:"report_id"`
}

// ReportListResponse result of /reports
type ReportListResponse struct {
	Reports []domain.Report `json:"reports"`
}

// Submit file a report on a conversation the caller takes part in
// @Summary Submit report
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body SubmitRequest true "report"
// @Success 201 {object} SubmitResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /reports/submit [post]
func (h *ReportHandler) Submit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errprocess.NewBadRequest("invalid request"))
	}

	report, err := h.reports.Submit(c.UserContext(), req.ConversationID, middlewares.MemberID(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(SubmitResponse{ReportID: report.ID})
}

// List reports, admin only
// @Summary List reports
// @Tags Reports
// @Produce json
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} ReportListResponse
// @Failure 403 {object} ErrorResponse
// @Router /reports [get]
func (h *ReportHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit < 0 || offset < 0 {
		return respondError(c, errprocess.NewBadRequest("limit and offset must not be negative"))
	}

	reports, err := h.reports.List(c.UserContext(), limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ReportListResponse{Reports: reports})
}

// Get one report, admin only
// @Summary Get report
// @Tags Reports
// @Produce json
// @Param id path string true "report id"
// @Success 200 {object} domain.Report
// @Failure 404 {object} ErrorResponse
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *fiber.Ctx) error {
	report, err := h.reports.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// Document stored transcript of a report, admin only
// @Summary Report transcript
// @Tags Reports
// @Produce html
// @Param id path string true "report id"
// @Success 200 {string} string "HTML document"
// @Failure 404 {object} ErrorResponse
// @Router /reports/{id}/document [get]
func (h *ReportHandler) Document(c *fiber.Ctx) error {
	id := c.Params("id")
	doc, err := h.reports.Document(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="report-%s.html"`, id))
	return c.Send(doc)
}
