package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"
	errprocess "marketplace_chat_service/pkg/err"
	"marketplace_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportUseCase moderation reports with a frozen transcript
type ReportUseCase struct {
	gateway   repository.Gateway
	reports   repository.ReportRepository
	docs      repository.DocumentStore
	publisher repository.ReportPublisher
	now       func() time.Time
}

// NewReportUseCase init report use case
func NewReportUseCase(
	gateway repository.Gateway,
	reports repository.ReportRepository,
	docs repository.DocumentStore,
	publisher repository.ReportPublisher,
) *ReportUseCase {
	return &ReportUseCase{
		gateway:   gateway,
		reports:   reports,
		docs:      docs,
		publisher: publisher,
		now:       time.Now,
	}
}

// Submit render the transcript, store it and record the report.
// The conversation itself is left untouched.
func (uc *ReportUseCase) Submit(ctx context.Context, conversationID, reporterID, reason string) (*domain.Report, error) {
	reason = strings.TrimSpace(reason)
	conv, msgs, err := uc.participantView(ctx, conversationID, reporterID)
	if err != nil {
		return nil, err
	}

	doc, err := BuildTranscript(conv, msgs, reason)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "render transcript failed", err)
	}

	id := uuid.New().String()
	key := fmt.Sprintf("reports/%s/%s.html", conversationID, id)
	if err := uc.docs.Put(ctx, key, []byte(doc)); err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "store transcript failed", err)
	}

	sum := sha256.Sum256([]byte(doc))
	report := &domain.Report{
		ID:             id,
		ConversationID: conversationID,
		ReporterID:     reporterID,
		Reason:         reason,
		DocumentKey:    key,
		DocumentSHA256: hex.EncodeToString(sum[:]),
		CreatedAt:      uc.now().UTC(),
	}
	if err := uc.reports.Create(ctx, report); err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "save report failed", err)
	}

	event := domain.ReportEvent{
		Type:           domain.ReportSubmitted,
		ReportID:       report.ID,
		ConversationID: report.ConversationID,
		ReporterID:     report.ReporterID,
		Reason:         report.Reason,
		DocumentKey:    report.DocumentKey,
		CreatedAt:      report.CreatedAt,
	}
	if err := uc.publisher.PublishReport(ctx, event); err != nil {
		logger.Log.Error("publish report event failed", zap.String("report_id", report.ID), zap.Error(err))
	}

	logger.Log.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.String("conversation_id", conversationID),
		zap.String("reporter_id", reporterID),
	)
	return report, nil
}

// Export transcript download for a participant, nothing is stored
func (uc *ReportUseCase) Export(ctx context.Context, conversationID, userID string) (string, error) {
	conv, msgs, err := uc.participantView(ctx, conversationID, userID)
	if err != nil {
		return "", err
	}
	doc, err := BuildTranscript(conv, msgs, "")
	if err != nil {
		return "", errprocess.Wrap(errprocess.Internal, "render transcript failed", err)
	}
	return doc, nil
}

// List reports newest first
func (uc *ReportUseCase) List(ctx context.Context, limit, offset int) ([]domain.Report, error) {
	reports, err := uc.reports.List(ctx, limit, offset)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "list reports failed", err)
	}
	return reports, nil
}

// Get one report
func (uc *ReportUseCase) Get(ctx context.Context, id string) (*domain.Report, error) {
	report, err := uc.reports.FindByID(ctx, id)
	if errors.Is(err, repository.ErrReportNotFound) {
		return nil, errprocess.Wrap(errprocess.NotFound, "report not found", err)
	}
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "get report failed", err)
	}
	return report, nil
}

// Document stored transcript of a report
func (uc *ReportUseCase) Document(ctx context.Context, id string) ([]byte, error) {
	report, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := uc.docs.Get(ctx, report.DocumentKey)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return nil, errprocess.Wrap(errprocess.NotFound, "report document not found", err)
	}
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "load report document failed", err)
	}
	return data, nil
}

func (uc *ReportUseCase) participantView(ctx context.Context, conversationID, userID string) (*domain.Conversation, []domain.Message, error) {
	if conversationID == "" || userID == "" {
		return nil, nil, errprocess.NewBadRequest("conversation_id and user_id are required")
	}
	conv, err := uc.gateway.FindConversation(ctx, conversationID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return nil, nil, errprocess.Wrap(errprocess.NotFound, "conversation not found", err)
	}
	if err != nil {
		return nil, nil, errprocess.Wrap(errprocess.Internal, "find conversation failed", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, nil, errprocess.NewForbidden("not a participant of this conversation")
	}

	msgs, err := uc.gateway.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, nil, errprocess.Wrap(errprocess.Internal, "list messages failed", err)
	}
	return conv, msgs, nil
}
