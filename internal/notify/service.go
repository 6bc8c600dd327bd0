package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clinicware/attend-platform/internal/dispatch"
	"github.com/clinicware/attend-platform/internal/syncer"
	"github.com/clinicware/attend-platform/pkg/logging"
)

// Service emails the clinic operator a summary after pipeline runs, so a
// failed overnight sync or a dispatch full of rejections is noticed without
// watching dashboards.
type Service struct {
	email        EmailSender
	operatorMail string
	operatorName string
	logger       *logging.Logger
}

// NewService creates a notification service. A nil sender or empty operator
// address disables summaries without breaking callers.
func NewService(email EmailSender, operatorMail, operatorName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:        email,
		operatorMail: operatorMail,
		operatorName: operatorName,
		logger:       logger,
	}
}

func (s *Service) enabled() bool {
	return s != nil && s.email != nil && s.operatorMail != ""
}

// NotifySyncOutcome emails the schedule sync summary. Failures are logged,
// never propagated: a missed summary must not fail the sync itself.
func (s *Service) NotifySyncOutcome(ctx context.Context, result *syncer.Result) {
	if !s.enabled() || result == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sincronizacao de agenda %s concluida em %s.\n\n", result.UploadID, time.Now().Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "Agendamentos gravados: %d\n", result.Upserted)
	fmt.Fprintf(&b, "Agendamentos cancelados: %d\n", result.Cancelled)
	fmt.Fprintf(&b, "Linhas ignoradas: %d\n", result.Skipped)
	fmt.Fprintf(&b, "Falhas: %d\n", result.Failed)
	if len(result.Errors) > 0 {
		b.WriteString("\nPrimeiros erros:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}

	subject := fmt.Sprintf("Agenda sincronizada: %d gravados, %d falhas", result.Upserted, result.Failed)
	s.send(ctx, subject, b.String())
}

// NotifyDispatchOutcome emails the reminder dispatch summary.
func (s *Service) NotifyDispatchOutcome(ctx context.Context, result *dispatch.RunResult) {
	if !s.enabled() || result == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Disparo de lembretes concluido em %s (estrategia %s).\n\n", time.Now().Format("02/01/2006 15:04"), result.Strategy)
	fmt.Fprintf(&b, "Mensagens enviadas: %d\n", result.Sent)
	fmt.Fprintf(&b, "Falhas de envio: %d\n", result.Failed)
	if result.Failed > 0 {
		b.WriteString("\nVerifique o historico de disparos para os detalhes por item.\n")
	}

	subject := fmt.Sprintf("Lembretes disparados: %d enviados, %d falhas", result.Sent, result.Failed)
	s.send(ctx, subject, b.String())
}

func (s *Service) send(ctx context.Context, subject, body string) {
	msg := EmailMessage{
		To:      s.operatorMail,
		ToName:  s.operatorName,
		Subject: subject,
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("operator summary email failed", "subject", subject, "error", err)
		return
	}
	s.logger.Info("operator summary email sent", "subject", subject)
}
