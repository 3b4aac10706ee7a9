// Package notifier composes and dispatches earthquake alert emails.
package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

// Mailer is the outbound transport. The SMTP implementation lives in
// smtp.go; tests substitute fakes.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements monitor.Notifier: it summarizes the bulletin, renders
// the fixed alert template, and dispatches one email. Transport failures are
// logged and reported as false, never as an error.
type Service struct {
	mailer     Mailer
	summarizer monitor.Summarizer
	logger     *zap.Logger
}

// New builds a Service.
func New(mailer Mailer, summarizer monitor.Summarizer, logger *zap.Logger) *Service {
	return &Service{
		mailer:     mailer,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Notify sends the alert email for one matched user.
func (s *Service) Notify(ctx context.Context, user monitor.User, settings monitor.Settings, b monitor.Bulletin) bool {
	summary := s.summarizer.Summarize(ctx, b, settings.SafetyTips)

	subject := fmt.Sprintf("Earthquake Alert - Magnitude %s", b.Magnitude)
	body := composeBody(user, settings, b, summary)

	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("alert email failed",
			zap.String("email", user.Email),
			zap.Error(err),
		)
		telemetry.ObserveNotification("failed")
		return false
	}

	s.logger.Info("alert email sent", zap.String("email", user.Email))
	telemetry.ObserveNotification("sent")
	return true
}

func composeBody(user monitor.User, settings monitor.Settings, b monitor.Bulletin, summary string) string {
	detailLink := b.DetailLink
	if detailLink == "" {
		detailLink = "N/A"
	}
	province, city := user.Province, user.City
	if settings.LocationType == monitor.LocationCustom {
		province, city = settings.AltProvince, settings.AltCity
	}

	return fmt.Sprintf(`EARTHQUAKE NOTIFICATION

Dear %s,

%s

---
EARTHQUAKE DETAILS:
- Time: %s
- Location: %s
- Magnitude: %s
- Depth: %s
- Coordinates: %s, %s

Your monitored location: %s, %s
Full bulletin: %s

---
This is an automated notification from the Earthquake Monitoring System.
You can update your preferences in your dashboard.

Stay safe!`,
		user.FullName,
		summary,
		b.DateTime,
		b.Location,
		b.Magnitude,
		b.Depth,
		b.Latitude, b.Longitude,
		city, province,
		detailLink,
	)
}
