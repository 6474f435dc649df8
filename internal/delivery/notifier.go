package delivery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"capsule-service/internal/config"
	"capsule-service/internal/logging"
	"capsule-service/internal/models"
	"capsule-service/internal/utils"
	"capsule-service/pkg/email"
	"capsule-service/pkg/sms"
	"capsule-service/pkg/telegram"
)

// GuardianNotifier sends one message to one guardian, picking the
// channel from the guardian's contact fields: telegram, then SMS, then
// email. A shared limiter keeps fan-out from overwhelming the
// downstream transports.
type GuardianNotifier struct {
	cfg     config.Config
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewGuardianNotifier(cfg config.Config, logger *logging.Logger) *GuardianNotifier {
	return &GuardianNotifier{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.Scheduler.NotifyRate)), cfg.Scheduler.NotifyRate),
	}
}

func (n *GuardianNotifier) Notify(ctx context.Context, g models.Guardian, subject, body string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify rate limit: %w", err)
	}

	switch {
	case g.TelegramChatID != 0 && n.cfg.Telegram.BotToken != "":
		return utils.Retry(ctx, n.logger, 3, time.Second, func() error {
			return telegram.Send(ctx, n.cfg.Telegram.BotToken, []int64{g.TelegramChatID}, subject+"\n\n"+body)
		})
	case g.Phone != "" && n.cfg.SMS.AccountSID != "":
		return utils.Retry(ctx, n.logger, 3, time.Second, func() error {
			return sms.Send(n.cfg.SMS.AccountSID, n.cfg.SMS.AuthToken, n.cfg.SMS.FromNumber, g.Phone, subject+"\n"+body)
		})
	case g.Email != "":
		return email.Send(n.cfg.Email.SMTPServer, n.cfg.Email.SMTPPort,
			n.cfg.Email.Username, n.cfg.Email.Password, n.cfg.Email.FromName,
			g.Email, subject, body)
	default:
		return fmt.Errorf("guardian %s has no reachable contact channel", g.ID)
	}
}
