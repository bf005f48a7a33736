package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/mail"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/payloads"
)

const (
	sendAttempts   = 3
	backoffInitial = 250 * time.Millisecond
)

// MailSender delivers one email. Satisfied by pkg/mail.Client.
type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// SMSSender delivers one text message. Satisfied by pkg/sms.Client.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// Dispatcher renders and sends the messages triggered by domain events,
// writing a delivery-log row for every attempt. Send failures are
// aggregated and returned; they never abort the remaining sends.
type Dispatcher struct {
	repo  Repository
	mail  MailSender
	sms   SMSSender
	store config.StoreConfig
	admin adminContacts
	logg  *logger.Logger
}

type adminContacts struct {
	email string
	phone string
}

// NewDispatcher builds a dispatcher with the required dependencies. The
// admin email and phone come from the mail and SMS configs; either may
// be empty, which skips the corresponding admin message.
func NewDispatcher(repo Repository, mailSender MailSender, smsSender SMSSender, mailCfg config.MailConfig, smsCfg config.SMSConfig, storeCfg config.StoreConfig, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if mailSender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if smsSender == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:  repo,
		mail:  mailSender,
		sms:   smsSender,
		store: storeCfg,
		admin: adminContacts{
			email: strings.TrimSpace(mailCfg.AdminEmail),
			phone: strings.TrimSpace(smsCfg.AdminPhone),
		},
		logg: logg,
	}, nil
}

// OrderCreated notifies the customer and the shop admin about a new
// order, by email and SMS.
func (d *Dispatcher) OrderCreated(ctx context.Context, payload payloads.OrderCreatedEvent) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"order_id":    payload.OrderID.String(),
		"customer_id": payload.CustomerID.String(),
	})

	recipient, err := d.repo.FindRecipient(ctx, payload.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	shortID := shortOrderID(payload.OrderID)
	customerSubject := fmt.Sprintf("%s: order %s received", d.storeName(), shortID)
	customerBody := fmt.Sprintf(
		"Hi %s,\n\nWe received your order %s for a total of %s. We will let you know when it ships.\n\n%s",
		recipient.FirstName, shortID, payload.Total.StringFixed(2), d.signature())
	customerSMS := fmt.Sprintf("%s: order %s received, total %s.",
		d.storeName(), shortID, payload.Total.StringFixed(2))

	adminSubject := fmt.Sprintf("New order %s", shortID)
	adminBody := fmt.Sprintf("Order %s placed by customer %s, total %s, %d line(s).\nShip to: %s",
		shortID, payload.CustomerID, payload.Total.StringFixed(2), len(payload.Items), payload.ShippingAddress)
	adminSMS := fmt.Sprintf("New order %s, total %s.", shortID, payload.Total.StringFixed(2))

	orderID := payload.OrderID
	var errs error
	errs = multierr.Append(errs, d.sendEmail(logCtx, &orderID, recipient.Email, customerSubject, customerBody))
	errs = multierr.Append(errs, d.sendCustomerSMS(logCtx, &orderID, recipient, customerSMS))
	errs = multierr.Append(errs, d.sendAdminEmail(logCtx, &orderID, adminSubject, adminBody))
	errs = multierr.Append(errs, d.sendAdminSMS(logCtx, &orderID, adminSMS))
	return errs
}

// OrderStatusChanged notifies the customer that their order shipped or
// was delivered. Other transitions are not customer-facing.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, payload payloads.OrderStatusChangedEvent) error {
	if payload.Status != enums.OrderStatusShipped && payload.Status != enums.OrderStatusDelivered {
		return nil
	}
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"order_id": payload.OrderID.String(),
		"status":   payload.Status.String(),
	})

	recipient, err := d.repo.FindRecipient(ctx, payload.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	shortID := shortOrderID(payload.OrderID)
	verb := "has shipped"
	if payload.Status == enums.OrderStatusDelivered {
		verb = "was delivered"
	}
	subject := fmt.Sprintf("%s: order %s %s", d.storeName(), shortID, verb)
	body := fmt.Sprintf("Hi %s,\n\nYour order %s %s.\n\n%s",
		recipient.FirstName, shortID, verb, d.signature())
	smsBody := fmt.Sprintf("%s: order %s %s.", d.storeName(), shortID, verb)

	orderID := payload.OrderID
	var errs error
	errs = multierr.Append(errs, d.sendEmail(logCtx, &orderID, recipient.Email, subject, body))
	errs = multierr.Append(errs, d.sendCustomerSMS(logCtx, &orderID, recipient, smsBody))
	return errs
}

// UserRegistered sends the welcome email for a new account.
func (d *Dispatcher) UserRegistered(ctx context.Context, payload payloads.UserRegisteredEvent) error {
	logCtx := d.logg.WithField(ctx, "user_id", payload.UserID.String())

	subject := fmt.Sprintf("Welcome to %s", d.storeName())
	body := fmt.Sprintf("Hi %s,\n\nYour %s account is ready.\n\n%s",
		payload.FirstName, d.storeName(), d.signature())
	return d.sendEmail(logCtx, nil, payload.Email, subject, body)
}

func (d *Dispatcher) sendEmail(ctx context.Context, orderID *uuid.UUID, to, subject, body string) error {
	err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.mail.Send(ctx, mail.Message{To: to, Subject: subject, Body: body})
	})
	d.record(ctx, orderID, enums.NotificationChannelEmail, to, subject, body, err)
	if err != nil {
		d.logg.Error(ctx, "email send failed", err)
		return fmt.Errorf("email to %s: %w", to, err)
	}
	return nil
}

func (d *Dispatcher) sendSMS(ctx context.Context, orderID *uuid.UUID, to, body string) error {
	err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.sms.Send(ctx, to, body)
	})
	d.record(ctx, orderID, enums.NotificationChannelSMS, to, "", body, err)
	if err != nil {
		d.logg.Error(ctx, "sms send failed", err)
		return fmt.Errorf("sms to %s: %w", to, err)
	}
	return nil
}

func (d *Dispatcher) sendCustomerSMS(ctx context.Context, orderID *uuid.UUID, recipient *Recipient, body string) error {
	if recipient.Phone == nil || strings.TrimSpace(*recipient.Phone) == "" {
		d.logg.Warn(ctx, "customer has no phone, skipping sms")
		return nil
	}
	return d.sendSMS(ctx, orderID, *recipient.Phone, body)
}

func (d *Dispatcher) sendAdminEmail(ctx context.Context, orderID *uuid.UUID, subject, body string) error {
	if d.admin.email == "" {
		return nil
	}
	return d.sendEmail(ctx, orderID, d.admin.email, subject, body)
}

func (d *Dispatcher) sendAdminSMS(ctx context.Context, orderID *uuid.UUID, body string) error {
	if d.admin.phone == "" {
		return nil
	}
	return d.sendSMS(ctx, orderID, d.admin.phone, body)
}

func (d *Dispatcher) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(sendAttempts-1, retry.NewExponential(backoffInitial))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// record writes the delivery-log row. Logging must not fail the
// dispatch, so repository errors are only logged.
func (d *Dispatcher) record(ctx context.Context, orderID *uuid.UUID, channel enums.NotificationChannel, recipient, subject, body string, sendErr error) {
	now := time.Now().UTC()
	row := &models.Notification{
		OrderID:   orderID,
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    enums.NotificationStatusSent,
		SentAt:    &now,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		row.Status = enums.NotificationStatusFailed
		row.Error = &msg
		row.SentAt = nil
	}
	if err := d.repo.Create(ctx, row); err != nil {
		d.logg.Error(ctx, "delivery log write failed", err)
	}
}

func (d *Dispatcher) storeName() string {
	if strings.TrimSpace(d.store.Name) == "" {
		return "Shopkit"
	}
	return d.store.Name
}

func (d *Dispatcher) signature() string {
	if strings.TrimSpace(d.store.SupportURL) != "" {
		return fmt.Sprintf("The %s team\n%s", d.storeName(), d.store.SupportURL)
	}
	return fmt.Sprintf("The %s team", d.storeName())
}

func shortOrderID(id uuid.UUID) string {
	return strings.Split(id.String(), "-")[0]
}
