package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/pkg/jobs"
	"github.com/noah-isme/facility-inventory-api/pkg/mailer"
)

// Notification kinds.
const (
	NotifyFlaggedItem    = "flagged_item"
	NotifyMissingParts   = "tech_bag_missing_parts"
	NotifyEMS            = "ems_escalation"
	NotifyInventoryCheck = "inventory_check_summary"
	NotifyNoShow         = "no_show"
	NotifyDigest         = "unreturned_digest"
)

const notificationJobType = "notification"

type audience int

const (
	audienceAdmins audience = iota
	audienceEMS
)

const displayTimeLayout = "Jan 2, 2006 3:04 PM MST"

type notificationQueue interface {
	TryEnqueue(job jobs.Job) bool
}

type adminDirectory interface {
	ListActiveAdminEmails(ctx context.Context) ([]string, error)
}

// NotificationConfig carries static recipients and branding.
type NotificationConfig struct {
	AppName         string
	AdminRecipients []string
	EMSRecipients   []string
}

// Notification is a rendered message waiting for delivery.
type Notification struct {
	Kind     string
	Audience audience
	Subject  string
	HTMLBody string
}

// NotificationService renders alert emails and hands them to the delivery queue.
type NotificationService struct {
	mailer    mailer.Mailer
	queue     notificationQueue
	admins    adminDirectory
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       NotificationConfig
	templates map[string]*template.Template
	now       func() time.Time
}

// NewNotificationService constructs the service. A nil queue delivers inline.
func NewNotificationService(m mailer.Mailer, queue notificationQueue, admins adminDirectory, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AppName == "" {
		cfg.AppName = "MU/STPV Inventory System"
	}
	return &NotificationService{
		mailer:    m,
		queue:     queue,
		admins:    admins,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		templates: parseNotificationTemplates(),
		now:       time.Now,
	}
}

// SetQueue attaches the delivery queue once it has been built around Deliver.
func (s *NotificationService) SetQueue(queue notificationQueue) {
	s.queue = queue
}

// FlaggedItemCheckIn alerts admins that someone tried to return an item flagged missing or broken.
func (s *NotificationService) FlaggedItemCheckIn(ctx context.Context, item models.Item, actor string) {
	status := "Missing"
	if !item.IsMissing && item.IsBroken {
		status = "Broken"
	}
	s.dispatch(ctx, NotifyFlaggedItem, audienceAdmins,
		fmt.Sprintf("%s ITEM SCANNED: %s", strings.ToUpper(status), item.Name),
		map[string]interface{}{
			"Status":   status,
			"Actor":    actor,
			"ItemName": item.Name,
			"Barcode":  item.Barcode,
			"At":       s.now().Format(displayTimeLayout),
		})
}

// TechBagMissingParts alerts admins about parts that did not come back with a bag.
func (s *NotificationService) TechBagMissingParts(ctx context.Context, bag models.Item, parts []string, actor string) {
	if len(parts) == 0 {
		return
	}
	s.dispatch(ctx, NotifyMissingParts, audienceAdmins, "Missing Item on Tech Bag Return",
		map[string]interface{}{
			"Actor":    actor,
			"ItemName": bag.Name,
			"Barcode":  bag.Barcode,
			"Parts":    parts,
			"At":       s.now().Format(displayTimeLayout),
		})
}

// EMSEscalation mails EMS staff about an item that was never returned.
func (s *NotificationService) EMSEscalation(ctx context.Context, item models.Item, actor, message string) {
	holder := ""
	if item.CheckedOutBy != nil {
		holder = *item.CheckedOutBy
	}
	var last models.LogEntry
	for idx := len(item.Logs) - 1; idx >= 0; idx-- {
		if item.Logs[idx].Action == models.ActionCheckOut {
			last = item.Logs[idx]
			break
		}
	}
	s.dispatch(ctx, NotifyEMS, audienceEMS, "Unreturned Item: EMS Action Required",
		map[string]interface{}{
			"Holder":      holder,
			"ClientName":  last.ClientName,
			"EventNumber": last.EventNumber,
			"Room":        last.Room,
			"ItemName":    item.Name,
			"Barcode":     item.Barcode,
			"Actor":       actor,
			"Message":     message,
		})
}

type namedBarcode struct {
	Name    string
	Barcode string
}

// InventoryCheckSummary mails admins the outcome of a shift verification.
func (s *NotificationService) InventoryCheckSummary(ctx context.Context, check models.InventoryCheck, names map[string]string) {
	rows := func(barcodes []string) []namedBarcode {
		out := make([]namedBarcode, 0, len(barcodes))
		for _, barcode := range barcodes {
			name := names[barcode]
			if name == "" {
				name = "-"
			}
			out = append(out, namedBarcode{Name: name, Barcode: barcode})
		}
		return out
	}
	s.dispatch(ctx, NotifyInventoryCheck, audienceAdmins,
		fmt.Sprintf("Inventory Check: %s", check.Building),
		map[string]interface{}{
			"Actor":    check.User,
			"Building": string(check.Building),
			"Present":  rows(check.PresentItems),
			"Missing":  rows(check.MissingItems),
			"Notes":    check.Notes,
		})
}

// NoShowReported mails admins about a reservation that never showed up.
func (s *NotificationService) NoShowReported(ctx context.Context, organization string, entry models.Reservation) {
	format := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(displayTimeLayout)
	}
	s.dispatch(ctx, NotifyNoShow, audienceAdmins, "Mall Table No-Show Logged",
		map[string]interface{}{
			"Actor":        entry.User,
			"EventNumber":  entry.EventNumber,
			"Organization": organization,
			"TablingSpot":  entry.TablingSpot,
			"RangeStart":   format(entry.RangeStart),
			"RangeEnd":     format(entry.RangeEnd),
		})
}

// UnreturnedDigest mails admins the list of items still out past the threshold.
func (s *NotificationService) UnreturnedDigest(ctx context.Context, items []dto.UnreturnedItem, overdueAfter time.Duration) {
	if len(items) == 0 {
		return
	}
	s.dispatch(ctx, NotifyDigest, audienceAdmins,
		fmt.Sprintf("Unreturned Items Digest (%d)", len(items)),
		map[string]interface{}{
			"Items":        items,
			"OverdueAfter": overdueAfter.String(),
		})
}

func (s *NotificationService) dispatch(ctx context.Context, kind string, to audience, subject string, data map[string]interface{}) {
	body, err := s.render(kind, data)
	if err != nil {
		s.logger.Warn("render notification failed", zap.String("kind", kind), zap.Error(err))
		s.metrics.RecordNotification(kind, err)
		return
	}

	notification := Notification{Kind: kind, Audience: to, Subject: subject, HTMLBody: body}
	if s.queue == nil {
		if err := s.Deliver(ctx, jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: notification}); err != nil {
			s.logger.Warn("notification delivery failed", zap.String("kind", kind), zap.Error(err))
		}
		return
	}

	if !s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: notification}) {
		s.logger.Warn("notification dropped", zap.String("kind", kind))
		s.metrics.RecordNotification(kind, fmt.Errorf("queue unavailable"))
	}
}

func (s *NotificationService) render(kind string, data map[string]interface{}) (string, error) {
	tmpl, ok := s.templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", map[string]interface{}{"AppName": s.cfg.AppName, "Data": data}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Deliver sends one queued notification. It is the jobs.Queue handler.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}

	recipients, err := s.recipients(ctx, notification.Audience)
	if err != nil {
		s.metrics.RecordNotification(notification.Kind, err)
		return err
	}
	if len(recipients) == 0 {
		s.logger.Warn("notification has no recipients", zap.String("kind", notification.Kind))
		s.metrics.RecordNotification(notification.Kind, mailer.ErrNoRecipients)
		return nil
	}

	err = s.mailer.Send(ctx, mailer.Message{To: recipients, Subject: notification.Subject, HTMLBody: notification.HTMLBody})
	s.metrics.RecordNotification(notification.Kind, err)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", notification.Kind, err)
	}
	s.logger.Info("notification sent", zap.String("kind", notification.Kind), zap.Int("recipients", len(recipients)))
	return nil
}

func (s *NotificationService) recipients(ctx context.Context, to audience) ([]string, error) {
	if to == audienceEMS {
		return dedupeEmails(s.cfg.EMSRecipients), nil
	}
	out := append([]string{}, s.cfg.AdminRecipients...)
	if s.admins != nil {
		emails, err := s.admins.ListActiveAdminEmails(ctx)
		if err != nil {
			return nil, fmt.Errorf("load admin recipients: %w", err)
		}
		out = append(out, emails...)
	}
	return dedupeEmails(out), nil
}

func dedupeEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		key := strings.ToLower(strings.TrimSpace(email))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(email))
	}
	return out
}
