package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/idgen"
	"github.com/noah-isme/supermen-api/pkg/jobs"
)

// Notifier is the fire-and-forget boundary used by the workflow services.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, template models.NotificationTemplate, payload map[string]string)
}

// Mailer delivers e-mail copies of notifications.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes outgoing mail to the logger instead of an SMTP relay.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("mail dispatched", zap.String("to", to), zap.String("subject", subject), zap.Int("body_bytes", len(body)))
	return nil
}

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
}

type notificationRecipientReader interface {
	FindByID(ctx context.Context, id string) (*models.Personnel, error)
}

type notificationTemplate struct {
	kind    models.NotificationKind
	title   string
	message string
}

var notificationTemplates = map[models.NotificationTemplate]notificationTemplate{
	models.TemplateCertificationApproved: {
		kind:    models.NotificationStatusUpdate,
		title:   "Sertifikasi disetujui",
		message: "Sertifikasi {type} Anda telah diverifikasi.",
	},
	models.TemplateCertificationRejected: {
		kind:    models.NotificationStatusUpdate,
		title:   "Sertifikasi ditolak",
		message: "Sertifikasi {type} Anda ditolak. Alasan: {reason}",
	},
	models.TemplateRegistrationReceived: {
		kind:    models.NotificationSystem,
		title:   "Pendaftaran diterima",
		message: "Pendaftaran atas nama {name} menunggu aktivasi administrator.",
	},
	models.TemplateAccountActivated: {
		kind:    models.NotificationSystem,
		title:   "Akun diaktifkan",
		message: "Akun Anda telah aktif. Kata sandi sementara: {password}",
	},
	models.TemplatePasswordReset: {
		kind:    models.NotificationSystem,
		title:   "Kata sandi direset",
		message: "Kata sandi sementara Anda: {password}. Segera ganti setelah masuk.",
	},
	models.TemplateExpiryReminder: {
		kind:    models.NotificationReminder,
		title:   "Sertifikasi akan kadaluarsa",
		message: "Sertifikasi {type} Anda kadaluarsa pada {expiry} ({days} hari lagi).",
	},
	models.TemplateBroadcast: {
		kind:    models.NotificationSystem,
		title:   "{title}",
		message: "{message}",
	},
}

// Secrets are mailed but never stored in the inbox.
var inboxRedactedKeys = []string{"password"}

// NotificationJob is the queued unit of delivery.
type NotificationJob struct {
	RecipientID string
	Template    models.NotificationTemplate
	Payload     map[string]string
}

// NotificationService renders templates, writes the in-app inbox and mirrors to e-mail.
// Dispatch runs on a worker queue so callers never wait on delivery.
type NotificationService struct {
	store   notificationStore
	people  notificationRecipientReader
	mailer  Mailer
	queue   *jobs.Queue[NotificationJob]
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService constructs the service. Attach a queue with UseQueue to make
// dispatch asynchronous; without one Notify delivers inline.
func NewNotificationService(store notificationStore, people notificationRecipientReader, mailer Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	return &NotificationService{store: store, people: people, mailer: mailer, metrics: metrics, logger: logger, now: time.Now}
}

// UseQueue routes Notify through q. q must be built with HandleJob as its handler.
func (s *NotificationService) UseQueue(q *jobs.Queue[NotificationJob]) {
	s.queue = q
}

// Notify schedules delivery. Errors are logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, template models.NotificationTemplate, payload map[string]string) {
	if recipientID == "" {
		return
	}
	job := NotificationJob{RecipientID: recipientID, Template: template, Payload: payload}
	if s.queue == nil {
		if err := s.deliver(ctx, job); err != nil {
			s.logger.Warn("notification delivery failed", zap.String("recipient_id", recipientID), zap.String("template", string(template)), zap.Error(err))
		}
		return
	}
	if err := s.queue.Submit(jobs.Job[NotificationJob]{ID: idgen.New(), Payload: job}); err != nil {
		s.metrics.RecordNotification("queue", err)
		s.logger.Warn("notification dropped", zap.String("recipient_id", recipientID), zap.String("template", string(template)), zap.Error(err))
	}
}

// HandleJob is the queue handler. Returning an error triggers a retry.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job[NotificationJob]) error {
	return s.deliver(ctx, job.Payload)
}

// GiveUp logs a notification that exhausted its retries.
func (s *NotificationService) GiveUp(job jobs.Job[NotificationJob], err error) {
	s.metrics.RecordNotification("abandoned", err)
	s.logger.Error("notification abandoned", zap.String("job_id", job.ID), zap.String("recipient_id", job.Payload.RecipientID), zap.String("template", string(job.Payload.Template)), zap.Error(err))
}

func (s *NotificationService) deliver(ctx context.Context, job NotificationJob) error {
	title, message, kind, err := renderNotification(job.Template, job.Payload, inboxRedactedKeys...)
	if err != nil {
		return err
	}
	n := &models.Notification{
		ID:          idgen.New(),
		RecipientID: job.RecipientID,
		Kind:        kind,
		Template:    job.Template,
		Title:       title,
		Message:     message,
		CreatedAt:   s.now().UTC(),
	}
	err = s.store.Create(ctx, n)
	s.metrics.RecordNotification("inbox", err)
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	// The inbox write succeeded; e-mail problems are logged so a retry does not duplicate it.
	if s.people == nil {
		return nil
	}
	recipient, err := s.people.FindByID(ctx, job.RecipientID)
	if err != nil {
		s.logger.Warn("notification recipient lookup failed", zap.String("recipient_id", job.RecipientID), zap.Error(err))
		return nil
	}
	if !recipient.EmailNotifications || recipient.Email == "" {
		return nil
	}
	subject, body, _, _ := renderNotification(job.Template, job.Payload)
	err = s.mailer.Send(ctx, recipient.Email, subject, body)
	s.metrics.RecordNotification("email", err)
	if err != nil {
		s.logger.Warn("notification email failed", zap.String("recipient_id", job.RecipientID), zap.Error(err))
	}
	return nil
}

func renderNotification(template models.NotificationTemplate, payload map[string]string, redact ...string) (title, message string, kind models.NotificationKind, err error) {
	tmpl, ok := notificationTemplates[template]
	if !ok {
		return "", "", "", fmt.Errorf("unknown notification template %q", template)
	}
	pairs := make([]string, 0, len(payload)*2)
	for key, value := range payload {
		for _, secret := range redact {
			if key == secret {
				value = "(dikirim melalui email)"
			}
		}
		pairs = append(pairs, "{"+key+"}", value)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(tmpl.title), r.Replace(tmpl.message), tmpl.kind, nil
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return items, &models.Pagination{Page: filter.Offset/limit + 1, PageSize: limit, TotalCount: total}, nil
}

// UnreadCount returns the caller's unread count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.store.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	if err := s.store.MarkRead(ctx, recipientID, id, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, recipientID, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return n, nil
}
