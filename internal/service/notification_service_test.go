package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/pkg/jobs"
	"github.com/noah-isme/facility-inventory-api/pkg/mailer"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type fakeAdminDirectory struct {
	emails []string
	err    error
}

func (f *fakeAdminDirectory) ListActiveAdminEmails(context.Context) ([]string, error) {
	return f.emails, f.err
}

type fakeQueue struct {
	jobs   []jobs.Job
	reject bool
}

func (f *fakeQueue) TryEnqueue(job jobs.Job) bool {
	if f.reject {
		return false
	}
	f.jobs = append(f.jobs, job)
	return true
}

func newInlineNotifier(m mailer.Mailer, admins adminDirectory) *NotificationService {
	return NewNotificationService(m, nil, admins, nil, nil, NotificationConfig{
		AdminRecipients: []string{"desk@example.com"},
		EMSRecipients:   []string{"ems@example.com"},
	})
}

func TestNotificationFlaggedItemGoesToAdmins(t *testing.T) {
	m := &fakeMailer{}
	svc := newInlineNotifier(m, &fakeAdminDirectory{emails: []string{"DESK@example.com", "boss@example.com"}})

	svc.FlaggedItemCheckIn(context.Background(), models.Item{Name: "Mic 1", Barcode: "MU-MIC-1", IsBroken: true}, "jdoe")

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"desk@example.com", "boss@example.com"}, sent[0].To)
	assert.Equal(t, "BROKEN ITEM SCANNED: Mic 1", sent[0].Subject)
	assert.Contains(t, sent[0].HTMLBody, "MU-MIC-1")
	assert.Contains(t, sent[0].HTMLBody, "jdoe")
}

func TestNotificationMissingPartsListsEachPart(t *testing.T) {
	m := &fakeMailer{}
	svc := newInlineNotifier(m, nil)

	svc.TechBagMissingParts(context.Background(), models.Item{Name: "Bag 1", Barcode: "MU-TB-1"}, []string{"MU-HDMI-1", "MU-CLK-1"}, "jdoe")
	svc.TechBagMissingParts(context.Background(), models.Item{Name: "Bag 2"}, nil, "jdoe")

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTMLBody, "<li>MU-HDMI-1</li>")
	assert.Contains(t, sent[0].HTMLBody, "<li>MU-CLK-1</li>")
}

func TestNotificationEMSUsesLastCheckout(t *testing.T) {
	m := &fakeMailer{}
	svc := newInlineNotifier(m, nil)
	holder := "jdoe"
	item := models.Item{
		Name:         "Easel 3",
		Barcode:      "SP-EAS-3",
		CheckedOutBy: &holder,
		Logs: models.LogEntries{
			{Action: models.ActionCheckOut, ClientName: "Old Club", EventNumber: "E1"},
			{Action: models.ActionCheckIn},
			{Action: models.ActionCheckOut, ClientName: "Chess Club", EventNumber: "E42", Room: "Ballroom"},
		},
	}

	svc.EMSEscalation(context.Background(), item, "admin1", "")

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"ems@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].HTMLBody, "Chess Club")
	assert.Contains(t, sent[0].HTMLBody, "E42")
	assert.Contains(t, sent[0].HTMLBody, "Ballroom")
	assert.NotContains(t, sent[0].HTMLBody, "Old Club")
}

func TestNotificationInventoryCheckSummary(t *testing.T) {
	m := &fakeMailer{}
	svc := newInlineNotifier(m, nil)
	check := models.InventoryCheck{
		User:         "jdoe",
		Building:     models.BuildingMemorialUnion,
		PresentItems: models.Barcodes{"MU-MIC-1"},
		MissingItems: models.Barcodes{"MU-MIC-2"},
	}

	svc.InventoryCheckSummary(context.Background(), check, map[string]string{"MU-MIC-1": "Mic 1"})

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTMLBody, "Items Not Found")
	assert.Contains(t, sent[0].HTMLBody, "Mic 1")
	assert.Contains(t, sent[0].HTMLBody, "MU-MIC-2")
}

func TestNotificationNoShowEscapesInput(t *testing.T) {
	m := &fakeMailer{}
	svc := newInlineNotifier(m, nil)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	svc.NoShowReported(context.Background(), "<b>Club</b>", models.Reservation{EventNumber: "E7", RangeStart: &start, User: "jdoe"})

	sent := m.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Mall Table No-Show Logged", sent[0].Subject)
	assert.Contains(t, sent[0].HTMLBody, "&lt;b&gt;Club&lt;/b&gt;")
	assert.Contains(t, sent[0].HTMLBody, "Mar 1, 2024")
}

func TestNotificationFailuresAreSwallowed(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp down")}
	svc := newInlineNotifier(m, &fakeAdminDirectory{err: errors.New("db down")})

	assert.NotPanics(t, func() {
		svc.FlaggedItemCheckIn(context.Background(), models.Item{Name: "Mic", IsMissing: true}, "jdoe")
		svc.UnreturnedDigest(context.Background(), []dto.UnreturnedItem{{Barcode: "MU-MIC-1"}}, time.Hour)
	})
	assert.Empty(t, m.messages())
}

func TestNotificationQueuedDelivery(t *testing.T) {
	m := &fakeMailer{}
	queue := &fakeQueue{}
	svc := newInlineNotifier(m, nil)
	svc.SetQueue(queue)

	svc.NoShowReported(context.Background(), "Chess Club", models.Reservation{EventNumber: "E7"})
	require.Len(t, queue.jobs, 1)
	assert.Empty(t, m.messages())

	require.NoError(t, svc.Deliver(context.Background(), queue.jobs[0]))
	require.Len(t, m.messages(), 1)

	assert.Error(t, svc.Deliver(context.Background(), jobs.Job{Payload: "bogus"}))
}

func TestNotificationDeliverWithoutRecipients(t *testing.T) {
	m := &fakeMailer{}
	svc := NewNotificationService(m, nil, nil, nil, nil, NotificationConfig{})

	svc.EMSEscalation(context.Background(), models.Item{Name: "Mic"}, "admin1", "")
	assert.Empty(t, m.messages())
}
