package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"glycemic-guard/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewStore(db, DialectPostgres, 4.0, zap.NewNop())
}

var ts = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

// ============================================
// escalation_events
// ============================================

func TestEscalationEventsInsert_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	event := &models.EscalationEvent{
		ID:                 uuid.NewString(),
		AlertID:            "alert-1",
		UserID:             "user-1",
		Tier:               models.TierPrimaryContact,
		TriggeredAt:        ts,
		MessageContent:     "URGENT glucose alert",
		NotificationStatus: models.NotificationSent,
		ContactsNotified:   []string{"c1", "c2"},
	}

	mock.ExpectExec(`INSERT INTO escalation_events`).
		WithArgs(event.ID, "alert-1", "user-1", "primary_contact", sqlmock.AnyArg(),
			"URGENT glucose alert", "sent", `["c1","c2"]`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.EscalationEvents.Insert(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationEventsInsert_UniqueViolation(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO escalation_events`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_escalation_events_alert_tier"})

	err := store.EscalationEvents.Insert(context.Background(), &models.EscalationEvent{
		ID:      uuid.NewString(),
		AlertID: "alert-1",
		Tier:    models.TierReminder,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDuplicateEscalation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationEventsInsert_OtherError(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO escalation_events`).
		WillReturnError(errors.New("connection refused"))

	err := store.EscalationEvents.Insert(context.Background(), &models.EscalationEvent{
		ID:      uuid.NewString(),
		AlertID: "alert-1",
		Tier:    models.TierReminder,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrDuplicateEscalation))
	assert.Contains(t, err.Error(), "failed to insert escalation event")
}

func TestEscalationEventsInsert_InvalidTier(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	err := store.EscalationEvents.Insert(context.Background(), &models.EscalationEvent{AlertID: "a", Tier: "page_everyone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tier")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationEventsListForAlert(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "alert_id", "user_id", "tier", "triggered_at",
		"message_content", "notification_status", "contacts_notified",
	}).
		AddRow("e1", "alert-1", "user-1", "reminder", ts, "msg", "sent", `[]`).
		AddRow("e2", "alert-1", "user-1", "primary_contact", ts.Add(5*time.Minute), "msg", "failed", `["c1"]`)

	mock.ExpectQuery(`FROM escalation_events\s+WHERE alert_id = \$1\s+ORDER BY\s+triggered_at ASC,\s+CASE tier`).
		WithArgs("alert-1").
		WillReturnRows(rows)

	events, err := store.EscalationEvents.ListForAlert(context.Background(), "alert-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.TierReminder, events[0].Tier)
	assert.Empty(t, events[0].ContactsNotified)
	assert.Equal(t, models.NotificationFailed, events[1].NotificationStatus)
	assert.Equal(t, []string{"c1"}, events[1].ContactsNotified)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// escalation_configs
// ============================================

func configRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "reminder_delay_minutes", "primary_contact_delay_minutes",
		"all_contacts_delay_minutes", "created_at", "updated_at",
	})
}

func TestEscalationConfigGetOrCreate_Existing(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnRows(configRows().AddRow("user-1", 3, 8, 15, ts, ts))

	cfg, err := store.EscalationConfigs.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ReminderDelayMinutes)
	assert.Equal(t, 8, cfg.PrimaryContactDelayMinutes)
	assert.Equal(t, 15, cfg.AllContactsDelayMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationConfigGetOrCreate_CreatesDefaults(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO escalation_configs`).
		WithArgs("user-1", 5, 10, 20, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnRows(configRows().AddRow("user-1", 5, 10, 20, ts, ts))

	cfg, err := store.EscalationConfigs.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEscalationConfig("user-1").ReminderDelayMinutes, cfg.ReminderDelayMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationConfigGetOrCreate_ConflictReadsWinner(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	// 另一个请求先插入，ON CONFLICT DO NOTHING 影响 0 行
	mock.ExpectExec(`(?s)INSERT INTO escalation_configs.*ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("user-1", 5, 10, 20, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnRows(configRows().AddRow("user-1", 3, 8, 15, ts, ts))

	cfg, err := store.EscalationConfigs.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cfg.UserID)
	assert.Equal(t, 3, cfg.ReminderDelayMinutes)
	assert.Equal(t, 8, cfg.PrimaryContactDelayMinutes)
	assert.Equal(t, 15, cfg.AllContactsDelayMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationConfigGetOrCreate_MissingAfterConflict(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO escalation_configs`).
		WithArgs("user-1", 5, 10, 20, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM escalation_configs`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := store.EscalationConfigs.GetOrCreate(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found after create")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationConfigSave_RejectsInvariantViolation(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	cfg := models.DefaultEscalationConfig("user-1")
	cfg.ReminderDelayMinutes = 15

	err := store.EscalationConfigs.Save(context.Background(), &cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfigInvariant)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscalationConfigSave_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE escalation_configs`).
		WithArgs(4, 9, 30, sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	cfg := models.EscalationConfig{UserID: "user-1", ReminderDelayMinutes: 4, PrimaryContactDelayMinutes: 9, AllContactsDelayMinutes: 30}
	err := store.EscalationConfigs.Save(context.Background(), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// pump_events / alerts / contacts / insulin_configs
// ============================================

func TestPumpEventsQueryDeliveryEvents(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "user_id", "event_type", "event_timestamp", "units", "iob_at_event"}).
		AddRow("p1", "user-1", "bolus", ts, 2.5, nil).
		AddRow("p2", "user-1", "correction", ts.Add(time.Hour), 0.8, 3.1)

	mock.ExpectQuery(`FROM pump_events`).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), "bolus", "correction").
		WillReturnRows(rows)

	events, err := store.PumpEvents.QueryDeliveryEvents(context.Background(), "user-1",
		models.DeliveryEventTypes, ts.Add(-4*time.Hour), ts.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.PumpEventBolus, events[0].EventType)
	assert.Equal(t, 2.5, *events[0].Units)
	assert.Nil(t, events[0].IoBAtEvent)
	assert.Equal(t, 3.1, *events[1].IoBAtEvent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPumpEventsLastConfirmedIoB_None(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`iob_at_event IS NOT NULL`).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	snap, err := store.PumpEvents.LastConfirmedIoB(context.Background(), "user-1", ts.Add(-4*time.Hour), ts)
	require.NoError(t, err)
	assert.Nil(t, snap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPumpEventsLastConfirmedIoB_Found(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`iob_at_event IS NOT NULL`).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"iob_at_event", "event_timestamp"}).AddRow(4.2, ts))

	snap, err := store.PumpEvents.LastConfirmedIoB(context.Background(), "user-1", ts.Add(-4*time.Hour), ts)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 4.2, snap.Value)
	assert.True(t, ts.Equal(snap.Timestamp))
}

func TestAlertsUnacknowledgedCritical(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "user_id", "severity", "created_at", "expires_at", "acknowledged", "message", "current_value"}).
		AddRow("a2", "user-1", "emergency", ts, ts.Add(time.Hour), false, "Low glucose", 48.0).
		AddRow("a1", "user-1", "urgent", ts.Add(-time.Minute), ts.Add(time.Hour), false, "Dropping fast", 62.0)

	mock.ExpectQuery(`FROM alerts`).
		WithArgs("user-1", false, sqlmock.AnyArg()).
		WillReturnRows(rows)

	alerts, err := store.Alerts.UnacknowledgedCritical(context.Background(), "user-1", ts)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.SeverityEmergency, alerts[0].Severity)
	assert.Equal(t, 48.0, alerts[0].CurrentValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertsUsersWithPendingAlerts(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT DISTINCT u.id, u.email`).
		WithArgs(false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow("user-1", "a@example.com").
			AddRow("user-2", "b@example.com"))

	users, err := store.Alerts.UsersWithPendingAlerts(context.Background(), ts)
	require.NoError(t, err)
	assert.Equal(t, []UserRef{{"user-1", "a@example.com"}, {"user-2", "b@example.com"}}, users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactsList(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM emergency_contacts`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "telegram_username", "priority", "position"}).
			AddRow("c1", "user-1", "Mum", "mum_tg", "primary", 0).
			AddRow("c2", "user-1", "Neighbour", "nb_tg", "secondary", 1))

	contacts, err := store.Contacts.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, models.ContactPrimary, contacts[0].Priority)
	assert.Equal(t, "nb_tg", contacts[1].TelegramUsername)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsulinConfigDIAHours(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT dia_hours FROM insulin_configs WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"dia_hours"}).AddRow(5.0))
	mock.ExpectQuery(`SELECT dia_hours FROM insulin_configs`).
		WithArgs("user-2").
		WillReturnError(sql.ErrNoRows)

	dia, err := store.InsulinConfigs.DIAHours(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, dia)

	dia, err = store.InsulinConfigs.DIAHours(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, 4.0, dia)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientChatsChatID(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT chat_id FROM patient_telegram_chats WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"chat_id"}).AddRow("987654"))
	mock.ExpectQuery(`SELECT chat_id FROM patient_telegram_chats`).
		WithArgs("user-2").
		WillReturnError(sql.ErrNoRows)

	chatID, err := store.PatientChats.ChatID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "987654", chatID)

	chatID, err = store.PatientChats.ChatID(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Empty(t, chatID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientChatsSetChatID(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT INTO patient_telegram_chats.*ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("user-1", "@pat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM patient_telegram_chats WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.PatientChats.SetChatID(context.Background(), "user-1", " @pat "))
	require.NoError(t, store.PatientChats.SetChatID(context.Background(), "user-1", ""))
	assert.Error(t, store.PatientChats.SetChatID(context.Background(), "", "@pat"))
	require.NoError(t, mock.ExpectationsWereMet())
}
