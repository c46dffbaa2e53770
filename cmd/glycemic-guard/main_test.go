package main

import (
	"bytes"
	"testing"
	"time"

	"glycemic-guard/internal/models"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfigUpdate_OnlyChangedFlags(t *testing.T) {
	cmd := configSetCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--primary", "12"}))

	primary, _ := cmd.Flags().GetInt("primary")
	u := buildConfigUpdate(cmd, 0, primary, 0)
	assert.Nil(t, u.ReminderDelayMinutes)
	require.NotNil(t, u.PrimaryContactDelayMinutes)
	assert.Equal(t, 12, *u.PrimaryContactDelayMinutes)
	assert.Nil(t, u.AllContactsDelayMinutes)
}

func TestPrintProjection(t *testing.T) {
	color.NoColor = true
	at := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	printProjection(&buf, "u1", nil)
	assert.Contains(t, buf.String(), "no pump data")

	buf.Reset()
	printProjection(&buf, "u1", &models.IoBProjection{
		Anchor:                models.IoBAnchor{Kind: models.AnchorConfirmed, Value: 3, At: at},
		ConfirmedIoB:          3,
		ConfirmedAt:           at,
		ProjectedIoB:          2.44,
		Projected30Min:        1.75,
		Projected60Min:        1.1,
		MinutesSinceConfirmed: 150,
		IsStale:               true,
		StaleWarning:          "Last confirmed IoB was 2h30m ago",
	})
	out := buf.String()
	assert.Contains(t, out, "confirmed 3.00 U")
	assert.Contains(t, out, "IoB now:      2.44 U")
	assert.Contains(t, out, "Warning:      Last confirmed IoB was 2h30m ago")
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := models.DefaultEscalationConfig("u1")
	printConfig(&buf, &cfg)
	assert.Contains(t, buf.String(), "reminder_delay_minutes:        5")
	assert.Contains(t, buf.String(), "all_contacts_delay_minutes:    20")
}

func TestCommandTree(t *testing.T) {
	flag := sweepCmd().Flags().Lookup("user")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	chat, _, err := configCmd().Find([]string{"chat"})
	require.NoError(t, err)
	assert.Equal(t, "chat", chat.Name())
	assert.Error(t, chat.Args(chat, []string{"u1"}))
	assert.NoError(t, chat.Args(chat, []string{"u1", "987654"}))
}
