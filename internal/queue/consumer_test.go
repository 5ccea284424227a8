package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerAppendsOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("amqp://unused/", filepath.Join(dir, "logs"))
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	for _, ev := range []ReservationStatusChanged{
		{ReservationID: "r1", UserID: "u1", To: "PENDING", Cause: "create", StartsAt: start, EndsAt: start.Add(2 * time.Hour), OccurredAt: start},
		{ReservationID: "r1", UserID: "u1", From: "PENDING", To: "CONFIRMED", Cause: "payment_paid", PaymentID: "p1", StartsAt: start, EndsAt: start.Add(2 * time.Hour), OccurredAt: start},
	} {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, c.handle(body))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "logs", ReservationLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Reservation - -> PENDING")
	assert.Contains(t, lines[1], "PENDING -> CONFIRMED")
	assert.Contains(t, lines[1], "payment_id=p1")
}

func TestConsumerRejectsMalformedMessages(t *testing.T) {
	c := NewConsumer("amqp://unused/", t.TempDir())
	assert.Error(t, c.handle([]byte("{not json")))
	assert.Error(t, c.handle([]byte(`{"user_id":"u1"}`)))
}
