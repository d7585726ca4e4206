package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier_RendersStudioTime(t *testing.T) {
	hook := test.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })
	loc := time.FixedZone("CST", -6*3600)

	err := LogNotifier{Location: loc}.Notify(context.Background(), "reservation.confirmed",
		[]byte(`{"reservation_id":4,"class_starts_at":"2026-03-02T15:00:00Z"}`))

	require.NoError(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "reservation.confirmed", entry.Data["routing_key"])
	assert.Equal(t, "Mon 2 Mar 09:00 CST", entry.Data["class_starts_local"])
}

func TestLogNotifier_NonJSONBody(t *testing.T) {
	hook := test.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })

	require.NoError(t, LogNotifier{}.Notify(context.Background(), "guest.invited", []byte("plain")))
	assert.Equal(t, "plain", hook.LastEntry().Data["body"])
}
