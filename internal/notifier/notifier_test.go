package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

type fakeMailer struct {
	to, subject, body string
	sends             int
	failErr           error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.sends++
	m.to, m.subject, m.body = to, subject, body
	return m.failErr
}

type fixedSummarizer struct {
	summary  string
	lastTips bool
}

func (s *fixedSummarizer) Summarize(_ context.Context, _ monitor.Bulletin, includeSafetyTips bool) string {
	s.lastTips = includeSafetyTips
	return s.summary
}

func testUser() monitor.User {
	return monitor.User{
		ID:       1,
		FullName: "Maria Reyes",
		Email:    "maria@example.test",
		Province: "Metro Manila",
		City:     "Manila",
		Active:   true,
	}
}

func testBulletin() monitor.Bulletin {
	return monitor.Bulletin{
		DateTime:   "2026-08-30 - 14:11:00",
		Latitude:   "14.5995°",
		Longitude:  "120.9842°",
		Depth:      "010",
		Magnitude:  "5.0",
		Location:   "Manila",
		DetailLink: "https://example.test/bulletin.html",
	}
}

func TestNotifyComposesAndSends(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	mailer := &fakeMailer{}
	sum := &fixedSummarizer{summary: "A strong quake struck Manila."}
	svc := New(mailer, sum, zap.NewNop())

	settings := monitor.DefaultSettings(1)
	ok := svc.Notify(context.Background(), testUser(), settings, testBulletin())
	require.True(t, ok)
	require.Equal(t, 1, mailer.sends)

	assert.Equal(t, "maria@example.test", mailer.to)
	assert.Equal(t, "Earthquake Alert - Magnitude 5.0", mailer.subject)
	assert.Contains(t, mailer.body, "Dear Maria Reyes,")
	assert.Contains(t, mailer.body, "A strong quake struck Manila.")
	assert.Contains(t, mailer.body, "Your monitored location: Manila, Metro Manila")
	assert.Contains(t, mailer.body, "https://example.test/bulletin.html")
	assert.True(t, sum.lastTips, "safety tips flag must be forwarded to the summarizer")
}

func TestNotifyMissingDetailLinkUsesPlaceholder(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	mailer := &fakeMailer{}
	svc := New(mailer, &fixedSummarizer{summary: "s"}, zap.NewNop())

	b := testBulletin()
	b.DetailLink = ""
	require.True(t, svc.Notify(context.Background(), testUser(), monitor.DefaultSettings(1), b))
	assert.Contains(t, mailer.body, "Full bulletin: N/A")
}

func TestNotifyCustomLocationInBody(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	mailer := &fakeMailer{}
	svc := New(mailer, &fixedSummarizer{summary: "s"}, zap.NewNop())

	settings := monitor.DefaultSettings(1)
	settings.LocationType = monitor.LocationCustom
	settings.AltProvince = "Cebu"
	settings.AltCity = "Cebu City"
	require.True(t, svc.Notify(context.Background(), testUser(), settings, testBulletin()))
	assert.Contains(t, mailer.body, "Your monitored location: Cebu City, Cebu")
}

func TestNotifyTransportFailureReturnsFalse(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	mailer := &fakeMailer{failErr: errors.New("connection refused")}
	svc := New(mailer, &fixedSummarizer{summary: "s"}, zap.NewNop())

	ok := svc.Notify(context.Background(), testUser(), monitor.DefaultSettings(1), testBulletin())
	assert.False(t, ok)
}

func TestNotifyRespectsSafetyTipsOptOut(t *testing.T) {
	t.Parallel()
	telemetry.Init()

	sum := &fixedSummarizer{summary: "s"}
	svc := New(&fakeMailer{}, sum, zap.NewNop())

	settings := monitor.DefaultSettings(1)
	settings.SafetyTips = false
	svc.Notify(context.Background(), testUser(), settings, testBulletin())
	assert.False(t, sum.lastTips)
}
