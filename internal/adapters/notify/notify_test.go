package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/dkeye/Consult/internal/domain"
)

type fakeContacts map[domain.RoomName]string

func (f fakeContacts) LatestPatientContact(_ context.Context, room domain.RoomName) (string, error) {
	return f[room], nil
}

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func body(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestEmail_SendsSummary(t *testing.T) {
	mailer := &fakeMailer{}
	e := &Email{
		Contacts: fakeContacts{"R1": "ann@example.com"},
		Mailer:   mailer,
		From:     "Clinic <noreply@example.com>",
		Company:  "Clinic",
	}
	summary := "Headache <3 days>.\nRest advised."
	require.NoError(t, e.NotifyEnd(context.Background(), "R1", &summary, 3723))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ann@example.com"}, mailer.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your consultation summary - Clinic"}, mailer.sent[0].GetHeader("Subject"))
	assert.Contains(t, body(t, mailer.sent[0]), "text/html")

	html, err := e.render(&summary, 3723)
	require.NoError(t, err)
	assert.Contains(t, html, "1h 2m 3s")
	assert.Contains(t, html, "Headache &lt;3 days&gt;.<br>Rest advised.")
}

func TestEmail_Skips(t *testing.T) {
	mailer := &fakeMailer{}
	e := &Email{Contacts: fakeContacts{}, Mailer: mailer, Company: "Clinic"}
	require.NoError(t, e.NotifyEnd(context.Background(), "R1", nil, 0))
	assert.Empty(t, mailer.sent, "no contact on file")

	unconfigured := NewEmail(SMTPConfig{Host: "smtp.example.com"}, fakeContacts{"R1": "ann@example.com"})
	assert.Nil(t, unconfigured.Mailer)
	assert.NoError(t, unconfigured.NotifyEnd(context.Background(), "R1", nil, 0))
}

func TestEmail_RenderWithoutSummary(t *testing.T) {
	e := &Email{Company: "Clinic"}
	html, err := e.render(nil, 0)
	require.NoError(t, err)
	assert.Contains(t, html, "No summary available for this visit.")
	assert.Contains(t, html, "N/A")
}

func TestNewEmail_Defaults(t *testing.T) {
	e := NewEmail(SMTPConfig{Host: "smtp.example.com", User: "u@example.com", Pass: "p"}, fakeContacts{})
	require.NotNil(t, e.Mailer)
	assert.Equal(t, DefaultCompany, e.Company)
	assert.Equal(t, "TeleHealth Connect <u@example.com>", e.From)
	d := e.Mailer.(*gomail.Dialer)
	assert.Equal(t, DefaultSMTPPort, d.Port)
	assert.False(t, d.SSL)
}

type fakePublisher struct {
	subj string
	data []byte
	err  error
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	f.subj, f.data = subj, data
	return f.err
}

func TestNATS_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	n := &NATS{Conn: pub, Prefix: "clinic", Now: func() time.Time { return time.UnixMilli(1_700_000_000_000) }}
	summary := "ok"
	require.NoError(t, n.NotifyEnd(context.Background(), "dr.grey room", &summary, 300))

	assert.Equal(t, "clinic.meeting.ended.dr_grey_room", pub.subj)
	var ev meetingEnded
	require.NoError(t, json.Unmarshal(pub.data, &ev))
	assert.Equal(t, domain.RoomName("dr.grey room"), ev.Room)
	assert.EqualValues(t, 300, ev.DurationSeconds)
	assert.EqualValues(t, 1_700_000_000_000, ev.Timestamp)
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) NotifyEnd(context.Context, domain.RoomName, *string, int64) error {
	c.calls++
	return c.err
}

func TestMulti_CallsEveryone(t *testing.T) {
	failing := &countingNotifier{err: errors.New("smtp down")}
	ok := &countingNotifier{}
	err := Multi{failing, ok}.NotifyEnd(context.Background(), "R1", nil, 0)
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
