package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticket-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	healthy   bool
	err       error
	submitted []models.EmailData
}

func (f *fakeRemote) Healthy(ctx context.Context) bool { return f.healthy }

func (f *fakeRemote) Submit(ctx context.Context, email models.EmailData) (RemoteResult, error) {
	f.submitted = append(f.submitted, email)
	if f.err != nil {
		return RemoteResult{}, f.err
	}
	return RemoteResult{Message: "Email sent successfully", PreviewURL: "https://preview/1"}, nil
}

type countingFallback struct {
	calls int
	inner FallbackChannel
}

func (c *countingFallback) Compose(ctx context.Context, email models.EmailData) (models.Draft, error) {
	c.calls++
	return c.inner.Compose(ctx, email)
}

func sampleEmail() models.EmailData {
	return models.EmailData{
		To:      "pm@example.com",
		Subject: "T&M Ticket #17 - Harbor",
		Message: "See attached",
		PDFData: "data:application/pdf;base64,JVBERg==",
	}
}

func TestDispatcherRemoteSuccess(t *testing.T) {
	remote := &fakeRemote{healthy: true}
	fallback := &countingFallback{inner: MailtoComposer{}}
	d := NewDeliveryDispatcher(context.Background(), remote, fallback)
	require.True(t, d.RemoteAvailable())

	outcome, err := d.Send(context.Background(), sampleEmail())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.UsedFallback)
	assert.Equal(t, "https://preview/1", outcome.PreviewURL)
	assert.Len(t, remote.submitted, 1)
	assert.Zero(t, fallback.calls)
}

func TestDispatcherRemoteFailureFallsBack(t *testing.T) {
	remote := &fakeRemote{healthy: true, err: errors.New("Failed to send email")}
	fallback := &countingFallback{inner: MailtoComposer{}}
	d := NewDeliveryDispatcher(context.Background(), remote, fallback)

	outcome, err := d.Send(context.Background(), sampleEmail())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.True(t, outcome.UsedFallback)
	assert.Equal(t, "Failed to send email", outcome.Error)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, 1, fallback.calls)
}

func TestDispatcherUnavailableUsesFallbackOnly(t *testing.T) {
	remote := &fakeRemote{healthy: false}
	fallback := &countingFallback{inner: MailtoComposer{}}
	d := NewDeliveryDispatcher(context.Background(), remote, fallback)
	require.False(t, d.RemoteAvailable())

	outcome, err := d.Send(context.Background(), sampleEmail())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.True(t, outcome.UsedFallback)
	assert.Empty(t, remote.submitted)
	assert.Equal(t, 1, fallback.calls)

	remote.healthy = true
	assert.True(t, d.Reprobe(context.Background()))
	outcome, err = d.Send(context.Background(), sampleEmail())
	require.NoError(t, err)
	assert.False(t, outcome.UsedFallback)
}

func TestDispatcherNilRemote(t *testing.T) {
	d := NewDeliveryDispatcher(context.Background(), nil, MailtoComposer{})
	assert.False(t, d.RemoteAvailable())

	outcome, err := d.Send(context.Background(), sampleEmail())
	require.NoError(t, err)
	assert.True(t, outcome.UsedFallback)
}

func TestDispatcherRejectsEmptyRecipient(t *testing.T) {
	remote := &fakeRemote{healthy: true}
	fallback := &countingFallback{inner: MailtoComposer{}}
	d := NewDeliveryDispatcher(context.Background(), remote, fallback)

	email := sampleEmail()
	email.To = "  "
	_, err := d.Send(context.Background(), email)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, remote.submitted)
	assert.Zero(t, fallback.calls)
}

func TestDispatcherMalformedRecipientInFallback(t *testing.T) {
	d := NewDeliveryDispatcher(context.Background(), nil, MailtoComposer{})

	email := sampleEmail()
	email.To = "not-an-address"
	outcome, err := d.Send(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.True(t, outcome.UsedFallback)
	assert.NotEmpty(t, outcome.Error)
	assert.Nil(t, outcome.Draft)
}

func TestMailtoComposerOrdering(t *testing.T) {
	draft, err := MailtoComposer{}.Compose(context.Background(), models.EmailData{
		To:      "pm@example.com",
		CC:      "office@example.com",
		Subject: "T&M Ticket #5",
		Message: "Hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "mailto:pm@example.com?cc=office@example.com&subject=T%26M+Ticket+%235&body=Hello+there", draft.MailtoURL)

	draft, err = MailtoComposer{}.Compose(context.Background(), models.EmailData{To: "pm@example.com", Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, "mailto:pm@example.com?body=x", draft.MailtoURL)

	draft, err = MailtoComposer{}.Compose(context.Background(), models.EmailData{To: "pm@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "mailto:pm@example.com", draft.MailtoURL)
}

func TestHTTPRemoteRoundTrip(t *testing.T) {
	var received models.EmailData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		case "/api/send-email":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"message":"Email sent successfully","previewUrl":"https://preview/9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL+"/", srv.Client())
	assert.True(t, remote.Healthy(context.Background()))

	result, err := remote.Submit(context.Background(), sampleEmail())
	require.NoError(t, err)
	assert.Equal(t, "Email sent successfully", result.Message)
	assert.Equal(t, "https://preview/9", result.PreviewURL)
	assert.Equal(t, "pm@example.com", received.To)
	assert.Equal(t, "data:application/pdf;base64,JVBERg==", received.PDFData)
}

func TestHTTPRemoteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/api/send-email":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to send email"}`))
		}
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, srv.Client())
	assert.False(t, remote.Healthy(context.Background()))

	_, err := remote.Submit(context.Background(), sampleEmail())
	require.Error(t, err)
	assert.Equal(t, "Failed to send email", err.Error())

	unreachable := NewHTTPRemote("http://127.0.0.1:1", nil)
	assert.False(t, unreachable.Healthy(context.Background()))
}
