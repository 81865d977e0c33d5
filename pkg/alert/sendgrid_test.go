package alert

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/core"
)

func quietLogger() core.Logger {
	return core.NewWriterLogger(io.Discard, core.LevelError)
}

func TestSendGridNotifier(t *testing.T) {
	var (
		gotAuth, gotType, gotMethod string
		gotBody                     mailBody
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		if err := core.JSONDecode(data, &gotBody); err != nil {
			t.Errorf("body is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewSendGridNotifier(config.SendGridConfig{
		URI:    srv.URL + "/v3/mail/send",
		APIKey: "secret",
		From:   "alerts@example.com",
		To:     "user@example.com",
	}, quietLogger())

	a := Alert{Base: "EUR", Target: "INR", CurrentRate: 91, FutureRates: map[string]float64{"2024-01-02": 91.1}}
	if err := n.Notify(context.Background(), a); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody.Subject != Subject {
		t.Errorf("subject = %q", gotBody.Subject)
	}
	if gotBody.From.Email != "alerts@example.com" {
		t.Errorf("from = %q", gotBody.From.Email)
	}
	if len(gotBody.Personalizations) != 1 || gotBody.Personalizations[0].To[0].Email != "user@example.com" {
		t.Errorf("unexpected personalizations %+v", gotBody.Personalizations)
	}
	if len(gotBody.Content) != 1 || gotBody.Content[0].Value != a.Text() {
		t.Errorf("unexpected content %+v", gotBody.Content)
	}
}

func TestSendGridNotifierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewSendGridNotifier(config.SendGridConfig{URI: srv.URL, APIKey: "wrong"}, quietLogger())
	err := n.Notify(context.Background(), Alert{})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}
