package gateway_test

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/visionarydirector/concierge/internal/gateway"
)

type mockProvider struct {
	mu       sync.Mutex
	sessions int
	gotCfg   gateway.SessionConfig
	session  gateway.Session
	err      error
}

type mockSession struct {
	fragments []string
	err       error
	// block makes the session wait for cancellation after the fragments are yielded.
	block bool

	mu   sync.Mutex
	sent []string
}

func (p *mockProvider) NewSession(_ context.Context, cfg gateway.SessionConfig) (gateway.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}
	p.sessions++
	p.gotCfg = cfg
	return p.session, nil
}

func (s *mockSession) SendMessageStream(ctx context.Context, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		s.sent = append(s.sent, text)
		s.mu.Unlock()

		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.block {
			<-ctx.Done()
			yield("", ctx.Err())
			return
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func collect(t *testing.T, g *gateway.Gateway, text string) []string {
	t.Helper()

	seq, err := g.SendMessageStream(context.Background(), text)
	if err != nil {
		t.Fatalf("SendMessageStream() error = %v", err)
	}
	var got []string
	for f := range seq {
		got = append(got, f)
	}
	return got
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	provider := &mockProvider{session: &mockSession{}}
	g := gateway.New(provider, "persona", gateway.WithThinkingBudget(512))

	for range 3 {
		if err := g.EnsureSession(context.Background()); err != nil {
			t.Fatalf("EnsureSession() error = %v", err)
		}
	}

	if provider.sessions != 1 {
		t.Errorf("sessions created = %d, want 1", provider.sessions)
	}
	if provider.gotCfg.Persona != "persona" || provider.gotCfg.ThinkingBudget != 512 {
		t.Errorf("session config = %+v", provider.gotCfg)
	}
	if !g.HasSession() {
		t.Error("HasSession() = false, want true")
	}
}

func TestEnsureSessionConfigurationError(t *testing.T) {
	provider := &mockProvider{err: gateway.MissingCredential("gemini", "GEMINI_API_KEY")}
	g := gateway.New(provider, "persona")

	err := g.EnsureSession(context.Background())
	if !errors.Is(err, gateway.ErrConfiguration) {
		t.Fatalf("EnsureSession() error = %v, want ErrConfiguration", err)
	}
	if g.HasSession() {
		t.Error("HasSession() = true after failed creation")
	}

	if _, err := g.SendMessageStream(context.Background(), "Hello"); !errors.Is(err, gateway.ErrConfiguration) {
		t.Errorf("SendMessageStream() error = %v, want ErrConfiguration", err)
	}
}

func TestSendMessageStream(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		err       error
		want      []string
	}{
		{
			name:      "Fragments in order",
			fragments: []string{"a", "b", "c"},
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "Empty fragments are skipped",
			fragments: []string{"a", "", "b"},
			want:      []string{"a", "b"},
		},
		{
			name: "Failure before any fragment",
			err:  errors.New("connection reset"),
			want: []string{gateway.Apology},
		},
		{
			name:      "Failure mid-stream",
			fragments: []string{"a", "b"},
			err:       errors.New("connection reset"),
			want:      []string{"a", "b", gateway.Apology},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{session: &mockSession{fragments: tt.fragments, err: tt.err}}
			g := gateway.New(provider, "persona")

			got := collect(t, g, "Hello")
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("fragments = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendMessageStreamIsNotRestartable(t *testing.T) {
	session := &mockSession{fragments: []string{"a"}}
	g := gateway.New(&mockProvider{session: session}, "persona")

	seq, err := g.SendMessageStream(context.Background(), "Hello")
	if err != nil {
		t.Fatal(err)
	}
	for range seq {
	}
	for f := range seq {
		t.Errorf("second range yielded %q", f)
	}
	if len(session.sent) != 1 {
		t.Errorf("messages sent = %d, want 1", len(session.sent))
	}
}

func TestSendMessageStreamReusesSession(t *testing.T) {
	session := &mockSession{fragments: []string{"ok"}}
	provider := &mockProvider{session: session}
	g := gateway.New(provider, "persona")

	collect(t, g, "first")
	collect(t, g, "second")

	if provider.sessions != 1 {
		t.Errorf("sessions created = %d, want 1", provider.sessions)
	}
	if strings.Join(session.sent, ",") != "first,second" {
		t.Errorf("sent = %v", session.sent)
	}
}

func TestSubscribe(t *testing.T) {
	tests := []struct {
		name         string
		session      *mockSession
		wantText     string
		wantDegraded bool
	}{
		{
			name:     "Completed reply",
			session:  &mockSession{fragments: []string{"Hel", "lo"}},
			wantText: "Hello",
		},
		{
			name:         "Degraded reply",
			session:      &mockSession{fragments: []string{"Hel"}, err: errors.New("boom")},
			wantText:     "Hel" + gateway.Apology,
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gateway.New(&mockProvider{session: tt.session}, "persona")

			var sb strings.Builder
			completions := make(chan gateway.Completion, 1)
			sub, err := g.Subscribe(context.Background(), "Hi", gateway.ObserverFuncs{
				Fragment: func(f string) { sb.WriteString(f) },
				Complete: func(c gateway.Completion) { completions <- c },
			})
			if err != nil {
				t.Fatalf("Subscribe() error = %v", err)
			}

			select {
			case <-sub.Done():
			case <-time.After(time.Second):
				t.Fatal("subscription did not finish")
			}

			c := <-completions
			if c.Degraded != tt.wantDegraded {
				t.Errorf("Degraded = %v, want %v", c.Degraded, tt.wantDegraded)
			}
			if sb.String() != tt.wantText {
				t.Errorf("text = %q, want %q", sb.String(), tt.wantText)
			}
		})
	}
}

func TestSubscribeConfigurationError(t *testing.T) {
	g := gateway.New(&mockProvider{err: gateway.MissingCredential("gemini", "GEMINI_API_KEY")}, "persona")

	called := false
	_, err := g.Subscribe(context.Background(), "Hi", gateway.ObserverFuncs{
		Fragment: func(string) { called = true },
		Complete: func(gateway.Completion) { called = true },
	})
	if !errors.Is(err, gateway.ErrConfiguration) {
		t.Fatalf("Subscribe() error = %v, want ErrConfiguration", err)
	}
	if called {
		t.Error("observer called after failed subscribe")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	session := &mockSession{fragments: []string{"a"}, block: true}
	g := gateway.New(&mockProvider{session: session}, "persona")

	first := make(chan struct{})
	var completed bool
	sub, err := g.Subscribe(context.Background(), "Hi", gateway.ObserverFuncs{
		Fragment: func(string) { close(first) },
		Complete: func(gateway.Completion) { completed = true },
	})
	if err != nil {
		t.Fatal(err)
	}

	<-first
	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop after Unsubscribe")
	}
	if completed {
		t.Error("OnComplete called after Unsubscribe")
	}
}
