package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/retry"
	"github.com/paresiga/go-traffic-backend/internal/services"
	"github.com/paresiga/go-traffic-backend/internal/store"
	"github.com/paresiga/go-traffic-backend/internal/weather"
)

// ----- Fakes -----

type fakeClosureRepo struct {
	recent  []domain.ClosureRecord
	between []domain.ClosureRecord
}

func (f *fakeClosureRepo) AppendClosure(ctx context.Context, endpoint domain.Endpoint, duration time.Duration, recordedAt time.Time) error {
	return nil
}

func (f *fakeClosureRepo) ListRecentClosures(ctx context.Context, endpoint domain.Endpoint, limit int) ([]domain.ClosureRecord, error) {
	return f.recent, nil
}

func (f *fakeClosureRepo) ListClosuresBetween(ctx context.Context, from, to time.Time) ([]domain.ClosureRecord, error) {
	return f.between, nil
}

type fakeNotifier struct {
	targets []string
	texts   []string
	err     error
}

func (f *fakeNotifier) Notify(ctx context.Context, target, text string) error {
	if f.err != nil {
		return f.err
	}
	f.targets = append(f.targets, target)
	f.texts = append(f.texts, text)
	return nil
}

type stubFetcher struct {
	obs *weather.Observation
	err error
}

func (s *stubFetcher) Current(ctx context.Context) (*weather.Observation, error) {
	return s.obs, s.err
}

type fixture struct {
	router   *Router
	store    *store.Store
	notifier *fakeNotifier
	now      *time.Time
}

var routerBase = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New()
	now := routerBase
	clock := func() time.Time { return now }
	repo := &fakeClosureRepo{}
	notifier := &fakeNotifier{}

	statusSvc := &services.StatusService{Store: st, Closures: repo, Now: clock}
	f := &fixture{
		store:    st,
		notifier: notifier,
		now:      &now,
		router: &Router{
			Status:  statusSvc,
			Confirm: &services.ConfirmationService{Store: st, Status: statusSvc, Now: clock},
			Stats:   &services.StatsService{Repo: repo, Now: clock},
			Weather: &services.WeatherService{
				Client: &stubFetcher{err: errors.New("down")},
				Store:  st,
				Policy: retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2},
			},
			Store:       st,
			Notifier:    notifier,
			GroupTarget: "123@g.us",
			Now:         clock,
		},
	}
	// Seed the pair at the base instant.
	f.router.Status.Current(context.Background())
	return f
}

func (f *fixture) handle(text, sender string) string {
	return f.router.HandleMessage(context.Background(), Message{Text: text, Sender: sender})
}

func TestStatusReply(t *testing.T) {
	f := newFixture(t)

	reply := f.handle("!status", "maria")
	if !strings.Contains(reply, "QC PASSANDO") {
		t.Fatalf("reply = %q", reply)
	}
	if !strings.Contains(reply, "Goioerê PARADO") {
		t.Fatalf("reply = %q", reply)
	}
	// Weather upstream is down and the cache is empty: section omitted.
	if strings.Contains(reply, "Clima") {
		t.Fatalf("weather section present despite failure: %q", reply)
	}
}

func TestStatusReplyIncludesCachedWeather(t *testing.T) {
	f := newFixture(t)
	f.store.PutWeather(domain.WeatherSnapshot{
		Condition: "chuva moderada",
		Advisory:  "Chuva na região - Dirija com cuidado!",
	})

	reply := f.handle("!status", "maria")
	if !strings.Contains(reply, "Chuva Moderada") {
		t.Fatalf("reply = %q", reply)
	}
	if !strings.Contains(reply, "Dirija com cuidado") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestToggleFlow(t *testing.T) {
	f := newFixture(t)

	// Inside the 30s gate: confirmation prompt, no mutation.
	*f.now = routerBase.Add(10 * time.Second)
	reply := f.handle("!alterna", "maria")
	if !strings.Contains(reply, "Confirmação Necessária") {
		t.Fatalf("reply = %q", reply)
	}

	// !sim commits the parked toggle.
	reply = f.handle("!sim", "maria")
	if !strings.Contains(reply, "GOIOERÊ") && !strings.Contains(reply, "Goioerê PASSANDO") {
		t.Fatalf("reply = %q", reply)
	}

	status := f.handle("!status", "joao")
	if !strings.Contains(status, "GOIOERÊ PASSANDO") {
		t.Fatalf("status = %q", status)
	}
}

func TestConfirmWithNothingPending(t *testing.T) {
	f := newFixture(t)

	if reply := f.handle("!sim", "maria"); reply != replyNothingPending {
		t.Fatalf("reply = %q", reply)
	}
}

func TestNoDiscardsPending(t *testing.T) {
	f := newFixture(t)

	*f.now = routerBase.Add(10 * time.Second)
	f.handle("!alterna", "maria")
	if reply := f.handle("!nao", "maria"); reply != replyCancelled {
		t.Fatalf("reply = %q", reply)
	}

	status := f.handle("!status", "joao")
	if !strings.Contains(status, "QC PASSANDO") {
		t.Fatalf("declined toggle mutated state: %q", status)
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	if reply := f.handle("!xyz", "maria"); reply != replyUnknownCommand {
		t.Fatalf("reply = %q", reply)
	}
}

func TestStatsWithoutData(t *testing.T) {
	f := newFixture(t)

	if reply := f.handle("!stats", "maria"); reply != replyNoClosures {
		t.Fatalf("reply = %q", reply)
	}
}

func TestFreeTextIgnored(t *testing.T) {
	f := newFixture(t)

	if reply := f.handle("bom dia pessoal", "maria"); reply != "" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestClosingPhraseStartsTransition(t *testing.T) {
	f := newFixture(t)

	*f.now = routerBase.Add(time.Minute)
	reply := f.handle("vou fechar aqui do lado do QC", "maria")
	if reply != "" {
		t.Fatalf("direct reply = %q, want group notice only", reply)
	}
	if len(f.notifier.texts) != 1 || !strings.Contains(f.notifier.texts[0], "Transição Iniciada") {
		t.Fatalf("notices = %v", f.notifier.texts)
	}
	if f.notifier.targets[0] != "123@g.us" {
		t.Fatalf("target = %q", f.notifier.targets[0])
	}
	if _, active := f.store.Transition(); !active {
		t.Fatal("transition not registered")
	}
}

func TestClearingPhraseProposesCompletion(t *testing.T) {
	f := newFixture(t)

	*f.now = routerBase.Add(time.Minute)
	f.handle("vou fechar aqui", "maria")

	*f.now = routerBase.Add(10 * time.Minute)
	reply := f.handle("pista limpa pessoal", "joao")
	if reply != replyConfirmClearing {
		t.Fatalf("reply = %q", reply)
	}
	if _, ok := f.store.Confirmation("joao"); !ok {
		t.Fatal("no confirmation parked")
	}
}

func TestPassedBeforeWindow(t *testing.T) {
	f := newFixture(t)

	*f.now = routerBase.Add(time.Minute)
	f.handle("vou fechar aqui", "maria")

	*f.now = routerBase.Add(5 * time.Minute)
	reply := f.handle("!passou", "joao")
	if !strings.Contains(reply, "Confirmação Necessária") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestPassedAfterWindowCommits(t *testing.T) {
	f := newFixture(t)

	*f.now = routerBase.Add(time.Minute)
	f.handle("vou fechar aqui", "maria")

	*f.now = routerBase.Add(25 * time.Minute)
	reply := f.handle("!passou", "joao")
	if !strings.Contains(reply, "Goioerê PASSANDO") {
		t.Fatalf("reply = %q", reply)
	}
	if _, active := f.store.Transition(); active {
		t.Fatal("transition survived !passou")
	}
}

func TestPassedWithoutTransition(t *testing.T) {
	f := newFixture(t)

	if reply := f.handle("!passou", "maria"); reply != replyNoTransition {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCancelTransition(t *testing.T) {
	f := newFixture(t)

	*f.now = routerBase.Add(time.Minute)
	f.handle("vou fechar aqui", "maria")

	*f.now = routerBase.Add(2 * time.Minute)
	if reply := f.handle("!cancelar", "joao"); reply != "" {
		t.Fatalf("direct reply = %q, want group notice only", reply)
	}
	last := f.notifier.texts[len(f.notifier.texts)-1]
	if !strings.Contains(last, "Transição cancelada") {
		t.Fatalf("notice = %q", last)
	}

	// Idempotent: a second cancel just reports nothing active.
	if reply := f.handle("!cancelar", "joao"); reply != replyNoTransition {
		t.Fatalf("reply = %q", reply)
	}
}

func TestWindowFeedback(t *testing.T) {
	f := newFixture(t)

	if reply := f.handle("!tempo abc", "maria"); reply != replyWindowUsage {
		t.Fatalf("reply = %q", reply)
	}
	if reply := f.handle("!tempo", "maria"); reply != replyWindowUsage {
		t.Fatalf("reply = %q", reply)
	}

	reply := f.handle("!tempo 30", "maria")
	if !strings.Contains(reply, "25 min") {
		t.Fatalf("reply = %q", reply)
	}
	if base, ok := f.store.WindowBase(); !ok || base != 25*time.Minute {
		t.Fatalf("stored base = %v ok=%v", base, ok)
	}
}

func TestHelp(t *testing.T) {
	f := newFixture(t)

	reply := f.handle("!ajuda", "maria")
	for _, want := range []string{"!status", "!alterna", "!stats", "!passou", "!tempo"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("help missing %q: %q", want, reply)
		}
	}
}
