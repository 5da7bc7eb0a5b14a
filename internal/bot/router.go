package bot

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/services"
	"github.com/paresiga/go-traffic-backend/internal/store"
)

var commandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Chat commands processed, by command.",
	},
	[]string{"command"},
)

// Notifier pushes a text message to a chat target. Satisfied by the gateway
// client.
type Notifier interface {
	Notify(ctx context.Context, target, text string) error
}

// Router dispatches normalized chat messages to the services and renders
// replies. HandleMessage returns the direct reply text; transition start and
// cancel notices go to the whole group through the Notifier instead.
type Router struct {
	Status  *services.StatusService
	Confirm *services.ConfirmationService
	Stats   *services.StatsService
	Weather *services.WeatherService
	Store   *store.Store

	Notifier    Notifier
	GroupTarget string

	Now func() time.Time
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// HandleMessage processes one inbound message and returns the reply text.
// An empty reply means nothing should be sent.
func (r *Router) HandleMessage(ctx context.Context, msg Message) string {
	if !msg.IsCommand() {
		return r.handleFreeText(ctx, msg)
	}

	cmd, arg := ParseCommand(msg.Text)
	label := string(cmd)
	if cmd == CmdUnknown {
		label = "unknown"
	}
	commandsTotal.WithLabelValues(label).Inc()

	switch cmd {
	case CmdStatus:
		return r.handleStatus(ctx)
	case CmdToggle:
		return r.handleToggle(ctx, msg.Sender)
	case CmdStats:
		return r.handleStats(ctx)
	case CmdHelp:
		return replyHelp()
	case CmdYes:
		return r.handleConfirm(ctx, msg.Sender, true)
	case CmdNo:
		return r.handleConfirm(ctx, msg.Sender, false)
	case CmdPassed:
		return r.handlePassed(ctx, msg.Sender)
	case CmdCancel:
		return r.handleCancel(ctx, msg.Sender)
	case CmdWindow:
		return r.handleWindowFeedback(arg)
	default:
		return replyUnknownCommand
	}
}

// Free text only matters during a transition ("the lane cleared") or when it
// announces a closedown. Everything else is group chatter and stays ignored.
func (r *Router) handleFreeText(ctx context.Context, msg Message) string {
	if _, active := r.Store.Transition(); active && MentionsClearing(msg.Text) {
		r.Store.PutConfirmation(domain.PendingConfirmation{
			UserID:    msg.Sender,
			Action:    domain.ConfirmCompleteTransition,
			CreatedAt: r.now(),
		})
		return replyConfirmClearing
	}

	if MentionsClosing(msg.Text) {
		pair, transition := r.Status.Current(ctx)
		if transition != nil {
			return replyTransitionActive
		}
		t, err := r.Status.BeginTransition(ctx, pair.OpenEndpoint(), msg.Sender)
		if err != nil {
			return r.mutationError(err)
		}
		return r.notifyGroup(ctx, replyTransitionStarted(t, r.Status.TransitionWindow(r.now())))
	}

	return ""
}

func (r *Router) handleStatus(ctx context.Context) string {
	pair, transition := r.Status.Current(ctx)
	reply := replyStatus(pair, transition, r.now())

	if snap, err := r.Weather.Snapshot(ctx); err == nil {
		reply += weatherSection(snap)
	}

	if ad := r.maybeAd(); ad != "" {
		reply += "\n\n" + ad
	}
	return reply
}

func (r *Router) handleToggle(ctx context.Context, sender string) string {
	out, err := r.Status.Toggle(ctx, sender)
	if err != nil {
		if errors.Is(err, services.ErrConfirmationRequired) {
			return replyConfirmToggle
		}
		return r.mutationError(err)
	}
	return replyToggled(out)
}

func (r *Router) handleStats(ctx context.Context) string {
	day, err := r.Stats.DailySummary(ctx)
	if err != nil && !errors.Is(err, services.ErrNoData) {
		return replyGenericError
	}

	center, cerr := r.Stats.MovingAverage(ctx, domain.EndpointCenter)
	if cerr != nil && !errors.Is(cerr, services.ErrNoData) {
		center = nil
	}
	goio, gerr := r.Stats.MovingAverage(ctx, domain.EndpointGoio)
	if gerr != nil && !errors.Is(gerr, services.ErrNoData) {
		goio = nil
	}

	if day == nil && center == nil && goio == nil {
		return replyNoClosures
	}
	return replyStats(center, goio, day)
}

func (r *Router) handleConfirm(ctx context.Context, sender string, affirmative bool) string {
	res, err := r.Confirm.Resolve(ctx, sender, affirmative)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNothingPending):
			return replyNothingPending
		case errors.Is(err, services.ErrConfirmationExpired):
			return replyExpired
		default:
			return r.mutationError(err)
		}
	}
	if !res.Confirmed {
		return replyCancelled
	}
	return replyToggled(res.Outcome)
}

func (r *Router) handlePassed(ctx context.Context, sender string) string {
	out, err := r.Status.CompleteTransition(ctx, "", sender)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfirmationRequired):
			return replyTransitionTooSoon(r.Status.TransitionWindow(r.now()))
		case errors.Is(err, services.ErrNoTransition):
			return replyNoTransition
		default:
			return r.mutationError(err)
		}
	}
	return replyToggled(out)
}

func (r *Router) handleCancel(ctx context.Context, sender string) string {
	cancelled, err := r.Status.CancelTransition(ctx, "", sender)
	if err != nil {
		return replyGenericError
	}
	if !cancelled {
		return replyNoTransition
	}
	return r.notifyGroup(ctx, replyTransitionCancelled)
}

func (r *Router) handleWindowFeedback(arg string) string {
	minutes, err := strconv.Atoi(arg)
	if err != nil || minutes <= 0 {
		return replyWindowUsage
	}
	base := r.Status.ApplyWindowFeedback(time.Duration(minutes) * time.Minute)
	return replyWindowAdjusted(base)
}

// PushWeatherUpdate refreshes the weather and pushes the formatted update to
// the group. Called from the periodic refresh loop; quiet on failure.
func (r *Router) PushWeatherUpdate(ctx context.Context) {
	snap, err := r.Weather.Refresh(ctx)
	if err != nil {
		return
	}
	if r.Notifier == nil || r.GroupTarget == "" {
		return
	}
	if err := r.Notifier.Notify(ctx, r.GroupTarget, replyWeather(snap)); err != nil {
		log.Error().Err(err).Msg("weather update push failed")
	}
}

// notifyGroup pushes text to the whole group and suppresses the direct reply
// when the push succeeds, so the group does not see the notice twice.
func (r *Router) notifyGroup(ctx context.Context, text string) string {
	if r.Notifier == nil || r.GroupTarget == "" {
		return text
	}
	if err := r.Notifier.Notify(ctx, r.GroupTarget, text); err != nil {
		log.Error().Err(err).Msg("group notification failed")
		return text
	}
	return ""
}

func (r *Router) mutationError(err error) string {
	switch {
	case errors.Is(err, services.ErrLockBusy):
		return replyLockBusy
	case errors.Is(err, services.ErrThrottled):
		return replyThrottled
	case errors.Is(err, services.ErrTransitionActive):
		return replyTransitionActive
	case errors.Is(err, services.ErrNoTransition):
		return replyNoTransition
	case errors.Is(err, services.ErrEndpointNotOpen):
		return replyGenericError
	default:
		return replyGenericError
	}
}

// maybeAd returns a sponsor message at most once per interval, and only on a
// coin flip so status replies do not read as an ad board.
func (r *Router) maybeAd() string {
	if rand.Intn(2) == 0 {
		return ""
	}
	if !r.Store.TryMarkAdSent(r.now()) {
		return ""
	}
	return adMessages[rand.Intn(len(adMessages))]
}
