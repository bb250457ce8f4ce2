package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/X1ag/PickupNotifier/internal/usecase"
	"github.com/rs/zerolog"
)

var ErrAlreadyRunning = errors.New("dispatcher already running")

type Options struct {
	// Interval is both the tick period and the scan window length.
	Interval time.Duration
	// Location aligns ticks to wall-clock boundaries (18:15, 18:20, ...).
	Location *time.Location
	// MaxCatchUp bounds how far back a late tick reaches to continue from the
	// previous window instead of starting a fresh one.
	MaxCatchUp  time.Duration
	SendTimeout time.Duration
	Now         func() time.Time
}

func (o *Options) withDefaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.MaxCatchUp < 0 {
		o.MaxCatchUp = 0
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type ChannelReport struct {
	Channel    domain.ChannelName `json:"channel"`
	Window     domain.Window      `json:"window"`
	Selected   int                `json:"selected"`
	Sent       int                `json:"sent"`
	Failed     int                `json:"failed"`
	MarkErrors int                `json:"mark_errors"`
	ScanError  string             `json:"scan_error,omitempty"`
	// Interrupted is set when the tick was cancelled while this channel ran.
	Interrupted bool `json:"interrupted,omitempty"`
}

// complete reports whether every due event of the window was attempted.
func (r ChannelReport) complete() bool {
	return r.ScanError == "" && !r.Interrupted
}

type TickReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Window     domain.Window   `json:"window"`
	Channels   []ChannelReport `json:"channels"`
}

type Status struct {
	Running    bool                                 `json:"running"`
	StartedAt  *time.Time                           `json:"started_at,omitempty"`
	Interval   string                               `json:"interval"`
	Timezone   string                               `json:"timezone"`
	NextTickAt *time.Time                           `json:"next_tick_at,omitempty"`
	Ticks      int                                  `json:"ticks"`
	LastTick   *TickReport                          `json:"last_tick,omitempty"`
	Totals     map[domain.ChannelName]ChannelReport `json:"totals"`
}

// Dispatcher scans every channel for due events on a fixed wall-clock cadence
// and sends them one by one. Run exactly one dispatcher per database: the
// sent-flags are the only guard against duplicate notifications.
type Dispatcher struct {
	channels []usecase.Channel
	opts     Options
	log      zerolog.Logger

	// tickMu keeps ticks from overlapping, whether timer or manual.
	tickMu sync.Mutex

	mu         sync.RWMutex
	cancel     context.CancelFunc
	done       chan struct{}
	startedAt  time.Time
	nextTickAt time.Time
	ticks      int
	lastTick   *TickReport
	totals     map[domain.ChannelName]ChannelReport
	// resume is where each channel's next window starts: the end of its last
	// complete window, or the start of an unfinished one.
	resume map[domain.ChannelName]time.Time
}

func NewDispatcher(channels []usecase.Channel, opts Options, log zerolog.Logger) *Dispatcher {
	opts.withDefaults()
	return &Dispatcher{
		channels: channels,
		opts:     opts,
		log:      log.With().Str("component", "dispatcher").Logger(),
		totals:   make(map[domain.ChannelName]ChannelReport),
		resume:   make(map[domain.ChannelName]time.Time),
	}
}

// Start launches the timer loop. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.startedAt = d.opts.Now()

	go d.loop(loopCtx, d.done)

	d.log.Info().
		Dur("interval", d.opts.Interval).
		Str("timezone", d.opts.Location.String()).
		Int("channels", len(d.channels)).
		Msg("dispatcher started")
	return nil
}

// Stop cancels the loop and waits for it to exit. A send in flight is
// abandoned at its next context check.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	d.log.Info().Msg("dispatcher stopped")
}

func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := Status{
		Running:  d.cancel != nil,
		Interval: d.opts.Interval.String(),
		Timezone: d.opts.Location.String(),
		Ticks:    d.ticks,
		Totals:   make(map[domain.ChannelName]ChannelReport, len(d.totals)),
	}
	if st.Running {
		started, next := d.startedAt, d.nextTickAt
		st.StartedAt = &started
		if !next.IsZero() {
			st.NextTickAt = &next
		}
	}
	if d.lastTick != nil {
		last := *d.lastTick
		last.Channels = append([]ChannelReport(nil), d.lastTick.Channels...)
		st.LastTick = &last
	}
	for k, v := range d.totals {
		st.Totals[k] = v
	}
	return st
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer d.exited(done)

	timer := time.NewTimer(d.untilNextTick())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.RunOnce(ctx)
			timer.Reset(d.untilNextTick())
		}
	}
}

// exited clears the running state when the loop ends on its own, e.g. because
// the parent context of Start was cancelled.
func (d *Dispatcher) exited(done chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done != done {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.nextTickAt = time.Time{}
}

func (d *Dispatcher) untilNextTick() time.Duration {
	now := d.opts.Now()
	next := NextBoundary(now, d.opts.Interval, d.opts.Location)

	d.mu.Lock()
	d.nextTickAt = next
	d.mu.Unlock()

	return next.Sub(now)
}

// NextBoundary returns the first instant after now that is a whole multiple
// of interval past local midnight in loc.
func NextBoundary(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	return midnight.Add((elapsed/interval + 1) * interval)
}

// RunOnce performs one full tick: every channel, every due event, serially.
func (d *Dispatcher) RunOnce(ctx context.Context) TickReport {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	now := d.opts.Now()
	report := TickReport{
		StartedAt: now,
		Window:    domain.Window{From: now, To: now},
		Channels:  make([]ChannelReport, 0, len(d.channels)),
	}

	for _, ch := range d.channels {
		w := d.windowFor(ch.Name(), now)
		if w.From.Before(report.Window.From) {
			report.Window.From = w.From
		}
		report.Channels = append(report.Channels, d.dispatchChannel(ctx, ch, w))
	}
	report.FinishedAt = d.opts.Now()

	d.record(report)
	return report
}

// windowFor continues from the channel's resume point when the gap is short
// enough, so a late or previously unfinished tick picks up what it would
// otherwise skip.
func (d *Dispatcher) windowFor(ch domain.ChannelName, now time.Time) domain.Window {
	d.mu.RLock()
	from, ok := d.resume[ch]
	d.mu.RUnlock()

	if ok && now.After(from) && now.Sub(from) <= d.opts.MaxCatchUp {
		return domain.Window{From: from, To: now}
	}
	return domain.WindowEndingAt(now, d.opts.Interval)
}

func (d *Dispatcher) record(report TickReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastTick = &report
	d.ticks++
	for _, cr := range report.Channels {
		if cr.complete() {
			d.resume[cr.Channel] = cr.Window.To
		} else {
			d.resume[cr.Channel] = cr.Window.From
		}

		t := d.totals[cr.Channel]
		t.Channel = cr.Channel
		t.Selected += cr.Selected
		t.Sent += cr.Sent
		t.Failed += cr.Failed
		t.MarkErrors += cr.MarkErrors
		d.totals[cr.Channel] = t
	}
}

func (d *Dispatcher) dispatchChannel(ctx context.Context, ch usecase.Channel, w domain.Window) ChannelReport {
	rep := ChannelReport{Channel: ch.Name(), Window: w}
	log := d.log.With().Str("channel", string(ch.Name())).Logger()

	log.Debug().Str("window", w.String()).Msg("scanning")

	events, err := ch.Due(ctx, w)
	if err != nil {
		log.Error().Err(err).Msg("error getting due events")
		rep.ScanError = err.Error()
		return rep
	}
	rep.Selected = len(events)

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		d.dispatchOne(ctx, ch, ev, &rep, log)
	}
	if ctx.Err() != nil {
		rep.Interrupted = true
		log.Warn().Int("remaining", rep.Selected-rep.Sent-rep.Failed).Msg("tick interrupted, window will be rescanned")
	}
	return rep
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ch usecase.Channel, ev *domain.PickupEvent, rep *ChannelReport, log zerolog.Logger) {
	log = log.With().Int64("event_id", ev.ID).Int64("store_id", ev.StoreID).Logger()

	sent := false
	defer func() {
		if r := recover(); r != nil {
			if sent {
				rep.MarkErrors++
			} else {
				rep.Failed++
			}
			log.Error().Err(fmt.Errorf("panic: %v", r)).Bool("sent", sent).Msg("error handling event")
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	res := ch.Send(sendCtx, ev)

	if !res.Success {
		rep.Failed++
		log.Warn().Str("error", res.Error).Time("due_at", ev.DueAt(ch.Name())).Msg("notification failed")
		return
	}
	rep.Sent++
	sent = true

	// The send already happened; record it even if shutdown has begun.
	if err := ch.MarkSent(context.WithoutCancel(ctx), ev, res); err != nil {
		rep.MarkErrors++
		if errors.Is(err, domain.ErrAlreadySent) {
			log.Warn().Msg("flag was already set")
			return
		}
		log.Error().Err(err).Msg("error marking as sent")
		return
	}

	log.Info().Str("external_id", res.ExternalID).Msg("notification sent")
}
