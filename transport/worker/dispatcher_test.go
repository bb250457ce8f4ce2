package worker

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/X1ag/PickupNotifier/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, jst)
}

// memStore applies the same selection rules as the SQL event store.
type memStore struct {
	mu      sync.Mutex
	events  map[int64]*domain.PickupEvent
	sids    map[int64]string
	scanErr map[domain.ChannelName]error
}

func newMemStore(events ...*domain.PickupEvent) *memStore {
	s := &memStore{
		events:  make(map[int64]*domain.PickupEvent),
		sids:    make(map[int64]string),
		scanErr: make(map[domain.ChannelName]error),
	}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	return s
}

func recipient(ev *domain.PickupEvent, ch domain.ChannelName) string {
	switch ch {
	case domain.ChannelWorkerCall:
		if ev.Worker != nil {
			return ev.Worker.Phone
		}
	case domain.ChannelStaffMessage:
		if ev.Staff != nil {
			return ev.Staff.ChatID
		}
	}
	return ""
}

func (s *memStore) DueForChannel(_ context.Context, ch domain.ChannelName, w domain.Window) ([]*domain.PickupEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scanErr[ch]; err != nil {
		return nil, err
	}
	var out []*domain.PickupEvent
	for _, ev := range s.events {
		if ev.Sent(ch) || strings.TrimSpace(recipient(ev, ch)) == "" {
			continue
		}
		if w.Contains(ev.DueAt(ch)) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) MarkSent(_ context.Context, ch domain.ChannelName, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return domain.ErrPickupNotFound
	}
	if ev.Sent(ch) {
		return domain.ErrAlreadySent
	}
	switch ch {
	case domain.ChannelWorkerCall:
		ev.WorkerCallSent = true
	case domain.ChannelStaffMessage:
		ev.StaffMessageSent = true
	}
	return nil
}

func (s *memStore) SetCallSID(_ context.Context, id int64, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sids[id] = sid
	return nil
}

func (s *memStore) get(id int64) domain.PickupEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []int64
	fail    map[int64]bool
	panicOn map[int64]bool
	prefix  string
}

func (n *recordingNotifier) Notify(_ context.Context, ev *domain.PickupEvent) domain.SendResult {
	if n.panicOn[ev.ID] {
		panic("provider blew up")
	}
	if n.fail[ev.ID] {
		return domain.Failed(errors.New("provider rejected"))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ev.ID)
	return domain.Sent(n.prefix)
}

func (n *recordingNotifier) ids() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.sent...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func pickup(id int64, exit time.Time, workerLead, staffLead int) *domain.PickupEvent {
	return &domain.PickupEvent{
		ID:                id,
		StoreID:           1,
		ExitAt:            exit,
		WorkerLeadMinutes: workerLead,
		StaffLeadMinutes:  staffLead,
		Worker:            &domain.Worker{ID: 1, Name: "たろう", Phone: "08012345678"},
		Staff:             &domain.Staff{ID: 1, Name: "はなこ", ChatID: "U1"},
	}
}

type fixture struct {
	store *memStore
	calls *recordingNotifier
	chats *recordingNotifier
	clock *clock
	d     *Dispatcher
}

func newFixture(events ...*domain.PickupEvent) *fixture {
	f := &fixture{
		store: newMemStore(events...),
		calls: &recordingNotifier{prefix: "CA"},
		chats: &recordingNotifier{},
		clock: &clock{},
	}
	f.d = NewDispatcher([]usecase.Channel{
		usecase.NewWorkerCallChannel(f.store, f.calls),
		usecase.NewStaffMessageChannel(f.store, f.chats),
	}, Options{
		Interval:   5 * time.Minute,
		Location:   jst,
		MaxCatchUp: 30 * time.Minute,
		Now:        f.clock.Now,
	}, zerolog.Nop())
	return f
}

func (f *fixture) tick(t time.Time) TickReport {
	f.clock.set(t)
	return f.d.RunOnce(context.Background())
}

func channelReport(r TickReport, ch domain.ChannelName) ChannelReport {
	for _, c := range r.Channels {
		if c.Channel == ch {
			return c
		}
	}
	return ChannelReport{}
}

func TestPickupCallIsSentOnce(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 0))

	rep := f.tick(at(18, 16))
	assert.Equal(t, domain.Window{From: at(18, 11), To: at(18, 16)}, rep.Window)
	assert.Equal(t, 1, channelReport(rep, domain.ChannelWorkerCall).Sent)
	assert.Equal(t, []int64{1}, f.calls.ids())

	ev := f.store.get(1)
	assert.True(t, ev.WorkerCallSent)
	assert.False(t, ev.StaffMessageSent)
	assert.Equal(t, "CA", f.store.sids[1])

	rep = f.tick(at(18, 21))
	assert.Equal(t, 0, channelReport(rep, domain.ChannelWorkerCall).Selected)
	assert.Equal(t, []int64{1}, f.calls.ids())
}

func TestWindowBoundaries(t *testing.T) {
	f := newFixture(
		pickup(1, at(18, 15), 0, 60), // due exactly at To
		pickup(2, at(18, 10), 0, 60), // due exactly at From
		pickup(3, at(18, 12), 0, 60), // inside
		pickup(4, at(18, 16), 0, 60), // future
	)

	f.tick(at(18, 15))

	assert.Equal(t, []int64{1, 3}, f.calls.ids())
	assert.True(t, f.store.get(1).WorkerCallSent)
	assert.False(t, f.store.get(2).WorkerCallSent)
	assert.False(t, f.store.get(4).WorkerCallSent)
}

func TestChannelsAreIndependent(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 5))

	f.tick(at(18, 15))
	assert.Equal(t, []int64{1}, f.calls.ids())
	assert.Empty(t, f.chats.ids())

	f.tick(at(18, 20))
	f.tick(at(18, 25))
	assert.Equal(t, []int64{1}, f.chats.ids())
	assert.Equal(t, []int64{1}, f.calls.ids())

	ev := f.store.get(1)
	assert.True(t, ev.WorkerCallSent)
	assert.True(t, ev.StaffMessageSent)
}

func TestStaffFailureDoesNotAffectWorkerFlag(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 15))
	f.chats.fail = map[int64]bool{1: true}

	rep := f.tick(at(18, 15))

	assert.Equal(t, 1, channelReport(rep, domain.ChannelWorkerCall).Sent)
	assert.Equal(t, 1, channelReport(rep, domain.ChannelStaffMessage).Failed)
	ev := f.store.get(1)
	assert.True(t, ev.WorkerCallSent)
	assert.False(t, ev.StaffMessageSent)
}

func TestFailureAndPanicDoNotStopTick(t *testing.T) {
	f := newFixture(
		pickup(1, at(18, 30), 15, 60),
		pickup(2, at(18, 30), 15, 60),
		pickup(3, at(18, 30), 15, 60),
	)
	f.calls.panicOn = map[int64]bool{1: true}
	f.calls.fail = map[int64]bool{2: true}

	rep := f.tick(at(18, 15))

	cr := channelReport(rep, domain.ChannelWorkerCall)
	assert.Equal(t, 3, cr.Selected)
	assert.Equal(t, 1, cr.Sent)
	assert.Equal(t, 2, cr.Failed)
	assert.Equal(t, []int64{3}, f.calls.ids())
	assert.False(t, f.store.get(1).WorkerCallSent)
	assert.False(t, f.store.get(2).WorkerCallSent)
	assert.True(t, f.store.get(3).WorkerCallSent)
}

func TestFailedEventIsNotRetriedAfterWindowPasses(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 60))
	f.calls.fail = map[int64]bool{1: true}

	f.tick(at(18, 15))
	f.calls.fail = nil
	rep := f.tick(at(18, 20))

	assert.Zero(t, channelReport(rep, domain.ChannelWorkerCall).Selected)
	assert.Empty(t, f.calls.ids())
}

func TestScanErrorIsolatedPerChannel(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 15))
	f.store.scanErr[domain.ChannelWorkerCall] = errors.New("connection reset")

	rep := f.tick(at(18, 15))

	assert.Equal(t, "connection reset", channelReport(rep, domain.ChannelWorkerCall).ScanError)
	assert.Equal(t, 1, channelReport(rep, domain.ChannelStaffMessage).Sent)
}

func TestLateTickCatchesUp(t *testing.T) {
	f := newFixture(pickup(1, at(18, 35), 15, 60))

	f.tick(at(18, 15))
	rep := f.tick(at(18, 31))

	assert.Equal(t, domain.Window{From: at(18, 15), To: at(18, 31)}, rep.Window)
	assert.Equal(t, []int64{1}, f.calls.ids())
}

func TestGapBeyondCatchUpStartsFreshWindow(t *testing.T) {
	f := newFixture(pickup(1, at(18, 35), 15, 60))

	f.tick(at(17, 0))
	rep := f.tick(at(18, 31))

	assert.Equal(t, domain.Window{From: at(18, 26), To: at(18, 31)}, rep.Window)
	assert.Empty(t, f.calls.ids())
}

func TestFirstTickUsesIntervalWindow(t *testing.T) {
	f := newFixture(pickup(1, at(18, 0), 15, 60))

	rep := f.tick(at(18, 15))

	assert.Equal(t, domain.Window{From: at(18, 10), To: at(18, 15)}, rep.Window)
	assert.Empty(t, f.calls.ids())
}

func TestMarkConflictCounted(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 60))
	// Another writer sets the flag between selection and marking.
	ch := &racingChannel{Channel: usecase.NewWorkerCallChannel(f.store, f.calls), store: f.store}
	d := NewDispatcher([]usecase.Channel{ch}, Options{
		Interval: 5 * time.Minute,
		Location: jst,
		Now:      f.clock.Now,
	}, zerolog.Nop())
	f.clock.set(at(18, 15))

	rep := d.RunOnce(context.Background())

	cr := channelReport(rep, domain.ChannelWorkerCall)
	assert.Equal(t, 1, cr.Sent)
	assert.Equal(t, 1, cr.MarkErrors)
	assert.True(t, f.store.get(1).WorkerCallSent)
}

type racingChannel struct {
	usecase.Channel
	store *memStore
}

func (c *racingChannel) Send(ctx context.Context, ev *domain.PickupEvent) domain.SendResult {
	res := c.Channel.Send(ctx, ev)
	_ = c.store.MarkSent(ctx, c.Name(), ev.ID)
	return res
}

func TestCanceledTickSendsNothing(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 15))
	f.clock.set(at(18, 15))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := f.d.RunOnce(ctx)

	assert.Equal(t, 1, channelReport(rep, domain.ChannelWorkerCall).Selected)
	assert.Empty(t, f.calls.ids())
	assert.Empty(t, f.chats.ids())
}

func TestStatusAccumulatesTotals(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 10), pickup(2, at(18, 35), 15, 60))

	f.tick(at(18, 15))
	f.tick(at(18, 20))

	st := f.d.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 2, st.Ticks)
	assert.Equal(t, "JST", st.Timezone)
	assert.Equal(t, 2, st.Totals[domain.ChannelWorkerCall].Sent)
	assert.Equal(t, 1, st.Totals[domain.ChannelStaffMessage].Sent)
	require.NotNil(t, st.LastTick)
	assert.Equal(t, at(18, 20), st.LastTick.Window.To)
}

func TestNextBoundary(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{at(18, 13), at(18, 15)},
		{at(18, 15), at(18, 20)},
		{at(18, 15).Add(time.Nanosecond), at(18, 20)},
		{at(23, 58), time.Date(2026, 10, 20, 0, 0, 0, 0, jst)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextBoundary(tt.now, 5*time.Minute, jst), tt.now.String())
	}

	utc := time.Date(2026, 10, 19, 9, 13, 0, 0, time.UTC)
	assert.True(t, at(18, 15).Equal(NextBoundary(utc, 5*time.Minute, jst)))
}

func TestStartStop(t *testing.T) {
	store := newMemStore()
	d := NewDispatcher([]usecase.Channel{
		usecase.NewWorkerCallChannel(store, &recordingNotifier{}),
	}, Options{Interval: 20 * time.Millisecond, Location: time.UTC}, zerolog.Nop())

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool {
		return d.Status().Ticks >= 2
	}, 2*time.Second, 10*time.Millisecond)

	st := d.Status()
	assert.True(t, st.Running)
	assert.NotNil(t, st.StartedAt)

	d.Stop()
	assert.False(t, d.Status().Running)
	d.Stop()

	require.NoError(t, d.Start(context.Background()))
	d.Stop()
}

func TestScanErrorWindowIsRescanned(t *testing.T) {
	f := newFixture(pickup(1, at(18, 28), 15, 60))
	f.store.scanErr[domain.ChannelWorkerCall] = errors.New("connection reset")

	rep := f.tick(at(18, 15))
	assert.NotEmpty(t, channelReport(rep, domain.ChannelWorkerCall).ScanError)
	assert.Empty(t, f.calls.ids())

	delete(f.store.scanErr, domain.ChannelWorkerCall)
	rep = f.tick(at(18, 20))

	assert.Equal(t, domain.Window{From: at(18, 10), To: at(18, 20)}, channelReport(rep, domain.ChannelWorkerCall).Window)
	assert.Equal(t, domain.Window{From: at(18, 15), To: at(18, 20)}, channelReport(rep, domain.ChannelStaffMessage).Window)
	assert.Equal(t, domain.Window{From: at(18, 10), To: at(18, 20)}, rep.Window)
	assert.Equal(t, []int64{1}, f.calls.ids())
	assert.True(t, f.store.get(1).WorkerCallSent)
}

func TestInterruptedWindowIsRescanned(t *testing.T) {
	f := newFixture(pickup(1, at(18, 28), 15, 15), pickup(2, at(18, 29), 15, 60))
	f.clock.set(at(18, 15))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := f.d.RunOnce(ctx)
	assert.True(t, channelReport(rep, domain.ChannelWorkerCall).Interrupted)
	assert.Empty(t, f.calls.ids())

	f.tick(at(18, 20))

	assert.Equal(t, []int64{1, 2}, f.calls.ids())
	assert.Equal(t, []int64{1}, f.chats.ids())
}

func TestRescanDoesNotResendMarkedEvents(t *testing.T) {
	f := newFixture(pickup(1, at(18, 27), 15, 60), pickup(2, at(18, 28), 15, 60))

	// Event 1 is sent; the tick is cancelled before event 2.
	ctx, cancel := context.WithCancel(context.Background())
	ch := &cancelAfterSend{Channel: usecase.NewWorkerCallChannel(f.store, f.calls), cancel: cancel}
	d := NewDispatcher([]usecase.Channel{ch}, Options{
		Interval:   5 * time.Minute,
		Location:   jst,
		MaxCatchUp: 30 * time.Minute,
		Now:        f.clock.Now,
	}, zerolog.Nop())

	f.clock.set(at(18, 15))
	rep := d.RunOnce(ctx)
	cr := channelReport(rep, domain.ChannelWorkerCall)
	assert.True(t, cr.Interrupted)
	assert.Equal(t, 1, cr.Sent)

	f.clock.set(at(18, 20))
	rep = d.RunOnce(context.Background())

	assert.Equal(t, domain.Window{From: at(18, 10), To: at(18, 20)}, channelReport(rep, domain.ChannelWorkerCall).Window)
	assert.Equal(t, []int64{1, 2}, f.calls.ids())
}

type cancelAfterSend struct {
	usecase.Channel
	cancel context.CancelFunc
}

func (c *cancelAfterSend) Send(ctx context.Context, ev *domain.PickupEvent) domain.SendResult {
	res := c.Channel.Send(ctx, ev)
	c.cancel()
	return res
}

type panickyMark struct {
	usecase.Channel
}

func (c *panickyMark) MarkSent(context.Context, *domain.PickupEvent, domain.SendResult) error {
	panic("mark blew up")
}

func TestPanicAfterSendCountedOnce(t *testing.T) {
	f := newFixture(pickup(1, at(18, 30), 15, 60))
	d := NewDispatcher([]usecase.Channel{
		&panickyMark{Channel: usecase.NewWorkerCallChannel(f.store, f.calls)},
	}, Options{Interval: 5 * time.Minute, Location: jst, Now: f.clock.Now}, zerolog.Nop())
	f.clock.set(at(18, 15))

	rep := d.RunOnce(context.Background())

	cr := channelReport(rep, domain.ChannelWorkerCall)
	assert.Equal(t, 1, cr.Sent)
	assert.Equal(t, 1, cr.MarkErrors)
	assert.Zero(t, cr.Failed)
}

func TestParentCancelStopsRunning(t *testing.T) {
	d := NewDispatcher([]usecase.Channel{
		usecase.NewWorkerCallChannel(newMemStore(), &recordingNotifier{}),
	}, Options{Interval: time.Hour, Location: time.UTC}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	require.True(t, d.Status().Running)

	cancel()
	assert.Eventually(t, func() bool {
		return !d.Status().Running
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, d.Status().NextTickAt)

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.Status().Running)
	d.Stop()
}
