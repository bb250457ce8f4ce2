package usecase

import (
	"context"
	"sync"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/X1ag/PickupNotifier/internal/infrastructure/twilio"
)

type fakeSettings struct {
	byStore map[int64]domain.Settings
	err     error
}

func (f *fakeSettings) Load(_ context.Context, storeID int64) (domain.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := domain.Settings{}
	for k, v := range f.byStore[domain.GlobalStoreID] {
		out[k] = v
	}
	for k, v := range f.byStore[storeID] {
		out[k] = v
	}
	return out, nil
}

type fakeCaller struct {
	mu    sync.Mutex
	sid   string
	err   error
	calls []twilio.Call
	creds []twilio.Credentials
}

func (f *fakeCaller) Call(_ context.Context, creds twilio.Credentials, call twilio.Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.creds = append(f.creds, creds)
	return f.sid, f.err
}

type pushed struct {
	token, to, text string
}

type fakePusher struct {
	err  error
	sent []pushed
}

func (f *fakePusher) Push(_ context.Context, token, to, text string) error {
	f.sent = append(f.sent, pushed{token: token, to: to, text: text})
	return f.err
}

type fakeEventStore struct {
	marked  map[domain.ChannelName][]int64
	sids    map[int64]string
	markErr error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		marked: make(map[domain.ChannelName][]int64),
		sids:   make(map[int64]string),
	}
}

func (f *fakeEventStore) DueForChannel(context.Context, domain.ChannelName, domain.Window) ([]*domain.PickupEvent, error) {
	return nil, nil
}

func (f *fakeEventStore) MarkSent(_ context.Context, ch domain.ChannelName, id int64) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked[ch] = append(f.marked[ch], id)
	return nil
}

func (f *fakeEventStore) SetCallSID(_ context.Context, id int64, sid string) error {
	f.sids[id] = sid
	return nil
}

type fakeNotifier struct {
	result domain.SendResult
	calls  int
}

func (f *fakeNotifier) Notify(context.Context, *domain.PickupEvent) domain.SendResult {
	f.calls++
	return f.result
}

type fakePickupRepo struct {
	events    map[int64]*domain.PickupEvent
	nextID    int64
	createErr error
	updates   int
}

func newFakePickupRepo() *fakePickupRepo {
	return &fakePickupRepo{events: make(map[int64]*domain.PickupEvent), nextID: 1}
}

func (f *fakePickupRepo) Create(_ context.Context, ev *domain.PickupEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	ev.ID = f.nextID
	f.nextID++
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakePickupRepo) GetByID(_ context.Context, id int64) (*domain.PickupEvent, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, domain.ErrPickupNotFound
	}
	cp := *ev
	return &cp, nil
}

func (f *fakePickupRepo) UpdateSchedule(_ context.Context, ev *domain.PickupEvent) error {
	cur, ok := f.events[ev.ID]
	if !ok {
		return domain.ErrPickupNotFound
	}
	f.updates++
	cp := *ev
	cp.WorkerCallSent, cp.StaffMessageSent = cur.WorkerCallSent, cur.StaffMessageSent
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakePickupRepo) DueForChannel(context.Context, domain.ChannelName, domain.Window) ([]*domain.PickupEvent, error) {
	return nil, nil
}

func (f *fakePickupRepo) MarkSent(context.Context, domain.ChannelName, int64) error {
	return nil
}

func (f *fakePickupRepo) SetCallSID(context.Context, int64, string) error {
	return nil
}
