package domain

import (
	"fmt"
	"time"
)

type ChannelName string

const (
	ChannelWorkerCall   ChannelName = "worker_call"
	ChannelStaffMessage ChannelName = "staff_message"
)

// Window is the half-open scan interval (From, To].
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// WindowEndingAt returns (now-length, now].
func WindowEndingAt(now time.Time, length time.Duration) Window {
	return Window{From: now.Add(-length), To: now}
}

func (w Window) Contains(t time.Time) bool {
	return t.After(w.From) && !t.After(w.To)
}

func (w Window) String() string {
	return fmt.Sprintf("(%s, %s]", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// SendResult is what a notifier reports for one delivery attempt.
// Notifiers never return errors; failures are carried in Error.
type SendResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

func Sent(externalID string) SendResult {
	return SendResult{Success: true, ExternalID: externalID}
}

func Failed(err error) SendResult {
	return SendResult{Error: err.Error()}
}
