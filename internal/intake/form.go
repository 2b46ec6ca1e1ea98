// Package intake implements the ticket intake form: it collects title,
// description and priority, validates them and hands them to a creation
// callback after a fixed, non-cancellable submission delay.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/support-desk/internal/domain"
)

var (
	// ErrBusy is returned when the form is mutated or submitted mid-submission.
	ErrBusy = errors.New("intake form is busy")
	// ErrIncomplete is returned when title or description is blank.
	ErrIncomplete = errors.New("title and description are required")
	// ErrTooLong is returned when a field exceeds its configured limit.
	ErrTooLong = errors.New("field exceeds maximum length")
)

// SubmitFunc receives the collected data exactly as entered.
type SubmitFunc func(ctx context.Context, data domain.CreateTicketData) error

// Form holds the state of one intake dialog. It is safe for concurrent use.
type Form struct {
	mu          sync.Mutex
	title       string
	description string
	priority    domain.TicketPriority
	busy        bool

	delay          time.Duration
	maxTitle       int
	maxDescription int
	sleep          func(time.Duration)
	onClose        func()
}

// Option configures a Form.
type Option func(*Form)

// WithDelay sets the submission delay.
func WithDelay(d time.Duration) Option {
	return func(f *Form) {
		if d >= 0 {
			f.delay = d
		}
	}
}

// WithLimits caps title and description length in characters. Zero disables a cap.
func WithLimits(maxTitle, maxDescription int) Option {
	return func(f *Form) {
		f.maxTitle = maxTitle
		f.maxDescription = maxDescription
	}
}

// WithOnClose registers the callback run when the idle form is closed.
func WithOnClose(fn func()) Option {
	return func(f *Form) { f.onClose = fn }
}

func withSleep(fn func(time.Duration)) Option {
	return func(f *Form) { f.sleep = fn }
}

// DefaultDelay is the simulated submission latency.
const DefaultDelay = time.Second

// NewForm returns an empty, idle form.
func NewForm(opts ...Option) *Form {
	f := &Form{
		priority: domain.DefaultPriority,
		delay:    DefaultDelay,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetTitle updates the title unless a submission is in flight.
func (f *Form) SetTitle(v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrBusy
	}
	f.title = v
	return nil
}

// SetDescription updates the description unless a submission is in flight.
func (f *Form) SetDescription(v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrBusy
	}
	f.description = v
	return nil
}

// SetPriority updates the priority. Blank input selects the default.
func (f *Form) SetPriority(raw string) error {
	p, err := domain.ParsePriority(raw)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrBusy
	}
	f.priority = p
	return nil
}

// Fields returns a snapshot of the current input.
func (f *Form) Fields() domain.CreateTicketData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldsLocked()
}

// Busy reports whether a submission is in flight.
func (f *Form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// CanSubmit mirrors the enabled state of the submit control.
func (f *Form) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.busy && f.validateLocked() == nil
}

// Submit validates the input and, when valid, enters the busy state, waits
// the submission delay, invokes fn exactly once and resets the form. Invalid
// input returns an error without touching the form. If fn fails the form
// leaves the busy state with its fields intact so the user can retry.
func (f *Form) Submit(ctx context.Context, fn SubmitFunc) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.busy = true
	data := f.fieldsLocked()
	f.mu.Unlock()

	// the delay ignores ctx: an in-flight submission cannot be abandoned
	if f.delay > 0 {
		f.sleep(f.delay)
	}
	err := fn(ctx, data)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		return err
	}
	f.resetLocked()
	return nil
}

// Close resets the idle form and signals closure. It reports false, and does
// nothing, while a submission is in flight.
func (f *Form) Close() bool {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return false
	}
	f.resetLocked()
	onClose := f.onClose
	f.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return true
}

func (f *Form) fieldsLocked() domain.CreateTicketData {
	return domain.CreateTicketData{
		Title:       f.title,
		Description: f.description,
		Priority:    f.priority,
	}
}

func (f *Form) validateLocked() error {
	if strings.TrimSpace(f.title) == "" || strings.TrimSpace(f.description) == "" {
		return ErrIncomplete
	}
	if f.maxTitle > 0 && utf8.RuneCountInString(strings.TrimSpace(f.title)) > f.maxTitle {
		return ErrTooLong
	}
	if f.maxDescription > 0 && utf8.RuneCountInString(strings.TrimSpace(f.description)) > f.maxDescription {
		return ErrTooLong
	}
	return nil
}

func (f *Form) resetLocked() {
	f.title = ""
	f.description = ""
	f.priority = domain.DefaultPriority
}
