// Package enquiry routes a "contact about listing" intent through guest or full
// capture and interprets the server's duplicate flag.
package enquiry

import (
	"context"
	"strings"
	"sync"

	"land-marketplace/internal/common/errors"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/common/metrics"
	"land-marketplace/internal/models"
)

type State string

const (
	StateIdle             State = "idle"
	StateCapturingGuest   State = "capturing_guest"
	StateCapturingFull    State = "capturing_full"
	StateSubmitted        State = "submitted"
	StateAlreadySubmitted State = "already_submitted"
)

type Mode string

const (
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// Intent is the transient data typed into the enquiry form.
type Intent struct {
	ListingID    models.ID
	Mode         Mode
	ContactPhone string
	ContactName  string
	ContactEmail string
	Message      string
	Budget       *int64
	ContactTime  string
}

// FullForm is what the authenticated form submits.
type FullForm struct {
	ContactName  string
	ContactPhone string
	ContactEmail string
	Message      string
	Budget       *int64
	ContactTime  string
}

// Snapshot is the controller state for display.
type Snapshot struct {
	State State
	// ListingID stays set on the outcome states after the intent is gone.
	ListingID  models.ID
	Intent     *Intent
	Submitting bool
	Error      string
	// FieldErrors holds inline messages keyed by request field name.
	FieldErrors map[string]string
	Retryable   bool
}

// SessionReader is the part of the session the controller consults.
type SessionReader interface {
	IsAuthenticated() bool
	User() *models.User
}

// Creator submits enquiries.
type Creator interface {
	CreateGuest(ctx context.Context, req GuestRequest) (models.EnquiryResult, error)
	Create(ctx context.Context, req FullRequest) (models.EnquiryResult, error)
}

type Option func(*Controller)

func WithEnquiryType(t string) Option {
	return func(c *Controller) {
		if t != "" {
			c.enquiryType = t
		}
	}
}

// Controller is the enquiry state machine:
// Idle -> CapturingGuest|CapturingFull -> Submitted|AlreadySubmitted|back to capturing.
type Controller struct {
	mu          sync.Mutex
	session     SessionReader
	creator     Creator
	logger      logger.Logger
	enquiryType string

	state       State
	listingID   models.ID
	intent      *Intent
	submitting  bool
	errMsg      string
	fieldErrors map[string]string
	retryable   bool
	// flow changes on Begin and Cancel so a submit that outlives its flow is ignored.
	flow uint64
}

func NewController(session SessionReader, creator Creator, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		session:     session,
		creator:     creator,
		logger:      log.WithFields(map[string]interface{}{"component": "enquiry-flow"}),
		enquiryType: DefaultEnquiryType,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin starts a flow for listingID. Authenticated users get the full form
// prefilled from their profile; everyone else gets phone-only capture.
func (c *Controller) Begin(listingID models.ID) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitting {
		return c.snapshotLocked(), errors.NewInvalidStateError("begin enquiry", string(c.state)+" (submitting)")
	}
	id := models.ID(strings.TrimSpace(listingID.String()))
	if id == "" {
		return c.snapshotLocked(), errors.NewValidationError("A listing must be selected", map[string]string{"land_id": "required"})
	}

	c.flow++
	c.listingID = id
	c.clearErrorLocked()

	if c.session != nil && c.session.IsAuthenticated() {
		intent := &Intent{ListingID: id, Mode: ModeAuthenticated}
		if u := c.session.User(); u != nil {
			intent.ContactName = u.FullName
			intent.ContactPhone = u.Phone
			intent.ContactEmail = u.Email
		}
		c.intent = intent
		c.state = StateCapturingFull
	} else {
		c.intent = &Intent{ListingID: id, Mode: ModeGuest}
		c.state = StateCapturingGuest
	}

	c.logger.Debug("enquiry started", map[string]interface{}{
		"landId": id.String(),
		"mode":   string(c.intent.Mode),
	})
	return c.snapshotLocked(), nil
}

// SubmitGuest validates and submits a guest enquiry. Validation and state errors
// are returned and also shown in the snapshot; a failed request is only shown in
// the snapshot and leaves the typed phone in place for retry.
func (c *Controller) SubmitGuest(ctx context.Context, phone string) (Snapshot, error) {
	c.mu.Lock()
	if err := c.checkSubmittableLocked(StateCapturingGuest, "submit guest enquiry"); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}

	c.intent.ContactPhone = strings.TrimSpace(phone)
	req := GuestRequest{LandID: c.intent.ListingID, ContactPhone: c.intent.ContactPhone}
	if err := req.Validate(); err != nil {
		c.setValidationErrorLocked(err, ModeGuest)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	flow := c.beginSubmitLocked()
	c.mu.Unlock()

	res, err := c.creator.CreateGuest(ctx, req)
	return c.finishSubmit(flow, ModeGuest, res, err)
}

// SubmitFull validates and submits the authenticated enquiry form with the same
// outcome contract as SubmitGuest.
func (c *Controller) SubmitFull(ctx context.Context, form FullForm) (Snapshot, error) {
	c.mu.Lock()
	if err := c.checkSubmittableLocked(StateCapturingFull, "submit enquiry"); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}

	c.intent.ContactName = strings.TrimSpace(form.ContactName)
	c.intent.ContactPhone = strings.TrimSpace(form.ContactPhone)
	c.intent.ContactEmail = strings.TrimSpace(form.ContactEmail)
	c.intent.Message = strings.TrimSpace(form.Message)
	c.intent.Budget = form.Budget
	c.intent.ContactTime = strings.TrimSpace(form.ContactTime)

	req := FullRequest{
		LandID:               c.intent.ListingID,
		EnquiryType:          c.enquiryType,
		ContactName:          c.intent.ContactName,
		ContactPhone:         c.intent.ContactPhone,
		ContactEmail:         c.intent.ContactEmail,
		Message:              c.intent.Message,
		Budget:               c.intent.Budget,
		PreferredContactTime: c.intent.ContactTime,
	}
	if err := req.Validate(); err != nil {
		c.setValidationErrorLocked(err, ModeAuthenticated)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	flow := c.beginSubmitLocked()
	c.mu.Unlock()

	res, err := c.creator.Create(ctx, req)
	return c.finishSubmit(flow, ModeAuthenticated, res, err)
}

// Cancel returns to Idle without contacting the server. An in-flight submit's
// outcome is ignored.
func (c *Controller) Cancel() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flow++
	c.state = StateIdle
	c.listingID = ""
	c.intent = nil
	c.submitting = false
	c.clearErrorLocked()
	return c.snapshotLocked()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) checkSubmittableLocked(want State, operation string) error {
	if c.submitting {
		return errors.NewInvalidStateError(operation, string(c.state)+" (submitting)")
	}
	if c.state != want || c.intent == nil {
		return errors.NewInvalidStateError(operation, string(c.state))
	}
	return nil
}

func (c *Controller) beginSubmitLocked() uint64 {
	c.submitting = true
	c.clearErrorLocked()
	return c.flow
}

func (c *Controller) finishSubmit(flow uint64, mode Mode, res models.EnquiryResult, err error) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if flow != c.flow {
		c.logger.Debug("ignoring enquiry outcome for a cancelled flow", map[string]interface{}{"mode": string(mode)})
		return c.snapshotLocked(), nil
	}
	c.submitting = false

	landID := c.listingID.String()
	switch {
	case err != nil:
		stdErr := errors.Normalize(err)
		if stdErr.Code == errors.ErrCodeValidationFailed {
			c.setValidationErrorLocked(stdErr, mode)
			return c.snapshotLocked(), stdErr
		}
		c.errMsg = stdErr.Message
		c.retryable = stdErr.Retryable
		metrics.EnquiryOutcomesTotal.WithLabelValues(string(mode), metrics.OutcomeFailed).Inc()
		c.logger.Warn("enquiry submission failed", map[string]interface{}{
			"landId": landID,
			"mode":   string(mode),
			"code":   string(stdErr.Code),
		})
	case !res.Accepted:
		c.errMsg = errors.DefaultServerMessage
		c.retryable = true
		metrics.EnquiryOutcomesTotal.WithLabelValues(string(mode), metrics.OutcomeFailed).Inc()
		c.logger.Warn("enquiry not accepted", map[string]interface{}{"landId": landID, "mode": string(mode)})
	case res.Duplicate:
		c.state = StateAlreadySubmitted
		c.intent = nil
		metrics.EnquiryOutcomesTotal.WithLabelValues(string(mode), metrics.OutcomeAlreadySubmitted).Inc()
		c.logger.Info("enquiry already submitted", map[string]interface{}{"landId": landID, "mode": string(mode)})
	default:
		c.state = StateSubmitted
		c.intent = nil
		metrics.EnquiryOutcomesTotal.WithLabelValues(string(mode), metrics.OutcomeSubmitted).Inc()
		c.logger.Info("enquiry submitted", map[string]interface{}{"landId": landID, "mode": string(mode)})
	}
	return c.snapshotLocked(), nil
}

func (c *Controller) setValidationErrorLocked(err error, mode Mode) {
	stdErr := errors.Normalize(err)
	c.errMsg = stdErr.Message
	c.retryable = false
	c.fieldErrors = make(map[string]string)
	for k, v := range stdErr.Metadata {
		if field := strings.TrimPrefix(k, "field."); field != k {
			if msg, ok := v.(string); ok {
				c.fieldErrors[field] = msg
			}
		}
	}
	metrics.EnquiryOutcomesTotal.WithLabelValues(string(mode), metrics.OutcomeInvalid).Inc()
}

func (c *Controller) clearErrorLocked() {
	c.errMsg = ""
	c.fieldErrors = nil
	c.retryable = false
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      c.state,
		ListingID:  c.listingID,
		Submitting: c.submitting,
		Error:      c.errMsg,
		Retryable:  c.retryable,
	}
	if c.intent != nil {
		intent := *c.intent
		if c.intent.Budget != nil {
			b := *c.intent.Budget
			intent.Budget = &b
		}
		snap.Intent = &intent
	}
	if len(c.fieldErrors) > 0 {
		snap.FieldErrors = make(map[string]string, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			snap.FieldErrors[k] = v
		}
	}
	return snap
}
