package enquiry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"land-marketplace/internal/common/config"
	"land-marketplace/internal/common/errors"
	apihttp "land-marketplace/internal/common/http"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSession struct {
	user *models.User
}

func (f *fakeSession) IsAuthenticated() bool { return f.user != nil }
func (f *fakeSession) User() *models.User    { return f.user }

type fakeCreator struct {
	mu        sync.Mutex
	guest     []GuestRequest
	full      []FullRequest
	result    models.EnquiryResult
	err       error
	block     chan struct{}
	entered   chan struct{}
	callCount int32
}

func (f *fakeCreator) CreateGuest(ctx context.Context, req GuestRequest) (models.EnquiryResult, error) {
	f.mu.Lock()
	f.guest = append(f.guest, req)
	f.mu.Unlock()
	return f.respond()
}

func (f *fakeCreator) Create(ctx context.Context, req FullRequest) (models.EnquiryResult, error) {
	f.mu.Lock()
	f.full = append(f.full, req)
	f.mu.Unlock()
	return f.respond()
}

func (f *fakeCreator) respond() (models.EnquiryResult, error) {
	atomic.AddInt32(&f.callCount, 1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeCreator) calls() int32 { return atomic.LoadInt32(&f.callCount) }

var asha = &models.User{ID: "7", Username: "asha", FullName: "Asha Rao", Email: "a@x.com", Phone: "9000000000"}

// dedupServer accepts the first enquiry per (land, phone) and flags later ones
// as duplicates.
func dedupServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		hits int32
	)
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		key, _ := req["land_id"].(string)
		phone, _ := req["contact_phone"].(string)
		key += "|" + phone

		mu.Lock()
		dup := seen[key]
		seen[key] = true
		mu.Unlock()

		if dup {
			_, _ = w.Write([]byte(`{"duplicate":true,"message":"Enquiry already exists"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/user/enquiries/guest-enquiry", handler)
	mux.HandleFunc("/user/enquiries/create", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &hits
}

func newHTTPController(t *testing.T, baseURL string, session *fakeSession) *Controller {
	t.Helper()
	log := logger.NewTestLogger(t)
	api := apihttp.NewClient(config.APIConfig{BaseURL: baseURL, Timeout: 2000}, log)
	if session.user != nil {
		api = api.WithTokenSource(staticToken("T1"))
	}
	return NewController(session, NewService(api, "", log), log)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestController_BeginGuest(t *testing.T) {
	c := NewController(&fakeSession{}, &fakeCreator{result: models.EnquiryResult{Accepted: true}}, logger.NewNoOpLogger())
	assert.Equal(t, StateIdle, c.Snapshot().State)

	snap, err := c.Begin("L1")
	require.NoError(t, err)
	assert.Equal(t, StateCapturingGuest, snap.State)
	require.NotNil(t, snap.Intent)
	assert.Equal(t, ModeGuest, snap.Intent.Mode)
	assert.Equal(t, models.ID("L1"), snap.Intent.ListingID)
	assert.Empty(t, snap.Intent.ContactPhone)
}

func TestController_BeginAuthenticatedPrefills(t *testing.T) {
	c := NewController(&fakeSession{user: asha}, &fakeCreator{result: models.EnquiryResult{Accepted: true}}, logger.NewNoOpLogger())

	snap, err := c.Begin("L1")
	require.NoError(t, err)
	assert.Equal(t, StateCapturingFull, snap.State)
	assert.Equal(t, ModeAuthenticated, snap.Intent.Mode)
	assert.Equal(t, "Asha Rao", snap.Intent.ContactName)
	assert.Equal(t, "9000000000", snap.Intent.ContactPhone)
	assert.Equal(t, "a@x.com", snap.Intent.ContactEmail)
}

func TestController_BeginRequiresListing(t *testing.T) {
	c := NewController(&fakeSession{}, &fakeCreator{result: models.EnquiryResult{Accepted: true}}, logger.NewNoOpLogger())

	snap, err := c.Begin("  ")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, StateIdle, snap.State)
}

func TestController_GuestSubmitted(t *testing.T) {
	server, hits := dedupServer(t)
	c := newHTTPController(t, server.URL, &fakeSession{})

	_, err := c.Begin("L1")
	require.NoError(t, err)

	snap, err := c.SubmitGuest(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Equal(t, models.ID("L1"), snap.ListingID)
	assert.Nil(t, snap.Intent)
	assert.False(t, snap.Submitting)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestController_GuestInvalidPhone(t *testing.T) {
	creator := &fakeCreator{result: models.EnquiryResult{Accepted: true}}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())
	_, err := c.Begin("L1")
	require.NoError(t, err)

	snap, err := c.SubmitGuest(context.Background(), "12345")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, StateCapturingGuest, snap.State)
	assert.Equal(t, "Enter a valid 10-digit phone number", snap.FieldErrors["contact_phone"])
	assert.Equal(t, "12345", snap.Intent.ContactPhone)
	assert.Equal(t, int32(0), creator.calls())

	// corrected input clears the error
	snap, err = c.SubmitGuest(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Empty(t, snap.FieldErrors)
	assert.Empty(t, snap.Error)
}

func TestController_SecondEnquiryIsAlreadySubmitted(t *testing.T) {
	server, hits := dedupServer(t)
	c := newHTTPController(t, server.URL, &fakeSession{})
	ctx := context.Background()

	_, err := c.Begin("L1")
	require.NoError(t, err)
	snap, err := c.SubmitGuest(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)

	_, err = c.Begin("L1")
	require.NoError(t, err)
	snap, err = c.SubmitGuest(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateAlreadySubmitted, snap.State)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	// a different listing is a fresh enquiry
	_, err = c.Begin("L2")
	require.NoError(t, err)
	snap, err = c.SubmitGuest(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
}

func TestController_FullSubmitDuplicate(t *testing.T) {
	server, _ := dedupServer(t)
	c := newHTTPController(t, server.URL, &fakeSession{user: asha})
	ctx := context.Background()

	for i, want := range []State{StateSubmitted, StateAlreadySubmitted} {
		snap, err := c.Begin("L9")
		require.NoError(t, err)
		snap, err = c.SubmitFull(ctx, FullForm{
			ContactName:  snap.Intent.ContactName,
			ContactPhone: snap.Intent.ContactPhone,
			ContactEmail: snap.Intent.ContactEmail,
			Message:      "Is the price negotiable?",
		})
		require.NoError(t, err)
		assert.Equal(t, want, snap.State, "attempt %d", i+1)
	}
}

func TestController_FullSubmitSendsForm(t *testing.T) {
	budget := int64(2000000)
	creator := &fakeCreator{result: models.EnquiryResult{Accepted: true}}
	c := NewController(&fakeSession{user: asha}, creator, logger.NewNoOpLogger(), WithEnquiryType("site_visit"))

	_, err := c.Begin("L1")
	require.NoError(t, err)
	snap, err := c.SubmitFull(context.Background(), FullForm{
		ContactName:  " Asha ",
		ContactPhone: "9000000000",
		ContactEmail: "a@x.com",
		Budget:       &budget,
		ContactTime:  " evenings ",
	})
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)

	require.Len(t, creator.full, 1)
	sent := creator.full[0]
	assert.Equal(t, "site_visit", sent.EnquiryType)
	assert.Equal(t, "Asha", sent.ContactName)
	assert.Equal(t, models.ID("L1"), sent.LandID)
	require.NotNil(t, sent.Budget)
	assert.Equal(t, budget, *sent.Budget)
	assert.Equal(t, "evenings", sent.PreferredContactTime)
}

func TestController_FullInvalidEmail(t *testing.T) {
	creator := &fakeCreator{result: models.EnquiryResult{Accepted: true}}
	c := NewController(&fakeSession{user: asha}, creator, logger.NewNoOpLogger())
	_, err := c.Begin("L1")
	require.NoError(t, err)

	snap, err := c.SubmitFull(context.Background(), FullForm{ContactName: "Asha", ContactPhone: "9000000000", ContactEmail: "asha"})
	require.Error(t, err)
	assert.Equal(t, StateCapturingFull, snap.State)
	assert.Equal(t, "Enter a valid email address", snap.FieldErrors["contact_email"])
	assert.Equal(t, int32(0), creator.calls())
}

// ==========================
// Failure and State Tests
// ==========================

func TestController_TransportFailureKeepsData(t *testing.T) {
	creator := &fakeCreator{err: errors.NewTransportError("/user/enquiries/guest-enquiry", assert.AnError)}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())
	_, err := c.Begin("L1")
	require.NoError(t, err)

	snap, err := c.SubmitGuest(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateCapturingGuest, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.True(t, snap.Retryable)
	assert.Equal(t, "9876543210", snap.Intent.ContactPhone)

	creator.mu.Lock()
	creator.err = nil
	creator.result = models.EnquiryResult{Accepted: true}
	creator.mu.Unlock()

	snap, err = c.SubmitGuest(context.Background(), snap.Intent.ContactPhone)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, int32(2), creator.calls())
}

func TestController_NotAcceptedStaysCapturing(t *testing.T) {
	creator := &fakeCreator{result: models.EnquiryResult{Accepted: false}}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())
	_, err := c.Begin("L1")
	require.NoError(t, err)

	snap, err := c.SubmitGuest(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateCapturingGuest, snap.State)
	assert.Equal(t, errors.DefaultServerMessage, snap.Error)
	assert.True(t, snap.Retryable)
	require.NotNil(t, snap.Intent)
	assert.Equal(t, "9876543210", snap.Intent.ContactPhone)
	assert.False(t, snap.Submitting)

	creator.mu.Lock()
	creator.result = models.EnquiryResult{Accepted: true}
	creator.mu.Unlock()

	snap, err = c.SubmitGuest(context.Background(), snap.Intent.ContactPhone)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Empty(t, snap.Error)
}

func TestController_ServerErrorMessage(t *testing.T) {
	creator := &fakeCreator{err: errors.NewServerError("/user/enquiries/create", 400, "Land is no longer available")}
	c := NewController(&fakeSession{user: asha}, creator, logger.NewNoOpLogger())
	snap, err := c.Begin("L1")
	require.NoError(t, err)

	snap, err = c.SubmitFull(context.Background(), FullForm{
		ContactName:  snap.Intent.ContactName,
		ContactPhone: snap.Intent.ContactPhone,
		ContactEmail: snap.Intent.ContactEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, StateCapturingFull, snap.State)
	assert.Equal(t, "Land is no longer available", snap.Error)
	assert.False(t, snap.Retryable)
}

func TestController_SubmitOutsideCapture(t *testing.T) {
	creator := &fakeCreator{result: models.EnquiryResult{Accepted: true}}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())

	_, err := c.SubmitGuest(context.Background(), "9876543210")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))

	_, err = c.Begin("L1")
	require.NoError(t, err)
	_, err = c.SubmitFull(context.Background(), FullForm{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
	assert.Equal(t, int32(0), creator.calls())
}

func TestController_DoubleSubmitRejected(t *testing.T) {
	creator := &fakeCreator{
		result:  models.EnquiryResult{Accepted: true},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())
	_, err := c.Begin("L1")
	require.NoError(t, err)

	done := make(chan Snapshot, 1)
	go func() {
		snap, _ := c.SubmitGuest(context.Background(), "9876543210")
		done <- snap
	}()
	<-creator.entered

	assert.True(t, c.Snapshot().Submitting)
	_, err = c.SubmitGuest(context.Background(), "9876543210")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
	_, err = c.Begin("L2")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))

	close(creator.block)
	snap := <-done
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Equal(t, int32(1), creator.calls())
}

func TestController_CancelDiscardsInFlightOutcome(t *testing.T) {
	creator := &fakeCreator{
		result:  models.EnquiryResult{Accepted: true, Duplicate: true},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())
	_, err := c.Begin("L1")
	require.NoError(t, err)

	done := make(chan Snapshot, 1)
	go func() {
		snap, _ := c.SubmitGuest(context.Background(), "9876543210")
		done <- snap
	}()
	<-creator.entered

	snap := c.Cancel()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Submitting)

	close(creator.block)
	<-done
	assert.Equal(t, StateIdle, c.Snapshot().State)
	assert.Nil(t, c.Snapshot().Intent)
}

func TestController_CancelFromEveryState(t *testing.T) {
	creator := &fakeCreator{result: models.EnquiryResult{Accepted: true, Duplicate: true}}
	c := NewController(&fakeSession{}, creator, logger.NewNoOpLogger())

	assert.Equal(t, StateIdle, c.Cancel().State)

	_, err := c.Begin("L1")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.Cancel().State)

	_, err = c.Begin("L1")
	require.NoError(t, err)
	snap, err := c.SubmitGuest(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StateAlreadySubmitted, snap.State)

	snap = c.Cancel()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.ListingID)
}

func TestController_SnapshotIsACopy(t *testing.T) {
	c := NewController(&fakeSession{user: asha}, &fakeCreator{result: models.EnquiryResult{Accepted: true}}, logger.NewNoOpLogger())
	snap, err := c.Begin("L1")
	require.NoError(t, err)

	snap.Intent.ContactName = "changed"
	assert.Equal(t, "Asha Rao", c.Snapshot().Intent.ContactName)
}
