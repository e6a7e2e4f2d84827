package enquiry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestService(t *testing.T, token string, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	log := logger.NewTestLogger(t)
	api := apihttp.NewClient(config.APIConfig{BaseURL: server.URL, Timeout: 2000}, log)
	if token != "" {
		api = api.WithTokenSource(staticToken(token))
	}
	return NewService(api, "", log)
}

func TestService_CreateGuest(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     models.EnquiryResult
		wantCode errors.ErrorCode
	}{
		{name: "empty body", status: 200, body: "", want: models.EnquiryResult{Accepted: true}},
		{name: "created", status: 201, body: `{"message":"ok"}`, want: models.EnquiryResult{Accepted: true}},
		{name: "duplicate", status: 200, body: `{"duplicate":true}`, want: models.EnquiryResult{Accepted: true, Duplicate: true}},
		{name: "explicit not duplicate", status: 200, body: `{"duplicate":false}`, want: models.EnquiryResult{Accepted: true}},
		{name: "malformed flag", status: 200, body: `{"duplicate":"yes"}`, wantCode: errors.ErrCodeUnexpectedResponseShape},
		{name: "server error", status: 500, body: `{"error":"boom"}`, wantCode: errors.ErrCodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/user/enquiries/guest-enquiry", r.URL.Path)
				assert.Empty(t, r.Header.Get("token"))

				var req map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "L1", req["land_id"])
				assert.Equal(t, "9876543210", req["contact_phone"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := svc.CreateGuest(context.Background(), GuestRequest{LandID: "L1", ContactPhone: " 9876543210 "})
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_CreateGuestRejectsBadPhoneLocally(t *testing.T) {
	var hits int32
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := svc.CreateGuest(context.Background(), GuestRequest{LandID: "L1", ContactPhone: "12345"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestService_Create(t *testing.T) {
	budget := int64(1500000)
	svc := newTestService(t, "T1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/enquiries/create", r.URL.Path)
		assert.Equal(t, "T1", r.Header.Get("token"))

		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "buy_interest", req["enquiry_type"])
		assert.Equal(t, "Asha", req["contact_name"])
		assert.Equal(t, float64(1500000), req["budget"])
		_, hasMessage := req["message"]
		assert.False(t, hasMessage)

		_, _ = w.Write([]byte(`{"data":{"duplicate":true}}`))
	})

	got, err := svc.Create(context.Background(), FullRequest{
		LandID:       "L1",
		ContactName:  "Asha",
		ContactPhone: "9000000000",
		ContactEmail: "a@x.com",
		Budget:       &budget,
	})
	require.NoError(t, err)
	assert.True(t, got.Duplicate)
}

func TestService_CreateWithoutSession(t *testing.T) {
	var hits int32
	svc := newTestService(t, "", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := svc.Create(context.Background(), FullRequest{
		LandID:       "L1",
		ContactName:  "Asha",
		ContactPhone: "9000000000",
		ContactEmail: "a@x.com",
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthenticationRequired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFullRequest_Validate(t *testing.T) {
	valid := FullRequest{
		LandID:       "L1",
		EnquiryType:  "buy_interest",
		ContactName:  "Asha",
		ContactPhone: "9000000000",
		ContactEmail: "a@x.com",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*FullRequest)
		field  string
	}{
		{name: "blank name", mutate: func(r *FullRequest) { r.ContactName = "  " }, field: "contact_name"},
		{name: "short phone", mutate: func(r *FullRequest) { r.ContactPhone = "90000" }, field: "contact_phone"},
		{name: "bad email", mutate: func(r *FullRequest) { r.ContactEmail = "nope" }, field: "contact_email"},
		{name: "negative budget", mutate: func(r *FullRequest) { b := int64(-1); r.Budget = &b }, field: "budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			stdErr := errors.Normalize(err)
			assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
			assert.Contains(t, stdErr.Metadata, "field."+tt.field)
		})
	}
}

func TestService_Mine(t *testing.T) {
	svc := newTestService(t, "T1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/enquiries/my-enquiries", r.URL.Path)
		_, _ = w.Write([]byte(`{"enquiries":[{"id":3,"status":"pending","land":{"id":9,"title":"Mango Farm"}},{"id":4,"status":"cancelled"}]}`))
	})

	list, err := svc.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Cancellable())
	assert.Equal(t, "Mango Farm", list[0].Title())
	assert.False(t, list[1].Cancellable())
}

func TestService_Cancel(t *testing.T) {
	var hits int32
	svc := newTestService(t, "T1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/user/enquiries/cancel", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"message":"cancelled"}`))
	})

	require.NoError(t, svc.Cancel(context.Background(), "3"))

	err := svc.Cancel(context.Background(), " ")
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
