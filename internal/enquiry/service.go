package enquiry

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"land-marketplace/internal/common/errors"
	apihttp "land-marketplace/internal/common/http"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/common/validation"
	"land-marketplace/internal/models"
)

const (
	guestPath  = "/user/enquiries/guest-enquiry"
	createPath = "/user/enquiries/create"
	minePath   = "/user/enquiries/my-enquiries"
	cancelPath = "/user/enquiries/cancel"

	DefaultEnquiryType = "buy_interest"
)

// GuestRequest is a phone-only enquiry that needs no session.
type GuestRequest struct {
	LandID       models.ID `json:"land_id"`
	ContactPhone string    `json:"contact_phone"`
}

func (r GuestRequest) Validate() error {
	return validation.Check(validation.GuestEnquirySchema, map[string]interface{}{
		"land_id":       r.LandID.String(),
		"contact_phone": r.ContactPhone,
	})
}

// FullRequest is the authenticated enquiry form.
type FullRequest struct {
	LandID               models.ID `json:"land_id"`
	EnquiryType          string    `json:"enquiry_type"`
	ContactName          string    `json:"contact_name"`
	ContactPhone         string    `json:"contact_phone"`
	ContactEmail         string    `json:"contact_email"`
	Message              string    `json:"message,omitempty"`
	Budget               *int64    `json:"budget,omitempty"`
	PreferredContactTime string    `json:"preferred_contact_time,omitempty"`
}

func (r FullRequest) Validate() error {
	if err := validation.Check(validation.FullEnquirySchema, map[string]interface{}{
		"land_id":       r.LandID.String(),
		"enquiry_type":  r.EnquiryType,
		"contact_name":  r.ContactName,
		"contact_phone": r.ContactPhone,
		"contact_email": r.ContactEmail,
		"message":       r.Message,
	}); err != nil {
		return err
	}
	if r.Budget != nil && *r.Budget < 0 {
		return errors.NewValidationError("Budget must not be negative", map[string]string{"budget": "must not be negative"})
	}
	return nil
}

// Service talks to the enquiry endpoints. Authenticated calls need a client built
// with a token source.
type Service struct {
	api         *apihttp.Client
	enquiryType string
	logger      logger.Logger
}

func NewService(api *apihttp.Client, enquiryType string, log logger.Logger) *Service {
	if enquiryType == "" {
		enquiryType = DefaultEnquiryType
	}
	return &Service{
		api:         api,
		enquiryType: enquiryType,
		logger:      log.WithFields(map[string]interface{}{"component": "enquiry-service"}),
	}
}

// CreateGuest submits a guest enquiry.
func (s *Service) CreateGuest(ctx context.Context, req GuestRequest) (models.EnquiryResult, error) {
	req.ContactPhone = strings.TrimSpace(req.ContactPhone)
	if err := req.Validate(); err != nil {
		return models.EnquiryResult{}, err
	}

	var body json.RawMessage
	if err := s.api.Post(ctx, guestPath, req, false, &body); err != nil {
		return models.EnquiryResult{}, err
	}
	return s.result(body, req.LandID, "guest")
}

// Create submits a full enquiry for the logged-in user.
func (s *Service) Create(ctx context.Context, req FullRequest) (models.EnquiryResult, error) {
	if req.EnquiryType == "" {
		req.EnquiryType = s.enquiryType
	}
	if err := req.Validate(); err != nil {
		return models.EnquiryResult{}, err
	}

	var body json.RawMessage
	if err := s.api.Post(ctx, createPath, req, true, &body); err != nil {
		return models.EnquiryResult{}, err
	}
	return s.result(body, req.LandID, "authenticated")
}

// Mine lists the logged-in user's enquiries.
func (s *Service) Mine(ctx context.Context) ([]models.Enquiry, error) {
	var body json.RawMessage
	if err := s.api.Get(ctx, minePath, nil, true, &body); err != nil {
		return nil, err
	}

	var enquiries []models.Enquiry
	if err := apihttp.Decode(body, "enquiries", &enquiries); err != nil {
		return nil, err
	}
	if enquiries == nil {
		enquiries = []models.Enquiry{}
	}
	return enquiries, nil
}

// Cancel withdraws one of the user's pending enquiries.
func (s *Service) Cancel(ctx context.Context, id models.ID) error {
	trimmed := strings.TrimSpace(id.String())
	if trimmed == "" {
		return errors.NewValidationError("An enquiry must be selected", map[string]string{"id": "required"})
	}
	if err := s.api.Put(ctx, cancelPath, url.Values{"id": {trimmed}}, nil, true, nil); err != nil {
		return err
	}
	s.logger.Info("enquiry cancelled", map[string]interface{}{"enquiryId": trimmed})
	return nil
}

// result interprets a 2xx body. Any 2xx is accepted; a missing duplicate flag is
// false.
func (s *Service) result(body json.RawMessage, landID models.ID, mode string) (models.EnquiryResult, error) {
	res := models.EnquiryResult{Accepted: true}
	if len(body) > 0 {
		dup, err := apihttp.Flag(body, "duplicate")
		if err != nil {
			return models.EnquiryResult{}, err
		}
		res.Duplicate = dup
	}

	s.logger.Info("enquiry submitted", map[string]interface{}{
		"landId":    landID.String(),
		"mode":      mode,
		"duplicate": res.Duplicate,
	})
	return res, nil
}
