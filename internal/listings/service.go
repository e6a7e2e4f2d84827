package listings

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"land-marketplace/internal/common/errors"
	apihttp "land-marketplace/internal/common/http"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/models"
)

const (
	searchPath = "/user/enquiries/available-lands"
	detailPath = "/user/enquiries/land"
)

// Searcher fetches listings for a set of query parameters.
type Searcher interface {
	Search(ctx context.Context, params url.Values) ([]models.Listing, error)
}

// Service reads public listing data.
type Service struct {
	api    *apihttp.Client
	logger logger.Logger
}

func NewService(api *apihttp.Client, log logger.Logger) *Service {
	return &Service{
		api:    api,
		logger: log.WithFields(map[string]interface{}{"component": "listings"}),
	}
}

// Search returns available listings matching params. An empty or null result
// set is an empty slice, never nil.
func (s *Service) Search(ctx context.Context, params url.Values) ([]models.Listing, error) {
	var body json.RawMessage
	if err := s.api.Get(ctx, searchPath, params, false, &body); err != nil {
		return nil, err
	}

	var lands []models.Listing
	if _, err := apihttp.Unwrap(body, "lands"); err != nil {
		// null list
		if !apihttp.HasKey(body, "lands") {
			return nil, err
		}
	} else if err := apihttp.Decode(body, "lands", &lands); err != nil {
		return nil, err
	}
	if lands == nil {
		lands = []models.Listing{}
	}

	s.logger.Debug("listings fetched", map[string]interface{}{
		"params": params.Encode(),
		"count":  len(lands),
	})
	return lands, nil
}

// Get returns a single listing by id.
func (s *Service) Get(ctx context.Context, id models.ID) (*models.Listing, error) {
	trimmed := strings.TrimSpace(id.String())
	if trimmed == "" {
		return nil, errors.NewValidationError("A listing must be selected", map[string]string{"id": "required"})
	}

	var body json.RawMessage
	if err := s.api.Get(ctx, detailPath, url.Values{"id": {trimmed}}, false, &body); err != nil {
		return nil, err
	}

	var land models.Listing
	if err := apihttp.Decode(body, "land", &land); err != nil {
		return nil, err
	}
	return &land, nil
}
