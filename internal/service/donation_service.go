package service

import (
	"context"
	"net/url"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// DonationService reads the donation methods shown on the donate page.
type DonationService struct {
	content *ContentService
}

func NewDonationService(content *ContentService) *DonationService {
	return &DonationService{content: content}
}

// GetDonationMethods returns methods ordered by display order, optionally only the active ones.
func (s *DonationService) GetDonationMethods(ctx context.Context, activeOnly bool) (*model.Envelope[[]model.DonationMethod], error) {
	env, err := listContent[model.DonationMethod](ctx, s.content, model.KeyDonationMethods)
	if err != nil {
		return nil, err
	}
	methods := env.Data
	if activeOnly {
		methods = make([]model.DonationMethod, 0, len(env.Data))
		for _, m := range env.Data {
			if m.IsActive {
				methods = append(methods, m)
			}
		}
	}
	sortByDisplayOrder(methods, func(m model.DonationMethod) int { return m.DisplayOrder })
	return withData(env, methods), nil
}

const donationsPath = "/donations"

// DonationsAPI talks to the site's payment REST endpoints.
type DonationsAPI struct {
	api *httpclient.Client
}

func NewDonationsAPI(api *httpclient.Client) *DonationsAPI {
	return &DonationsAPI{api: api}
}

func (a *DonationsAPI) Process(ctx context.Context, d model.Donation) (*model.Envelope[model.DonationReceipt], error) {
	if d.Currency == "" {
		d.Currency = "CAD"
	}
	return httpclient.Post[model.DonationReceipt](ctx, a.api, donationsPath+"/process", d)
}

func (a *DonationsAPI) Status(ctx context.Context, transactionID string) (*model.Envelope[model.DonationStatus], error) {
	return httpclient.Get[model.DonationStatus](ctx, a.api, donationsPath+"/status/"+url.PathEscape(transactionID))
}

func (a *DonationsAPI) Stats(ctx context.Context) (*model.Envelope[model.DonationStats], error) {
	return httpclient.Get[model.DonationStats](ctx, a.api, donationsPath+"/stats")
}
