package trainengine

import (
	"context"
	"fmt"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railhttp"
)

// ScheduleClient is the Running-Train Engine's view of the Schedule
// Store: activation needs one schedule's details, by exact key or by
// authoritative resolution.
type ScheduleClient interface {
	FindForActivation(ctx context.Context, uid string, stp model.STPIndicator, startDate model.Date, source model.Source) (model.Schedule, []model.ScheduleMvt, error)
	FindAuthoritativeOnDate(ctx context.Context, uid string, date model.Date, source model.Source) (model.Schedule, []model.ScheduleMvt, error)
}

// ReferenceClient is the engine's view of the Reference Resolver: TRUST
// movements identify locations by STANOX and must be resolved to the
// TIPLOC set a schedule's movements are keyed by.
type ReferenceClient interface {
	StanoxToTiplocs(ctx context.Context, stanox string) ([]string, error)
}

// HTTPScheduleClient calls a running Schedule Store service.
type HTTPScheduleClient struct{ client *railhttp.Client }

func NewHTTPScheduleClient(baseURL string) *HTTPScheduleClient {
	return &HTTPScheduleClient{client: railhttp.NewClient(baseURL)}
}

func (h *HTTPScheduleClient) FindForActivation(ctx context.Context, uid string, stp model.STPIndicator, startDate model.Date, source model.Source) (model.Schedule, []model.ScheduleMvt, error) {
	path := fmt.Sprintf("/schedules/for-activation/%s/%s/%s/%s", uid, startDate, stp, source)
	var sched model.Schedule
	if err := h.client.Get(ctx, path, &sched); err != nil {
		return model.Schedule{}, nil, err
	}
	return h.getDetails(ctx, sched)
}

func (h *HTTPScheduleClient) FindAuthoritativeOnDate(ctx context.Context, uid string, date model.Date, source model.Source) (model.Schedule, []model.ScheduleMvt, error) {
	path := fmt.Sprintf("/schedules/by-uid-on-date/%s/%s/%s", uid, date, source)
	var sched model.Schedule
	if err := h.client.Get(ctx, path, &sched); err != nil {
		return model.Schedule{}, nil, err
	}
	return h.getDetails(ctx, sched)
}

type scheduleDetailsResponse struct {
	Schedule  model.Schedule      `json:"schedule"`
	Movements []model.ScheduleMvt `json:"movements"`
}

func (h *HTTPScheduleClient) getDetails(ctx context.Context, sched model.Schedule) (model.Schedule, []model.ScheduleMvt, error) {
	var details scheduleDetailsResponse
	if err := h.client.Get(ctx, "/schedule/"+sched.VersionID, &details); err != nil {
		return model.Schedule{}, nil, err
	}
	return details.Schedule, details.Movements, nil
}

// HTTPReferenceClient calls a running Reference Resolver service.
type HTTPReferenceClient struct{ client *railhttp.Client }

func NewHTTPReferenceClient(baseURL string) *HTTPReferenceClient {
	return &HTTPReferenceClient{client: railhttp.NewClient(baseURL)}
}

func (h *HTTPReferenceClient) StanoxToTiplocs(ctx context.Context, stanox string) ([]string, error) {
	var tiplocs []string
	if err := h.client.Get(ctx, "/reference/stanox/"+stanox, &tiplocs); err != nil {
		return nil, err
	}
	return tiplocs, nil
}
