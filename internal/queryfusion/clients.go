package queryfusion

import (
	"context"
	"fmt"

	"github.com/trainsplorer/railcore/internal/model"
	"github.com/trainsplorer/railcore/internal/railhttp"
)

// HTTPScheduleClient calls a running Schedule Store service.
type HTTPScheduleClient struct{ client *railhttp.Client }

func NewHTTPScheduleClient(baseURL string) *HTTPScheduleClient {
	return &HTTPScheduleClient{client: railhttp.NewClient(baseURL)}
}

func (h *HTTPScheduleClient) MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]ScheduleMatch, error) {
	path := fmt.Sprintf("/schedule-movements/through/%s/at/%s/within-secs/%d?date=%s", tiploc, center, windowSecs, date)
	var matches []ScheduleMatch
	if err := h.client.Get(ctx, path, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// HTTPTrainClient calls a running Running-Train Engine service.
type HTTPTrainClient struct{ client *railhttp.Client }

func NewHTTPTrainClient(baseURL string) *HTTPTrainClient {
	return &HTTPTrainClient{client: railhttp.NewClient(baseURL)}
}

func (h *HTTPTrainClient) MovementsThrough(ctx context.Context, tiploc string, date model.Date, center model.Time, windowSecs int) ([]TrainMatch, error) {
	path := fmt.Sprintf("/train-movements/through/%s/at/%s/within-secs/%d?date=%s", tiploc, center, windowSecs, date)
	var matches []TrainMatch
	if err := h.client.Get(ctx, path, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// HTTPReferenceClient calls a running Reference Resolver service.
type HTTPReferenceClient struct{ client *railhttp.Client }

func NewHTTPReferenceClient(baseURL string) *HTTPReferenceClient {
	return &HTTPReferenceClient{client: railhttp.NewClient(baseURL)}
}

type tiplocResponse struct {
	CRS  string `json:"crs"`
	Name string `json:"name"`
}

func (h *HTTPReferenceClient) TiplocName(ctx context.Context, tiploc string) (string, string, error) {
	var resp tiplocResponse
	if err := h.client.Get(ctx, "/reference/tiploc/"+tiploc, &resp); err != nil {
		return "", "", err
	}
	return resp.CRS, resp.Name, nil
}
