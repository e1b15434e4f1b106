package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// HTTPAdvisor asks an external decision service for a recommendation
type HTTPAdvisor struct {
	client   *resty.Client
	endpoint string
	guard    guard
}

// NewHTTPAdvisor creates an advisor posting to endpoint
func NewHTTPAdvisor(endpoint, apiKey string, opts Options) *HTTPAdvisor {
	client := newRestyClient(opts.BaseURL, opts.Timeout)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPAdvisor{client: client, endpoint: endpoint, guard: newGuard("advisor", opts)}
}

type advisoryDecision struct {
	Symbol         string  `json:"symbol"`
	Action         string  `json:"action"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	Reasoning      string  `json:"reasoning"`
}

type advisoryResponse struct {
	Decisions []advisoryDecision `json:"decisions"`
	advisoryDecision
}

// Recommend posts the cycle context and parses the structured answer
func (a *HTTPAdvisor) Recommend(ctx context.Context, req types.AdvisoryRequest) (types.Recommendation, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return types.Recommendation{}, fmt.Errorf("failed to encode advisory context: %w", err)
	}

	var rec types.Recommendation
	err = a.guard.run(ctx, "recommend", func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"context": string(payload)}).
			Post(a.endpoint)
		if err != nil {
			return err
		}
		if err := statusError(resp); err != nil {
			return err
		}

		rec, err = parseAdvisory(resp.Body(), req.Symbol)
		return err
	})
	return rec, err
}

func parseAdvisory(body []byte, symbol string) (types.Recommendation, error) {
	var resp advisoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.Recommendation{}, fmt.Errorf("failed to decode advisory response: %w", err)
	}

	decision, ok := pickDecision(resp, symbol)
	if !ok {
		return types.Recommendation{}, fmt.Errorf("failed to decode advisory response: no decision for %s", symbol)
	}

	action := decision.Action
	if action == "" {
		action = decision.Recommendation
	}
	reason := decision.Reason
	if reason == "" {
		reason = decision.Reasoning
	}

	confidence := decision.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return types.Recommendation{
		Symbol:     symbol,
		Action:     types.ParseAction(action),
		Confidence: confidence,
		Rationale:  reason,
	}, nil
}

func pickDecision(resp advisoryResponse, symbol string) (advisoryDecision, bool) {
	if len(resp.Decisions) > 0 {
		for _, d := range resp.Decisions {
			if strings.EqualFold(d.Symbol, symbol) {
				return d, true
			}
		}
		if len(resp.Decisions) == 1 && resp.Decisions[0].Symbol == "" {
			return resp.Decisions[0], true
		}
		return advisoryDecision{}, false
	}
	flat := resp.advisoryDecision
	if flat.Action == "" && flat.Recommendation == "" {
		return advisoryDecision{}, false
	}
	if flat.Symbol != "" && !strings.EqualFold(flat.Symbol, symbol) {
		return advisoryDecision{}, false
	}
	return flat, true
}
