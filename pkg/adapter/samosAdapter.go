package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/resilience"
	"github.com/zoff-tech/go-clearing/pkg/store"
	"github.com/zoff-tech/go-clearing/pkg/token"
	"github.com/zoff-tech/go-clearing/pkg/uetr"
)

// SettlementStatusResult reports where a settlement stands. Degraded results
// come from the local tracking log when SAMOS itself is unreachable.
type SettlementStatusResult struct {
	Uetr     string `json:"uetr"`
	Status   string `json:"status"`
	Degraded bool   `json:"degraded,omitempty"`
}

// SamosAdapter fronts SAMOS for high-value interbank settlement.
type SamosAdapter struct {
	*binding
	uetrs *uetr.Service
}

func NewSamosAdapter(cfg config.AdapterSettings, tokens *token.CacheManager, uetrs *uetr.Service, client *http.Client) *SamosAdapter {
	return &SamosAdapter{
		binding: newBinding("samos", cfg, tokens, client),
		uetrs:   uetrs,
	}
}

// SubmitSettlement submits a pacs.008 to SAMOS under its carried or a
// generated UETR, with an outbound tracking record appended before the call.
func (a *SamosAdapter) SubmitSettlement(ctx context.Context, message []byte) (SubmissionResult, error) {
	const operation = "SubmitSettlement"

	candidate, _ := uetr.Extract(message, uetr.MsgPacs008)
	id, source := a.uetrs.GetOrGenerate(uetr.MsgPacs008, a.tenantID, candidate)

	if err := a.uetrs.Track(ctx, id, uetr.MsgPacs008, a.tenantID, messageID(message, uetr.MsgPacs008), store.DirectionOutbound, source); err != nil {
		return SubmissionResult{}, fmt.Errorf("tracking %s: %w", id, err)
	}

	ack, err := resilience.Execute(ctx, a.engine.Executor(), a.key, operation, func(ctx context.Context) (Ack, error) {
		var ack Ack
		err := a.postJSON(ctx, operation, "/settlements", submission{Uetr: id, Message: message}, &ack)
		return ack, err
	})
	if err != nil {
		classified := resilience.Classify(err, operation, id)
		if updateErr := a.uetrs.UpdateStatus(ctx, id, store.StatusFailed, string(classified.Kind), a.key); updateErr != nil {
			classified.Err = fmt.Errorf("%w (status update also failed: %v)", classified.Err, updateErr)
		}
		return SubmissionResult{}, classified
	}

	if err := a.uetrs.UpdateStatus(ctx, id, store.StatusProcessing, "submitted for settlement", a.key); err != nil {
		return SubmissionResult{}, err
	}
	return SubmissionResult{Uetr: id, Source: source, Acknowledgement: ack}, nil
}

// SettlementStatus queries SAMOS for a settlement's status. When SAMOS is
// unreachable or its circuit is open, the last locally tracked status is
// returned instead, marked degraded so callers can tell the two apart.
func (a *SamosAdapter) SettlementStatus(ctx context.Context, id string) (SettlementStatusResult, error) {
	const operation = "SettlementStatus"

	if !uetr.Validate(id) {
		return SettlementStatusResult{}, resilience.NewError(resilience.KindValidation, operation, id,
			fmt.Errorf("malformed UETR %q", id))
	}

	result, degraded, err := resilience.ExecuteWithFallback(ctx, a.engine.Executor(), a.key, operation,
		func(ctx context.Context) (SettlementStatusResult, error) {
			var status SettlementStatusResult
			err := a.getJSON(ctx, operation, "/settlements/"+id+"/status", &status)
			return status, err
		},
		func(ctx context.Context, cause *resilience.AdapterError) (SettlementStatusResult, error) {
			return a.lastTrackedStatus(ctx, id)
		})
	if err != nil {
		return SettlementStatusResult{}, resilience.Classify(err, operation, id)
	}
	result.Uetr = id
	result.Degraded = degraded
	return result, nil
}

func (a *SamosAdapter) lastTrackedStatus(ctx context.Context, id string) (SettlementStatusResult, error) {
	history, err := a.uetrs.History(ctx, id)
	if err != nil {
		return SettlementStatusResult{}, err
	}
	if len(history) == 0 {
		return SettlementStatusResult{}, fmt.Errorf("no tracking history for %s", id)
	}
	latest := history[len(history)-1]
	return SettlementStatusResult{Uetr: id, Status: string(latest.Status)}, nil
}
