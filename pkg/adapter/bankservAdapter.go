package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/resilience"
	"github.com/zoff-tech/go-clearing/pkg/store"
	"github.com/zoff-tech/go-clearing/pkg/token"
	"github.com/zoff-tech/go-clearing/pkg/uetr"
)

// SubmissionResult reports a successful submission to a clearing system.
type SubmissionResult struct {
	Uetr            string       `json:"uetr"`
	Source          store.Source `json:"uetr_source"`
	Acknowledgement Ack          `json:"acknowledgement"`
}

// Ack is the clearing system's synchronous acknowledgement.
type Ack struct {
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

// StatusReportResult is the outcome of processing an inbound pacs.002.
type StatusReportResult struct {
	Uetr              string               `json:"uetr"`
	TransactionStatus string               `json:"transaction_status"`
	TrackingStatus    store.TrackingStatus `json:"tracking_status"`
}

// BankservAdapter fronts BankservAfrica for retail credit transfers.
type BankservAdapter struct {
	*binding
	uetrs *uetr.Service
}

func NewBankservAdapter(cfg config.AdapterSettings, tokens *token.CacheManager, uetrs *uetr.Service, client *http.Client) *BankservAdapter {
	return &BankservAdapter{
		binding: newBinding("bankserv", cfg, tokens, client),
		uetrs:   uetrs,
	}
}

// SubmitCreditTransfer submits a pain.001 to BankservAfrica. The message
// travels under its own UETR when it carries a well-formed one, otherwise
// under a freshly generated reference; either way an outbound tracking record
// is appended before the remote call, so even a failed submission is
// traceable.
func (a *BankservAdapter) SubmitCreditTransfer(ctx context.Context, message []byte) (SubmissionResult, error) {
	const operation = "SubmitCreditTransfer"

	candidate, _ := uetr.Extract(message, uetr.MsgPain001)
	id, source := a.uetrs.GetOrGenerate(uetr.MsgPain001, a.tenantID, candidate)

	if err := a.uetrs.Track(ctx, id, uetr.MsgPain001, a.tenantID, messageID(message, uetr.MsgPain001), store.DirectionOutbound, source); err != nil {
		return SubmissionResult{}, fmt.Errorf("tracking %s: %w", id, err)
	}

	ack, err := resilience.Execute(ctx, a.engine.Executor(), a.key, operation, func(ctx context.Context) (Ack, error) {
		var ack Ack
		err := a.postJSON(ctx, operation, "/credit-transfers", submission{Uetr: id, Message: message}, &ack)
		return ack, err
	})
	if err != nil {
		classified := resilience.Classify(err, operation, id)
		if updateErr := a.uetrs.UpdateStatus(ctx, id, store.StatusFailed, string(classified.Kind), a.key); updateErr != nil {
			classified.Err = fmt.Errorf("%w (status update also failed: %v)", classified.Err, updateErr)
		}
		return SubmissionResult{}, classified
	}

	if err := a.uetrs.UpdateStatus(ctx, id, store.StatusProcessing, "submitted to clearing", a.key); err != nil {
		return SubmissionResult{}, err
	}
	return SubmissionResult{Uetr: id, Source: source, Acknowledgement: ack}, nil
}

// HandleStatusReport processes an inbound pacs.002 status report: the
// original UETR is extracted, an inbound tracking record appended, and the
// tracked status moved to COMPLETED or FAILED per the transaction status
// code. A report without a resolvable UETR is rejected as VALIDATION.
func (a *BankservAdapter) HandleStatusReport(ctx context.Context, message []byte) (StatusReportResult, error) {
	const operation = "HandleStatusReport"

	id, ok := uetr.Extract(message, uetr.MsgPacs002)
	if !ok {
		return StatusReportResult{}, resilience.NewError(resilience.KindValidation, operation, "",
			fmt.Errorf("status report carries no resolvable UETR"))
	}

	var report statusReport
	if err := json.Unmarshal(message, &report); err != nil {
		return StatusReportResult{}, resilience.NewError(resilience.KindValidation, operation, id, err)
	}

	if err := a.uetrs.Track(ctx, id, uetr.MsgPacs002, a.tenantID, messageID(message, uetr.MsgPacs002), store.DirectionInbound, store.SourceExternal); err != nil {
		return StatusReportResult{}, fmt.Errorf("tracking %s: %w", id, err)
	}

	txStatus, reason := report.transactionStatus()
	tracked := trackingStatusFor(txStatus)
	if err := a.uetrs.UpdateStatus(ctx, id, tracked, reason, a.key); err != nil {
		return StatusReportResult{}, err
	}

	return StatusReportResult{Uetr: id, TransactionStatus: txStatus, TrackingStatus: tracked}, nil
}

type submission struct {
	Uetr    string          `json:"uetr"`
	Message json.RawMessage `json:"message"`
}

// statusReport decodes the pacs.002 fields this adapter acts on.
type statusReport struct {
	Document struct {
		FIToFIPmtStsRpt struct {
			TxInfAndSts []struct {
				TxSts     string `json:"TxSts"`
				StsRsnInf []struct {
					Rsn struct {
						Cd string `json:"Cd"`
					} `json:"Rsn"`
				} `json:"StsRsnInf"`
			} `json:"TxInfAndSts"`
		} `json:"FIToFIPmtStsRpt"`
	} `json:"Document"`
}

func (r statusReport) transactionStatus() (status, reason string) {
	infos := r.Document.FIToFIPmtStsRpt.TxInfAndSts
	if len(infos) == 0 {
		return "", ""
	}
	status = infos[0].TxSts
	if len(infos[0].StsRsnInf) > 0 {
		reason = infos[0].StsRsnInf[0].Rsn.Cd
	}
	return status, reason
}

// trackingStatusFor maps ISO 20022 transaction status codes onto the
// tracking lifecycle. Settled statuses complete the UETR, a rejection fails
// it, everything else (accepted, pending variants) keeps it processing.
func trackingStatusFor(txStatus string) store.TrackingStatus {
	switch txStatus {
	case "ACSC", "ACCC":
		return store.StatusCompleted
	case "RJCT":
		return store.StatusFailed
	default:
		return store.StatusProcessing
	}
}

// messageID pulls the group header MsgId so tracking records reference the
// originating message; messages without one get a synthetic reference.
func messageID(message []byte, messageType string) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(message, &probe); err != nil {
		return uuid.NewString()
	}

	root := probe
	if messageType == uetr.MsgPacs002 {
		var inner map[string]json.RawMessage
		if raw, ok := probe["Document"]; ok && json.Unmarshal(raw, &inner) == nil {
			root = inner
		}
	}

	for _, raw := range root {
		var body struct {
			GrpHdr struct {
				MsgId string `json:"MsgId"`
			} `json:"GrpHdr"`
		}
		if json.Unmarshal(raw, &body) == nil && body.GrpHdr.MsgId != "" {
			return body.GrpHdr.MsgId
		}
	}
	return uuid.NewString()
}
