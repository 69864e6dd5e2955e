package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/orchestration"
	"github.com/zoff-tech/go-clearing/pkg/token"
)

// AccountRef identifies one account at a participating bank.
type AccountRef struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

// AccountValidation is the account service's verdict on one account.
type AccountValidation struct {
	AccountNumber string `json:"account_number"`
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
}

// AccountStatus reports whether an account can transact.
type AccountStatus struct {
	AccountNumber string `json:"account_number"`
	Status        string `json:"status"`
	Active        bool   `json:"active"`
}

// AccountBalance is the cleared balance of one account.
type AccountBalance struct {
	AccountNumber string  `json:"account_number"`
	Currency      string  `json:"currency"`
	Amount        float64 `json:"amount"`
}

// EnquiryReport aggregates the three stages of a full account enquiry.
type EnquiryReport struct {
	Validation AccountValidation `json:"validation"`
	Status     AccountStatus     `json:"status"`
	Balance    AccountBalance    `json:"balance"`
}

// AccountAdapter fronts the account service.
type AccountAdapter struct {
	*binding
}

func NewAccountAdapter(cfg config.AdapterSettings, tokens *token.CacheManager, client *http.Client) *AccountAdapter {
	return &AccountAdapter{binding: newBinding("account", cfg, tokens, client)}
}

// ValidateAccounts validates a batch of accounts in parallel. Results come
// back in submission order and one invalid or failing account never aborts
// the rest of the batch.
func (a *AccountAdapter) ValidateAccounts(ctx context.Context, accounts []AccountRef) orchestration.BatchResult[AccountValidation] {
	return orchestration.RunBatch(ctx, a.engine, a.key, "ValidateAccounts", accounts,
		func(ctx context.Context, account AccountRef) (AccountValidation, error) {
			var verdict AccountValidation
			err := a.postJSON(ctx, "ValidateAccounts", "/accounts/validate", account, &verdict)
			return verdict, err
		})
}

// AccountEnquiry runs the sequential validate, status, balance pipeline for
// one account. A failed stage aborts the remaining stages; completed stage
// outputs stay available on the returned result.
func (a *AccountAdapter) AccountEnquiry(ctx context.Context, account AccountRef) (EnquiryReport, orchestration.PipelineResult) {
	steps := []orchestration.Step{
		{
			Name: "ValidateAccount",
			Run: func(ctx context.Context, in any) (any, error) {
				ref := in.(AccountRef)
				var verdict AccountValidation
				if err := a.postJSON(ctx, "ValidateAccount", "/accounts/validate", ref, &verdict); err != nil {
					return nil, err
				}
				if !verdict.Valid {
					return nil, fmt.Errorf("account %s failed validation: %s", ref.AccountNumber, verdict.Reason)
				}
				return verdict, nil
			},
		},
		{
			Name: "AccountStatus",
			Run: func(ctx context.Context, in any) (any, error) {
				verdict := in.(AccountValidation)
				var status AccountStatus
				err := a.getJSON(ctx, "AccountStatus", "/accounts/"+verdict.AccountNumber+"/status", &status)
				return status, err
			},
		},
		{
			Name: "AccountBalance",
			Run: func(ctx context.Context, in any) (any, error) {
				status := in.(AccountStatus)
				var balance AccountBalance
				err := a.getJSON(ctx, "AccountBalance", "/accounts/"+status.AccountNumber+"/balance", &balance)
				return balance, err
			},
		},
	}

	result := a.engine.RunPipeline(ctx, a.key, account, steps)

	var report EnquiryReport
	if step, ok := result.Partial["ValidateAccount"]; ok {
		report.Validation = step.Output.(AccountValidation)
	}
	if step, ok := result.Partial["AccountStatus"]; ok {
		report.Status = step.Output.(AccountStatus)
	}
	if step, ok := result.Partial["AccountBalance"]; ok {
		report.Balance = step.Output.(AccountBalance)
	}
	return report, result
}
