package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/croftlabs/certbill/internal/app"
	"github.com/croftlabs/certbill/internal/domain"
)

// AccountResponse is the API representation of a CA account.
type AccountResponse struct {
	ID                string `json:"id" doc:"Unique identifier"`
	PartnerID         string `json:"partner_id" doc:"Owning partner"`
	ClientName        string `json:"client_name" doc:"End client display name"`
	Status            string `json:"status" doc:"Lifecycle state"`
	CertificateType   string `json:"certificate_type" doc:"DV or OV"`
	SubscriptionYears int    `json:"subscription_years" doc:"Subscription length"`
	StartDate         string `json:"start_date,omitempty" doc:"Billing period start (set while active)"`
	EndDate           string `json:"end_date,omitempty" doc:"Billing period end (set while active)"`
}

func toAccountResponse(a domain.Account) AccountResponse {
	resp := AccountResponse{
		ID:                a.ID,
		PartnerID:         a.PartnerID,
		ClientName:        a.ClientName,
		Status:            string(a.Status),
		CertificateType:   string(a.CertificateType),
		SubscriptionYears: a.SubscriptionYears,
	}
	if a.StartDate != nil {
		resp.StartDate = a.StartDate.Format(time.RFC3339)
	}
	if a.EndDate != nil {
		resp.EndDate = a.EndDate.Format(time.RFC3339)
	}
	return resp
}

// --- Submit Domain Batch ---

type SubmitBatchInput struct {
	AccountID string `path:"id" doc:"Account ID"`
	Actor     string `header:"X-Actor" required:"false" default:"api" doc:"Acting identity, resolved upstream"`
	Body      struct {
		Domains []struct {
			Name string `json:"name" minLength:"1" maxLength:"253" doc:"Fully qualified domain name"`
			Type string `json:"type,omitempty" default:"single" enum:"single,wildcard" doc:"Coverage type"`
		} `json:"domains" minItems:"1" doc:"Candidate domains"`
	}
}

type DomainResultResponse struct {
	Domain  string `json:"domain" doc:"Submitted name"`
	Success bool   `json:"success" doc:"Whether provisioning landed"`
	Error   string `json:"error,omitempty" doc:"Failure reason"`
}

type SubmitBatchOutput struct {
	Body struct {
		Results   []DomainResultResponse `json:"results"`
		Succeeded int                    `json:"succeeded"`
		Failed    int                    `json:"failed"`
	}
}

// --- Remove Domain ---

type RemoveDomainInput struct {
	ID    string `path:"id" doc:"Domain ID"`
	Actor string `header:"X-Actor" required:"false" default:"api" doc:"Acting identity, resolved upstream"`
}

type RemoveDomainOutput struct {
	Body struct {
		Refunded            bool   `json:"refunded" doc:"Whether a refund was issued"`
		DaysSinceAdded      int    `json:"days_since_added"`
		RefundTransactionID string `json:"refund_transaction_id,omitempty"`
	}
}

// --- Get Account ---

type GetAccountInput struct {
	ID string `path:"id" doc:"Account ID"`
}

type GetAccountOutput struct {
	Body AccountResponse
}

// --- Partner Credit ---

type PartnerCreditInput struct {
	ID string `path:"id" doc:"Partner ID"`
}

type PartnerCreditOutput struct {
	Body struct {
		Unlimited bool  `json:"unlimited" doc:"True for post-paid partners"`
		Limit     int64 `json:"limit"`
		Used      int64 `json:"used"`
		Available int64 `json:"available"`
	}
}

// Register adds all billing API routes to the Huma API.
func Register(api huma.API, saga *app.ProvisioningSaga, refunds *app.RefundEngine, lifecycle *app.AccountLifecycle, credit *app.CreditGuard) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-domain-batch",
		Method:      http.MethodPost,
		Path:        "/api/v1/accounts/{id}/domains",
		Summary:     "Provision a batch of domains under an account",
		Tags:        []string{"Domains"},
	}, func(ctx context.Context, input *SubmitBatchInput) (*SubmitBatchOutput, error) {
		reqs := make([]app.DomainRequest, len(input.Body.Domains))
		for i, d := range input.Body.Domains {
			reqs[i] = app.DomainRequest{Name: d.Name, Type: domain.DomainType(d.Type)}
		}

		batch, err := saga.SubmitDomainBatch(ctx, input.Actor, input.AccountID, reqs)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &SubmitBatchOutput{}
		out.Body.Succeeded = batch.Succeeded
		out.Body.Failed = batch.Failed
		out.Body.Results = make([]DomainResultResponse, len(batch.Results))
		for i, r := range batch.Results {
			out.Body.Results[i] = DomainResultResponse(r)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-domain",
		Method:      http.MethodDelete,
		Path:        "/api/v1/domains/{id}",
		Summary:     "Remove a domain, refunding inside the 30-day window",
		Tags:        []string{"Domains"},
	}, func(ctx context.Context, input *RemoveDomainInput) (*RemoveDomainOutput, error) {
		result, err := refunds.Remove(ctx, input.Actor, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &RemoveDomainOutput{}
		out.Body.Refunded = result.Refunded
		out.Body.DaysSinceAdded = result.DaysSinceAdded
		out.Body.RefundTransactionID = result.RefundTransactionID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts/{id}",
		Summary:     "Get an account by ID",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *GetAccountInput) (*GetAccountOutput, error) {
		account, err := lifecycle.Account(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetAccountOutput{Body: toAccountResponse(account)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-partner-credit",
		Method:      http.MethodGet,
		Path:        "/api/v1/partners/{id}/credit",
		Summary:     "Get a partner's credit position",
		Tags:        []string{"Partners"},
	}, func(ctx context.Context, input *PartnerCreditInput) (*PartnerCreditOutput, error) {
		status, err := credit.Status(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &PartnerCreditOutput{}
		out.Body.Unlimited = status.Unlimited
		out.Body.Limit = status.Limit
		out.Body.Used = status.Used
		out.Body.Available = status.Available
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrDomainNotFound),
		errors.Is(err, domain.ErrPartnerNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrAlreadyRemoved):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, domain.ErrNotSettled):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	var creditErr *domain.CreditError
	if errors.As(err, &creditErr) {
		return huma.NewError(http.StatusPaymentRequired, creditErr.Error())
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error422UnprocessableEntity(valErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var intErr *domain.IntegrityError
	if errors.As(err, &intErr) {
		return huma.Error500InternalServerError(intErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
