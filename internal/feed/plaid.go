package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/model"
	"github.com/Veraticus/docket/internal/service"
)

// PlaidConfig holds Plaid API configuration.
type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
}

// Validate ensures all required fields are present.
func (c *PlaidConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("plaid access token is required")
	}
	if c.Environment == "" {
		return fmt.Errorf("plaid environment is required")
	}

	validEnvs := map[string]bool{
		"sandbox":    true,
		"production": true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid Plaid environment: must be sandbox or production")
	}

	return nil
}

// PlaidSource pulls a date range of transactions from Plaid and yields
// one transaction_feed document per account.
type PlaidSource struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	accessToken string
	identity    string
	startDate   time.Time
	endDate     time.Time
}

// NewPlaidSource creates a Plaid-backed source for one identity and
// date range.
func NewPlaidSource(cfg PlaidConfig, identity string, startDate, endDate time.Time) (*PlaidSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &PlaidSource{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		identity:    identity,
		startDate:   startDate,
		endDate:     endDate,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Fetch pulls the configured date range and groups the transactions
// into one transaction_feed document per account.
func (s *PlaidSource) Fetch(ctx context.Context) ([]Item, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	s.logger.Info("Fetching transactions from Plaid",
		"start_date", s.startDate.Format("2006-01-02"),
		"end_date", s.endDate.Format("2006-01-02"))

	var allTransactions []plaid.Transaction
	offset := int32(0)
	const pageSize = int32(500) // Plaid's max page size

	for {
		var page []plaid.Transaction

		retryErr := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				s.accessToken,
				s.startDate.Format("2006-01-02"),
				s.endDate.Format("2006-01-02"),
			)
			options := plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			}
			request.SetOptions(options)

			resp, _, err := s.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				if plaidError := extractPlaidError(err); plaidError != nil {
					if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
						s.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
						return &common.RetryableError{Err: err, Retryable: true}
					}
					return fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage)
				}
				return fmt.Errorf("failed to fetch transactions: %w", err)
			}

			page = resp.GetTransactions()

			s.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())

			return nil
		}, s.retryOpts)

		if retryErr != nil {
			return nil, retryErr
		}

		allTransactions = append(allTransactions, page...)

		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	s.logger.Info("Fetched all transactions", "count", len(allTransactions))

	return s.groupByAccount(allTransactions), nil
}

// Accounts fetches the account IDs reachable with the access token.
func (s *PlaidSource) Accounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	var accounts []plaid.AccountBase
	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(s.accessToken)
		resp, _, err := s.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			if plaidError := extractPlaidError(err); plaidError != nil {
				if plaidError.ErrorCode == "RATE_LIMIT_EXCEEDED" {
					s.logger.Warn("Rate limit hit, will retry", "error", plaidError.ErrorMessage)
					return &common.RetryableError{Err: err, Retryable: true}
				}
				return fmt.Errorf("plaid API error: %s - %s", plaidError.ErrorCode, plaidError.ErrorMessage)
			}
			return fmt.Errorf("failed to fetch accounts: %w", err)
		}

		accounts = resp.GetAccounts()
		return nil
	}, s.retryOpts)

	if retryErr != nil {
		return nil, retryErr
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.GetAccountId())
	}
	return accountIDs, nil
}

// groupByAccount builds one transaction_feed document per account, in
// stable account order. Plaid reports positive amounts for money
// leaving the account; rows keep the statement convention of deposits
// positive, so the sign is flipped.
func (s *PlaidSource) groupByAccount(transactions []plaid.Transaction) []Item {
	rowsByAccount := make(map[string][]any)
	for _, pt := range transactions {
		description := pt.GetMerchantName()
		if description == "" {
			description = pt.GetName()
		}
		row := map[string]any{
			"date":        pt.GetDate(),
			"description": description,
			"amount":      -pt.GetAmount(),
		}
		accountID := pt.GetAccountId()
		rowsByAccount[accountID] = append(rowsByAccount[accountID], row)
	}

	accountIDs := make([]string, 0, len(rowsByAccount))
	for accountID := range rowsByAccount {
		accountIDs = append(accountIDs, accountID)
	}
	sort.Strings(accountIDs)

	items := make([]Item, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		items = append(items, Item{
			Record: model.DocumentRecord{
				"account_id":   accountID,
				"transactions": rowsByAccount[accountID],
			},
			Identity:     s.identity,
			DocumentType: model.DocTypeTransactionFeed,
		})
	}
	return items
}

// extractPlaidError attempts to extract a structured Plaid error from a
// generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	return &plaidErr
}
