package feed

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/docket/internal/model"
)

// SimpleFINSource pulls account transactions from a SimpleFIN bridge.
// Auth is a one-time claim: the setup token decodes to a claim URL that
// is exchanged for a long-lived access URL, persisted locally so the
// single-use token is only claimed once.
type SimpleFINSource struct {
	client    *http.Client
	logger    *slog.Logger
	accessURL string
	identity  string
	startDate time.Time
	endDate   time.Time
}

// simplefinAccountSet mirrors the SimpleFIN /accounts response.
type simplefinAccountSet struct {
	Accounts []simplefinAccount `json:"accounts"`
}

type simplefinAccount struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Balance      string                 `json:"balance"`
	Transactions []simplefinTransaction `json:"transactions"`
}

type simplefinTransaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// NewSimpleFINSource claims the setup token if no saved access URL
// exists and returns a source covering [startDate, endDate].
func NewSimpleFINSource(token, identity string, startDate, endDate time.Time) (*SimpleFINSource, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("simplefin token is required")
	}
	if strings.TrimSpace(identity) == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if !startDate.Before(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	accessURL, err := loadOrClaimAccess(token)
	if err != nil {
		return nil, err
	}

	return &SimpleFINSource{
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    slog.Default().With("component", "simplefin"),
		accessURL: accessURL,
		identity:  identity,
		startDate: startDate,
		endDate:   endDate,
	}, nil
}

// Fetch pulls the configured date range and groups the transactions
// into one transaction_feed document per account. SimpleFIN reports
// negative amounts for money leaving the account, which already matches
// the statement convention, so amounts pass through unchanged.
func (s *SimpleFINSource) Fetch(ctx context.Context) ([]Item, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	s.logger.Info("Fetching transactions from SimpleFIN",
		"start_date", s.startDate.Format("2006-01-02"),
		"end_date", s.endDate.Format("2006-01-02"))

	set, err := s.fetchAccounts(ctx, true)
	if err != nil {
		return nil, err
	}

	accounts := append([]simplefinAccount(nil), set.Accounts...)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	items := make([]Item, 0, len(accounts))
	for _, account := range accounts {
		rows := make([]any, 0, len(account.Transactions))
		for _, tx := range account.Transactions {
			if tx.Pending {
				continue
			}
			posted := time.Unix(tx.Posted, 0).UTC()
			if posted.Before(s.startDate) || posted.After(s.endDate) {
				continue
			}
			amount, parseErr := parseSimpleFINAmount(tx.Amount)
			if parseErr != nil {
				return nil, fmt.Errorf("account %s: %w", account.ID, parseErr)
			}
			rows = append(rows, map[string]any{
				"date":        posted.Format("2006-01-02"),
				"description": simplefinDescription(tx),
				"amount":      amount,
			})
		}
		if len(rows) == 0 {
			continue
		}

		record := model.DocumentRecord{
			"account_id":   account.ID,
			"transactions": rows,
		}
		if balance, balErr := parseSimpleFINAmount(account.Balance); balErr == nil {
			record["ending_balance"] = balance
		}
		items = append(items, Item{
			Record:       record,
			Identity:     s.identity,
			DocumentType: model.DocTypeTransactionFeed,
		})
	}

	s.logger.Info("Fetched SimpleFIN accounts",
		"accounts", len(set.Accounts),
		"documents", len(items))

	return items, nil
}

// Accounts lists the account IDs reachable with the access URL.
func (s *SimpleFINSource) Accounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	set, err := s.fetchAccounts(ctx, false)
	if err != nil {
		return nil, err
	}

	accountIDs := make([]string, 0, len(set.Accounts))
	for _, account := range set.Accounts {
		accountIDs = append(accountIDs, account.ID)
	}
	sort.Strings(accountIDs)
	return accountIDs, nil
}

func (s *SimpleFINSource) fetchAccounts(ctx context.Context, withRange bool) (*simplefinAccountSet, error) {
	u, err := url.Parse(s.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("invalid access URL: %w", err)
	}
	if withRange {
		q := u.Query()
		q.Set("start-date", strconv.FormatInt(s.startDate.Unix(), 10))
		// SimpleFIN's end-date is exclusive.
		q.Set("end-date", strconv.FormatInt(s.endDate.AddDate(0, 0, 1).Unix(), 10))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, string(body))
	}

	var set simplefinAccountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &set, nil
}

// parseSimpleFINAmount parses the decimal amount strings SimpleFIN
// reports, keeping the sign.
func parseSimpleFINAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

func simplefinDescription(tx simplefinTransaction) string {
	if d := strings.TrimSpace(tx.Description); d != "" {
		return d
	}
	return strings.TrimSpace(tx.Payee)
}

// accessState is the locally persisted outcome of a token claim.
type accessState struct {
	ClaimedAt   time.Time `json:"claimed_at"`
	AccessURL   string    `json:"access_url"`
	TokenDigest string    `json:"token_digest"`
}

// loadOrClaimAccess returns the saved access URL for this installation,
// claiming the setup token on first use.
func loadOrClaimAccess(token string) (string, error) {
	statePath, err := accessStatePath()
	if err != nil {
		return "", fmt.Errorf("failed to resolve simplefin state path: %w", err)
	}

	if state, loadErr := loadAccessState(statePath); loadErr == nil && state.AccessURL != "" {
		slog.Debug("Using saved SimpleFIN access URL",
			"claimed_at", state.ClaimedAt.Format("2006-01-02"))
		return state.AccessURL, nil
	}

	accessURL, err := claimAccessURL(token)
	if err != nil {
		return "", err
	}

	state := &accessState{
		AccessURL:   accessURL,
		ClaimedAt:   time.Now().UTC(),
		TokenDigest: digestToken(token),
	}
	if err := saveAccessState(statePath, state); err != nil {
		return "", fmt.Errorf("failed to save simplefin access state: %w", err)
	}

	slog.Info("Claimed SimpleFIN access URL", "state_file", statePath)
	return accessURL, nil
}

// claimAccessURL decodes the base64 setup token into a claim URL and
// posts to it, receiving the long-lived access URL.
func claimAccessURL(token string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("failed to decode SimpleFIN token: %w", err)
		}
	}

	claimURL := strings.TrimSpace(string(decoded))
	if !strings.HasPrefix(claimURL, "http://") && !strings.HasPrefix(claimURL, "https://") {
		return "", fmt.Errorf("decoded SimpleFIN token is not a claim URL")
	}

	req, err := http.NewRequest(http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim access URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("SimpleFIN claim failed: %d - %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read access URL: %w", err)
	}

	accessURL := strings.TrimSpace(string(body))
	if !strings.HasPrefix(accessURL, "http://") && !strings.HasPrefix(accessURL, "https://") {
		return "", fmt.Errorf("invalid access URL received from claim")
	}
	return accessURL, nil
}

func accessStatePath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	dir := filepath.Join(dataDir, "docket")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "simplefin_access.json"), nil
}

func loadAccessState(path string) (*accessState, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is under the local data directory
	if err != nil {
		return nil, err
	}

	var state accessState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func saveAccessState(path string, state *accessState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// digestToken stores a short fingerprint of the claimed token so a
// changed token in config is detectable without persisting the secret.
func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
