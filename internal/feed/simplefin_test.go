package feed

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/docket/internal/model"
)

func simplefinTestSource(t *testing.T, serverURL string) *SimpleFINSource {
	t.Helper()
	return &SimpleFINSource{
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    slog.Default(),
		accessURL: serverURL,
		identity:  "Cassie Holt",
		startDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		endDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewSimpleFINSource_Validation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		token    string
		identity string
		start    time.Time
		end      time.Time
		errMsg   string
	}{
		{
			name:     "missing token",
			token:    "",
			identity: "Cassie Holt",
			start:    start,
			end:      end,
			errMsg:   "simplefin token is required",
		},
		{
			name:     "missing identity",
			token:    "some-token",
			identity: "  ",
			start:    start,
			end:      end,
			errMsg:   "identity is required",
		},
		{
			name:     "inverted date range",
			token:    "some-token",
			identity: "Cassie Holt",
			start:    end,
			end:      start,
			errMsg:   "start date must be before end date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := NewSimpleFINSource(tt.token, tt.identity, tt.start, tt.end)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Nil(t, source)
		})
	}
}

func TestClaimAccessURL(t *testing.T) {
	accessServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer accessServer.Close()

	claimServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(accessServer.URL + "\n"))
	}))
	defer claimServer.Close()

	t.Run("successful claim", func(t *testing.T) {
		token := base64.URLEncoding.EncodeToString([]byte(claimServer.URL))
		accessURL, err := claimAccessURL(token)
		require.NoError(t, err)
		assert.Equal(t, accessServer.URL, accessURL)
	})

	t.Run("standard encoding accepted", func(t *testing.T) {
		token := base64.StdEncoding.EncodeToString([]byte(claimServer.URL))
		accessURL, err := claimAccessURL(token)
		require.NoError(t, err)
		assert.Equal(t, accessServer.URL, accessURL)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := claimAccessURL("not!!valid!!base64")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode SimpleFIN token")
	})

	t.Run("decoded token is not a URL", func(t *testing.T) {
		token := base64.URLEncoding.EncodeToString([]byte("hello world"))
		_, err := claimAccessURL(token)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a claim URL")
	})

	t.Run("claim rejected", func(t *testing.T) {
		denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "token already claimed", http.StatusForbidden)
		}))
		defer denied.Close()

		token := base64.URLEncoding.EncodeToString([]byte(denied.URL))
		_, err := claimAccessURL(token)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SimpleFIN claim failed")
	})
}

func TestLoadOrClaimAccess_ReusesSavedState(t *testing.T) {
	oldDataHome := os.Getenv("XDG_DATA_HOME")
	defer func() { _ = os.Setenv("XDG_DATA_HOME", oldDataHome) }()
	require.NoError(t, os.Setenv("XDG_DATA_HOME", t.TempDir()))

	claims := 0
	claimServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		claims++
		_, _ = w.Write([]byte("https://bridge.example.com/access/abc123"))
	}))
	defer claimServer.Close()

	token := base64.URLEncoding.EncodeToString([]byte(claimServer.URL))

	accessURL, err := loadOrClaimAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "https://bridge.example.com/access/abc123", accessURL)
	assert.Equal(t, 1, claims)

	statePath, err := accessStatePath()
	require.NoError(t, err)
	data, err := os.ReadFile(statePath) // #nosec G304 -- test-owned temp path
	require.NoError(t, err)
	var state accessState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, "https://bridge.example.com/access/abc123", state.AccessURL)
	assert.Len(t, state.TokenDigest, 16)
	assert.NotEqual(t, token, state.TokenDigest)

	// Second call must use the saved access URL, not claim again.
	accessURL, err = loadOrClaimAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "https://bridge.example.com/access/abc123", accessURL)
	assert.Equal(t, 1, claims)
}

func TestLoadOrClaimAccess_CorruptStateReclaims(t *testing.T) {
	oldDataHome := os.Getenv("XDG_DATA_HOME")
	defer func() { _ = os.Setenv("XDG_DATA_HOME", oldDataHome) }()
	dataHome := t.TempDir()
	require.NoError(t, os.Setenv("XDG_DATA_HOME", dataHome))

	stateDir := filepath.Join(dataHome, "docket")
	require.NoError(t, os.MkdirAll(stateDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "simplefin_access.json"), []byte("{broken"), 0600))

	claimServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("https://bridge.example.com/access/fresh"))
	}))
	defer claimServer.Close()

	token := base64.URLEncoding.EncodeToString([]byte(claimServer.URL))
	accessURL, err := loadOrClaimAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "https://bridge.example.com/access/fresh", accessURL)
}

func TestSimpleFINSource_Fetch(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	set := simplefinAccountSet{
		Accounts: []simplefinAccount{
			{
				ID:      "acct-2",
				Name:    "Savings",
				Balance: "8000.00",
				Transactions: []simplefinTransaction{
					{
						ID:          "t-10",
						Posted:      time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC).Unix(),
						Amount:      "250.00",
						Description: "TRANSFER FROM CHECKING",
					},
				},
			},
			{
				ID:      "acct-1",
				Name:    "Checking",
				Balance: "1250.75",
				Transactions: []simplefinTransaction{
					{
						ID:          "t-1",
						Posted:      time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Unix(),
						Amount:      "-45.20",
						Description: "ACME HARDWARE",
					},
					{
						ID:     "t-2",
						Posted: time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC).Unix(),
						Amount: "1500.00",
						Payee:  "EMPLOYER PAYROLL",
					},
					{
						ID:          "t-3",
						Posted:      time.Date(2024, 1, 18, 8, 0, 0, 0, time.UTC).Unix(),
						Amount:      "-12.00",
						Description: "COFFEE CART",
						Pending:     true,
					},
					{
						ID:          "t-4",
						Posted:      time.Date(2023, 12, 15, 8, 0, 0, 0, time.UTC).Unix(),
						Amount:      "-99.00",
						Description: "LAST YEAR",
					},
				},
			},
			{
				ID:      "acct-3",
				Name:    "Dormant",
				Balance: "0.00",
				Transactions: []simplefinTransaction{
					{
						ID:          "t-20",
						Posted:      time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC).Unix(),
						Amount:      "-5.00",
						Description: "PENDING HOLD",
						Pending:     true,
					},
				},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, strconv.FormatInt(start.Unix(), 10), r.URL.Query().Get("start-date"))
		// end-date is exclusive, so the source asks for one day past the range.
		assert.Equal(t, strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10), r.URL.Query().Get("end-date"))
		require.NoError(t, json.NewEncoder(w).Encode(set))
	}))
	defer server.Close()

	source := simplefinTestSource(t, server.URL)
	items, err := source.Fetch(context.Background())
	require.NoError(t, err)

	// acct-3 has only a pending transaction and yields no document.
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Cassie Holt", first.Identity)
	assert.Equal(t, model.DocTypeTransactionFeed, first.DocumentType)
	accountID, ok := first.Record.String("account_id")
	require.True(t, ok)
	assert.Equal(t, "acct-1", accountID)

	balance, ok := first.Record.Number("ending_balance")
	require.True(t, ok)
	assert.InDelta(t, 1250.75, balance, 0.001)

	rows, ok := first.Record.Transactions("transactions")
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "ACME HARDWARE", rows[0].Description)
	assert.InDelta(t, -45.20, rows[0].Amount, 0.001)
	assert.True(t, rows[0].AmountValid)
	assert.Equal(t, "2024-01-15", rows[0].RawDate)
	assert.True(t, rows[0].DateValid)
	assert.Equal(t, "EMPLOYER PAYROLL", rows[1].Description)
	assert.InDelta(t, 1500.00, rows[1].Amount, 0.001)

	second := items[1]
	accountID, ok = second.Record.String("account_id")
	require.True(t, ok)
	assert.Equal(t, "acct-2", accountID)
	rows, ok = second.Record.Transactions("transactions")
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.InDelta(t, 250.00, rows[0].Amount, 0.001)
}

func TestSimpleFINSource_Fetch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "access revoked", http.StatusForbidden)
	}))
	defer server.Close()

	source := simplefinTestSource(t, server.URL)
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SimpleFIN API error")

	//nolint:staticcheck // verifying the nil guard
	_, err = source.Fetch(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cannot be nil")
}

func TestSimpleFINSource_Accounts(t *testing.T) {
	set := simplefinAccountSet{
		Accounts: []simplefinAccount{
			{ID: "checking-9"},
			{ID: "checking-1"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("start-date"))
		require.NoError(t, json.NewEncoder(w).Encode(set))
	}))
	defer server.Close()

	source := simplefinTestSource(t, server.URL)
	accounts, err := source.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"checking-1", "checking-9"}, accounts)
}

func TestParseSimpleFINAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{name: "negative debit", raw: "-45.20", want: -45.20},
		{name: "positive credit", raw: "1500.00", want: 1500.00},
		{name: "whitespace trimmed", raw: " 12.5 ", want: 12.5},
		{name: "not a number", raw: "twelve", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSimpleFINAmount(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestSimpleFINDescription(t *testing.T) {
	tests := []struct {
		name string
		tx   simplefinTransaction
		want string
	}{
		{
			name: "description wins",
			tx:   simplefinTransaction{Description: "CARD PURCHASE 1234", Payee: "ACME"},
			want: "CARD PURCHASE 1234",
		},
		{
			name: "payee fallback",
			tx:   simplefinTransaction{Description: "  ", Payee: "ACME"},
			want: "ACME",
		},
		{
			name: "both empty",
			tx:   simplefinTransaction{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, simplefinDescription(tt.tx))
		})
	}
}
