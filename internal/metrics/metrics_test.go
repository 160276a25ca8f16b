package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/settlement"
	"github.com/mmynk/fairshare/internal/storage/memstore"
)

func TestEngineObserver(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())

	s := memstore.New()
	for _, u := range []models.User{{ID: "a", Name: "A", UPI: "a@upi"}, {ID: "b", Name: "B"}} {
		u := u
		require.NoError(t, s.UpsertUser(ctx, &u))
	}
	group := &models.Group{Name: "G", CreatedBy: "a"}
	require.NoError(t, s.CreateGroup(ctx, group))
	require.NoError(t, s.AddMember(ctx, group.ID, "a", models.RoleAdmin))
	require.NoError(t, s.AddMember(ctx, group.ID, "b", models.RoleMember))
	require.NoError(t, s.CreateExpense(ctx, &models.Expense{
		GroupID: group.ID, Name: "Cab", PaidBy: "a", TotalAmount: decimal.NewFromInt(50),
		SplitType:  models.SplitCustom,
		Partitions: []models.Partition{{UserID: "b", Amount: decimal.NewFromInt(50)}},
	}))

	e := settlement.New(s, settlement.WithObserver(m))

	settlements, err := e.FinalizeGroup(ctx, "a", group.ID)
	require.NoError(t, err)
	require.Len(t, settlements, 1)

	_, err = e.SelectPaymentMode(ctx, "b", settlements[0].ID, models.PaymentModeUPI)
	require.NoError(t, err)
	_, err = e.ConfirmReceived(ctx, "a", settlements[0].ID)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsFinalized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModesSelected.WithLabelValues("upi")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ModesSelected.WithLabelValues("cash")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptsConfirmed.WithLabelValues("10")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.PartialCommits))
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.GroupFinalized(3)
	m.PartialCommit("confirm")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, "fairshare_settlements_created_total 3"), text)
	assert.True(t, strings.Contains(text, `fairshare_partial_commits_total{op="confirm"} 1`), text)
}
