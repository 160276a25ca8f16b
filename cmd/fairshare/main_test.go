package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/fairshare/internal/auth"
	"github.com/mmynk/fairshare/internal/config"
	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage/memstore"
	"github.com/mmynk/fairshare/internal/storage/sqlstore"
	"github.com/mmynk/fairshare/pkg/api"
	"github.com/mmynk/fairshare/pkg/api/apiconnect"
)

// run executes the CLI with args against a temp SQLite database.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_TYPE", config.DatabaseSQLite)
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "db.sqlite"), "token", "alice", "--name", "Alice")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("cli-secret", time.Hour).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "Alice", claims.Name)

	_, err = run(t, filepath.Join(t.TempDir(), "db.sqlite"), "token")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")

	_, err := run(t, dbPath, "migrate")
	require.NoError(t, err)
	_, err = run(t, dbPath, "migrate", "status")
	require.NoError(t, err)
	_, err = run(t, dbPath, "migrate", "down")
	require.NoError(t, err)
	_, err = run(t, dbPath, "migrate", "sideways")
	assert.Error(t, err)
}

func TestPreviewCommand(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")

	store, err := sqlstore.New(ctx, sqlstore.DriverSQLite, dbPath)
	require.NoError(t, err)
	for _, u := range []models.User{{ID: "a", Name: "Asha"}, {ID: "b", Name: "Bilal"}} {
		u := u
		require.NoError(t, store.UpsertUser(ctx, &u))
	}
	group := &models.Group{Name: "Weekend", CreatedBy: "a"}
	require.NoError(t, store.CreateGroup(ctx, group))
	require.NoError(t, store.AddMember(ctx, group.ID, "a", models.RoleAdmin))
	require.NoError(t, store.AddMember(ctx, group.ID, "b", models.RoleMember))
	require.NoError(t, store.CreateExpense(ctx, &models.Expense{
		GroupID: group.ID, Name: "Fuel", PaidBy: "a", TotalAmount: decimal.NewFromInt(80),
		SplitType: models.SplitEqual,
		Partitions: []models.Partition{
			{UserID: "a", Amount: decimal.NewFromInt(40)},
			{UserID: "b", Amount: decimal.NewFromInt(40)},
		},
	}))
	require.NoError(t, store.Close())

	out, err := run(t, dbPath, "preview", group.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Weekend (open)")
	assert.Contains(t, out, "Bilal pays Asha 40.00")

	_, err = run(t, dbPath, "preview", "no-such-group")
	assert.Error(t, err)
}

func TestNewHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Type = config.DatabaseMemory
	cfg.Auth.JWTSecret = "server-secret"

	_, err := newHandler(&config.Config{Auth: config.AuthConfig{TokenTTL: time.Hour}}, memstore.New())
	assert.Error(t, err, "a missing JWT secret must be rejected")

	handler, err := newHandler(cfg, memstore.New())
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := apiconnect.NewUserServiceClient(http.DefaultClient, server.URL)
	_, err = client.GetProfile(context.Background(), connect.NewRequest(&api.GetProfileRequest{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Hour).Generate("alice", "Alice")
	require.NoError(t, err)
	req := connect.NewRequest(&api.UpsertProfileRequest{Name: "Alice", UPI: "alice@okbank"})
	req.Header().Set("Authorization", "Bearer "+token)
	upsert, err := client.UpsertProfile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "alice@okbank", upsert.Msg.Profile.UPI)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fairshare_rpc_duration_seconds_count{code="unauthenticated",procedure="/fairshare.v1.UserService/GetProfile"} 1`)
	assert.Contains(t, string(body), `procedure="/fairshare.v1.UserService/UpsertProfile"`)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
