package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/auth"
	"github.com/mmynk/fairshare/internal/middleware"
	"github.com/mmynk/fairshare/internal/settlement"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/internal/storage/memstore"
	"github.com/mmynk/fairshare/internal/storage/sqlstore"
	"github.com/mmynk/fairshare/pkg/api"
	"github.com/mmynk/fairshare/pkg/api/apiconnect"
)

type testServer struct {
	url   string
	jwt   *auth.JWTManager
	store storage.Store
}

type testClients struct {
	groups      apiconnect.GroupServiceClient
	expenses    apiconnect.ExpenseServiceClient
	settlements apiconnect.SettlementServiceClient
	users       apiconnect.UserServiceClient
}

// setupTestServer serves all four services behind the auth interceptor,
// backed by a temp SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlstore.New(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return setupTestServerWithStore(t, store)
}

func setupTestServerWithStore(t *testing.T, store storage.Store) *testServer {
	t.Helper()

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager))
	engine := settlement.New(store)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewGroupServiceHandler(NewGroupService(store), interceptors))
	mux.Handle(apiconnect.NewExpenseServiceHandler(NewExpenseService(store), interceptors))
	mux.Handle(apiconnect.NewSettlementServiceHandler(NewSettlementService(store, engine), interceptors))
	mux.Handle(apiconnect.NewUserServiceHandler(NewUserService(store), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testServer{url: server.URL, jwt: jwtManager, store: store}
}

// as returns clients that call the server as the given user.
func (ts *testServer) as(t *testing.T, userID, name string) testClients {
	t.Helper()

	token, err := ts.jwt.Generate(userID, name)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	opt := connect.WithInterceptors(bearer(token))

	return testClients{
		groups:      apiconnect.NewGroupServiceClient(http.DefaultClient, ts.url, opt),
		expenses:    apiconnect.NewExpenseServiceClient(http.DefaultClient, ts.url, opt),
		settlements: apiconnect.NewSettlementServiceClient(http.DefaultClient, ts.url, opt),
		users:       apiconnect.NewUserServiceClient(http.DefaultClient, ts.url, opt),
	}
}

func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}
}

// registerUser stores a profile for userID and returns clients acting as them.
func (ts *testServer) registerUser(t *testing.T, userID, name, upi string) testClients {
	t.Helper()

	c := ts.as(t, userID, name)
	_, err := c.users.UpsertProfile(context.Background(), connect.NewRequest(&api.UpsertProfileRequest{
		Name: name,
		UPI:  upi,
	}))
	if err != nil {
		t.Fatalf("UpsertProfile(%s) failed: %v", userID, err)
	}
	return c
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("code: expected %v, got %v (%v)", want, got, err)
	}
}

func TestCreateGroup(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "bob", "Bob", "")
	ts.registerUser(t, "charlie", "Charlie", "")

	// Alice has no stored profile yet; her token name is used.
	alice := ts.as(t, "alice", "Alice")
	resp, err := alice.groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{
		Name:      "Roommates",
		MemberIDs: []string{"bob", "charlie", "bob", "alice"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	group := resp.Msg.Group
	if group.ID == "" {
		t.Error("expected non-empty group ID")
	}
	if group.Name != "Roommates" {
		t.Errorf("name: expected 'Roommates', got '%s'", group.Name)
	}
	if group.CreatedBy != "alice" {
		t.Errorf("created_by: expected 'alice', got '%s'", group.CreatedBy)
	}
	if group.IsFinalized {
		t.Error("new group should not be finalized")
	}
	if group.CreatedAt.IsZero() {
		t.Error("expected non-zero CreatedAt")
	}

	members := resp.Msg.Members
	if len(members) != 3 {
		t.Fatalf("members: expected 3, got %d", len(members))
	}
	want := []api.Member{
		{UserID: "alice", Name: "Alice", Role: "admin"},
		{UserID: "bob", Name: "Bob", Role: "member"},
		{UserID: "charlie", Name: "Charlie", Role: "member"},
	}
	for i, m := range members {
		if m != want[i] {
			t.Errorf("member %d: expected %+v, got %+v", i, want[i], m)
		}
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	// memstore cannot roll back, so a rejected create must fail before any write
	for storeName, newServer := range map[string]func(t *testing.T) *testServer{
		"sqlite": setupTestServer,
		"memory": func(t *testing.T) *testServer { return setupTestServerWithStore(t, memstore.New()) },
	} {
		t.Run(storeName, func(t *testing.T) {
			ts := newServer(t)
			alice := ts.registerUser(t, "alice", "Alice", "")
			ts.registerUser(t, "bob", "Bob", "")

			tests := []struct {
				name string
				req  *api.CreateGroupRequest
			}{
				{"empty name", &api.CreateGroupRequest{Name: "  "}},
				{"unknown member", &api.CreateGroupRequest{Name: "Trip", MemberIDs: []string{"ghost"}}},
				{"unknown member after a known one", &api.CreateGroupRequest{Name: "Trip", MemberIDs: []string{"bob", "ghost"}}},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					_, err := alice.groups.CreateGroup(context.Background(), connect.NewRequest(tt.req))
					assertCode(t, err, connect.CodeInvalidArgument)
				})
			}

			groups, err := alice.groups.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
			if err != nil {
				t.Fatalf("ListGroups failed: %v", err)
			}
			if len(groups.Msg.Groups) != 0 {
				t.Errorf("failed creates must not leave groups behind, got %d", len(groups.Msg.Groups))
			}
		})
	}
}

func TestGetGroup(t *testing.T) {
	ts := setupTestServer(t)
	diana := ts.registerUser(t, "diana", "Diana", "")
	eve := ts.registerUser(t, "eve", "Eve", "")
	mallory := ts.registerUser(t, "mallory", "Mallory", "")

	createResp, err := diana.groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{
		Name:      "Work Lunch",
		MemberIDs: []string{"eve"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := createResp.Msg.Group.ID

	getResp, err := eve.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if getResp.Msg.Group.Name != "Work Lunch" {
		t.Errorf("name: expected 'Work Lunch', got '%s'", getResp.Msg.Group.Name)
	}
	if len(getResp.Msg.Members) != 2 {
		t.Errorf("members: expected 2, got %d", len(getResp.Msg.Members))
	}

	_, err = mallory.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: groupID}))
	assertCode(t, err, connect.CodePermissionDenied)
}

func TestGetGroup_NotFound(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.registerUser(t, "alice", "Alice", "")

	_, err := alice.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{
		GroupID: "nonexistent-id",
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestAddMember(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.registerUser(t, "alice", "Alice", "")
	bob := ts.registerUser(t, "bob", "Bob", "")
	ts.registerUser(t, "charlie", "Charlie", "")
	ctx := context.Background()

	createResp, err := alice.groups.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{
		Name:      "Trip",
		MemberIDs: []string{"bob"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := createResp.Msg.Group.ID

	_, err = bob.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: groupID, UserID: "charlie"}))
	assertCode(t, err, connect.CodePermissionDenied)

	resp, err := alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: groupID, UserID: "charlie"}))
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if len(resp.Msg.Members) != 3 {
		t.Fatalf("members: expected 3, got %d", len(resp.Msg.Members))
	}
	if last := resp.Msg.Members[2]; last.UserID != "charlie" || last.Role != "member" {
		t.Errorf("expected charlie as member, got %+v", last)
	}

	_, err = alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: groupID, UserID: "charlie"}))
	assertCode(t, err, connect.CodeAlreadyExists)

	_, err = alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: groupID, UserID: "ghost"}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: groupID, UserID: "bob", Role: "owner"}))
	assertCode(t, err, connect.CodeInvalidArgument)
}

func TestListGroups(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.registerUser(t, "alice", "Alice", "")
	bob := ts.registerUser(t, "bob", "Bob", "")
	ctx := context.Background()

	for _, name := range []string{"Flat", "Trip"} {
		if _, err := alice.groups.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{Name: name})); err != nil {
			t.Fatalf("CreateGroup(%s) failed: %v", name, err)
		}
	}
	if _, err := bob.groups.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{
		Name:      "Shared",
		MemberIDs: []string{"alice"},
	})); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	aliceGroups, err := alice.groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(aliceGroups.Msg.Groups) != 3 {
		t.Errorf("alice: expected 3 groups, got %d", len(aliceGroups.Msg.Groups))
	}

	bobGroups, err := bob.groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(bobGroups.Msg.Groups) != 1 || bobGroups.Msg.Groups[0].Name != "Shared" {
		t.Errorf("bob: expected only 'Shared', got %+v", bobGroups.Msg.Groups)
	}
}

func TestUnauthenticated(t *testing.T) {
	ts := setupTestServer(t)
	client := apiconnect.NewGroupServiceClient(http.DefaultClient, ts.url)

	_, err := client.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}
