package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/internal/middleware"
	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/storage"
	"github.com/mmynk/fairshare/pkg/api"
	"github.com/mmynk/fairshare/pkg/api/apiconnect"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	store storage.Store
	now   func() time.Time
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store, now: time.Now}
}

// CreateGroup creates a new group with the caller as its admin. Listed member
// IDs must belong to known users and join as plain members.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	name := strings.TrimSpace(req.Msg.Name)
	slog.Info("CreateGroup request received",
		"name", name,
		"members_count", len(req.Msg.MemberIDs),
	)

	if name == "" {
		return nil, invalidArgument("group name required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group := &models.Group{Name: name, CreatedBy: caller}
	var members []models.Member

	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		if err := ensureUser(ctx, q, caller, middleware.GetName(ctx)); err != nil {
			return err
		}
		// Nothing is written until every listed member resolves.
		seen := map[string]bool{caller: true}
		var memberIDs []string
		for _, id := range req.Msg.MemberIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			if _, err := q.GetUser(ctx, id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return invalidArgument("unknown user %s", id)
				}
				return err
			}
			memberIDs = append(memberIDs, id)
		}

		if err := q.CreateGroup(ctx, group); err != nil {
			return err
		}
		if err := q.AddMember(ctx, group.ID, caller, models.RoleAdmin); err != nil {
			return err
		}
		for _, id := range memberIDs {
			if err := q.AddMember(ctx, group.ID, id, models.RoleMember); err != nil {
				return err
			}
		}

		members, err = q.ListMembers(ctx, group.ID)
		return err
	})
	if err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group created", "group_id", group.ID, "members_count", len(members))

	return connect.NewResponse(&api.CreateGroupResponse{
		Group:   toAPIGroup(group),
		Members: toAPIMembers(members),
	}), nil
}

// GetGroup retrieves a group and its roster. The caller must be a member.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("GetGroup request received", "group_id", groupID)

	if groupID == "" {
		return nil, invalidArgument("group_id required")
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.store, groupID, caller); err != nil {
		return nil, toConnectError(err)
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		slog.Error("GetGroup failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		slog.Error("GetGroup failed - could not list members", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&api.GetGroupResponse{
		Group:   toAPIGroup(group),
		Members: toAPIMembers(members),
	}), nil
}

// AddMember adds a known user to an open group. Admin only.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	groupID, userID := req.Msg.GroupID, req.Msg.UserID
	slog.Info("AddMember request received", "group_id", groupID, "user_id", userID)

	if groupID == "" || userID == "" {
		return nil, invalidArgument("group_id and user_id required")
	}
	role := models.Role(strings.ToLower(req.Msg.Role))
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return nil, invalidArgument("unknown role %q", req.Msg.Role)
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var members []models.Member
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		member, err := requireMember(ctx, q, groupID, caller)
		if err != nil {
			return err
		}
		if member.Role != models.RoleAdmin {
			return permissionDenied("only admins can add members")
		}
		if err := q.EnsureGroupOpen(ctx, groupID, s.now()); err != nil {
			return err
		}
		if _, err := q.GetUser(ctx, userID); err != nil {
			return err
		}
		if err := q.AddMember(ctx, groupID, userID, role); err != nil {
			return err
		}
		members, err = q.ListMembers(ctx, groupID)
		return err
	})
	if err != nil {
		slog.Error("AddMember failed", "group_id", groupID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Member added", "group_id", groupID, "user_id", userID, "role", role)

	return connect.NewResponse(&api.AddMemberResponse{Members: toAPIMembers(members)}), nil
}

// ListGroups lists the caller's groups, newest first.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, caller)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, toConnectError(err)
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g)
	}

	slog.Info("ListGroups successful", "count", len(groups))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// ensureUser stores a profile for a caller the identity provider knows but
// this service has not seen yet.
func ensureUser(ctx context.Context, q storage.Queries, userID, name string) error {
	_, err := q.GetUser(ctx, userID)
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if name == "" {
		name = userID
	}
	return q.UpsertUser(ctx, &models.User{ID: userID, Name: name})
}
