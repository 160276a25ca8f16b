package api

import "time"

type Group struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	CreatedBy   string     `json:"createdBy"`
	IsFinalized bool       `json:"isFinalized"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type CreateGroupRequest struct {
	Name string `json:"name"`
	// MemberIDs are added as plain members after the creator, who becomes admin.
	MemberIDs []string `json:"memberIds,omitempty"`
}

type CreateGroupResponse struct {
	Group   Group    `json:"group"`
	Members []Member `json:"members"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group   Group    `json:"group"`
	Members []Member `json:"members"`
}

type AddMemberRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	// Role defaults to "member".
	Role string `json:"role,omitempty"`
}

type AddMemberResponse struct {
	Members []Member `json:"members"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}
