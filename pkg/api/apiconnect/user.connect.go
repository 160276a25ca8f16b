package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/fairshare/pkg/api"
)

// UserServiceName is the fully-qualified name of the UserService service.
const UserServiceName = "fairshare.v1.UserService"

// These constants are the fully-qualified names of the RPCs defined in the
// UserService service.
const (
	UserServiceUpsertProfileProcedure = "/fairshare.v1.UserService/UpsertProfile"
	UserServiceGetProfileProcedure    = "/fairshare.v1.UserService/GetProfile"
)

// UserServiceClient is a client for the fairshare.v1.UserService service.
type UserServiceClient interface {
	// Creates or updates the caller's profile.
	UpsertProfile(context.Context, *connect.Request[api.UpsertProfileRequest]) (*connect.Response[api.UpsertProfileResponse], error)
	// Returns a profile with its points score.
	GetProfile(context.Context, *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error)
}

// NewUserServiceClient constructs a client for the fairshare.v1.UserService service.
//
// The URL supplied here should be the base URL for the Connect server
// (for example, http://api.acme.com or https://acme.com/grpc).
func NewUserServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) UserServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec)}, opts...)
	return &userServiceClient{
		upsertProfile: connect.NewClient[api.UpsertProfileRequest, api.UpsertProfileResponse](
			httpClient,
			baseURL+UserServiceUpsertProfileProcedure,
			opts...,
		),
		getProfile: connect.NewClient[api.GetProfileRequest, api.GetProfileResponse](
			httpClient,
			baseURL+UserServiceGetProfileProcedure,
			opts...,
		),
	}
}

// userServiceClient implements UserServiceClient.
type userServiceClient struct {
	upsertProfile *connect.Client[api.UpsertProfileRequest, api.UpsertProfileResponse]
	getProfile    *connect.Client[api.GetProfileRequest, api.GetProfileResponse]
}

// UpsertProfile calls fairshare.v1.UserService.UpsertProfile.
func (c *userServiceClient) UpsertProfile(ctx context.Context, req *connect.Request[api.UpsertProfileRequest]) (*connect.Response[api.UpsertProfileResponse], error) {
	return c.upsertProfile.CallUnary(ctx, req)
}

// GetProfile calls fairshare.v1.UserService.GetProfile.
func (c *userServiceClient) GetProfile(ctx context.Context, req *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error) {
	return c.getProfile.CallUnary(ctx, req)
}

// UserServiceHandler is an implementation of the fairshare.v1.UserService service.
type UserServiceHandler interface {
	// Creates or updates the caller's profile.
	UpsertProfile(context.Context, *connect.Request[api.UpsertProfileRequest]) (*connect.Response[api.UpsertProfileResponse], error)
	// Returns a profile with its points score.
	GetProfile(context.Context, *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error)
}

// NewUserServiceHandler builds an HTTP handler from the service implementation. It
// returns the path on which to mount the handler and the handler itself.
func NewUserServiceHandler(svc UserServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec)}, opts...)
	upsertProfileHandler := connect.NewUnaryHandler(
		UserServiceUpsertProfileProcedure,
		svc.UpsertProfile,
		opts...,
	)
	getProfileHandler := connect.NewUnaryHandler(
		UserServiceGetProfileProcedure,
		svc.GetProfile,
		opts...,
	)
	return "/fairshare.v1.UserService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case UserServiceUpsertProfileProcedure:
			upsertProfileHandler.ServeHTTP(w, r)
		case UserServiceGetProfileProcedure:
			getProfileHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
