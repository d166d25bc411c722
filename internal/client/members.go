package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// MembersClient implements the dtcloud.MembersClient interface for both
// project and organization members.
type MembersClient struct {
	httpClient *http_internal.Client
}

// NewMembersClient creates a new MembersClient.
func NewMembersClient(httpClient *http_internal.Client) *MembersClient {
	return &MembersClient{
		httpClient: httpClient,
	}
}

type addMemberRequest struct {
	Roles []string `json:"roles"`
	Email string   `json:"email"`
}

type updateMemberRequest struct {
	Roles []string `json:"roles"`
}

type inviteURLResponse struct {
	InviteURL string `json:"inviteUrl"`
}

func membersPath(parent string, segments ...string) string {
	return "/" + joinPath(append([]string{strings.Trim(parent, "/"), "members"}, segments...)...)
}

// List retrieves every member of parent.
func (c *MembersClient) List(ctx context.Context, parent string) ([]dtcloud.Member, error) {
	err := requireID(parent, ErrParentRequired)
	if err != nil {
		return nil, err
	}

	return collect[dtcloud.Member](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   membersPath(parent),
	}, constants.PagingKeyMembers, 0, "members")
}

// Add invites a user or service account by email with the given roles.
func (c *MembersClient) Add(ctx context.Context, parent string, email string, roles []string) (*dtcloud.Member, error) {
	err := requireID(parent, ErrParentRequired)
	if err != nil {
		return nil, err
	}

	member, err := http_internal.Send[dtcloud.Member](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   membersPath(parent),
		Body:   &addMemberRequest{Roles: roleNames(roles), Email: email},
	})
	if err != nil {
		return nil, fmt.Errorf("adding member: %w", err)
	}

	return member, nil
}

// Update replaces the roles of a member.
func (c *MembersClient) Update(ctx context.Context, parent, memberID string, roles []string) (*dtcloud.Member, error) {
	err := requireMember(parent, memberID)
	if err != nil {
		return nil, err
	}

	member, err := http_internal.Send[dtcloud.Member](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPatch,
		Path:   membersPath(parent, memberID),
		Query:  updateMaskValues([]string{"roles"}),
		Body:   &updateMemberRequest{Roles: roleNames(roles)},
	})
	if err != nil {
		return nil, fmt.Errorf("updating member: %w", err)
	}

	return member, nil
}

// Remove revokes membership.
func (c *MembersClient) Remove(ctx context.Context, parent, memberID string) error {
	err := requireMember(parent, memberID)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Delete(ctx, membersPath(parent, memberID))
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}

	return nil
}

// GetInviteURL returns the invite link of a pending member.
func (c *MembersClient) GetInviteURL(ctx context.Context, parent, memberID string) (string, error) {
	err := requireMember(parent, memberID)
	if err != nil {
		return "", err
	}

	resp, err := http_internal.Send[inviteURLResponse](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   membersPath(parent, memberID+":getInviteUrl"),
	})
	if err != nil {
		return "", fmt.Errorf("getting invite URL: %w", err)
	}

	return resp.InviteURL, nil
}

func requireMember(parent, memberID string) error {
	err := requireID(parent, ErrParentRequired)
	if err != nil {
		return err
	}

	return requireID(memberID, ErrResourceIDRequired)
}

// roleNames accepts role IDs or resource names and returns resource names.
func roleNames(roles []string) []string {
	names := make([]string, 0, len(roles))

	for _, role := range roles {
		if strings.HasPrefix(role, "roles/") {
			names = append(names, role)
		} else {
			names = append(names, "roles/"+role)
		}
	}

	return names
}
