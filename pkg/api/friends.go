package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gummy/pkg/models"
)

// Friend is a row from the friend list, with the extra profile fields
// the backend includes there.
type Friend struct {
	models.User
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Since       time.Time `json:"since,omitempty"`
}

// FriendshipStatus is one of none, pending, friends, blocked.
type FriendshipStatus struct {
	Status string `json:"status"`
}

func (c *Client) FriendList(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	err := c.do(ctx, http.MethodGet, "/api/friends/list", nil, &friends)
	return friends, err
}

func (c *Client) PendingFriendRequests(ctx context.Context) ([]Friend, error) {
	var reqs []Friend
	err := c.do(ctx, http.MethodGet, "/api/friends/requests/pending", nil, &reqs)
	return reqs, err
}

func (c *Client) FriendSuggestions(ctx context.Context, limit int) ([]Friend, error) {
	var out []Friend
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/friends/suggestions?limit=%d", limit), nil, &out)
	return out, err
}

func (c *Client) SendFriendRequest(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/friends/send/%d", userID), nil, nil)
}

func (c *Client) AcceptFriendRequest(ctx context.Context, fromUserID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/friends/%d/accept", fromUserID), nil, nil)
}

func (c *Client) RejectFriendRequest(ctx context.Context, fromUserID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/friends/%d/reject", fromUserID), nil, nil)
}

func (c *Client) RemoveFriend(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/friends/%d", userID), nil, nil)
}

func (c *Client) Friendship(ctx context.Context, userID int64) (FriendshipStatus, error) {
	var st FriendshipStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/friends/%d/status", userID), nil, &st)
	return st, err
}
