package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gummy/pkg/models"
	"gummy/pkg/session"
)

// ErrUnauthorized is returned after the session credential has been
// invalidated by a 401. The one failure treated as fatal to the page.
var ErrUnauthorized = fmt.Errorf("unauthorized")

// StatusError carries a non-2xx response for callers that degrade
// gracefully instead of propagating.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: %d %s", e.Status, strings.TrimSpace(e.Body))
}

// Client talks to the backend REST surface. Requests carry the bearer
// credential from the session; timeouts are the caller's business via
// ctx (a hung request simply leaves optimistic state as-is).
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Session
}

func NewClient(baseURL string, sess *session.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		sess:    sess,
	}
}

// BaseURL returns the backend base, ws-scheme helpers build on it.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.sess.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		c.sess.Invalidate()
		return ErrUnauthorized
	}

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Status: res.StatusCode, Body: string(raw)}
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// Feed fetches the current feed page, order as served.
func (c *Client) Feed(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts/feed", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func (c *Client) CreatePost(ctx context.Context, content, imageURL string) (models.Post, error) {
	var p models.Post
	err := c.do(ctx, http.MethodPost, "/api/posts", createPostRequest{Content: content, ImageURL: imageURL}, &p)
	return p, err
}

func (c *Client) UpdatePost(ctx context.Context, postID int64, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/posts/%d", postID), body, nil)
}

func (c *Client) DeletePost(ctx context.Context, postID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), nil, nil)
}

// React sets the viewer's typed reaction; the backend replaces any
// prior one.
func (c *Client) React(ctx context.Context, postID int64, r models.Reaction) error {
	path := fmt.Sprintf("/api/posts/%d/react?type=%s", postID, url.QueryEscape(string(r)))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Unreact clears the viewer's reaction.
func (c *Client) Unreact(ctx context.Context, postID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d/react", postID), nil, nil)
}

// MyReaction fetches the viewer's server-recorded reaction for one post.
func (c *Client) MyReaction(ctx context.Context, postID int64) (models.Reaction, error) {
	var resp struct {
		Type models.Reaction `json:"type"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d/reactions/me", postID), nil, &resp)
	if err != nil {
		return models.ReactionNone, err
	}
	if resp.Type == "" {
		return models.ReactionNone, nil
	}
	return resp.Type, nil
}

// ReactionCount fetches the count for one reaction type on one post.
func (c *Client) ReactionCount(ctx context.Context, postID int64, r models.Reaction) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/api/posts/%d/reactions/count/%s", postID, url.PathEscape(string(r)))
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Count, err
}

func (c *Client) Comments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", postID), nil, &comments)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].State = models.CommentSent
	}
	return comments, nil
}

type createCommentRequest struct {
	Content string `json:"content"`
}

func (c *Client) CreateComment(ctx context.Context, postID int64, content string) (models.Comment, error) {
	var cm models.Comment
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID), createCommentRequest{Content: content}, &cm)
	if err == nil {
		cm.State = models.CommentSent
	}
	return cm, err
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d/comments/%d", postID, commentID), nil, nil)
}
