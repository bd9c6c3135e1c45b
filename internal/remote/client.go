// Package remote is the client for the hosted behavior-tracking API. The
// upstream wire format names fields with an initial capital (ChildId,
// ActivityType, ...); normalization to the internal models happens here and
// nowhere else.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pmallory/goldstar/internal/daykey"
	"github.com/pmallory/goldstar/internal/model"
)

// Client talks to the remote data service.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// --- wire types (upstream field convention) ---

type wireChild struct {
	ID          int64  `json:"Id"`
	Name        string `json:"Name"`
	Color       string `json:"Color"`
	AvatarEmoji string `json:"AvatarEmoji"`
	SortOrder   int    `json:"SortOrder"`
}

type wireBehavior struct {
	ID       int64  `json:"Id"`
	Name     string `json:"Name"`
	Points   int    `json:"Points"`
	Category string `json:"Category"`
	Color    string `json:"Color"`
	IsActive bool   `json:"IsActive"`
}

type wireReward struct {
	ID        int64  `json:"Id"`
	Name      string `json:"Name"`
	PointCost int    `json:"PointCost"`
	Icon      string `json:"Icon"`
	IsActive  bool   `json:"IsActive"`
}

type wireActivity struct {
	ID           string    `json:"Id"`
	ChildID      int64     `json:"ChildId"`
	ActivityID   int64     `json:"ActivityId"`
	ActivityType string    `json:"ActivityType"`
	Points       int       `json:"Points"`
	Name         string    `json:"Name"`
	Note         string    `json:"Note"`
	CreatedAt    time.Time `json:"CreatedAt"`
	Date         string    `json:"Date"`
}

func (w wireActivity) normalize() model.Activity {
	date := daykey.Key(w.Date)
	if !date.Valid() {
		date = daykey.At(w.CreatedAt)
	}
	return model.Activity{
		ID:         w.ID,
		ChildID:    w.ChildID,
		BehaviorID: w.ActivityID,
		Kind:       model.ActivityKind(strings.ToLower(w.ActivityType)),
		Points:     w.Points,
		Name:       w.Name,
		Note:       w.Note,
		Timestamp:  w.CreatedAt,
		Date:       date,
	}
}

// LogActivityRequest asks the service to record one activity. The server
// computes the point delta from its own catalog.
type LogActivityRequest struct {
	ChildID      int64  `json:"ChildId"`
	ActivityType string `json:"ActivityType"`
	ActivityID   int64  `json:"ActivityId"`
	Note         string `json:"Note,omitempty"`
}

// --- requests ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) ListChildren(ctx context.Context) ([]model.Child, error) {
	var wire []wireChild
	if err := c.get(ctx, "/children", &wire); err != nil {
		return nil, err
	}
	children := make([]model.Child, 0, len(wire))
	for _, w := range wire {
		children = append(children, model.Child{
			ID:          w.ID,
			Name:        w.Name,
			Color:       w.Color,
			AvatarEmoji: w.AvatarEmoji,
			SortOrder:   w.SortOrder,
		})
	}
	return children, nil
}

func (c *Client) listBehaviors(ctx context.Context, path string, kind model.BehaviorKind) ([]model.Behavior, error) {
	var wire []wireBehavior
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, err
	}
	behaviors := make([]model.Behavior, 0, len(wire))
	for _, w := range wire {
		behaviors = append(behaviors, model.Behavior{
			ID:       w.ID,
			Name:     w.Name,
			Points:   w.Points,
			Kind:     kind,
			Category: w.Category,
			Color:    w.Color,
			Active:   w.IsActive,
		})
	}
	return behaviors, nil
}

func (c *Client) ListGoodBehaviors(ctx context.Context) ([]model.Behavior, error) {
	return c.listBehaviors(ctx, "/behaviors", model.KindGood)
}

func (c *Client) ListBadBehaviors(ctx context.Context) ([]model.Behavior, error) {
	return c.listBehaviors(ctx, "/bad-behaviors", model.KindBad)
}

func (c *Client) ListRewards(ctx context.Context) ([]model.Reward, error) {
	var wire []wireReward
	if err := c.get(ctx, "/rewards", &wire); err != nil {
		return nil, err
	}
	rewards := make([]model.Reward, 0, len(wire))
	for _, w := range wire {
		rewards = append(rewards, model.Reward{
			ID:        w.ID,
			Name:      w.Name,
			PointCost: w.PointCost,
			Icon:      w.Icon,
			Active:    w.IsActive,
		})
	}
	return rewards, nil
}

// ListActivities returns a child's activity records, optionally restricted
// to one date key.
func (c *Client) ListActivities(ctx context.Context, childID int64, date daykey.Key) ([]model.Activity, error) {
	q := url.Values{}
	q.Set("childId", fmt.Sprint(childID))
	if date != "" {
		q.Set("date", string(date))
	}

	var wire []wireActivity
	if err := c.get(ctx, "/activities?"+q.Encode(), &wire); err != nil {
		return nil, err
	}
	activities := make([]model.Activity, 0, len(wire))
	for _, w := range wire {
		activities = append(activities, w.normalize())
	}
	return activities, nil
}

// LogActivity submits an activity and returns the record as the server
// stored it, delta included.
func (c *Client) LogActivity(ctx context.Context, logReq LogActivityRequest) (*model.Activity, error) {
	body, err := json.Marshal(logReq)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/activities", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /activities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("POST /activities: status %d", resp.StatusCode)
	}

	var w wireActivity
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode activity response: %w", err)
	}
	act := w.normalize()
	return &act, nil
}

// HealthCheck reports whether the service is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}
