// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🚨 APIError is a non-2xx answer from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("records backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("records backend returned %d: %s", e.StatusCode, e.Message)
}

// 🗂️ Client is a records backend client
type Client struct {
	base *url.URL
	key  string
	http *http.Client
	now  func() time.Time
}

// 🏭 NewClient creates a client for the backend at baseURL using the given
// anonymous or service key
func NewClient(baseURL, key string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	key = strings.TrimSpace(key)
	if baseURL == "" || key == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Errorf("%w: invalid url %q", ErrNotConfigured, baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: u, key: key, http: httpClient, now: time.Now}, nil
}

// URL returns the backend base URL
func (c *Client) URL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	zerolog.Ctx(ctx).Debug().Str("method", method).Str("path", path).Msg("records request")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return errors.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Message
			if apiErr.Message == "" {
				apiErr.Message = payload.Error
			}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, table string, query url.Values, payload any, prefer string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Errorf("encoding %s payload: %w", table, err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if prefer != "" {
		headers["Prefer"] = prefer
	}
	return c.do(ctx, method, "/rest/v1/"+table, query, bytes.NewReader(body), headers, nil)
}

func selectQuery(columns string, order ...string) url.Values {
	q := url.Values{}
	q.Set("select", columns)
	if len(order) > 0 {
		q.Set("order", strings.Join(order, ","))
	}
	return q
}

func eq(q url.Values, column, value string) url.Values {
	if q == nil {
		q = url.Values{}
	}
	q.Set(column, "eq."+value)
	return q
}

// ListConsultations returns consultation requests, newest first. When the
// ordered query fails it retries without ordering.
func (c *Client) ListConsultations(ctx context.Context) ([]Consultation, error) {
	var rows []Consultation
	err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableConsultations, selectQuery("*", "created_at.desc"), nil, nil, &rows)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("ordered consultation query failed, retrying unordered")
		rows = nil
		if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableConsultations, selectQuery("*"), nil, nil, &rows); err != nil {
			return nil, errors.Errorf("listing consultations: %w", err)
		}
	}
	return rows, nil
}

// GetConsultation returns one consultation request
func (c *Client) GetConsultation(ctx context.Context, id ID) (*Consultation, error) {
	var rows []Consultation
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableConsultations, eq(selectQuery("*"), "id", string(id)), nil, nil, &rows); err != nil {
		return nil, errors.Errorf("getting consultation %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("consultation %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// RejectConsultation moves a new request to rejected
func (c *Client) RejectConsultation(ctx context.Context, id ID) error {
	current, err := c.GetConsultation(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.CurrentStatus(), StatusRejected) {
		return errors.Errorf("%w: %s to %s", ErrInvalidTransition, current.CurrentStatus(), StatusRejected)
	}
	payload := map[string]string{"status": string(StatusRejected)}
	if err := c.sendJSON(ctx, http.MethodPatch, TableConsultations, eq(nil, "id", string(id)), payload, ""); err != nil {
		return errors.Errorf("rejecting consultation %s: %w", id, err)
	}
	return nil
}

// DeleteConsultation deletes a request in any status
func (c *Client) DeleteConsultation(ctx context.Context, id ID) error {
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/"+TableConsultations, eq(nil, "id", string(id)), nil, nil, nil); err != nil {
		return errors.Errorf("deleting consultation %s: %w", id, err)
	}
	return nil
}

// ListTeam returns team members, oldest first
func (c *Client) ListTeam(ctx context.Context) ([]TeamMember, error) {
	var rows []TeamMember
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableTeam, selectQuery("*", "created_at.asc"), nil, nil, &rows); err != nil {
		return nil, errors.Errorf("listing team members: %w", err)
	}
	return rows, nil
}

// GetTeamMember returns one team member
func (c *Client) GetTeamMember(ctx context.Context, id ID) (*TeamMember, error) {
	var rows []TeamMember
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableTeam, eq(selectQuery("*"), "id", string(id)), nil, nil, &rows); err != nil {
		return nil, errors.Errorf("getting team member %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("team member %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// SaveTeamMember inserts a new member or updates an existing one
func (c *Client) SaveTeamMember(ctx context.Context, m TeamMember) error {
	if err := m.Validate(); err != nil {
		return err
	}
	payload := map[string]any{
		"name":      strings.TrimSpace(m.Name),
		"title":     strings.TrimSpace(m.Title),
		"role":      strings.TrimSpace(m.Role),
		"bio":       strings.TrimSpace(m.Bio),
		"image_url": m.ImageURL,
	}
	var err error
	if m.ID != "" {
		err = c.sendJSON(ctx, http.MethodPatch, TableTeam, eq(nil, "id", string(m.ID)), payload, "")
	} else {
		err = c.sendJSON(ctx, http.MethodPost, TableTeam, nil, payload, "")
	}
	if err != nil {
		return errors.Errorf("saving team member: %w", err)
	}
	return nil
}

// DeleteTeamMember removes the member's stored image, then the row
func (c *Client) DeleteTeamMember(ctx context.Context, id ID) error {
	member, err := c.GetTeamMember(ctx, id)
	if err != nil {
		return err
	}
	if member.ImageURL != nil {
		if path := StoragePath(*member.ImageURL, BucketTeam); path != "" {
			if err := c.RemoveObjects(ctx, BucketTeam, path); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("removing team image")
			}
		}
	}
	if err := c.do(ctx, http.MethodDelete, "/rest/v1/"+TableTeam, eq(nil, "id", string(id)), nil, nil, nil); err != nil {
		return errors.Errorf("deleting team member %s: %w", id, err)
	}
	return nil
}

// ListNewsSlots returns news slots ordered by slot number
func (c *Client) ListNewsSlots(ctx context.Context) ([]NewsSlot, error) {
	var rows []NewsSlot
	q := selectQuery("slot_number,caption,image_url,updated_at", "slot_number.asc")
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableNews, q, nil, nil, &rows); err != nil {
		return nil, errors.Errorf("listing news slots: %w", err)
	}
	return rows, nil
}

// GetNewsSlot returns one news slot. A slot with no row yet comes back empty.
func (c *Client) GetNewsSlot(ctx context.Context, slot int) (NewsSlot, error) {
	var rows []NewsSlot
	q := eq(selectQuery("slot_number,caption,image_url,updated_at"), "slot_number", strconv.Itoa(slot))
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableNews, q, nil, nil, &rows); err != nil {
		return NewsSlot{}, errors.Errorf("getting news slot %d: %w", slot, err)
	}
	if len(rows) == 0 {
		return NewsSlot{SlotNumber: slot}, nil
	}
	return rows[0], nil
}

// SaveNewsSlot upserts a news slot
func (c *Client) SaveNewsSlot(ctx context.Context, s NewsSlot) error {
	payload := map[string]any{"slot_number": s.SlotNumber, "caption": s.Caption, "image_url": s.ImageURL}
	if err := c.sendJSON(ctx, http.MethodPost, TableNews, nil, payload, "resolution=merge-duplicates"); err != nil {
		return errors.Errorf("saving news slot %d: %w", s.SlotNumber, err)
	}
	return nil
}

// ClearNewsSlot removes the slot image and blanks its caption
func (c *Client) ClearNewsSlot(ctx context.Context, s NewsSlot) error {
	if s.ImageURL != nil {
		if path := StoragePath(*s.ImageURL, BucketNews); path != "" {
			if err := c.RemoveObjects(ctx, BucketNews, path); err != nil {
				return errors.Errorf("clearing news slot %d: %w", s.SlotNumber, err)
			}
		}
	}
	return c.SaveNewsSlot(ctx, NewsSlot{SlotNumber: s.SlotNumber})
}

// ListServiceSlots returns service slots ordered by service key, then slot
func (c *Client) ListServiceSlots(ctx context.Context) ([]ServiceSlot, error) {
	var rows []ServiceSlot
	q := selectQuery("service_key,slot_number,caption,image_url,updated_at", "service_key.asc", "slot_number.asc")
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableServices, q, nil, nil, &rows); err != nil {
		return nil, errors.Errorf("listing service slots: %w", err)
	}
	return rows, nil
}

// GetServiceSlot returns one service slot. A slot with no row yet comes back
// empty.
func (c *Client) GetServiceSlot(ctx context.Context, serviceKey string, slot int) (ServiceSlot, error) {
	var rows []ServiceSlot
	q := selectQuery("service_key,slot_number,caption,image_url,updated_at")
	q = eq(eq(q, "service_key", serviceKey), "slot_number", strconv.Itoa(slot))
	if err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableServices, q, nil, nil, &rows); err != nil {
		return ServiceSlot{}, errors.Errorf("getting service slot %s:%d: %w", serviceKey, slot, err)
	}
	if len(rows) == 0 {
		return ServiceSlot{ServiceKey: serviceKey, SlotNumber: slot}, nil
	}
	return rows[0], nil
}

// SaveServiceSlot upserts a service slot
func (c *Client) SaveServiceSlot(ctx context.Context, s ServiceSlot) error {
	payload := map[string]any{
		"service_key": s.ServiceKey,
		"slot_number": s.SlotNumber,
		"caption":     s.Caption,
		"image_url":   s.ImageURL,
	}
	if err := c.sendJSON(ctx, http.MethodPost, TableServices, nil, payload, "resolution=merge-duplicates"); err != nil {
		return errors.Errorf("saving service slot %s: %w", s.Key(), err)
	}
	return nil
}

// ClearServiceSlot removes the slot image and blanks its caption
func (c *Client) ClearServiceSlot(ctx context.Context, s ServiceSlot) error {
	if s.ImageURL != nil {
		if path := StoragePath(*s.ImageURL, BucketServices); path != "" {
			if err := c.RemoveObjects(ctx, BucketServices, path); err != nil {
				return errors.Errorf("clearing service slot %s: %w", s.Key(), err)
			}
		}
	}
	return c.SaveServiceSlot(ctx, ServiceSlot{ServiceKey: s.ServiceKey, SlotNumber: s.SlotNumber})
}

// Upload stores an object, replacing any existing one, and returns its public URL
func (c *Client) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{"Content-Type": contentType, "x-upsert": "true"}
	if err := c.do(ctx, http.MethodPost, "/storage/v1/object/"+bucket+"/"+path, nil, body, headers, nil); err != nil {
		return "", errors.Errorf("uploading %s/%s: %w", bucket, path, err)
	}
	return c.PublicURL(bucket, path), nil
}

// PublicURL is the public address of an object
func (c *Client) PublicURL(bucket, path string) string {
	return c.endpoint("/storage/v1/object/public/"+bucket+"/"+path, nil)
}

// RemoveObjects deletes objects from a bucket
func (c *Client) RemoveObjects(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return errors.Errorf("encoding remove request: %w", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if err := c.do(ctx, http.MethodDelete, "/storage/v1/object/"+bucket, nil, bytes.NewReader(body), headers, nil); err != nil {
		return errors.Errorf("removing from %s: %w", bucket, err)
	}
	return nil
}

// UploadTeamImage stores a team image under a timestamped safe name
func (c *Client) UploadTeamImage(ctx context.Context, fileName, contentType string, body io.Reader) (string, error) {
	return c.Upload(ctx, BucketTeam, TeamImagePath(c.now(), fileName), contentType, body)
}

// UploadNewsImage stores the image of a news slot, replacing the previous one
func (c *Client) UploadNewsImage(ctx context.Context, slot int, fileName, contentType string, body io.Reader) (string, error) {
	return c.Upload(ctx, BucketNews, NewsImagePath(slot, fileName), contentType, body)
}

// UploadServiceImage stores the image of a service slot, replacing the
// previous one
func (c *Client) UploadServiceImage(ctx context.Context, serviceKey string, slot int, fileName, contentType string, body io.Reader) (string, error) {
	return c.Upload(ctx, BucketServices, ServiceImagePath(serviceKey, slot, fileName), contentType, body)
}
