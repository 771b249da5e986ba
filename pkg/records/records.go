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

// Package records talks to the hosted records backend: team members, image
// slots for news and services, and consultation requests. Tables are served
// over a PostgREST interface and images live in public storage buckets.
package records

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// Tables
const (
	TableTeam          = "team_members"
	TableNews          = "news_slots"
	TableServices      = "service_slots"
	TableConsultations = "consultations"
)

// Buckets
const (
	BucketTeam     = "team-images"
	BucketNews     = "news-images"
	BucketServices = "service-images"
)

var (
	ErrNotConfigured     = errors.New("records backend is not configured")
	ErrInvalidTransition = errors.New("invalid consultation status transition")
	ErrNotFound          = errors.New("record not found")
	ErrIncompleteMember  = errors.New("please fill out all fields")
)

// 🆔 ID is a row identifier; the backend may send it as a number or a string
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Errorf("decoding id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// 👤 TeamMember is one row of the team table
type TeamMember struct {
	ID        ID        `json:"id,omitempty"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Role      string    `json:"role"`
	Bio       string    `json:"bio"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Validate checks the fields the team form requires
func (m TeamMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Title) == "" ||
		strings.TrimSpace(m.Role) == "" || strings.TrimSpace(m.Bio) == "" {
		return ErrIncompleteMember
	}
	return nil
}

// 📰 NewsSlot is an image and caption keyed by slot number
type NewsSlot struct {
	SlotNumber int        `json:"slot_number"`
	Caption    *string    `json:"caption"`
	ImageURL   *string    `json:"image_url"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// 🧰 ServiceSlot is an image and caption keyed by service and slot number
type ServiceSlot struct {
	ServiceKey string     `json:"service_key"`
	SlotNumber int        `json:"slot_number"`
	Caption    *string    `json:"caption"`
	ImageURL   *string    `json:"image_url"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Key is the composite "service:slot" key
func (s ServiceSlot) Key() string {
	return s.ServiceKey + ":" + strconv.Itoa(s.SlotNumber)
}

// ConsultationStatus is the lifecycle state of a consultation request
type ConsultationStatus string

const (
	StatusNew      ConsultationStatus = "new"
	StatusRejected ConsultationStatus = "rejected"
)

// CanTransition reports whether a request may move from one status to another.
// The only allowed move is new to rejected.
func CanTransition(from, to ConsultationStatus) bool {
	if from == "" {
		from = StatusNew
	}
	return strings.EqualFold(string(from), string(StatusNew)) && to == StatusRejected
}

// 📨 Consultation is one consultation request
type Consultation struct {
	ID        ID                 `json:"id"`
	Name      string             `json:"name,omitempty"`
	FullName  string             `json:"full_name,omitempty"`
	Email     string             `json:"email,omitempty"`
	Phone     string             `json:"phone,omitempty"`
	Contact   string             `json:"contact,omitempty"`
	Specialty string             `json:"specialty,omitempty"`
	Message   string             `json:"message,omitempty"`
	Concern   string             `json:"concern,omitempty"`
	Records   json.RawMessage    `json:"records,omitempty"`
	Status    ConsultationStatus `json:"status,omitempty"`
	Source    string             `json:"source,omitempty"`
	CreatedAt *time.Time         `json:"created_at,omitempty"`
}

// DisplayName falls back through the name fields
func (c Consultation) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.FullName != "":
		return c.FullName
	default:
		return "Unnamed request"
	}
}

// ContactLine joins email and phone
func (c Consultation) ContactLine() string {
	var parts []string
	for _, p := range []string{c.Email, c.Phone} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

// Body is the message, or the concern when no message was sent
func (c Consultation) Body() string {
	if c.Message != "" {
		return c.Message
	}
	return c.Concern
}

// CurrentStatus defaults a missing status to new
func (c Consultation) CurrentStatus() ConsultationStatus {
	if c.Status == "" {
		return StatusNew
	}
	return ConsultationStatus(strings.ToLower(string(c.Status)))
}

// SourceName defaults a missing source to web
func (c Consultation) SourceName() string {
	if c.Source == "" {
		return "web"
	}
	return c.Source
}

// RecordList renders the attached records, which may be a list or a single value
func (c Consultation) RecordList() string {
	if len(c.Records) == 0 || string(c.Records) == "null" {
		return ""
	}
	var list []any
	if err := json.Unmarshal(c.Records, &list); err == nil {
		var parts []string
		for _, v := range list {
			if v == nil || v == "" || v == false {
				continue
			}
			parts = append(parts, strings.Trim(toString(v), " "))
		}
		return strings.Join(parts, ", ")
	}
	var single any
	if err := json.Unmarshal(c.Records, &single); err == nil {
		return toString(single)
	}
	return string(c.Records)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
