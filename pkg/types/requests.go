// Package types holds the JSON bodies exchanged between the cloudsync
// server and its HTTP remote-store client.
package types

import (
	"encoding/json"

	"focussync/internal/models"
)

const (
	HeaderUserID = "X-User-ID"
	APIPrefix    = "/api/focussync/v1"
)

type SettingsResponse struct {
	Found    bool            `json:"found"`
	Settings models.Settings `json:"settings,omitempty"`
}

type AppsResponse struct {
	Found bool                 `json:"found"`
	Apps  *models.AppSelection `json:"apps,omitempty"`
}

type RemindersRequest struct {
	Items []models.Reminder `json:"items"`
}

type AnalyticsRequest struct {
	Items []models.AnalyticsRecord `json:"items"`
}

// Record mirrors remote.Record. Data is null when the stored row is not
// valid JSON.
type Record struct {
	RowID string          `json:"rowId"`
	Data  json.RawMessage `json:"data"`
}

type RecordsResponse struct {
	Records []Record `json:"records"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type PresenceResponse struct {
	Settings  int  `json:"settings"`
	Apps      int  `json:"apps"`
	Reminders int  `json:"reminders"`
	Analytics int  `json:"analytics"`
	HasAny    bool `json:"hasAny"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeUnavailable     = "unavailable"
	CodeRejected        = "rejected"
	CodeMalformed       = "malformed"
	CodeUnauthorized    = "unauthorized"
)
