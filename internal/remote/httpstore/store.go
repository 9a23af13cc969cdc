// Package httpstore implements remote.Store against a cloudsync server.
package httpstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"

	"focussync/internal/models"
	"focussync/internal/remote"
	"focussync/pkg/types"
)

var ErrUnauthorized = errors.New("cloudsync unauthorized")

type Store struct {
	client *resty.Client
}

// New builds a store for baseURL, the server root without the API prefix.
func New(baseURL, token string, timeout time.Duration) *Store {
	c := resty.New().
		SetTransport(newTransport()).
		SetTimeout(requestTimeout(timeout)).
		SetBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/") + types.APIPrefix).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if t := strings.TrimSpace(token); t != "" {
		c.SetAuthToken(t)
	}
	return NewWithClient(c)
}

// NewWithClient wraps a configured resty client whose base URL already
// includes the API prefix.
func NewWithClient(c *resty.Client) *Store {
	return &Store{client: c}
}

func (s *Store) Settings() remote.Settings   { return settingsTable{s} }
func (s *Store) Apps() remote.Apps           { return appsTable{s} }
func (s *Store) Reminders() remote.Reminders { return remindersTable{s} }
func (s *Store) Analytics() remote.Analytics { return analyticsTable{s} }

func (s *Store) request(ctx context.Context, userID string) *resty.Request {
	return s.client.R().
		SetContext(ctx).
		SetHeader(types.HeaderUserID, userID).
		SetError(&types.ErrorResponse{})
}

func (s *Store) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return pkgerrors.WithStack(fmt.Errorf("%w: %s %s: %w", models.ErrRemoteUnavailable, method, path, err))
	}
	if !resp.IsError() {
		return nil
	}
	return pkgerrors.WithStack(statusError(method+" "+path, resp))
}

// statusError maps a non-2xx response onto the remote error kinds.
func statusError(op string, resp *resty.Response) error {
	msg := resp.Status()
	if body, ok := resp.Error().(*types.ErrorResponse); ok && body.Error != "" {
		msg = body.Error
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %w", models.ErrRemoteRejected, op, ErrUnauthorized)
	case code == http.StatusBadRequest:
		return fmt.Errorf("%w: %s: %s", models.ErrInvalidArgument, op, msg)
	case code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s: %s", models.ErrMalformedRecord, op, msg)
	case code == http.StatusTooManyRequests, code == http.StatusBadGateway,
		code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s: %s", models.ErrRemoteUnavailable, op, msg)
	default:
		return fmt.Errorf("%w: %s: %d %s", models.ErrRemoteRejected, op, code, msg)
	}
}

// Presence fetches all four table counts with one request.
func (s *Store) Presence(ctx context.Context, userID string) (remote.Presence, error) {
	var out types.PresenceResponse
	if err := s.do(s.request(ctx, userID).SetResult(&out), http.MethodGet, "/presence"); err != nil {
		return remote.Presence{}, err
	}
	return remote.Presence{
		Settings:  out.Settings,
		Apps:      out.Apps,
		Reminders: out.Reminders,
		Analytics: out.Analytics,
	}, nil
}

func (s *Store) count(ctx context.Context, table, userID string) (int, error) {
	var out types.CountResponse
	if err := s.do(s.request(ctx, userID).SetResult(&out), http.MethodGet, "/"+table+"/count"); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *Store) delete(ctx context.Context, table, userID string) error {
	return s.do(s.request(ctx, userID), http.MethodDelete, "/"+table)
}

func fromWire(in []types.Record) []remote.Record {
	out := make([]remote.Record, 0, len(in))
	for _, r := range in {
		out = append(out, remote.Record{RowID: r.RowID, Data: r.Data})
	}
	return out
}

type settingsTable struct{ s *Store }

func (t settingsTable) Upsert(ctx context.Context, userID string, v models.Settings) error {
	if v == nil {
		v = models.Settings{}
	}
	return t.s.do(t.s.request(ctx, userID).SetBody(v), http.MethodPut, "/"+remote.TableSettings)
}

func (t settingsTable) Get(ctx context.Context, userID string) (models.Settings, bool, error) {
	var out types.SettingsResponse
	if err := t.s.do(t.s.request(ctx, userID).SetResult(&out), http.MethodGet, "/"+remote.TableSettings); err != nil {
		return nil, false, err
	}
	if !out.Found {
		return nil, false, nil
	}
	if out.Settings == nil {
		out.Settings = models.Settings{}
	}
	return out.Settings, true, nil
}

func (t settingsTable) Delete(ctx context.Context, userID string) error {
	return t.s.delete(ctx, remote.TableSettings, userID)
}

func (t settingsTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, remote.TableSettings, userID)
}

type appsTable struct{ s *Store }

func (t appsTable) Insert(ctx context.Context, userID string, a models.AppSelection) error {
	return t.s.do(t.s.request(ctx, userID).SetBody(a), http.MethodPost, "/"+remote.TableApps)
}

// Replace swaps the user's apps row in one server-side call.
func (t appsTable) Replace(ctx context.Context, userID string, a models.AppSelection) error {
	return t.s.do(t.s.request(ctx, userID).SetBody(a), http.MethodPut, "/"+remote.TableApps)
}

func (t appsTable) Get(ctx context.Context, userID string) (*models.AppSelection, error) {
	var out types.AppsResponse
	if err := t.s.do(t.s.request(ctx, userID).SetResult(&out), http.MethodGet, "/"+remote.TableApps); err != nil {
		return nil, err
	}
	if !out.Found {
		return nil, nil
	}
	if out.Apps == nil {
		return &models.AppSelection{Blocked: map[string]bool{}}, nil
	}
	return out.Apps, nil
}

func (t appsTable) Delete(ctx context.Context, userID string) error {
	return t.s.delete(ctx, remote.TableApps, userID)
}

func (t appsTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, remote.TableApps, userID)
}

type remindersTable struct{ s *Store }

func (t remindersTable) Insert(ctx context.Context, userID string, items []models.Reminder) error {
	if len(items) == 0 {
		return nil
	}
	body := types.RemindersRequest{Items: items}
	return t.s.do(t.s.request(ctx, userID).SetBody(body), http.MethodPost, "/"+remote.TableReminders)
}

func (t remindersTable) Replace(ctx context.Context, userID string, items []models.Reminder) error {
	if items == nil {
		items = []models.Reminder{}
	}
	body := types.RemindersRequest{Items: items}
	return t.s.do(t.s.request(ctx, userID).SetBody(body), http.MethodPut, "/"+remote.TableReminders)
}

func (t remindersTable) List(ctx context.Context, userID string) ([]remote.Record, error) {
	var out types.RecordsResponse
	if err := t.s.do(t.s.request(ctx, userID).SetResult(&out), http.MethodGet, "/"+remote.TableReminders); err != nil {
		return nil, err
	}
	return fromWire(out.Records), nil
}

func (t remindersTable) Delete(ctx context.Context, userID string) error {
	return t.s.delete(ctx, remote.TableReminders, userID)
}

func (t remindersTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, remote.TableReminders, userID)
}

type analyticsTable struct{ s *Store }

func (t analyticsTable) Insert(ctx context.Context, userID string, items []models.AnalyticsRecord) error {
	if len(items) == 0 {
		return nil
	}
	body := types.AnalyticsRequest{Items: items}
	return t.s.do(t.s.request(ctx, userID).SetBody(body), http.MethodPost, "/"+remote.TableAnalytics)
}

func (t analyticsTable) Replace(ctx context.Context, userID string, items []models.AnalyticsRecord) error {
	if items == nil {
		items = []models.AnalyticsRecord{}
	}
	body := types.AnalyticsRequest{Items: items}
	return t.s.do(t.s.request(ctx, userID).SetBody(body), http.MethodPut, "/"+remote.TableAnalytics)
}

func (t analyticsTable) List(ctx context.Context, userID string, limit int) ([]remote.Record, error) {
	var out types.RecordsResponse
	req := t.s.request(ctx, userID).SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	if err := t.s.do(req, http.MethodGet, "/"+remote.TableAnalytics); err != nil {
		return nil, err
	}
	return fromWire(out.Records), nil
}

func (t analyticsTable) Delete(ctx context.Context, userID string) error {
	return t.s.delete(ctx, remote.TableAnalytics, userID)
}

func (t analyticsTable) Count(ctx context.Context, userID string) (int, error) {
	return t.s.count(ctx, remote.TableAnalytics, userID)
}
