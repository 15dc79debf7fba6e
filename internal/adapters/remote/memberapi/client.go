package memberapi

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

	domain "gymdesk/internal/domain/member"

	"github.com/oapi-codegen/nullable"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client is the HTTP implementation of Store.
type Client struct {
	baseURL string
	http    *http.Client
}

// Compile-time check that *Client satisfies Store.
var _ Store = (*Client)(nil)

// NewClient returns a client for the member service at baseURL.
// PRE: baseURL is an absolute URL
// POST: nil httpClient falls back to http.DefaultClient
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// writeBody is the JSON sent on create and update. Optional fields travel
// as explicit null when blank so the store clears them instead of
// receiving an empty string it would reject as an enumeration value.
type writeBody struct {
	FirstName      string                    `json:"nombre"`
	LastName       string                    `json:"apellido"`
	Code           nullable.Nullable[string] `json:"codigo"`
	Department     nullable.Nullable[string] `json:"departamento"`
	Gender         nullable.Nullable[string] `json:"genero"`
	BirthDate      nullable.Nullable[string] `json:"fecha_nacimiento"`
	StartDate      string                    `json:"fecha_inicio"`
	EndDate        string                    `json:"fecha_fin"`
	Phone          string                    `json:"celular"`
	Email          string                    `json:"email"`
	Address        string                    `json:"direccion"`
	DocumentType   string                    `json:"tipo_documento"`
	DocumentNumber string                    `json:"numero_documento"`
}

func optional(s string) nullable.Nullable[string] {
	if s == "" {
		return nullable.NewNullNullable[string]()
	}
	return nullable.NewNullableWithValue(s)
}

func newWriteBody(f domain.Fields) writeBody {
	return writeBody{
		FirstName:      f.FirstName,
		LastName:       f.LastName,
		Code:           optional(f.Code),
		Department:     optional(f.Department),
		Gender:         optional(f.Gender),
		BirthDate:      optional(f.BirthDate),
		StartDate:      f.StartDate,
		EndDate:        f.EndDate,
		Phone:          f.Phone,
		Email:          f.Email,
		Address:        f.Address,
		DocumentType:   f.DocumentType,
		DocumentNumber: f.DocumentNumber,
	}
}

// Create posts a new member.
// PRE: fields passed local validation
// POST: returns the stored record with its assigned ID
func (c *Client) Create(ctx context.Context, fields domain.Fields) (domain.Member, error) {
	var out domain.Member
	err := c.do(ctx, http.MethodPost, "/usuarios", newWriteBody(fields), &out, "error creating member")
	if err != nil {
		return domain.Member{}, err
	}
	if out.ID == 0 {
		return domain.Member{}, fmt.Errorf("member service returned no id")
	}
	return out, nil
}

// List fetches members, optionally filtered by department.
func (c *Client) List(ctx context.Context, filter ListFilter) ([]domain.Member, error) {
	q := url.Values{}
	if filter.Skip > 0 {
		q.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Department != "" {
		q.Set("departamento", filter.Department)
	}
	path := "/usuarios"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []domain.Member
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "error listing members"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches one member.
// POST: returns an error wrapping ErrNotFound on 404
func (c *Client) GetByID(ctx context.Context, id int64) (domain.Member, error) {
	var out domain.Member
	if err := c.do(ctx, http.MethodGet, memberPath(id), nil, &out, "error fetching member"); err != nil {
		return domain.Member{}, notFound(id, err)
	}
	return out, nil
}

// Update replaces the editable fields of member id.
// PRE: id > 0, fields passed local validation
// POST: returns the updated record; ErrNotFound on 404
func (c *Client) Update(ctx context.Context, id int64, fields domain.Fields) (domain.Member, error) {
	var out domain.Member
	err := c.do(ctx, http.MethodPut, memberPath(id), newWriteBody(fields), &out, "error updating member")
	if err != nil {
		return domain.Member{}, notFound(id, err)
	}
	return out, nil
}

// Delete removes member id.
// POST: returns an error wrapping ErrNotFound on 404
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, memberPath(id), nil, nil, "error deleting member"); err != nil {
		return notFound(id, err)
	}
	return nil
}

// Search runs the store's own name/code/document search.
func (c *Client) Search(ctx context.Context, term string) ([]domain.Member, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	var out []domain.Member
	path := "/usuarios/buscar/" + url.PathEscape(term)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "error searching members"); err != nil {
		return nil, err
	}
	return out, nil
}

// MembershipStatus asks the store whether member id's membership is current.
func (c *Client) MembershipStatus(ctx context.Context, id int64) (Membership, error) {
	var out Membership
	path := "/membresia/estado/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "error checking membership"); err != nil {
		return Membership{}, notFound(id, err)
	}
	return out, nil
}

func memberPath(id int64) string {
	return "/usuarios/" + strconv.FormatInt(id, 10)
}

func notFound(id int64, err error) error {
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return err
}

// do sends one request and decodes a JSON response into out (if non-nil).
// Non-2xx responses become *ValidationError or *APIError; fallback is the
// message used when the store sent no readable detail.
func (c *Client) do(ctx context.Context, method, path string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("member service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeError(resp.StatusCode, raw, fallback)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode member service response: %w", err)
	}
	return nil
}
