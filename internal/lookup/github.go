// Package lookup resolves "owner/name" repository identifiers against the
// public GitHub REST API.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/BranchLift/internal/models"
)

const (
	// DefaultBaseURL is the public GitHub API root.
	DefaultBaseURL = "https://api.github.com"
	// DefaultTimeout bounds the single lookup request.
	DefaultTimeout = 5 * time.Second
)

// ErrLookup is matched by every lookup failure.
var ErrLookup = errors.New("repository not found or GitHub API error")

// ErrInvalidQuery means the input was not of the form "owner/name".
var ErrInvalidQuery = errors.New("expected owner/name")

// Error describes a failed lookup. It unwraps to both ErrLookup and the cause.
type Error struct {
	Owner string
	Name  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lookup %s/%s: %v", e.Owner, e.Name, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrLookup, e.Err}
}

// GitHub fetches repository metadata. No authentication header is sent.
type GitHub struct {
	BaseURL string
	Client  *http.Client
}

// NewGitHub builds a client for baseURL with the given request timeout.
// Empty or zero arguments fall back to DefaultBaseURL and DefaultTimeout.
func NewGitHub(baseURL string, timeout time.Duration) *GitHub {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GitHub{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// ParseQuery splits "owner/name". Surrounding whitespace is ignored and
// segments past the second are dropped.
func ParseQuery(q string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(q), "/")
	if len(parts) < 2 {
		return "", "", &Error{Owner: strings.TrimSpace(q), Err: ErrInvalidQuery}
	}
	owner, name = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if owner == "" || name == "" {
		return "", "", &Error{Owner: owner, Name: name, Err: ErrInvalidQuery}
	}
	return owner, name, nil
}

type repoResponse struct {
	ID          int64   `json:"id"`
	FullName    string  `json:"full_name"`
	HTMLURL     string  `json:"html_url"`
	Description *string `json:"description"`
}

// Lookup performs GET {BaseURL}/repos/{owner}/{name}.
func (g *GitHub) Lookup(ctx context.Context, owner, name string) (*models.Repository, error) {
	fail := func(err error) (*models.Repository, error) {
		return nil, &Error{Owner: owner, Name: name, Err: err}
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s", g.BaseURL, url.PathEscape(owner), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(fmt.Errorf("server error: %d %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var body repoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fail(fmt.Errorf("invalid response: %w", err))
	}
	if body.ID == 0 || body.FullName == "" {
		return fail(errors.New("invalid response: missing id or full_name"))
	}

	repo := &models.Repository{
		ID:   body.ID,
		Name: body.FullName,
		URL:  body.HTMLURL,
	}
	if body.Description != nil {
		repo.Description = *body.Description
	}
	return repo, nil
}
