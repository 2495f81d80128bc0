package lookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripperFunc) *GitHub {
	g := NewGitHub("http://example.com/", time.Second)
	g.Client.Transport = fn
	return g
}

func TestLookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/facebook/react" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("lookup must not send an Authorization header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":10270250,"full_name":"facebook/react","html_url":"https://github.com/facebook/react","description":"The library for web and native user interfaces."}`)
	}))
	defer srv.Close()

	g := NewGitHub(srv.URL, time.Second)
	repo, err := g.Lookup(context.Background(), "facebook", "react")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.ID != 10270250 || repo.Name != "facebook/react" || repo.URL != "https://github.com/facebook/react" {
		t.Errorf("unexpected repository: %+v", repo)
	}
	if repo.Description == "" {
		t.Error("expected description to be set")
	}
}

func TestLookup_NullDescription(t *testing.T) {
	g := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "http://example.com/repos/a/b" {
			t.Errorf("unexpected URL: %s", req.URL)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"id":1,"full_name":"a/b","html_url":"u","description":null}`)),
		}, nil
	})

	repo, err := g.Lookup(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Description != "" {
		t.Errorf("description = %q; want empty", repo.Description)
	}
}

func TestLookup_Failures(t *testing.T) {
	tests := []struct {
		name       string
		rt         roundTripperFunc
		wantSubstr string
	}{
		{
			name: "network error",
			rt: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network down")
			},
			wantSubstr: "request failed",
		},
		{
			name: "not found",
			rt: func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusNotFound,
					Body:       io.NopCloser(strings.NewReader(`{"message":"Not Found"}`)),
				}, nil
			},
			wantSubstr: "server error: 404",
		},
		{
			name: "invalid JSON",
			rt: func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(strings.NewReader("not-json")),
				}, nil
			},
			wantSubstr: "invalid response",
		},
		{
			name: "missing fields",
			rt: func(req *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(strings.NewReader(`{}`)),
				}, nil
			},
			wantSubstr: "missing id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.rt).Lookup(context.Background(), "owner", "repo")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrLookup) {
				t.Errorf("error %v does not match ErrLookup", err)
			}
			var le *Error
			if !errors.As(err, &le) || le.Owner != "owner" || le.Name != "repo" {
				t.Errorf("expected *Error for owner/repo, got %#v", err)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error = %q; want substring %q", err.Error(), tt.wantSubstr)
			}
		})
	}
}

func TestLookup_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	g := NewGitHub(srv.URL, 20*time.Millisecond)
	_, err := g.Lookup(context.Background(), "slow", "repo")
	if !errors.Is(err, ErrLookup) {
		t.Fatalf("expected lookup error on timeout, got %v", err)
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		name      string
		wantError bool
	}{
		{in: "facebook/react", owner: "facebook", name: "react"},
		{in: "  golang/go  ", owner: "golang", name: "go"},
		{in: "a/b/c", owner: "a", name: "b"},
		{in: "react", wantError: true},
		{in: "/react", wantError: true},
		{in: "facebook/", wantError: true},
		{in: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, name, err := ParseQuery(tt.in)
			if tt.wantError {
				if !errors.Is(err, ErrInvalidQuery) || !errors.Is(err, ErrLookup) {
					t.Errorf("ParseQuery(%q) error = %v; want ErrInvalidQuery", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuery(%q) returned error: %v", tt.in, err)
			}
			if owner != tt.owner || name != tt.name {
				t.Errorf("ParseQuery(%q) = %q, %q; want %q, %q", tt.in, owner, name, tt.owner, tt.name)
			}
		})
	}
}

func TestNewGitHub_Defaults(t *testing.T) {
	g := NewGitHub("", 0)
	if g.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q; want %q", g.BaseURL, DefaultBaseURL)
	}
	if g.Client.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v; want %v", g.Client.Timeout, DefaultTimeout)
	}
}
