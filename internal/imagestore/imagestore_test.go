package imagestore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
)

type mockObjectStore struct {
	puts        []string
	contentType string
	data        []byte
	err         error
}

func (m *mockObjectStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.puts = append(m.puts, name)
	m.contentType = contentType
	m.data = data
	return "https://storage.example/" + name, nil
}

func newMockClient(t *testing.T, url string, responder httpmock.Responder) *http.Client {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", url, responder)
	return &http.Client{Transport: transport}
}

func imageResponder(body []byte, contentType string) httpmock.Responder {
	resp := httpmock.NewBytesResponse(200, body)
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return httpmock.ResponderFromResponse(resp)
}

func TestTransfer_Success(t *testing.T) {
	imageURL := "https://cdn.dealsmagnet.com/images/phone.png?w=300"
	body := []byte("\x89PNG fake image")
	store := &mockObjectStore{}
	tr := New(store, newMockClient(t, imageURL, imageResponder(body, "image/png")))

	res, err := tr.Transfer(context.Background(), imageURL, "abc123")
	if err != nil {
		t.Fatalf("Transfer() returned error: %v", err)
	}
	if len(store.puts) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(store.puts))
	}
	name := store.puts[0]
	if !strings.HasPrefix(name, "deals/images/abc123_") || !strings.HasSuffix(name, ".png") {
		t.Errorf("Unexpected object name %q", name)
	}
	if store.contentType != "image/png" {
		t.Errorf("Content type not preserved, got %q", store.contentType)
	}
	if res.HostedURL != "https://storage.example/"+name {
		t.Errorf("Unexpected hosted URL %q", res.HostedURL)
	}
	if string(res.Bytes) != string(body) {
		t.Error("Result should carry the original bytes")
	}
}

func TestTransfer_FailuresReturnNoResult(t *testing.T) {
	imageURL := "https://cdn.example.com/a.jpg"
	tests := []struct {
		name      string
		responder httpmock.Responder
		storeErr  error
	}{
		{"Not found", httpmock.NewStringResponder(404, "missing"), nil},
		{"Server error", httpmock.NewStringResponder(500, ""), nil},
		{"Network error", httpmock.NewErrorResponder(errors.New("connection reset")), nil},
		{"Empty body", httpmock.NewBytesResponder(200, nil), nil},
		{"Store error", imageResponder([]byte("jpeg"), "image/jpeg"), errors.New("bucket unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockObjectStore{err: tt.storeErr}
			tr := New(store, newMockClient(t, imageURL, tt.responder))

			res, err := tr.Transfer(context.Background(), imageURL, "id")
			if err == nil || res != nil {
				t.Errorf("Expected failure, got result=%v err=%v", res, err)
			}
			if len(store.puts) != 0 {
				t.Errorf("Nothing should be stored, got %v", store.puts)
			}
		})
	}
}

func TestTransfer_DetectsMissingContentType(t *testing.T) {
	imageURL := "https://cdn.example.com/a"
	store := &mockObjectStore{}
	body := []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	tr := New(store, newMockClient(t, imageURL, imageResponder(body, "")))

	if _, err := tr.Transfer(context.Background(), imageURL, "id"); err != nil {
		t.Fatalf("Transfer() returned error: %v", err)
	}
	if store.contentType != "image/jpeg" {
		t.Errorf("Expected sniffed image/jpeg, got %q", store.contentType)
	}
	if !strings.HasSuffix(store.puts[0], ".jpg") {
		t.Errorf("Expected default .jpg extension, got %q", store.puts[0])
	}
}

func TestObjectName_Unique(t *testing.T) {
	a := ObjectName("same", "https://x.com/i.webp")
	b := ObjectName("same", "https://x.com/i.webp")
	if a == b {
		t.Error("Object names for the same id should differ")
	}
	if !strings.HasSuffix(a, ".webp") {
		t.Errorf("Expected .webp extension, got %q", a)
	}
}
