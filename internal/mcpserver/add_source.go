package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/workspace"
)

const maxSourceSize = fetcher.DefaultMaxInternalBytes

var (
	extToMime = map[string]string{
		".pdf":  "application/pdf",
		".txt":  "text/plain",
		".md":   "text/markdown",
		".html": "text/html",
		".htm":  "text/html",
		".csv":  "text/csv",
	}

	mimeToExt = map[string]string{
		"application/pdf": ".pdf",
		"text/plain":      ".txt",
		"text/markdown":   ".md",
		"text/html":       ".html",
		"text/csv":        ".csv",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type addSourceResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func (s *Server) addSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data        []byte
		detectedExt string
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, detectedExt, err = decodeDataURI(rawURL)
	} else {
		data, detectedExt, err = s.fetch(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(data) > maxSourceSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxSourceSize)), nil
	}

	filename := optionalString(req, "filename")
	if filename == "" {
		filename = filenameFromURL(rawURL, detectedExt)
	}
	filename = sanitizeFilename(filename)

	ext := strings.ToLower(filepath.Ext(filename))
	mimeType, ok := extToMime[ext]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension: %q (allowed: pdf, txt, md, html, csv)", ext)), nil
	}
	if err := validateContent(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	src, err := s.ws.Upload(ctx, workspace.UploadInput{
		Name:      filename,
		MimeType:  mimeType,
		ProjectID: optionalString(req, "project_id"),
		Body:      bytes.NewReader(data),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store source: %v", err)), nil
	}

	out, _ := json.Marshal(addSourceResult{ID: src.ID, Name: src.Name, Type: src.MimeType, Size: src.Size})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	meta, encoded := rest[:comma], rest[comma+1:]
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mediaType := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mediaType]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mediaType)
	}
	return data, ext, nil
}

// fetchHTTP downloads a document from an http(s) URL, refusing loopback and
// metadata hosts.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxSourceSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxSourceSize)
	}

	ct := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	return data, mimeToExt[ct], nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // the http client reports DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL takes the last path element of the URL, or a random name
// with fallbackExt.
func filenameFromURL(rawURL, fallbackExt string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	if fallbackExt == "" {
		fallbackExt = ".txt"
	}
	return uuid.NewString() + fallbackExt
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = safeFilenameRe.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." {
		name = uuid.NewString()
	}
	return name
}

// validateContent checks that the bytes plausibly match the extension.
func validateContent(data []byte, ext string) error {
	detected := http.DetectContentType(data)
	if ext == ".pdf" {
		if !strings.HasPrefix(detected, "application/pdf") {
			return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
		}
		return nil
	}
	if !strings.HasPrefix(detected, "text/") {
		return fmt.Errorf("content does not look like text (detected: %s)", detected)
	}
	return nil
}
