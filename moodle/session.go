package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

const (
	// ServicePath is the REST endpoint every operation is sent to
	ServicePath = "/webservice/rest/server.php"
	// SiteInfoOperation is the discovery call issued by Connect
	SiteInfoOperation = "core_webservice_get_site_info"

	defaultTimeout = 60 * time.Second
	defaultMaxBody = 32 << 20
)

// Option configures a Session
type Option func(*Session)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.client.Timeout = timeout
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxResponseBody caps the number of bytes read from a response
func WithMaxResponseBody(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

type siteInfo struct {
	Username      string `json:"username"`
	UserID        int64  `json:"userid"`
	FullName      string `json:"fullname"`
	SiteName      string `json:"sitename"`
	PrivateKey    string `json:"userprivateaccesskey"`
	FunctionsList []struct {
		Name string `json:"name"`
	} `json:"functions"`
}

// Session is an authenticated connection to one Moodle site.
// After Connect it is safe for concurrent use.
type Session struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	maxBody int64

	mu         sync.RWMutex
	token      string
	user       models.Identity
	privateKey string
	catalogue  *Catalogue
}

// New creates an unconnected session for baseURL.
func New(baseURL string, opts ...Option) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = errors.New("base url must be an absolute http(s) url")
		}
		return nil, models.ErrTransport("", baseURL, err)
	}

	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Connect authenticates with token and discovers the operations enabled
// for it. It issues exactly one remote call. Calling it again rebuilds
// the catalogue from scratch.
func (s *Session) Connect(ctx context.Context, token string) error {
	if token == "" {
		return models.ErrTransport(SiteInfoOperation, s.serviceURL(), errors.New("missing access token"))
	}

	raw, err := s.send(ctx, token, http.MethodGet, SiteInfoOperation, nil)
	if err != nil {
		return err
	}

	var info siteInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return models.ErrTransport(SiteInfoOperation, s.serviceURL(), fmt.Errorf("decode site info: %w", err))
	}

	names := make([]string, 0, len(info.FunctionsList))
	for _, f := range info.FunctionsList {
		names = append(names, f.Name)
	}
	catalogue := NewCatalogue(names)

	s.mu.Lock()
	s.token = token
	s.user = models.Identity{
		Username: info.Username,
		UserID:   info.UserID,
		FullName: info.FullName,
		SiteName: info.SiteName,
	}
	s.privateKey = info.PrivateKey
	s.catalogue = catalogue
	s.mu.Unlock()

	s.logger.Info("connected to moodle",
		zap.String("url", s.baseURL),
		zap.String("user", info.Username),
		zap.Int("operations", catalogue.Len()))
	return nil
}

// Connected reports whether Connect has succeeded.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogue != nil
}

// BaseURL returns the site url without trailing slash.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// User returns the identity reported at connect time.
func (s *Session) User() models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Catalogue returns the discovered namespace, nil before Connect.
func (s *Session) Catalogue() *Catalogue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogue
}

// HasOperation reports whether name was discovered.
func (s *Session) HasOperation(name string) bool {
	return s.Catalogue().Has(name)
}

// Call dispatches a full operation name with the method its verb implies.
func (s *Session) Call(ctx context.Context, operation string, params map[string]any) (any, error) {
	op, ok := s.Catalogue().Operation(operation)
	if !ok {
		op = ParseOperation(operation)
	}
	if op.IsWrite() {
		return s.Post(ctx, operation, params)
	}
	return s.Get(ctx, operation, params)
}

// Invoke dispatches through the module/verb/resource namespace.
// Abbreviated resources are accepted.
func (s *Session) Invoke(ctx context.Context, module, verb, resource string, params map[string]any) (any, error) {
	op, ok := s.Catalogue().Lookup(module, verb, resource)
	if !ok {
		return nil, models.ErrCapability(strings.Join([]string{module, verb, resource}, "_"))
	}
	if op.IsWrite() {
		return s.Post(ctx, op.Name, params)
	}
	return s.Get(ctx, op.Name, params)
}

// Get performs a retrieval: parameters travel in the query string.
func (s *Session) Get(ctx context.Context, operation string, params map[string]any) (any, error) {
	raw, err := s.send(ctx, s.currentToken(), http.MethodGet, operation, params)
	if err != nil {
		return nil, err
	}
	return decodeResult(operation, s.serviceURL(), raw)
}

// Post performs a submission: parameters travel in a form body, which
// must not be empty.
func (s *Session) Post(ctx context.Context, operation string, params map[string]any) (any, error) {
	raw, err := s.send(ctx, s.currentToken(), http.MethodPost, operation, params)
	if err != nil {
		return nil, err
	}
	return decodeResult(operation, s.serviceURL(), raw)
}

// Download streams fileURL into w, authenticated with the private key
// returned at connect time.
func (s *Session) Download(ctx context.Context, fileURL string, w io.Writer) error {
	s.mu.RLock()
	key := s.privateKey
	s.mu.RUnlock()

	if key == "" {
		return models.ErrTransport("", fileURL, errors.New("no private access key, connect first"))
	}

	u, err := url.Parse(fileURL)
	if err != nil {
		return models.ErrTransport("", fileURL, err)
	}
	q := u.Query()
	q.Set("token", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.ErrTransport("", fileURL, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return models.ErrTransport("", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ErrTransport("", fileURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return models.ErrTransport("", fileURL, err)
	}
	return nil
}

// DownloadFile stores fileURL at path.
func (s *Session) DownloadFile(ctx context.Context, fileURL, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.Download(ctx, fileURL, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *Session) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) serviceURL() string {
	return s.baseURL + ServicePath
}

// requestURL builds the service url with the fixed query parameters.
func (s *Session) requestURL(token, operation string) string {
	q := url.Values{}
	q.Set("moodlewsrestformat", "json")
	q.Set("wsfunction", operation)
	q.Set("wstoken", token)
	return s.serviceURL() + "?" + q.Encode()
}

func (s *Session) send(ctx context.Context, token, method, operation string, params map[string]any) ([]byte, error) {
	encoded := EncodeParams(params)
	target := s.requestURL(token, operation)

	var body io.Reader
	switch method {
	case http.MethodPost:
		if encoded == "" {
			return nil, models.ErrTransport(operation, s.serviceURL(), errors.New("cannot post empty data"))
		}
		body = strings.NewReader(encoded)
	default:
		if encoded != "" {
			target += "&" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, models.ErrTransport(operation, s.serviceURL(), err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, models.ErrTransport(operation, s.serviceURL(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, models.ErrTransport(operation, s.serviceURL(), fmt.Errorf("read response: %w", err))
	}

	s.logger.Debug("remote call",
		zap.String("operation", operation),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.ErrTransport(operation, s.serviceURL(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if fault := parseFault(raw); fault != nil {
		fault.Operation = operation
		fault.Path = redactedPath(req.URL)
		return nil, fault
	}
	return raw, nil
}

// parseFault returns a DomainError when raw is an object carrying an
// "exception" key, whatever its value.
func parseFault(raw []byte) *models.DomainError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil
	}
	if _, ok := body["exception"]; !ok {
		return nil
	}
	return &models.DomainError{
		Code:    faultField(body["errorcode"]),
		Message: faultField(body["message"]),
		Debug:   faultField(body["debuginfo"]),
	}
}

// faultField renders a fault member as text; non-string values keep
// their JSON form.
func faultField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func decodeResult(operation, serviceURL string, raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, models.ErrTransport(operation, serviceURL, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// redactedPath renders the request path with the access token masked.
func redactedPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	parts := strings.Split(u.RawQuery, "&")
	for i, p := range parts {
		if strings.HasPrefix(p, "wstoken=") {
			parts[i] = "wstoken=REDACTED"
		}
	}
	return u.Path + "?" + strings.Join(parts, "&")
}

var _ models.Session = (*Session)(nil)
