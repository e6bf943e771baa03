// File: internal/infra/adapters/integrity/client.go
package integrity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/infra/logging"
	"integrity-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.IntegrityService = (*Client)(nil)

const (
	headerIntegrationName    = "X-Turnitin-Integration-Name"
	headerIntegrationVersion = "X-Turnitin-Integration-Version"
	contentTypeJSON          = "application/json"
	contentTypeBinary        = "binary/octet-stream"
	maxErrorBody             = 4 << 10
)

// SettingsSource resolves the credentials bundle; the client asks for it on every call.
type SettingsSource interface {
	IntegritySettings(ctx context.Context) (*model.IntegritySettings, error)
}

// Client implements adapter.IntegrityService against the Turnitin Core API (TCA).
type Client struct {
	settings SettingsSource
	client   *http.Client
	log      *zerolog.Logger
}

func NewClient(settings SettingsSource, httpClient *http.Client, logger *zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	l := logger.With().Str("component", "IntegrityClient").Logger()
	return &Client{settings: settings, client: httpClient, log: &l}
}

type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	header      http.Header
}

// do sends req and returns the response for a 2xx status. The caller closes the body.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	s, err := c.settings.IntegritySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("integrity %s: %w", req.op, err)
	}
	endpoint := strings.TrimRight(s.APIURL, "/") + req.path

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, req.body)
	if err != nil {
		return nil, fmt.Errorf("integrity %s: build request: %w", req.op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)
	httpReq.Header.Set(headerIntegrationName, s.IntegrationName)
	httpReq.Header.Set(headerIntegrationVersion, s.IntegrationVersion)
	httpReq.Header.Set("Accept", contentTypeJSON)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveIntegrityCall(req.op, 0, latency)
		return nil, fmt.Errorf("integrity %s: %w", req.op, err)
	}
	metrics.ObserveIntegrityCall(req.op, resp.StatusCode, latency)
	logging.With(ctx, c.log).Debug().Str("op", req.op).Int("status", resp.StatusCode).Int64("latency_ms", latency).Msg("integrity call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(req.op, resp)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("integrity %s: encode: %w", op, err)
		}
		body = bytes.NewReader(b)
		contentType = contentTypeJSON
	}
	resp, err := c.do(ctx, request{op: op, method: method, path: path, body: body, contentType: contentType})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("integrity %s: decode: %w", op, err)
	}
	return nil
}

// decodeError turns a non-2xx response into *adapter.RemoteError, keeping the vendor message.
func decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(raw, &body) == nil {
		msg = body.Message
		if msg == "" {
			msg = body.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &adapter.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

func (c *Client) Features(ctx context.Context) (*adapter.Features, error) {
	var out struct {
		Tenant struct {
			RequireEULA bool `json:"require_eula"`
		} `json:"tenant"`
	}
	if err := c.doJSON(ctx, "features_enabled", http.MethodGet, "/features-enabled", nil, &out); err != nil {
		return nil, err
	}
	return &adapter.Features{RequireEULA: out.Tenant.RequireEULA}, nil
}

type eulaPayload struct {
	AcceptedTimestamp time.Time `json:"accepted_timestamp"`
	Language          string    `json:"language"`
	Version           string    `json:"version"`
}

type createSubmissionPayload struct {
	Owner                         string                      `json:"owner"`
	Submitter                     string                      `json:"submitter,omitempty"`
	Title                         string                      `json:"title"`
	OwnerDefaultPermissionSet     string                      `json:"owner_default_permission_set"`
	SubmitterDefaultPermissionSet string                      `json:"submitter_default_permission_set"`
	Metadata                      *adapter.SubmissionMetadata `json:"metadata,omitempty"`
	EULA                          *eulaPayload                `json:"eula,omitempty"`
}

func (c *Client) CreateSubmission(ctx context.Context, req adapter.CreateSubmissionRequest) (*adapter.RemoteSubmission, error) {
	payload := createSubmissionPayload{
		Owner:                         req.Owner,
		Submitter:                     req.Submitter,
		Title:                         req.Title,
		OwnerDefaultPermissionSet:     "LEARNER",
		SubmitterDefaultPermissionSet: "INSTRUCTOR",
		Metadata:                      req.Metadata,
	}
	if req.EULA != nil {
		payload.EULA = &eulaPayload{
			AcceptedTimestamp: req.EULA.AcceptedAt.UTC(),
			Language:          req.EULA.Language,
			Version:           req.EULA.Version,
		}
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, "create_submission", http.MethodPost, "/submissions", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("integrity create_submission: response carried no submission id")
	}
	return &adapter.RemoteSubmission{ID: out.ID, Status: out.Status}, nil
}

func (c *Client) UploadOriginal(ctx context.Context, submissionID string, data []byte, fileName string) error {
	h := http.Header{}
	h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": fileName}))
	resp, err := c.do(ctx, request{
		op:          "upload_original",
		method:      http.MethodPut,
		path:        "/submissions/" + url.PathEscape(submissionID) + "/original",
		body:        bytes.NewReader(data),
		contentType: contentTypeBinary,
		header:      h,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) RequestSimilarityReport(ctx context.Context, submissionID string, opts adapter.SimilarityOptions) error {
	payload := map[string]any{
		"generation_settings": map[string]any{
			"search_repositories":              opts.SearchRepositories,
			"auto_exclude_self_matching_scope": "ALL",
			"priority":                         opts.Priority,
		},
	}
	path := "/submissions/" + url.PathEscape(submissionID) + "/similarity"
	return c.doJSON(ctx, "request_similarity", http.MethodPut, path, payload, nil)
}

func (c *Client) GetSimilarityReport(ctx context.Context, submissionID string) (*adapter.SimilarityReport, error) {
	var out struct {
		Status                        string    `json:"status"`
		OverallMatchPercentage        float64   `json:"overall_match_percentage"`
		InternetMatchPercentage       float64   `json:"internet_match_percentage"`
		PublicationMatchPercentage    float64   `json:"publication_match_percentage"`
		SubmittedWorksMatchPercentage float64   `json:"submitted_works_match_percentage"`
		TimeGenerated                 time.Time `json:"time_generated"`
	}
	path := "/submissions/" + url.PathEscape(submissionID) + "/similarity"
	if err := c.doJSON(ctx, "get_similarity", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &adapter.SimilarityReport{
		Status:              adapter.ReportStatus(strings.ToUpper(out.Status)),
		OverallMatch:        out.OverallMatchPercentage,
		InternetMatch:       out.InternetMatchPercentage,
		PublicationMatch:    out.PublicationMatchPercentage,
		SubmittedWorksMatch: out.SubmittedWorksMatchPercentage,
		TimeGenerated:       out.TimeGenerated,
	}, nil
}

func (c *Client) RequestPDF(ctx context.Context, submissionID, locale string) (*adapter.PDFArtifact, error) {
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := "/submissions/" + url.PathEscape(submissionID) + "/similarity/pdf"
	if err := c.doJSON(ctx, "request_pdf", http.MethodPost, path, map[string]string{"locale": locale}, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("integrity request_pdf: response carried no pdf id")
	}
	status := adapter.ArtifactStatus(strings.ToUpper(out.Status))
	if status == "" {
		status = adapter.ArtifactStatusPending
	}
	return &adapter.PDFArtifact{ID: out.ID, Status: status}, nil
}

func (c *Client) GetPDFStatus(ctx context.Context, submissionID, pdfID string) (*adapter.PDFArtifact, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := "/submissions/" + url.PathEscape(submissionID) + "/similarity/pdf/" + url.PathEscape(pdfID) + "/status"
	if err := c.doJSON(ctx, "get_pdf_status", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &adapter.PDFArtifact{ID: pdfID, Status: adapter.ArtifactStatus(strings.ToUpper(out.Status))}, nil
}

func (c *Client) DownloadPDF(ctx context.Context, submissionID, pdfID string) ([]byte, error) {
	h := http.Header{}
	h.Set("Accept", "application/pdf")
	resp, err := c.do(ctx, request{
		op:     "download_pdf",
		method: http.MethodGet,
		path:   "/submissions/" + url.PathEscape(submissionID) + "/similarity/pdf/" + url.PathEscape(pdfID),
		header: h,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("integrity download_pdf: read body: %w", err)
	}
	return data, nil
}

func (c *Client) LatestEULA(ctx context.Context) (*adapter.EULAVersion, error) {
	var out struct {
		Version            string   `json:"version"`
		AvailableLanguages []string `json:"available_languages"`
	}
	if err := c.doJSON(ctx, "latest_eula", http.MethodGet, "/eula/latest", nil, &out); err != nil {
		return nil, err
	}
	return &adapter.EULAVersion{Version: out.Version, AvailableLanguages: out.AvailableLanguages}, nil
}

type eulaAcceptanceJSON struct {
	UserID            string    `json:"user_id"`
	AcceptedTimestamp time.Time `json:"accepted_timestamp"`
	Language          string    `json:"language"`
	Version           string    `json:"version"`
}

func (a eulaAcceptanceJSON) toAdapter() *adapter.EULAAcceptance {
	return &adapter.EULAAcceptance{
		UserID:     a.UserID,
		Version:    a.Version,
		AcceptedAt: a.AcceptedTimestamp,
		Language:   a.Language,
	}
}

// GetEULAAcceptance returns the most recent acceptance; an empty list is reported as a 404.
func (c *Client) GetEULAAcceptance(ctx context.Context, version, userID string) (*adapter.EULAAcceptance, error) {
	var out []eulaAcceptanceJSON
	path := "/eula/" + url.PathEscape(version) + "/accept/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, "get_eula_acceptance", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &adapter.RemoteError{Op: "get_eula_acceptance", StatusCode: http.StatusNotFound, Message: "no acceptance recorded"}
	}
	latest := out[0]
	for _, a := range out[1:] {
		if a.AcceptedTimestamp.After(latest.AcceptedTimestamp) {
			latest = a
		}
	}
	if latest.Version == "" {
		latest.Version = version
	}
	return latest.toAdapter(), nil
}

func (c *Client) AcceptEULA(ctx context.Context, acc adapter.EULAAcceptance) (*adapter.EULAAcceptance, error) {
	in := eulaAcceptanceJSON{
		UserID:            acc.UserID,
		AcceptedTimestamp: acc.AcceptedAt.UTC(),
		Language:          acc.Language,
		Version:           acc.Version,
	}
	var out eulaAcceptanceJSON
	path := "/eula/" + url.PathEscape(acc.Version) + "/accept"
	if err := c.doJSON(ctx, "accept_eula", http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	if out.Version == "" {
		out = in
	}
	return out.toAdapter(), nil
}
