package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// APIError is a non-2xx answer of the listing API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("listing api: %d %s", e.Status, e.Message)
}

// Unwrap maps the HTTP status back onto the domain error classes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrListingNotFound
	case http.StatusRequestEntityTooLarge:
		return domain.ErrPayloadTooLarge
	case http.StatusUnsupportedMediaType:
		return domain.ErrUnsupportedMediaType
	default:
		return domain.ErrStorage
	}
}

type SubmittedImage struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	IsMain bool   `json:"isMain"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SubmitResult is the created listing summary.
type SubmitResult struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	HaveImage      bool             `json:"haveImage"`
	FirstImagePath *string          `json:"firstImagePath"`
	Images         []SubmittedImage `json:"images"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logger.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient talks to the listing API at baseURL with the operator's token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Options lists the taxonomy children of parentID, optionally of one tag.
func (c *Client) Options(ctx context.Context, parentID, tag string) ([]domain.TaxonomyNode, error) {
	q := url.Values{}
	if parentID != "" {
		q.Set("parentId", parentID)
	}
	if tag != "" {
		q.Set("tag", tag)
	}
	path := "/options"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Options []domain.TaxonomyNode `json:"options"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Options, nil
}

// Classification fetches what step 1 needs to validate the chosen type and
// category.
func (c *Client) Classification(ctx context.Context, typeID, categoryID string) (Classification, error) {
	var cl Classification
	types, err := c.Options(ctx, "", "")
	if err != nil {
		return cl, err
	}
	if t, ok := findNode(types, typeID); ok {
		cl.Type = t
	}
	if typeID == "" {
		return cl, nil
	}
	if cl.Categories, err = c.Options(ctx, typeID, ""); err != nil {
		return cl, err
	}
	if categoryID == "" {
		return cl, nil
	}
	cl.SubCategories, err = c.Options(ctx, categoryID, "")
	return cl, err
}

func (c *Client) Regions(ctx context.Context) ([]domain.TaxonomyNode, error) {
	return c.Options(ctx, "", domain.TagRegion)
}

// SubRegions is refetched every time the region changes.
func (c *Client) SubRegions(ctx context.Context, regionID string) ([]domain.TaxonomyNode, error) {
	if regionID == "" {
		return nil, nil
	}
	return c.Options(ctx, regionID, domain.TagSubRegion)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(d Draft) (*bytes.Buffer, string, error) {
	f := d.Fields()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		domain.FormTypeID:           f.TypeID,
		domain.FormCategoryID:       f.CategoryID,
		domain.FormSubCategoryID:    f.SubCategoryID,
		domain.FormDescription:      f.Description,
		domain.FormContact:          f.Contact,
		domain.FormRegionID:         f.RegionID,
		domain.FormSubRegionID:      f.SubRegionID,
		domain.FormTypeName:         f.TypeName,
		domain.FormTypeNameAr:       f.TypeNameAr,
		domain.FormCategoryName:     f.CategoryName,
		domain.FormCategoryNameAr:   f.CategoryNameAr,
		domain.FormClassificationFr: f.ClassificationFr,
		domain.FormClassificationAr: f.ClassificationAr,
		domain.FormIsBroker:         strconv.FormatBool(f.IsBroker),
		domain.FormIsPublished:      strconv.FormatBool(f.IsPublished),
		domain.FormIsSponsored:      strconv.FormatBool(f.IsSponsored),
		domain.FormMainIndex:        strconv.Itoa(d.mainIndex),
	}
	if f.Price != nil {
		fields[domain.FormPrice] = strconv.FormatFloat(*f.Price, 'f', -1, 64)
	}
	if f.DirectNegotiation != nil {
		fields[domain.FormDirectNegotiation] = strconv.FormatBool(*f.DirectNegotiation)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	for _, file := range d.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, domain.FormFiles, quoteEscaper.Replace(file.Name)))
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// Submit sends the draft as one multipart request. On any failure the
// returned Draft is the one passed in so the operator can retry.
func (c *Client) Submit(ctx context.Context, d Draft) (Draft, *SubmitResult, error) {
	if err := d.ReadyToSubmit(); err != nil {
		return d, nil, err
	}
	body, contentType, err := encodeForm(d)
	if err != nil {
		return d, nil, fmt.Errorf("encode draft: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/listings", body)
	if err != nil {
		return d, nil, err
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("Client.Submit: submitting draft", "files", len(d.files), "type_id", d.details.TypeID)
	var res SubmitResult
	if err := c.do(req, &res); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("Client.Submit: rejected", "status", apiErr.Status, "error", apiErr.Message)
		} else {
			c.logger.Error("Client.Submit: request failed", "error", err)
		}
		return d, nil, err
	}
	c.logger.Info("Client.Submit: listing created", "listing_id", res.ID, "have_image", res.HaveImage)
	return d.submitted(), &res, nil
}
