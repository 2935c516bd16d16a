package odm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultMaxPollErrors  = 10
	defaultRequestTimeout = 10 * time.Minute
)

type ClientOption func(c *Client)

// Client talks to a NodeODM processing node.
type Client struct {
	baseURL       *url.URL
	token         string
	httpClient    *http.Client
	maxPollErrors int
	log           *zap.SugaredLogger
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse node url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid node url %q", baseURL)
	}

	c := &Client{
		baseURL:       u,
		httpClient:    &http.Client{Timeout: defaultRequestTimeout},
		maxPollErrors: defaultMaxPollErrors,
		log:           zap.S().Named("odm_client"),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxPollErrors sets how many consecutive failed status checks AwaitCompletion tolerates.
func WithMaxPollErrors(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxPollErrors = n
		}
	}
}

// Submit creates a new task processing files with opts.
func (c *Client) Submit(ctx context.Context, files []string, name string, opts Options) (*Task, error) {
	if len(files) == 0 {
		return nil, NewErrSubmission(errors.New("no images to process"))
	}

	encodedOpts, err := json.Marshal(opts)
	if err != nil {
		return nil, NewErrSubmission(errors.Wrap(err, "failed to encode options"))
	}

	body, w := io.Pipe()
	mw := multipart.NewWriter(w)
	go func() {
		w.CloseWithError(writeTaskForm(mw, files, name, encodedOpts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("task", "new"), body)
	if err != nil {
		_ = body.Close()
		return nil, NewErrSubmission(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp newTaskResponse
	if err := c.do(req, &resp); err != nil {
		_ = body.Close()
		return nil, NewErrSubmission(err)
	}
	if resp.Error != "" {
		return nil, NewErrSubmission(&ErrNode{StatusCode: http.StatusOK, Message: resp.Error})
	}
	if resp.UUID == "" {
		return nil, NewErrSubmission(errors.New("node returned no task uuid"))
	}

	c.log.Infow("task created", "task_id", resp.UUID, "name", name, "images", len(files))
	return &Task{UUID: resp.UUID}, nil
}

func writeTaskForm(mw *multipart.Writer, files []string, name string, opts []byte) error {
	for _, f := range files {
		part, err := mw.CreateFormFile("images", filepath.Base(f))
		if err != nil {
			return err
		}
		if err := copyFile(part, f); err != nil {
			return err
		}
	}
	if err := mw.WriteField("name", name); err != nil {
		return err
	}
	if err := mw.WriteField("options", string(opts)); err != nil {
		return err
	}
	return mw.Close()
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

// Info performs a single status check of task.
func (c *Client) Info(ctx context.Context, task *Task) (*TaskInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("task", task.UUID, "info"), nil)
	if err != nil {
		return nil, err
	}

	var info struct {
		errorResponse
		TaskInfo
	}
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	if info.Error != "" {
		return nil, &ErrNode{StatusCode: http.StatusOK, Message: info.Error}
	}

	return &info.TaskInfo, nil
}

// NodeInfo returns the node version and load.
func (c *Client) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("info"), nil)
	if err != nil {
		return nil, err
	}

	var info NodeInfo
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = string(data)
		}
		return &ErrNode{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s", req.URL.Path)
	}
	return nil
}

func (c *Client) endpoint(elem ...string) string {
	u := c.baseURL.JoinPath(elem...)
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func (t Task) String() string {
	return fmt.Sprintf("task(%s)", t.UUID)
}
