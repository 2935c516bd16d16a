package odm

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FetchAssets downloads the asset bundle of a completed task and extracts it into dst.
// It returns dst.
func (c *Client) FetchAssets(ctx context.Context, task *Task, dst string) (string, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", NewErrRetrieval(task.UUID, err)
	}

	archive, err := os.CreateTemp(dst, "assets-*.zip")
	if err != nil {
		return "", NewErrRetrieval(task.UUID, err)
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	if err := c.download(ctx, c.endpoint("task", task.UUID, "download", "all.zip"), archive); err != nil {
		return "", NewErrRetrieval(task.UUID, err)
	}

	if err := extract(archive, dst); err != nil {
		return "", NewErrRetrieval(task.UUID, err)
	}

	c.log.Infow("task assets downloaded", "task_id", task.UUID, "destination", dst)
	return dst, nil
}

func (c *Client) download(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to download assets")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ErrNode{StatusCode: resp.StatusCode, Message: string(data)}
	}

	_, err = io.Copy(dst, resp.Body)
	return err
}

func extract(archive *os.File, dst string) error {
	info, err := archive.Stat()
	if err != nil {
		return err
	}

	r, err := zip.NewReader(archive, info.Size())
	if err != nil {
		return errors.Wrap(err, "invalid assets archive")
	}

	root, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
