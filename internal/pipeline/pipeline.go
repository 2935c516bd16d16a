package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/orthoflow/orthoflow/internal/config"
	"github.com/orthoflow/orthoflow/internal/metadata"
	"github.com/orthoflow/orthoflow/internal/notifier"
	"github.com/orthoflow/orthoflow/internal/odm"
	"github.com/orthoflow/orthoflow/internal/storage"
	"github.com/orthoflow/orthoflow/internal/store"
	"github.com/orthoflow/orthoflow/internal/store/model"
	"github.com/orthoflow/orthoflow/pkg/metrics"
	"github.com/orthoflow/orthoflow/pkg/requestid"
)

const (
	// OutcomeSuccess labels the runs that committed their result. Aborted runs
	// are labelled with their Kind.
	OutcomeSuccess = "success"

	orthophotoAsset     = "odm_orthophoto/odm_orthophoto.tif"
	orthophotoObject    = "odm_orthophoto.tif"
	metadataObject      = "metadata.txt"
	orthophotoMediaType = "image/tiff"
	metadataMediaType   = "text/plain"

	defaultOrthophotoResolution = 5.0
)

var supportedExtensions = []string{".jpg", ".jpeg", ".tif", ".tiff", ".png"}

type RemoteJobClient interface {
	Submit(ctx context.Context, files []string, name string, opts odm.Options) (*odm.Task, error)
	AwaitCompletion(ctx context.Context, task *odm.Task, interval, maxWait time.Duration) (*odm.TaskInfo, bool, error)
	FetchAssets(ctx context.Context, task *odm.Task, dst string) (string, error)
}

type ArtifactStore interface {
	List(ctx context.Context, projectKey string) ([]storage.Object, error)
	Download(ctx context.Context, key string, dst io.Writer) error
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type RequestLedger interface {
	Update(ctx context.Context, id uuid.UUID, update store.RequestUpdate) error
}

type Notifier interface {
	Send(ctx context.Context, projectKey string, status notifier.Status, resultURL, message string) error
}

type Options struct {
	Preset       config.Preset
	PollInterval time.Duration
	MaxWait      time.Duration
	// TempDir is the parent of the run workspaces. Empty means os.TempDir().
	TempDir              string
	OrthophotoResolution float64
	Location             *time.Location
	Hostname             string
	Clock                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.OrthophotoResolution <= 0 {
		o.OrthophotoResolution = defaultOrthophotoResolution
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Hostname == "" {
		o.Hostname, _ = os.Hostname()
	}
	return o
}

// Run identifies one pipeline run.
type Run struct {
	RecordID   uuid.UUID
	ProjectKey string
	Attributes metadata.Attributes
}

// Pipeline produces the orthophoto of a project: it gathers the project images,
// delegates the processing to the remote node, publishes the artifacts and
// reports the outcome to the ledger and then to the notifier.
type Pipeline struct {
	remote   RemoteJobClient
	store    ArtifactStore
	ledger   RequestLedger
	notifier Notifier
	opts     Options
}

func New(remote RemoteJobClient, artifacts ArtifactStore, ledger RequestLedger, n Notifier, opts Options) *Pipeline {
	return &Pipeline{
		remote:   remote,
		store:    artifacts,
		ledger:   ledger,
		notifier: n,
		opts:     opts.withDefaults(),
	}
}

// Run executes every stage of run in order. The returned error is the cause of
// the abort, it has already been recorded in the ledger and notified.
func (p *Pipeline) Run(ctx context.Context, run Run) (err error) {
	start := p.opts.Clock()
	logger := zap.S().Named("pipeline").With(
		"project_key", run.ProjectKey,
		"record_id", run.RecordID,
		"request_id", requestid.FromContext(ctx),
	)
	ws := NewWorkspace(p.opts.TempDir, run.ProjectKey, run.RecordID)

	metrics.IncreaseRunsInFlightMetric()
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			logger.Errorw("failed to remove workspace", "path", ws.Root(), "error", rmErr)
		}

		outcome := OutcomeSuccess
		if err != nil {
			outcome = KindOf(err)
		}
		metrics.DecreaseRunsInFlightMetric()
		metrics.IncreasePipelineRunsTotalMetric(outcome, p.opts.Clock().Sub(start))
		logger.Infow("run finished", "outcome", outcome, "duration", p.opts.Clock().Sub(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			ae := NewErrUnexpected(fmt.Errorf("panic: %v", r))
			logger.Errorw("run panicked", "panic", r)
			p.abort(ctx, run, ae, logger)
			err = ae
		}
	}()

	logger.Infow("run started", "preset", p.opts.Preset.Name)

	resultURL, err := p.execute(ctx, run, ws, logger)
	if err != nil {
		ae := asAbortError(err)
		p.abort(ctx, run, ae, logger)
		return ae
	}

	// The record is committed at this point, a failing notification must not
	// turn it into a failure.
	if err := p.notify(ctx, run.ProjectKey, notifier.StatusSuccess, resultURL, ""); err != nil {
		logger.Warnw("success notification not delivered", "error", err)
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, run Run, ws *Workspace, logger *zap.SugaredLogger) (string, error) {
	images, err := p.acquireInputs(ctx, run, ws, logger)
	if err != nil {
		return "", err
	}

	task, opts, err := p.submit(ctx, run, images, logger)
	if err != nil {
		return "", err
	}
	logger = logger.With("task_id", task.UUID)

	info, err := p.awaitCompletion(ctx, task, logger)
	if err != nil {
		return "", err
	}

	orthophoto, err := p.retrieveOutputs(ctx, task, ws, logger)
	if err != nil {
		return "", err
	}

	report := p.renderMetadata(run, ws, opts, info, len(images), logger)

	resultURL, err := p.publish(ctx, path.Join(run.ProjectKey, orthophotoObject), orthophoto, orthophotoMediaType)
	if err != nil {
		return "", NewErrPublish(err)
	}
	logger.Infow("orthophoto published", "url", resultURL)

	if report != "" {
		if _, err := p.publish(ctx, path.Join(run.ProjectKey, metadataObject), report, metadataMediaType); err != nil {
			logger.Warnw("failed to publish metadata", "error", err)
		}
	}

	status := model.StatusSuccess
	if err := p.ledger.Update(ctx, run.RecordID, store.RequestUpdate{Status: &status, ResultURL: &resultURL}); err != nil {
		return "", NewErrCommit(err)
	}

	return resultURL, nil
}

// acquireInputs downloads the supported images of the project. Objects that
// fail to download are skipped.
func (p *Pipeline) acquireInputs(ctx context.Context, run Run, ws *Workspace, logger *zap.SugaredLogger) ([]string, error) {
	objects, err := p.store.List(ctx, run.ProjectKey)
	if err != nil {
		logger.Errorw("failed to list project images", "error", err)
		return nil, NewErrNoInput()
	}

	objects = funk.Filter(objects, func(o storage.Object) bool {
		return funk.ContainsString(supportedExtensions, strings.ToLower(filepath.Ext(o.Name)))
	}).([]storage.Object)
	logger.Infow("project images found", "count", len(objects))
	if len(objects) == 0 {
		return nil, NewErrNoInput()
	}

	if err := ws.Prepare(); err != nil {
		return nil, NewErrUnexpected(err)
	}

	images := make([]string, 0, len(objects))
	for _, o := range objects {
		dst := filepath.Join(ws.Images(), filepath.Base(o.Name))
		if err := p.download(ctx, o.Key, dst); err != nil {
			logger.Warnw("skipping image", "key", o.Key, "error", err)
			continue
		}
		images = append(images, dst)
	}

	logger.Infow("project images downloaded", "downloaded", len(images), "listed", len(objects))
	if len(images) == 0 {
		return nil, NewErrNoInput()
	}
	return images, nil
}

func (p *Pipeline) download(ctx context.Context, key, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := p.store.Download(ctx, key, f); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}

func (p *Pipeline) submit(ctx context.Context, run Run, images []string, logger *zap.SugaredLogger) (*odm.Task, odm.Options, error) {
	opts := odm.Options{}
	maps.Copy(opts, p.opts.Preset.Options)
	opts["projection"] = metadata.DefaultProjection
	opts["gcp"] = false
	opts["orthophoto-resolution"] = p.opts.OrthophotoResolution

	name := fmt.Sprintf("Project_%s", run.ProjectKey)
	task, err := p.remote.Submit(ctx, images, name, opts)
	if err != nil {
		return nil, nil, NewErrSubmission(err)
	}
	logger.Infow("remote job submitted", "task_id", task.UUID, "images", len(images))

	status := model.StatusSubmitted
	if err := p.ledger.Update(ctx, run.RecordID, store.RequestUpdate{Status: &status, JobID: &task.UUID}); err != nil {
		logger.Warnw("failed to record remote job id", "task_id", task.UUID, "error", err)
	}

	return task, opts, nil
}

func (p *Pipeline) awaitCompletion(ctx context.Context, task *odm.Task, logger *zap.SugaredLogger) (*odm.TaskInfo, error) {
	info, completed, err := p.remote.AwaitCompletion(ctx, task, p.opts.PollInterval, p.opts.MaxWait)
	if completed {
		logger.Infow("remote job completed", "processing_time", info.ProcessingDuration())
		return info, nil
	}

	status := "UNKNOWN"
	if info != nil {
		status = info.Status.Code.String()
		if info.Status.ErrorMessage != "" {
			status = fmt.Sprintf("%s (%s)", status, info.Status.ErrorMessage)
		}
	}
	switch {
	case errors.Is(err, odm.ErrAwaitTimeout):
		status = fmt.Sprintf("%s after waiting %s", status, p.opts.MaxWait)
	case err != nil:
		status = fmt.Sprintf("%s: %s", status, err)
	}

	logger.Errorw("remote job did not complete", "status", status)
	return info, NewErrProcessing(status)
}

func (p *Pipeline) retrieveOutputs(ctx context.Context, task *odm.Task, ws *Workspace, logger *zap.SugaredLogger) (string, error) {
	dir, err := p.remote.FetchAssets(ctx, task, ws.Results())
	if err != nil {
		logger.Errorw("failed to retrieve results", "error", err)
		return "", NewErrResultMissing()
	}

	orthophoto := filepath.Join(dir, filepath.FromSlash(orthophotoAsset))
	if fi, err := os.Stat(orthophoto); err != nil || fi.IsDir() {
		logger.Errorw("orthophoto not found in results", "path", orthophoto)
		return "", NewErrResultMissing()
	}
	return orthophoto, nil
}

// renderMetadata writes the report next to the results and returns its path,
// or an empty path when the report could not be written.
func (p *Pipeline) renderMetadata(run Run, ws *Workspace, opts odm.Options, info *odm.TaskInfo, images int, logger *zap.SugaredLogger) string {
	var buf bytes.Buffer
	err := metadata.Render(&buf, metadata.Report{
		ProjectKey:     run.ProjectKey,
		ProcessedAt:    p.opts.Clock(),
		Location:       p.opts.Location,
		Attributes:     run.Attributes,
		Preset:         p.opts.Preset.Name,
		ImageCount:     images,
		ProcessingTime: info.ProcessingDuration(),
		TaskID:         info.UUID,
		Status:         info.Status.Code.String(),
		Options:        opts,
		Hostname:       p.opts.Hostname,
	})
	if err != nil {
		logger.Warnw("failed to render metadata", "error", err)
		return ""
	}

	dst := filepath.Join(ws.Results(), metadataObject)
	if err := os.WriteFile(dst, buf.Bytes(), 0o640); err != nil {
		logger.Warnw("failed to write metadata", "error", err)
		return ""
	}
	return dst
}

func (p *Pipeline) publish(ctx context.Context, key, file, contentType string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	return p.store.Upload(ctx, key, f, fi.Size(), contentType)
}

// abort records the failure in the ledger and only then notifies it.
func (p *Pipeline) abort(ctx context.Context, run Run, cause abortError, logger *zap.SugaredLogger) {
	reason := cause.Error()
	logger.Errorw("run aborted", "kind", cause.Kind(), "reason", reason)

	if err := p.recordFailure(ctx, run.RecordID, reason); err != nil {
		logger.Errorw("failed to record failure", "error", err)
	}

	if err := p.notify(ctx, run.ProjectKey, notifier.StatusError, "", reason); err != nil {
		logger.Warnw("failure notification not delivered", "error", err)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, id uuid.UUID, reason string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ledger panicked: %v", r)
		}
	}()
	status := model.ErrorStatus(reason)
	return p.ledger.Update(ctx, id, store.RequestUpdate{Status: &status})
}

// notify delivers one event and reports a panicking notifier as an error.
func (p *Pipeline) notify(ctx context.Context, projectKey string, status notifier.Status, resultURL, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()
	return p.notifier.Send(ctx, projectKey, status, resultURL, message)
}
