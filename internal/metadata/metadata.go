package metadata

import (
	"embed"
	"fmt"
	"io"
	"maps"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/thoas/go-funk"
)

const (
	DefaultProjection = "EPSG:4326"
	OrthophotoName    = "odm_orthophoto.tif"

	timestampLayout = "2006-01-02 15:04:05 MST"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.txt.tmpl"))

// Attributes are the optional descriptive fields supplied with a request.
type Attributes struct {
	ClientName *string
	FarmName   *string
	PlotID     *string
	SurveyDate *string
}

// Report holds everything written to the metadata artifact of a run.
type Report struct {
	ProjectKey     string
	ProcessedAt    time.Time
	Location       *time.Location
	Attributes     Attributes
	Preset         string
	ImageCount     int
	ProcessingTime time.Duration
	TaskID         string
	// Status is the final remote status, e.g. COMPLETED. It is written lowercase.
	Status     string
	Options    map[string]any
	Projection string
	Hostname   string
}

type entry struct {
	Name  string
	Value string
}

type reportView struct {
	ProjectKey        string
	ProcessedAt       string
	Attributes        []entry
	Preset            string
	ImageCount        int
	ProcessingSeconds string
	TaskID            string
	Status            string
	Parameters        []entry
	Projection        string
	FileName          string
	Host              string
	System            string
	GoVersion         string
	Timezone          string
}

// Render writes the plain text report to w.
func Render(w io.Writer, r Report) error {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	projection := r.Projection
	if projection == "" {
		projection = DefaultProjection
	}

	view := reportView{
		ProjectKey:  r.ProjectKey,
		ProcessedAt: r.ProcessedAt.In(loc).Format(timestampLayout),
		Attributes:  r.Attributes.entries(),
		Preset:      r.Preset,
		ImageCount:  r.ImageCount,
		TaskID:      r.TaskID,
		Status:      strings.ToLower(r.Status),
		Parameters:  parameters(r.Options),
		Projection:  projection,
		FileName:    OrthophotoName,
		Host:        r.Hostname,
		System:      runtime.GOOS,
		GoVersion:   runtime.Version(),
		Timezone:    loc.String(),
	}
	if r.ProcessingTime > 0 {
		view.ProcessingSeconds = strconv.FormatFloat(r.ProcessingTime.Seconds(), 'f', -1, 64)
	}

	if err := reportTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("rendering metadata report: %w", err)
	}
	return nil
}

func (a Attributes) entries() []entry {
	entries := []entry{}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"client", a.ClientName},
		{"farm", a.FarmName},
		{"plot", a.PlotID},
		{"survey_date", a.SurveyDate},
	} {
		if f.value != nil && *f.value != "" {
			entries = append(entries, entry{Name: f.name, Value: *f.value})
		}
	}
	return entries
}

// parameters keeps the scalar options sorted by name. Names starting with an
// underscore are internal and never reported.
func parameters(opts map[string]any) []entry {
	names := funk.FilterString(slices.Sorted(maps.Keys(opts)), func(name string) bool {
		return !strings.HasPrefix(name, "_") && isScalar(opts[name])
	})

	entries := make([]entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, entry{Name: name, Value: fmt.Sprint(opts[name])})
	}
	return entries
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}
