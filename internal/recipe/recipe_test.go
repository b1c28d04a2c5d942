package recipe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/reprolab/internal/data"
	"github.com/danielpatrickdp/reprolab/internal/dataset"
	"github.com/danielpatrickdp/reprolab/internal/steps"
)

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #region loader-tests

func TestLoadRecipe_Basic(t *testing.T) {
	r, err := LoadRecipe("testdata/basic.yaml")
	if err != nil {
		t.Fatalf("LoadRecipe: %v", err)
	}
	if len(r.Datasets) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(r.Datasets))
	}
	if len(r.Tasks) != 8 {
		t.Fatalf("expected 8 tasks, got %d", len(r.Tasks))
	}
	if !r.Settings.AutoStrip {
		t.Error("expected autostrip setting")
	}
	if r.Tasks[2].Kind != KindUndo {
		t.Errorf("expected undo task, got %s", r.Tasks[2].Kind)
	}
}

func TestLoadRecipe_UnknownDataset(t *testing.T) {
	_, err := LoadRecipe("testdata/invalid.yaml")
	if !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("expected ErrInvalidRecipe, got %v", err)
	}
}

func TestLoadRecipe_MissingFile(t *testing.T) {
	if _, err := LoadRecipe("testdata/nope.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"no datasets":   "tasks: []\n",
		"unknown kind":  "datasets: [{id: a}]\ntasks: [{kind: teleport, type: X}]\n",
		"missing type":  "datasets: [{id: a}]\ntasks: [{kind: processing}]\n",
		"duplicate id":  "datasets: [{id: a}, {id: a}]\n",
		"unknown field": "datasets: [{id: a, colour: red}]\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Parse([]byte("datasets: [{id: a}]\ntasks: [{kind: undo}]\n")); err != nil {
		t.Errorf("undo without type should be accepted: %v", err)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	r, err := LoadRecipe("testdata/basic.yaml")
	if err != nil {
		t.Fatalf("LoadRecipe: %v", err)
	}
	b, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	again, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, b)
	}
	if len(again.Tasks) != len(r.Tasks) || again.Tasks[3].Comment != "percent of maximum" {
		t.Errorf("round trip lost tasks: %+v", again.Tasks)
	}
}

// #endregion loader-tests

// #region run-tests

func TestRun_Basic(t *testing.T) {
	r, err := LoadRecipe("testdata/basic.yaml")
	if err != nil {
		t.Fatalf("LoadRecipe: %v", err)
	}
	out, err := Run(context.Background(), r, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sample := out.Dataset("sample")
	if sample == nil {
		t.Fatal("sample dataset missing")
	}
	if sample.TypeName() != dataset.TypeExperimentalDataset {
		t.Errorf("expected experimental dataset, got %s", sample.TypeName())
	}
	if want := []float64{2.5, 5, 7.5, 10}; !floatsEqual(sample.Data().Values, want) {
		t.Errorf("sample: expected %v, got %v", want, sample.Data().Values)
	}
	// offset was undone then stripped by the scaling task
	if sample.HistoryLen() != 2 || sample.HistoryPointer() != 1 {
		t.Errorf("sample history len %d pointer %d", sample.HistoryLen(), sample.HistoryPointer())
	}

	ref := out.Dataset("reference")
	if want := []float64{0.25, 0.25, 0.5, 1}; !floatsEqual(ref.Data().Values, want) {
		t.Errorf("reference: expected %v, got %v", want, ref.Data().Values)
	}
	if len(ref.Annotations()) != 1 || len(sample.Annotations()) != 0 {
		t.Errorf("annotation should only reach reference")
	}
	if len(sample.Analyses()) != 1 || len(sample.Representations()) != 1 {
		t.Errorf("expected one analysis and one plot on sample")
	}
	if got := sample.Representations()[0].Plot.Label; got != "normalised" {
		t.Errorf("expected plot label, got %q", got)
	}

	if len(out.MultiPlots) != 1 {
		t.Fatalf("expected 1 multiplot, got %d", len(out.MultiPlots))
	}
	if ids := out.MultiPlots[0].Datasets; len(ids) != 2 || ids[0] != "sample" {
		t.Errorf("unexpected multiplot datasets %v", ids)
	}

	s := Summarize(out.Results)
	if s.TotalTasks != 11 || s.Applied != 11 || s.Failed != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Undos != 1 || s.Strips != 1 {
		t.Errorf("expected 1 undo and 1 strip, got %+v", s)
	}
}

func TestRun_LeadingHistoryWithoutAutoStrip(t *testing.T) {
	r, err := Parse([]byte(`
datasets: [{id: a, values: [1, 2]}]
tasks:
  - {kind: processing, type: Scaling, parameters: {factor: 2}}
  - {kind: undo}
  - {kind: processing, type: Offset, parameters: {offset: 1}}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Run(context.Background(), r, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	last := out.Results[2]
	if last.Action != ActionFailed || !errors.Is(last.Err, dataset.ErrLeadingHistory) {
		t.Fatalf("expected leading history failure, got %+v", last)
	}
	if out.Dataset("a").HistoryLen() != 1 {
		t.Error("failed task must not change history")
	}

	// the same recipe strips when asked to
	var dropped int
	out, err = Run(context.Background(), r, Options{
		AutoStrip: true,
		OnStrip:   func(_ *dataset.Dataset, n int) { dropped += n },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dropped != 1 {
		t.Errorf("expected OnStrip to see 1 dropped step, got %d", dropped)
	}
	if out.Results[2].Err != nil || out.Results[2].Stripped != 1 {
		t.Fatalf("expected strip and success, got %+v", out.Results[2])
	}
	if want := []float64{2, 3}; !floatsEqual(out.Dataset("a").Data().Values, want) {
		t.Errorf("expected %v, got %v", want, out.Dataset("a").Data().Values)
	}
}

func TestRun_StopOnError(t *testing.T) {
	r, err := Parse([]byte(`
datasets: [{id: a, values: [1]}]
tasks:
  - {kind: processing, type: NoSuchStep}
  - {kind: processing, type: Scaling}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Run(context.Background(), r, Options{StopOnError: true})
	if err == nil || !strings.Contains(err.Error(), "task 0") {
		t.Fatalf("expected task 0 error, got %v", err)
	}
	if len(out.Results) != 1 {
		t.Errorf("expected run to stop after first task, got %d results", len(out.Results))
	}
}

func TestRun_RejectsUnknownApplyTo(t *testing.T) {
	r := &Recipe{
		Datasets: []DatasetSpec{{ID: "a", Values: []float64{1}}},
		Tasks: []TaskSpec{
			{Kind: "processing", Type: "Scaling", ApplyTo: []string{"missing"}},
		},
	}
	out, err := Run(context.Background(), r, Options{})
	if !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("expected ErrInvalidRecipe, got %v", err)
	}
	if out != nil {
		t.Errorf("expected no outcome for an invalid recipe, got %+v", out)
	}
}

func TestRun_SourceNeedsImporter(t *testing.T) {
	r, err := Parse([]byte("datasets: [{id: a, source: raw}]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Run(context.Background(), r, Options{}); !errors.Is(err, dataset.ErrMissingImporter) {
		t.Fatalf("expected ErrMissingImporter, got %v", err)
	}

	importer := dataset.NewMemoryImporter()
	importer.Add("raw", data.MustNew([]float64{3, 6}))
	out, err := Run(context.Background(), r, Options{Importer: importer})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []float64{3, 6}; !floatsEqual(out.Dataset("a").Data().Values, want) {
		t.Errorf("expected imported data, got %v", out.Dataset("a").Data().Values)
	}
}

func TestRun_SourceFromSameRecipe(t *testing.T) {
	r, err := Parse([]byte(`
datasets:
  - {id: raw, values: [1, 2, 3]}
  - {id: copy, source: raw}
tasks:
  - {kind: processing, type: Scaling, parameters: {factor: 2}, apply_to: [raw]}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sources, err := r.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(sources) != 1 || sources["raw"] == nil {
		t.Fatalf("expected only raw as a source, got %v", sources)
	}

	out, err := Run(context.Background(), r, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []float64{1, 2, 3}; !floatsEqual(out.Dataset("copy").Data().Values, want) {
		t.Errorf("copy should start from the declared values, got %v", out.Dataset("copy").Data().Values)
	}
	if want := []float64{2, 4, 6}; !floatsEqual(out.Dataset("raw").Data().Values, want) {
		t.Errorf("raw: expected %v, got %v", want, out.Dataset("raw").Data().Values)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	r, err := Parse([]byte("datasets: [{id: a}]\ntasks: [{kind: undo}]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, r, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_ReproducesHistory(t *testing.T) {
	r, err := LoadRecipe("testdata/basic.yaml")
	if err != nil {
		t.Fatalf("LoadRecipe: %v", err)
	}
	first, err := Run(context.Background(), r, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := Run(context.Background(), r, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, b := first.Dataset("sample"), second.Dataset("sample")
	if !a.Data().Equal(b.Data()) {
		t.Fatal("two runs of the same recipe disagree")
	}
	for i, rec := range a.History() {
		if rec.Processing.ClassName != b.History()[i].Processing.ClassName {
			t.Errorf("history %d differs", i)
		}
	}
	if a.History()[0].Processing.ClassName != steps.Qualify("Normalisation") {
		t.Errorf("unexpected first step %s", a.History()[0].Processing.ClassName)
	}
}

// #endregion run-tests

func TestSummarize(t *testing.T) {
	results := []Result{
		{Kind: "processing", Action: ActionApplied, Stripped: 2},
		{Kind: KindUndo, Action: ActionApplied},
		{Kind: KindRedo, Action: ActionFailed},
		{Kind: KindRedo, Action: ActionApplied},
	}
	s := Summarize(results)
	if s.TotalTasks != 4 || s.Applied != 3 || s.Failed != 1 || s.Undos != 1 || s.Redos != 1 || s.Strips != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}
