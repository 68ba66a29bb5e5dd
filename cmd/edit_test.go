package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Devifyo/lumina/internal/domain"
	"github.com/Devifyo/lumina/internal/editor"

	"gopkg.in/yaml.v3"
)

type echoEditor struct {
	requests []editor.Request
	failOn   domain.EditMode
}

func (e *echoEditor) Submit(ctx context.Context, req editor.Request) (*editor.Outcome, error) {
	e.requests = append(e.requests, req)
	if req.Mode == e.failOn {
		return nil, &domain.EditError{Kind: domain.KindPermission, Status: 403, Message: "denied"}
	}
	if err := editor.Validate(req); err != nil {
		return nil, err
	}
	data, _ := req.Image.Bytes()
	return &editor.Outcome{
		Asset:    domain.NewImageAsset(append(data, '+'), domain.ResultMIMEType),
		Model:    "primary",
		Attempts: 1,
	}, nil
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nimage"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEditChainsEdits(t *testing.T) {
	dir := t.TempDir()
	ed := &echoEditor{}
	opts := editOptions{
		input:  writeInput(t),
		modes:  []string{"remove-object", "enhance"},
		text:   "lamp",
		x:      0.4,
		y:      0.6,
		output: filepath.Join(dir, "out", "result.png"),
		meta:   filepath.Join(dir, "result.yaml"),
	}

	var out bytes.Buffer
	if err := runEdit(context.Background(), opts, ed, &out); err != nil {
		t.Fatalf("runEdit returned error: %v\n%s", err, out.String())
	}

	data, err := os.ReadFile(opts.output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "image++") {
		t.Fatalf("output = %q, want two chained edits", data)
	}
	if ed.requests[0].Selection == nil || ed.requests[0].Text != "lamp" {
		t.Fatalf("first request = %+v", ed.requests[0])
	}
	if ed.requests[1].Selection != nil || ed.requests[1].Text != "" {
		t.Fatalf("enhance should not receive text or selection: %+v", ed.requests[1])
	}

	raw, err := os.ReadFile(opts.meta)
	if err != nil {
		t.Fatal(err)
	}
	var meta editMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("metadata is not YAML: %v", err)
	}
	if len(meta.Steps) != 2 || meta.Steps[0].Label != "Smart Erasure" || meta.Steps[1].Label != "Visual Polish" {
		t.Fatalf("steps = %+v", meta.Steps)
	}
	if !meta.CompoundEdits {
		t.Fatal("compound edits should be on by default")
	}
}

func TestRunEditIndependent(t *testing.T) {
	ed := &echoEditor{}
	opts := editOptions{
		input:       writeInput(t),
		modes:       []string{"enhance", "remove_background"},
		x:           -1,
		y:           -1,
		output:      filepath.Join(t.TempDir(), "result.png"),
		independent: true,
	}
	if err := runEdit(context.Background(), opts, ed, &bytes.Buffer{}); err != nil {
		t.Fatalf("runEdit returned error: %v", err)
	}
	data, _ := os.ReadFile(opts.output)
	if !strings.HasSuffix(string(data), "image+") || strings.HasSuffix(string(data), "++") {
		t.Fatalf("independent edits should each start from the original, got %q", data)
	}
}

func TestRunEditFailureWritesNotice(t *testing.T) {
	dir := t.TempDir()
	ed := &echoEditor{failOn: domain.ModeEnhance}
	opts := editOptions{
		input:  writeInput(t),
		modes:  []string{"remove_background", "enhance"},
		x:      -1,
		y:      -1,
		output: filepath.Join(dir, "result.png"),
		meta:   filepath.Join(dir, "result.yaml"),
	}

	var out bytes.Buffer
	err := runEdit(context.Background(), opts, ed, &out)
	if err == nil || !strings.Contains(err.Error(), "step 2") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(out.String(), "Select New Project") {
		t.Fatalf("output should show remediation:\n%s", out.String())
	}
	if _, err := os.Stat(opts.output); !os.IsNotExist(err) {
		t.Fatal("no output file should be written on failure")
	}

	raw, _ := os.ReadFile(opts.meta)
	var meta editMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		t.Fatal(err)
	}
	if len(meta.Steps) != 1 || meta.Error == nil || meta.Error.Kind != domain.KindPermission {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestRunEditRejectsBadArguments(t *testing.T) {
	base := editOptions{input: writeInput(t), modes: []string{"enhance"}, x: -1, y: -1, output: filepath.Join(t.TempDir(), "o.png")}

	badMode := base
	badMode.modes = []string{"sharpen"}
	badPoint := base
	badPoint.x, badPoint.y = 0.5, -1
	missing := base
	missing.input = filepath.Join(t.TempDir(), "missing.png")

	for name, opts := range map[string]editOptions{"mode": badMode, "point": badPoint, "input": missing} {
		ed := &echoEditor{}
		if err := runEdit(context.Background(), opts, ed, &bytes.Buffer{}); err == nil {
			t.Errorf("%s: expected error", name)
		}
		if len(ed.requests) != 0 {
			t.Errorf("%s: editor should not be called", name)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("abcd1234efgh"); got != "abcd****efgh" {
		t.Fatalf("got %q", got)
	}
	if got := maskAPIKey("short"); got != "****" {
		t.Fatalf("got %q", got)
	}
}
