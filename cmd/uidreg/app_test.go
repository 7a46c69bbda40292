// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/uidreg/uidreg/internal/config"
	"github.com/uidreg/uidreg/internal/registry"
	"github.com/uidreg/uidreg/internal/testutil"
	"github.com/uidreg/uidreg/pkg/uid"
)

type stubConfigProvider struct {
	cfg *config.Config
	err error
}

func (p stubConfigProvider) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := *p.cfg
	return &cfg, nil
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (r cliResult) exitCode() int {
	if r.err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(r.err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// runCLI executes the command tree against a corpus rooted at root, with the
// registry kept under root's reserved meta directory.
func runCLI(t *testing.T, root string, args ...string) cliResult {
	t.Helper()
	return runCLIWith(t, stubConfigProvider{cfg: config.DefaultConfig()}, append([]string{
		"--root", root,
		"--registry", registryPath(root),
		"--log-level", "error",
	}, args...)...)
}

func runCLIWith(t *testing.T, provider ConfigProvider, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{Config: provider, Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err = rootCmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func registryPath(root string) string {
	return filepath.Join(root, "meta", "version_control", "uid_registry.yaml")
}

func TestNewApp_Defaults(t *testing.T) {
	t.Parallel()

	app, err := NewApp(Dependencies{})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}
	if app.Config == nil || app.stdout == nil || app.stderr == nil {
		t.Fatalf("NewApp() left nil dependencies: %+v", app)
	}
	if app.installDefault {
		t.Error("installDefault must only be set by Execute")
	}
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0#field"))
	res := runCLI(t, root, "build")
	if res.exitCode() != 0 {
		t.Fatalf("build exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}
	if !strings.Contains(res.stdout, "Registry written: 2 entries from 2 files") {
		t.Errorf("stdout = %q", res.stdout)
	}

	reg, err := registry.Load(registryPath(root))
	if err != nil {
		t.Fatalf("registry.Load() error: %v", err)
	}
	if !reg.Has("a:x@1.0.0") || !reg.Has("a:y@1.0.0") {
		t.Errorf("registry UIDs = %v", reg.UIDs())
	}
}

func TestBuildCommand_Output(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0"))
	out := filepath.Join(t.TempDir(), "registry.json")
	if res := runCLI(t, root, "build", "--output", out); res.exitCode() != 0 {
		t.Fatalf("build exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}
	reg, err := registry.Load(out)
	if err != nil {
		t.Fatalf("registry.Load(%s) error: %v", out, err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestBuildCommand_Check(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0"))

	if res := runCLI(t, root, "build", "--check"); res.exitCode() != ExitFailed {
		t.Fatalf("check without registry exit = %d, want %d", res.exitCode(), ExitFailed)
	} else if !strings.Contains(res.stderr, "+ a:x@1.0.0") {
		t.Errorf("stderr = %q, want added entry", res.stderr)
	}

	if res := runCLI(t, root, "build"); res.exitCode() != 0 {
		t.Fatalf("build exit = %d", res.exitCode())
	}
	if res := runCLI(t, root, "build", "--check"); res.exitCode() != 0 {
		t.Fatalf("check after build exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	} else if !strings.Contains(res.stdout, "up to date") {
		t.Errorf("stdout = %q", res.stdout)
	}

	testutil.AppendFile(t, root, "a/x.yaml", "other: 6\n")
	testutil.WriteFile(t, root, "b/z.yaml", "metadata:\n  version: 2.0.0\n")
	res := runCLI(t, root, "build", "--check")
	if res.exitCode() != ExitFailed {
		t.Fatalf("check after edit exit = %d, want %d", res.exitCode(), ExitFailed)
	}
	for _, want := range []string{"+ b:z@2.0.0", "~ a:x@1.0.0"} {
		if !strings.Contains(res.stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, res.stderr)
		}
	}
}

func TestBuildCommand_Collision(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{
		"a/x.yaml": "metadata:\n  version: 1.0.0\n",
		"a/x.yml":  "metadata:\n  version: 1.0.0\n",
	})
	res := runCLI(t, root, "build")
	if res.exitCode() != ExitSetup {
		t.Fatalf("exit = %d, want %d", res.exitCode(), ExitSetup)
	}
	if !strings.Contains(res.stderr, "a:x@1.0.0") {
		t.Errorf("stderr = %q, want colliding UID", res.stderr)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ref        string
		wantExit   int
		wantStderr []string
	}{
		{
			name:     "valid fragment",
			ref:      "a:x@1.0.0#field",
			wantExit: 0,
		},
		{
			name:       "unregistered uid",
			ref:        "a:x@9.9.9",
			wantExit:   ExitFailed,
			wantStderr: []string{"Errors in a/y.yaml:", "Invalid reference: a:x@9.9.9", "[InvalidReference]"},
		},
		{
			name:       "missing fragment",
			ref:        "a:x@1.0.0#nope",
			wantExit:   ExitFailed,
			wantStderr: []string{"Fragment 'nope' not found in a:x@1.0.0", "1 of 2 file(s) failed with 1 error(s)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := testutil.WriteCorpus(t, testutil.ScenarioFiles(tt.ref))
			if res := runCLI(t, root, "build"); res.exitCode() != 0 {
				t.Fatalf("build exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
			}

			res := runCLI(t, root, "validate")
			if res.exitCode() != tt.wantExit {
				t.Fatalf("validate exit = %d, want %d\nstderr:\n%s", res.exitCode(), tt.wantExit, res.stderr)
			}
			for _, want := range tt.wantStderr {
				if !strings.Contains(res.stderr, want) {
					t.Errorf("stderr missing %q:\n%s", want, res.stderr)
				}
			}
			if tt.wantExit == 0 && !strings.Contains(res.stdout, "2 file(s) validated, no integrity errors") {
				t.Errorf("stdout = %q", res.stdout)
			}
		})
	}
}

func TestValidateCommand_SingleFile(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0#field"))
	if res := runCLI(t, root, "build"); res.exitCode() != 0 {
		t.Fatalf("build exit = %d", res.exitCode())
	}
	testutil.WriteFile(t, root, "a/new.yaml", "metadata:\n  version: 1.0.0\n")

	if res := runCLI(t, root, "validate", "a/x.yaml"); res.exitCode() != 0 {
		t.Errorf("validate a/x.yaml exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}

	res := runCLI(t, root, "validate", filepath.Join(root, "a", "new.yaml"))
	if res.exitCode() != ExitFailed {
		t.Fatalf("validate unregistered file exit = %d, want %d", res.exitCode(), ExitFailed)
	}
	if !strings.Contains(res.stderr, "Missing registry entry for a:new@1.0.0") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestValidateCommand_JSON(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0#nope"))
	if res := runCLI(t, root, "build"); res.exitCode() != 0 {
		t.Fatalf("build exit = %d", res.exitCode())
	}

	res := runCLI(t, root, "validate", "--format", "json")
	if res.exitCode() != ExitFailed {
		t.Fatalf("exit = %d, want %d", res.exitCode(), ExitFailed)
	}
	var report struct {
		Results []struct {
			File   string `json:"file"`
			Errors []struct {
				Kind string `json:"kind"`
			} `json:"errors"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, res.stdout)
	}
	var kinds []string
	for _, r := range report.Results {
		for _, e := range r.Errors {
			kinds = append(kinds, r.File+":"+e.Kind)
		}
	}
	if len(kinds) != 1 || kinds[0] != "a/y.yaml:FragmentNotFound" {
		t.Errorf("findings = %v, want [a/y.yaml:FragmentNotFound]", kinds)
	}
}

// cancelOnWrite cancels a run the first time the logger writes a line
// containing trigger.
type cancelOnWrite struct {
	bytes.Buffer
	mu      sync.Mutex
	trigger string
	once    sync.Once
	cancel  context.CancelFunc
}

func (w *cancelOnWrite) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if strings.Contains(string(p), w.trigger) {
		w.once.Do(w.cancel)
	}
	return w.Buffer.Write(p)
}

func TestValidateCommand_InterruptedRunShowsCompletedFiles(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{
		"a/f1.yaml": "metadata:\n  version: 1.0.0\nitems:\n  - $ref: 42\n  - $ref: a:missing@1.0.0\n",
		"a/f2.yaml": "metadata:\n  version: 1.0.0\n",
		"a/f3.yaml": "metadata:\n  version: 1.0.0\n",
	})
	if res := runCLI(t, root, "build"); res.exitCode() != 0 {
		t.Fatalf("build exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}

	for _, format := range []string{formatText, formatJSON} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg := config.DefaultConfig()
			cfg.Workers = 1
			var stdout bytes.Buffer
			stderr := &cancelOnWrite{trigger: "skipping non-string reference value", cancel: cancel}
			app, err := NewApp(Dependencies{Config: stubConfigProvider{cfg: cfg}, Stdout: &stdout, Stderr: stderr})
			if err != nil {
				t.Fatalf("NewApp() error: %v", err)
			}
			rootCmd := NewRootCommand(app)
			rootCmd.SetArgs([]string{
				"--root", root, "--registry", registryPath(root), "--log-level", "warn",
				"validate", "--format", format, "a/f1.yaml", "a/f2.yaml", "a/f3.yaml",
			})
			rootCmd.SetOut(&stdout)
			rootCmd.SetErr(stderr)
			res := cliResult{err: rootCmd.ExecuteContext(ctx)}

			if res.exitCode() != ExitSetup {
				t.Fatalf("exit = %d, want %d", res.exitCode(), ExitSetup)
			}
			if !errors.Is(res.err, context.Canceled) {
				t.Errorf("error = %v, want context.Canceled", res.err)
			}

			out := stdout.String() + stderr.String()
			if !strings.Contains(out, "a/f1.yaml") || !strings.Contains(out, "a:missing@1.0.0") {
				t.Errorf("completed file a/f1.yaml not rendered:\n%s", out)
			}
			if strings.Contains(out, "a/f3.yaml") {
				t.Errorf("file launched after cancellation was rendered:\n%s", out)
			}
		})
	}
}

func TestValidateCommand_SetupFailures(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing registry", []string{"validate"}, "registry"},
		{"bad format", []string{"validate", "--format", "xml"}, "unknown format"},
		{"all with files", []string{"validate", "--all", "a/x.yaml"}, "--all cannot be combined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := runCLI(t, root, tt.args...)
			if res.exitCode() != ExitSetup {
				t.Fatalf("exit = %d, want %d", res.exitCode(), ExitSetup)
			}
			if !strings.Contains(res.stderr, tt.want) {
				t.Errorf("stderr missing %q:\n%s", tt.want, res.stderr)
			}
		})
	}
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0#field"))
	if res := runCLI(t, root, "build"); res.exitCode() != 0 {
		t.Fatalf("build exit = %d", res.exitCode())
	}

	res := runCLI(t, root, "graph")
	if res.exitCode() != 0 {
		t.Fatalf("graph exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}
	if got := strings.Fields(res.stdout); len(got) != 2 || got[0] != "a:x@1.0.0" || got[1] != "a:y@1.0.0" {
		t.Errorf("order = %v, want [a:x@1.0.0 a:y@1.0.0]", got)
	}

	res = runCLI(t, root, "graph", "--dependents", "a:x@1.0.0")
	if strings.TrimSpace(res.stdout) != "a:y@1.0.0" {
		t.Errorf("dependents = %q, want a:y@1.0.0", res.stdout)
	}

	res = runCLI(t, root, "graph", "--dependents", "a:y@1.0.0")
	if !strings.Contains(res.stdout, "Nothing references a:y@1.0.0") {
		t.Errorf("stdout = %q", res.stdout)
	}

	res = runCLI(t, root, "graph", "--dependents", "a:zz@1.0.0")
	if res.exitCode() != ExitSetup {
		t.Errorf("unknown uid exit = %d, want %d", res.exitCode(), ExitSetup)
	}
}

func TestGraphCommand_Cycle(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{
		"a/x.yaml": "metadata:\n  version: 1.0.0\nuses:\n  $ref: a:y@1.0.0\n",
		"a/y.yaml": "metadata:\n  version: 1.0.0\nuses:\n  $ref: a:x@1.0.0\n",
	})
	if res := runCLI(t, root, "build"); res.exitCode() != 0 {
		t.Fatalf("build exit = %d", res.exitCode())
	}

	if res := runCLI(t, root, "graph"); res.exitCode() != 0 {
		t.Errorf("graph exit = %d, a cycle is only a warning by default", res.exitCode())
	} else if !strings.Contains(res.stderr, "cycle") {
		t.Errorf("stderr = %q, want cycle warning", res.stderr)
	}

	res := runCLI(t, root, "graph", "--fail-on-cycle", "--format", "json")
	if res.exitCode() != ExitFailed {
		t.Fatalf("exit = %d, want %d", res.exitCode(), ExitFailed)
	}
	var out graphOutput
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if len(out.Cycle) < 2 {
		t.Errorf("cycle = %v, want both documents", out.Cycle)
	}
}

func TestTermsCommand(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{
		"finance/bond.yaml": "name: bond\nitems:\n  - name: coupon\n",
		"top.yaml":          "name: bond\n",
	})
	dict := testutil.WriteFile(t, t.TempDir(), "terms.yaml",
		"terms:\n  bond:\n    domain: [finance]\n  coupon:\n    domain: [finance, general]\n")

	res := runCLI(t, root, "terms", "--dictionary", dict)
	if res.exitCode() != ExitFailed {
		t.Fatalf("exit = %d, want %d\nstderr:\n%s", res.exitCode(), ExitFailed, res.stderr)
	}
	want := "Term 'bond' not allowed in domain 'general' (allowed: finance)"
	if !strings.Contains(res.stderr, want) {
		t.Errorf("stderr missing %q:\n%s", want, res.stderr)
	}

	res = runCLI(t, root, "terms", "--dictionary", dict, "finance/bond.yaml")
	if res.exitCode() != 0 {
		t.Errorf("single file exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}

	res = runCLI(t, root, "terms")
	if res.exitCode() != ExitSetup {
		t.Errorf("no dictionary exit = %d, want %d", res.exitCode(), ExitSetup)
	}
}

func TestConfigShowCommand(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Strict = true
	res := runCLIWith(t, stubConfigProvider{cfg: cfg}, "config", "show", "--format", "json", "--root", "corpus")
	if res.exitCode() != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}
	var got config.Config
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if got.Root != "corpus" || !got.Strict {
		t.Errorf("config = %+v, want root override and strict", got)
	}

	res = runCLIWith(t, stubConfigProvider{cfg: cfg}, "config", "show")
	if !strings.Contains(res.stdout, "reference_marker:") || !strings.Contains(res.stdout, "$ref") {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestConfigInitCommand(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "uidreg.cue")
	provider := stubConfigProvider{cfg: config.DefaultConfig()}

	if res := runCLIWith(t, provider, "--config", path, "config", "init"); res.exitCode() != 0 {
		t.Fatalf("init exit = %d, stderr:\n%s", res.exitCode(), res.stderr)
	}
	cfg, err := config.NewProvider().Load(context.Background(), config.LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Root != config.DefaultRoot {
		t.Errorf("Root = %q, want %q", cfg.Root, config.DefaultRoot)
	}

	if res := runCLIWith(t, provider, "--config", path, "config", "init"); res.exitCode() != ExitSetup {
		t.Errorf("second init exit = %d, want %d", res.exitCode(), ExitSetup)
	}
	if res := runCLIWith(t, provider, "--config", path, "config", "init", "--force"); res.exitCode() != 0 {
		t.Errorf("init --force exit = %d", res.exitCode())
	}
}

func TestNewSession_LogsConfigSource(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Source = "/etc/uidreg/config.cue"
	var stderr bytes.Buffer
	app, err := NewApp(Dependencies{Config: stubConfigProvider{cfg: cfg}, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}

	if _, err := app.newSession(context.Background(), &rootFlagValues{verbose: true}); err != nil {
		t.Fatalf("newSession() error: %v", err)
	}
	if !strings.Contains(stderr.String(), cfg.Source) {
		t.Errorf("debug log missing config source:\n%s", stderr.String())
	}
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	res := runCLIWith(t, stubConfigProvider{err: config.ErrInvalidConfig}, "validate")
	if res.exitCode() != ExitSetup {
		t.Fatalf("exit = %d, want %d", res.exitCode(), ExitSetup)
	}
	if !strings.Contains(res.stderr, "invalid config") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	collision := &registry.UIDCollisionError{Collisions: map[uid.UID][]string{"a:x@1.0.0": {"a/x.yaml", "a/x.yml"}}}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"collision", collision, 3},
		{"registry missing", registry.ErrRegistryNotFound, 1},
		{"invalid config", config.ErrInvalidConfig, 6},
		{"unknown", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		if got := classifyError(tt.err).IssueID; int(got) != tt.want {
			t.Errorf("%s: IssueID = %d, want %d", tt.name, got, tt.want)
		}
	}
}
