package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/fetch"
	"github.com/goplus/pkgsmith/pkgs/buildsys"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

// fakeFetcher writes a source tree laid out like WAMR's.
type fakeFetcher struct {
	calls atomic.Int32
	// fail makes fetches for these OSes fail.
	fail map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, r *recipe.Recipe, version string, t platform.Triple, dir string) (*fetch.Source, error) {
	f.calls.Add(1)
	if f.fail[t.OS] {
		return nil, errors.Fetch(nil, "network down")
	}
	header := filepath.Join(dir, "core", "iwasm", "include", "wasm_export.h")
	if err := os.MkdirAll(filepath.Dir(header), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(header, []byte("int wasm_runtime_init(void);\n"), 0o644); err != nil {
		return nil, err
	}
	return &fetch.Source{Dir: dir, Strategy: "git", Ref: "v" + version, Commit: "abc123", Version: version}, nil
}

// fakeRecord is what one fake build system saw.
type fakeRecord struct {
	target  platform.Triple
	source  string
	build   string
	install string
	flags   map[string]string
	env     map[string]string
	steps   []string
}

// fakeSystems hands out fake build systems and remembers them.
type fakeSystems struct {
	mu      sync.Mutex
	records []*fakeRecord
	// failBuild makes the build step fail.
	failBuild bool
	// noLib skips writing the library on install.
	noLib bool
}

func (s *fakeSystems) factory(r *recipe.Recipe) (buildsys.BuildSystem, error) {
	rec := &fakeRecord{flags: map[string]string{}, env: map[string]string{}}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return &fakeSystem{rec: rec, owner: s}, nil
}

func (s *fakeSystems) all() []*fakeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeRecord(nil), s.records...)
}

type fakeSystem struct {
	rec   *fakeRecord
	owner *fakeSystems
}

var _ buildsys.BuildSystem = (*fakeSystem)(nil)

func (f *fakeSystem) Name() string { return "fake" }
func (f *fakeSystem) Tools() []string { return nil }
func (f *fakeSystem) Source(dir string) { f.rec.source = dir }
func (f *fakeSystem) BuildDir(dir string) { f.rec.build = dir }
func (f *fakeSystem) InstallDir(dir string) { f.rec.install = dir }
func (f *fakeSystem) Target(t platform.Triple) error { f.rec.target = t; return nil }
func (f *fakeSystem) Env(key, val string) { f.rec.env[key] = val }
func (f *fakeSystem) Flag(key, value string) { f.rec.flags[key] = value }
func (f *fakeSystem) Jobs(int) {}

func (f *fakeSystem) Configure(ctx context.Context, args ...string) error {
	f.rec.steps = append(f.rec.steps, "configure")
	return os.MkdirAll(f.rec.build, 0o755)
}

func (f *fakeSystem) Build(ctx context.Context, args ...string) error {
	f.rec.steps = append(f.rec.steps, "build")
	if f.owner.failBuild {
		return errors.BuildTool("fake build", []byte("error: boom\n"), errors.New(errors.KindBuildTool, "exit status 2"))
	}
	return nil
}

// Install installs lib/libiwasm.a, the name the real WAMR build uses for
// every variant.
func (f *fakeSystem) Install(ctx context.Context, args ...string) error {
	f.rec.steps = append(f.rec.steps, "install")
	if f.owner.noLib {
		return os.MkdirAll(f.rec.install, 0o755)
	}
	lib := filepath.Join(f.rec.install, "lib", "libiwasm.a")
	if err := os.MkdirAll(filepath.Dir(lib), 0o755); err != nil {
		return err
	}
	return os.WriteFile(lib, []byte(f.rec.target.String()), 0o644)
}
