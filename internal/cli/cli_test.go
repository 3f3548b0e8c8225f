package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soypat/sdftrace/glrender"
	"github.com/soypat/sdftrace/gsdfaux"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return executeContext(context.Background(), args...)
}

func executeContext(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestScenesCommand(t *testing.T) {
	out, _, err := execute(t, "scenes")
	if err != nil {
		t.Fatal(err)
	}
	for _, def := range gsdfaux.Scenes() {
		if !strings.Contains(out, def.Name) {
			t.Errorf("scene %q not listed in:\n%s", def.Name, out)
		}
	}
}

func TestEnvCommand(t *testing.T) {
	out, _, err := execute(t, "env")
	if err != nil {
		t.Fatal(err)
	}
	env, err := gsdfaux.DecodeEnvironment(strings.NewReader(out))
	if err != nil {
		t.Fatalf("env output is not a valid environment: %v", err)
	}
	if env.ShadowsEnabled != true {
		t.Error("default environment should enable shadows")
	}

	path := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(path, []byte("shadows_enabled = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err = execute(t, "--env", path, "env")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "shadows_enabled = false") {
		t.Errorf("loaded environment not printed:\n%s", out)
	}
	_, _, err = execute(t, "--env", filepath.Join(t.TempDir(), "missing.toml"), "env")
	if err == nil {
		t.Error("expected error for missing environment file")
	}
}

func TestRenderCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spheres.png")
	_, logs, err := execute(t, "render", "spheres", "-o", out, "--width", "24", "--height", "16", "--overlay", "--yaw", "30", "--zoom", "0.9")
	if err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	img, err := png.Decode(fp)
	if err != nil {
		t.Fatal(err)
	}
	if sz := img.Bounds().Size(); sz.X != 24 || sz.Y != 16 {
		t.Errorf("image size = %v, want 24x16", sz)
	}
	if !strings.Contains(logs, "rendered image") {
		t.Errorf("missing render log in:\n%s", logs)
	}

	_, _, err = execute(t, "render", "--watch", "-o", out)
	if err == nil {
		t.Error("--watch without --env should fail")
	}
	_, _, err = execute(t, "render", "no-such-scene", "-o", out)
	if err == nil {
		t.Error("expected error for unknown scene")
	}
}

func TestRenderWatch(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.toml")
	if err := os.WriteFile(envPath, []byte("gamma = 2.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "watch.png")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		logs string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, logs, err := executeContext(ctx, "--env", envPath, "render", "spheres", "--watch", "-o", out, "--width", "8", "--height", "6")
		done <- result{logs, err}
	}()

	waitFile := func() {
		t.Helper()
		tick := time.NewTicker(50 * time.Millisecond)
		defer tick.Stop()
		timeout := time.After(10 * time.Second)
		for i := 0; ; i++ {
			if _, err := os.Stat(out); err == nil {
				return
			}
			select {
			case <-tick.C:
				// Keep editing since the watcher may not be registered yet.
				if i%4 == 3 {
					os.WriteFile(envPath, []byte("gamma = 1.8\n"), 0o644)
				}
			case <-timeout:
				t.Fatal("render output not written")
			}
		}
	}
	waitFile() // Initial render.
	if err := os.Remove(out); err != nil {
		t.Fatal(err)
	}
	waitFile() // Render after an environment edit.
	cancel()
	select {
	case res := <-done:
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("watch returned %v, want context.Canceled", res.err)
		}
		if !strings.Contains(res.logs, "re-rendered") {
			t.Errorf("missing re-render log in:\n%s", res.logs)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	stl := filepath.Join(dir, "barrel.stl")
	_, _, err := execute(t, "export", "barrel", "-o", stl, "-r", "16")
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(stl)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() <= 84 || (info.Size()-84)%50 != 0 {
		t.Errorf("unexpected binary STL size %d", info.Size())
	}

	obj := filepath.Join(dir, "gear.obj")
	_, _, err = execute(t, "export", "gear", "-o", obj, "-r", "16", "--simplify", "0.5")
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(obj)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte("\nf ")) {
		t.Error("OBJ has no faces")
	}

	lod := filepath.Join(dir, "blob.stl")
	_, _, err = execute(t, "export", "blob", "-o", lod, "-r", "16", "--lod")
	if err != nil {
		t.Fatal(err)
	}
	for i := range glrender.DefaultLODConfig().Levels {
		name := filepath.Join(dir, fmt.Sprintf("blob_lod%d.stl", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing level of detail file: %v", err)
		}
	}

	_, _, err = execute(t, "export", "barrel", "-o", stl, "-r", "2000")
	if err == nil {
		t.Error("expected error for resolution above the maximum")
	}

	_, _, err = execute(t, "export", "-o", filepath.Join(dir, "scene.ply"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSliceCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "slice.png")
	_, _, err := execute(t, "slice", "twisted", "-o", out, "--axis", "xy", "--size", "32")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
	_, _, err = execute(t, "slice", "spheres", "-o", out, "--palette", "gray", "--size", "16")
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = execute(t, "slice", "-o", out, "--palette", "rainbow")
	if err == nil {
		t.Error("expected error for unknown palette")
	}
	_, _, err = execute(t, "slice", "-o", out, "--axis", "uv")
	if err == nil {
		t.Error("expected error for invalid axis")
	}
}

func TestMeshFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"a.stl", formatSTL, false},
		{"dir/A.STL", formatSTL, false},
		{"a.obj", formatOBJ, false},
		{"a", "", true},
		{"a.ply", "", true},
	}
	for _, tt := range tests {
		got, err := meshFormat(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("meshFormat(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("meshFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
