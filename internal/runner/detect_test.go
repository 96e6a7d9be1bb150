package runner

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFindProjectRoot(t *testing.T) {
	t.Run("at top level", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"requirements.txt": "flask\n"})
		root, err := findProjectRoot(dir)
		if err != nil {
			t.Fatalf("findProjectRoot: %v", err)
		}
		if root != dir {
			t.Errorf("root = %q, want %q", root, dir)
		}
	})

	t.Run("nested", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"README.md":                  "docs only",
			"backend/package.json":       `{"scripts":{"start":"node server.js"}}`,
			"backend/server.js":          "",
			"backend/public/index.html":  "",
		})
		root, err := findProjectRoot(dir)
		if err != nil {
			t.Fatalf("findProjectRoot: %v", err)
		}
		if root != filepath.Join(dir, "backend") {
			t.Errorf("root = %q, want the backend dir", root)
		}
	})

	t.Run("missing", func(t *testing.T) {
		dir := writeProject(t, map[string]string{"notes.txt": "nothing runnable"})
		if _, err := findProjectRoot(dir); err == nil {
			t.Error("expected an error for a tree without manifests")
		}
	})
}

func TestPlanCommandsFromReadme(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"requirements.txt": "streamlit\n",
		"app.py":           "import streamlit",
		"README.md": "# App\n\nInstall dependencies with `pip install -r requirements.txt`, then start\n" +
			"the app with `streamlit run app.py`.\n",
	})

	p, err := planCommands(dir, 8105)
	if err != nil {
		t.Fatalf("planCommands: %v", err)
	}
	if !reflect.DeepEqual(p.install, []string{"pip", "install", "-r", "requirements.txt"}) {
		t.Errorf("install = %v", p.install)
	}
	want := []string{"streamlit", "run", "app.py", "--server.port", "8105", "--server.address", "127.0.0.1", "--server.headless", "true"}
	if !reflect.DeepEqual(p.run, want) {
		t.Errorf("run = %v, want %v", p.run, want)
	}
}

func TestPlanCommandsReadmeIgnoresUnknownExecutables(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"requirements.txt": "flask\n",
		"app.py":           "",
		// Run command is outside the whitelist; fallback must kick in.
		"README.md": "Run with `python evil.py; rm -rf /` or `pip install -r requirements.txt`.\n",
	})

	p, err := planCommands(dir, 8105)
	if err != nil {
		t.Fatalf("planCommands: %v", err)
	}
	// "python evil.py; rm -rf /" parses as argv ["python","evil.py;","rm",...]
	// with no shell, so it stays inert, but executables like "bash" never
	// make it past splitCommand at all.
	if p.run[0] != "python" && p.run[0] != "flask" {
		t.Errorf("run = %v, want a whitelisted command", p.run)
	}
}

func TestDetectPython(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantRun []string
	}{
		{
			name: "streamlit",
			files: map[string]string{
				"requirements.txt": "streamlit\npandas\n",
				"app.py":           "",
			},
			wantRun: []string{"streamlit", "run", "app.py"},
		},
		{
			name: "flask",
			files: map[string]string{
				"requirements.txt": "Flask==3.0\n",
				"app.py":           "",
			},
			wantRun: []string{"flask", "run"},
		},
		{
			name: "fastapi",
			files: map[string]string{
				"requirements.txt": "fastapi\nuvicorn\n",
				"main.py":          "",
			},
			wantRun: []string{"uvicorn", "main:app"},
		},
		{
			name: "plain python prefers main.py",
			files: map[string]string{
				"requirements.txt": "requests\n",
				"aaa.py":           "",
				"main.py":          "",
			},
			wantRun: []string{"python", "main.py"},
		},
		{
			name: "plain python falls back to first file",
			files: map[string]string{
				"requirements.txt": "requests\n",
				"worker.py":        "",
			},
			wantRun: []string{"python", "worker.py"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeProject(t, tt.files)
			p, err := detectPython(dir)
			if err != nil {
				t.Fatalf("detectPython: %v", err)
			}
			if !reflect.DeepEqual(p.run, tt.wantRun) {
				t.Errorf("run = %v, want %v", p.run, tt.wantRun)
			}
			if p.install[0] != "pip" {
				t.Errorf("install = %v, want pip", p.install)
			}
		})
	}
}

func TestDetectNode(t *testing.T) {
	t.Run("dev script wins", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"scripts":{"dev":"vite","start":"node server.js"}}`,
		})
		p, err := detectNode(dir)
		if err != nil {
			t.Fatalf("detectNode: %v", err)
		}
		if !reflect.DeepEqual(p.run, []string{"npm", "run", "dev"}) {
			t.Errorf("run = %v", p.run)
		}
	})

	t.Run("start fallback", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"scripts":{"start":"node server.js"}}`,
		})
		p, err := detectNode(dir)
		if err != nil {
			t.Fatalf("detectNode: %v", err)
		}
		if !reflect.DeepEqual(p.run, []string{"npm", "run", "start"}) {
			t.Errorf("run = %v", p.run)
		}
	})

	t.Run("no runnable script", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"package.json": `{"scripts":{"test":"jest"}}`,
		})
		if _, err := detectNode(dir); err == nil {
			t.Error("expected an error when no dev or start script exists")
		}
	})
}

func TestNodePlanSetsPortEnv(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"package.json": `{"scripts":{"start":"node server.js"}}`,
	})
	p, err := planCommands(dir, 8042)
	if err != nil {
		t.Fatalf("planCommands: %v", err)
	}
	found := false
	for _, e := range p.env {
		if e == "PORT=8042" {
			found = true
		}
	}
	if !found {
		t.Errorf("env = %v, missing PORT=8042", p.env)
	}
}

func TestAppendPortFlags(t *testing.T) {
	tests := []struct {
		name string
		run  []string
		want string
	}{
		{"streamlit", []string{"streamlit", "run", "app.py"}, "--server.port 9001 --server.address 127.0.0.1 --server.headless true"},
		{"flask", []string{"flask", "run"}, "--host 127.0.0.1 --port 9001"},
		{"uvicorn", []string{"uvicorn", "main:app"}, "--host 127.0.0.1 --port 9001"},
		{"plain python untouched", []string{"python", "main.py"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(appendPortFlags(append([]string(nil), tt.run...), 9001), " ")
			if tt.want == "" {
				if got != strings.Join(tt.run, " ") {
					t.Errorf("run was modified: %q", got)
				}
				return
			}
			if !strings.HasSuffix(got, tt.want) {
				t.Errorf("run = %q, want suffix %q", got, tt.want)
			}
		})
	}
}

func TestAppendPortFlagsRespectsExistingPort(t *testing.T) {
	run := []string{"streamlit", "run", "app.py", "--server.port", "7777"}
	got := appendPortFlags(append([]string(nil), run...), 9001)
	if !reflect.DeepEqual(got, run) {
		t.Errorf("run = %v, existing port flag should be left alone", got)
	}
}
