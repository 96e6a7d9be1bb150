package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// plan is everything needed to execute one staged project: an optional
// install command, the run command, and any extra environment. Commands are
// argv slices; nothing ever passes through a shell.
type plan struct {
	install []string
	run     []string
	env     []string
}

var errNoProjectRoot = errors.New("no project root (requirements.txt or package.json) found")

// allowedCommands is the closed set of executables a generated project may
// ask for. Anything else in a README is ignored and detection falls back to
// the manifest files.
var allowedCommands = map[string]bool{
	"pip":       true,
	"pip3":      true,
	"npm":       true,
	"streamlit": true,
	"flask":     true,
	"uvicorn":   true,
	"python":    true,
	"python3":   true,
	"node":      true,
}

// findProjectRoot walks the staged tree top-down and returns the first
// directory holding a dependency manifest.
func findProjectRoot(base string) (string, error) {
	var root string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if fileExists(filepath.Join(path, "requirements.txt")) || fileExists(filepath.Join(path, "package.json")) {
			root = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", errNoProjectRoot
	}
	return root, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var (
	readmeInstallRe = regexp.MustCompile("`(pip3? install [^`]+|npm install[^`]*)`")
	readmeRunRe     = regexp.MustCompile("`(streamlit run [^`]+|npm run [^`]+|flask run[^`]*|uvicorn [^`]+|python3? [^`]+)`")
)

// planCommands decides how to install and run the project in dir. README
// inline commands win; missing pieces fall back to manifest-based detection.
func planCommands(dir string, port int) (plan, error) {
	var p plan

	if readme, err := os.ReadFile(filepath.Join(dir, "README.md")); err == nil {
		if m := readmeInstallRe.FindStringSubmatch(string(readme)); m != nil {
			p.install = splitCommand(m[1])
		}
		if m := readmeRunRe.FindStringSubmatch(string(readme)); m != nil {
			p.run = splitCommand(m[1])
		}
	}

	if p.install == nil || p.run == nil {
		fallback, err := detectFromManifests(dir)
		if err != nil {
			return plan{}, err
		}
		if p.install == nil {
			p.install = fallback.install
		}
		if p.run == nil {
			p.run = fallback.run
		}
	}

	if p.run == nil {
		return plan{}, fmt.Errorf("could not determine how to run the project in %s", dir)
	}

	p.run = appendPortFlags(p.run, port)
	if p.run[0] == "npm" || p.run[0] == "node" {
		p.env = append(p.env, "PORT="+strconv.Itoa(port))
	}
	return p, nil
}

// splitCommand turns inline README text into argv, rejecting executables
// outside the whitelist.
func splitCommand(s string) []string {
	argv := strings.Fields(s)
	if len(argv) == 0 || !allowedCommands[argv[0]] {
		return nil
	}
	return argv
}

func detectFromManifests(dir string) (plan, error) {
	if fileExists(filepath.Join(dir, "requirements.txt")) {
		return detectPython(dir)
	}
	if fileExists(filepath.Join(dir, "package.json")) {
		return detectNode(dir)
	}
	return plan{}, errNoProjectRoot
}

func detectPython(dir string) (plan, error) {
	p := plan{install: []string{"pip", "install", "-r", "requirements.txt"}}

	data, err := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	if err != nil {
		return plan{}, err
	}
	reqs := strings.ToLower(string(data))

	switch {
	case strings.Contains(reqs, "streamlit"):
		entry := pythonEntryFile(dir)
		if entry == "" {
			return plan{}, fmt.Errorf("streamlit project in %s has no .py entry file", dir)
		}
		p.run = []string{"streamlit", "run", entry}
	case strings.Contains(reqs, "flask"):
		p.run = []string{"flask", "run"}
	case strings.Contains(reqs, "fastapi"):
		p.run = []string{"uvicorn", "main:app"}
	default:
		entry := pythonEntryFile(dir)
		if entry == "" {
			return plan{}, fmt.Errorf("python project in %s has no .py entry file", dir)
		}
		p.run = []string{"python", entry}
	}
	return p, nil
}

// pythonEntryFile guesses the entrypoint: the conventional names first, then
// the lexically first .py file.
func pythonEntryFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var pyFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".py") {
			pyFiles = append(pyFiles, e.Name())
		}
	}
	sort.Strings(pyFiles)

	for _, candidate := range []string{"main.py", "app.py", "run.py", "server.py"} {
		for _, f := range pyFiles {
			if f == candidate {
				return f
			}
		}
	}
	if len(pyFiles) > 0 {
		return pyFiles[0]
	}
	return ""
}

func detectNode(dir string) (plan, error) {
	p := plan{install: []string{"npm", "install"}}

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return plan{}, err
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return plan{}, fmt.Errorf("parse package.json: %w", err)
	}

	switch {
	case pkg.Scripts["dev"] != "":
		p.run = []string{"npm", "run", "dev"}
	case pkg.Scripts["start"] != "":
		p.run = []string{"npm", "run", "start"}
	default:
		return plan{}, fmt.Errorf("package.json in %s has no dev or start script", dir)
	}
	return p, nil
}

// appendPortFlags binds the run command to the allocated port. Node
// projects pick the port up from the PORT env var instead.
func appendPortFlags(run []string, port int) []string {
	if len(run) == 0 {
		return run
	}
	joined := strings.Join(run, " ")
	portStr := strconv.Itoa(port)

	switch run[0] {
	case "streamlit":
		if !strings.Contains(joined, "--server.port") {
			run = append(run, "--server.port", portStr, "--server.address", "127.0.0.1", "--server.headless", "true")
		}
	case "flask":
		if !strings.Contains(joined, "--port") {
			run = append(run, "--host", "127.0.0.1", "--port", portStr)
		}
	case "uvicorn":
		if !strings.Contains(joined, "--port") {
			run = append(run, "--host", "127.0.0.1", "--port", portStr)
		}
	}
	return run
}
