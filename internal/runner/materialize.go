package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// materialize writes a workspace snapshot under baseDir. Names off the wire
// may carry embedded separators and hostile segments; everything is split
// and sanitized so no write can escape baseDir.
func materialize(snap workspace.Snapshot, baseDir string) error {
	for name, node := range snap {
		if node == nil {
			continue
		}
		rel := sanitizeRel(name)
		if rel == "" {
			continue
		}
		path := filepath.Join(baseDir, rel)

		switch node.Type {
		case workspace.KindFolder:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("create folder %s: %w", rel, err)
			}
			if len(node.Children) > 0 {
				if err := materialize(node.Children, path); err != nil {
					return err
				}
			}
		case workspace.KindFile:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create parent of %s: %w", rel, err)
			}
			if err := os.WriteFile(path, []byte(node.Content), 0o644); err != nil {
				return fmt.Errorf("write file %s: %w", rel, err)
			}
		}
	}
	return nil
}

// sanitizeRel turns a wire name into a safe relative path: split on both
// separators, drop empty and ".." segments.
func sanitizeRel(name string) string {
	segments := workspace.SplitPath(name)
	safe := segments[:0]
	for _, seg := range segments {
		if seg == ".." || seg == "." {
			continue
		}
		safe = append(safe, seg)
	}
	return filepath.Join(safe...)
}
