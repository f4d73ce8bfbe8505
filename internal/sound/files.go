package sound

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const isoAnchor = "<dummy sectors"

// ManifestPath returns the manifest of interleaved file n.
func (b *Builder) ManifestPath(n int) string {
	return filepath.Join(b.opts.Dir, DefaultXADir, fmt.Sprintf("inter_%d.txt", n))
}

// InterleavedPath returns interleaved file n.
func (b *Builder) InterleavedPath(n int) string {
	return filepath.Join(b.opts.Dir, DefaultXADir, fmt.Sprintf("inter_%d.xa", n))
}

// WriteManifests writes one interleaver manifest per XA file, padded to
// eight channels with null entries.
func (b *Builder) WriteManifests(banks [][]*Emitter) ([]string, error) {
	var paths []string
	for n, bank := range banks {
		var buf bytes.Buffer
		for _, e := range bank {
			fmt.Fprintf(&buf, "%d xa %s %d %d\n", b.opts.XAMode, e.Converted, e.File, e.Channel)
		}
		for i := len(bank); i < XAChannels; i++ {
			fmt.Fprintf(&buf, "%d null\n", b.opts.XAMode)
		}
		path := b.ManifestPath(n)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Interleave runs the interleaver on every manifest.
func (b *Builder) Interleave(ctx context.Context, manifests []string) error {
	for n, m := range manifests {
		if err := b.conv.Interleave(ctx, b.opts.XAMode, m, b.InterleavedPath(n)); err != nil {
			return err
		}
	}
	return nil
}

// ISOEntry returns the mkpsxiso line for interleaved file n.
func (b *Builder) ISOEntry(n int) string {
	return fmt.Sprintf("\t\t\t<file name=\"INTER_%d.XA\" type=\"xa\" source=\"%s\"/>\n", n, b.InterleavedPath(n))
}

// UpdateISOConfig inserts entries above the dummy sectors line of a
// mkpsxiso config. Entries already present are skipped. It reports whether
// the file exists.
func UpdateISOConfig(path string, entries []string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	lines := strings.SplitAfter(string(data), "\n")
	changed := false
	for _, entry := range entries {
		if strings.Contains(string(data), strings.TrimSpace(entry)) {
			continue
		}
		for i, line := range lines {
			if strings.Contains(line, isoAnchor) {
				lines = append(lines[:i], append([]string{entry}, lines[i:]...)...)
				changed = true
				break
			}
		}
		data = []byte(strings.Join(lines, ""))
	}
	if !changed {
		return true, nil
	}
	return true, os.WriteFile(path, data, 0o644)
}
