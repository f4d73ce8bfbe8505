// Package emit renders exported records as C source for the target engine.
package emit

import (
	_ "embed"
	"io"
	"os"
	"path/filepath"
)

// TypesFile is the name of the struct layout header shared by all levels.
const TypesFile = "custom_types.h"

// customTypes holds the struct layouts every level file refers to.
//
//go:embed custom_types.h
var customTypes string

// Types returns the custom_types.h text.
func Types() string {
	return customTypes
}

// WriteTypes writes custom_types.h to w.
func WriteTypes(w io.Writer) error {
	_, err := io.WriteString(w, customTypes)
	return err
}

// WriteTypesFile writes custom_types.h into dir and returns its path.
func WriteTypesFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, TypesFile)
	if err := os.WriteFile(path, []byte(customTypes), 0644); err != nil {
		return "", err
	}
	return path, nil
}
