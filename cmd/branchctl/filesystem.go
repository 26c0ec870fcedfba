package main

import (
	"context"
	"os"

	"github.com/ardentforge/branchctl/pkg/merge"
)

// osFileSystem is the real-disk merge.FileSystem: merge strategies read
// file content straight off whatever session path the Branch Manager hands
// them.
type osFileSystem struct{}

func newOSFileSystem() merge.FileSystem {
	return osFileSystem{}
}

func (osFileSystem) ReadFile(_ context.Context, path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (osFileSystem) FileExists(_ context.Context, path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
