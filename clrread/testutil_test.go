// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clrread

import (
	"path"
	"path/filepath"
	"runtime"
)

// getAbsoluteFilePath resolves a path relative to this package's test/
// fixtures directory, independent of the working directory `go test` is
// invoked from.
func getAbsoluteFilePath(testfile string) string {
	_, p, _, _ := runtime.Caller(0)
	return path.Join(filepath.Dir(p), testfile)
}
