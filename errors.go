// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package graph

import "errors"

// ErrFinalized is returned by any Builder mutation attempted after Done has
// been called.
var ErrFinalized = errors.New("graph: already finalized")

// ErrKindMismatch is returned when a caller asks for a symbol under a kind
// that does not match the kind it was originally interned with.
var ErrKindMismatch = errors.New("graph: entity kind mismatch for symbol")

// ErrUnknownAssembly is returned when a report or lookup names an assembly
// the registry has never seen.
var ErrUnknownAssembly = errors.New("graph: unknown assembly")
