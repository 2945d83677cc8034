// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package clrread

// AnoPEHeaderOverlapDOSHeader is reported when the PE headers overlaps with the DOS header.
var AnoPEHeaderOverlapDOSHeader = "PE Header overlaps with DOS header"
