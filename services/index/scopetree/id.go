// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scopetree

import "fmt"

// GenerateID builds a stable identifier for a declaration.
//
// Description:
//
//	IDs are "path:line:name". They are stable across rebuilds of an
//	unchanged file, unique within a file (two declarations cannot share
//	a line and a name), and human-readable in logs and snapshots.
//
// Inputs:
//   - filePath: Path relative to the project root, forward slashes.
//   - line: 1-based declaration line.
//   - name: Declared name.
//
// Outputs:
//   - string: The identifier.
func GenerateID(filePath string, line int, name string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, line, name)
}

// GenerateCallSiteID builds a stable identifier for a call expression.
//
// Call sites are keyed by position and callee rather than by name
// alone: one line may hold several calls to the same callee at
// different columns.
func GenerateCallSiteID(filePath string, loc Location, callee string) string {
	return fmt.Sprintf("%s:%d:%d:%s", filePath, loc.Line, loc.Col, callee)
}
