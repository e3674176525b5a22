// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package symtab

import (
	"strings"

	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

// ImportLocalName returns the name an import binds in its file's
// module scope: the alias when present, the imported symbol name for
// from-imports, otherwise the last segment of the module path.
func ImportLocalName(imp scopetree.Import) string {
	if imp.Alias != "" {
		return imp.Alias
	}
	if imp.Name != "" {
		return imp.Name
	}
	if idx := strings.LastIndex(imp.Path, "."); idx >= 0 {
		return imp.Path[idx+1:]
	}
	return imp.Path
}

// ImportQualifiedName returns the fully qualified name an import
// refers to, with any alias resolved away.
func ImportQualifiedName(imp scopetree.Import) string {
	if imp.Name != "" {
		return imp.Path + "." + imp.Name
	}
	return imp.Path
}

// ResolveClassName resolves a class name as written in a file to the
// qualified name of an indexed class.
//
// Description:
//
//	Used for extends lists, constructor calls, and type annotations.
//	Resolution order mirrors name binding: same module first, then the
//	file's import/alias table, then a globally unique class name.
//	More than one global candidate is ambiguity we refuse to guess at.
//
// Outputs:
//   - string: The qualified class name, or "" when unresolved
//     (external or ambiguous).
func (t *Table) ResolveClassName(filePath, name string) string {
	module := t.Module(filePath)

	if !strings.Contains(name, ".") {
		if def, ok := t.ByQualifiedName(module + "." + name); ok && def.Kind == DefKindClass {
			return def.QualifiedName
		}
	} else if def, ok := t.ByQualifiedName(name); ok && def.Kind == DefKindClass {
		return def.QualifiedName
	}

	if qname := t.ResolveImportedName(filePath, name); qname != "" {
		if def, ok := t.ByQualifiedName(qname); ok && def.Kind == DefKindClass {
			return def.QualifiedName
		}
	}

	if !strings.Contains(name, ".") {
		var match *Definition
		for _, def := range t.ByName(name) {
			if def.Kind != DefKindClass {
				continue
			}
			if match != nil {
				return ""
			}
			match = def
		}
		if match != nil {
			return match.QualifiedName
		}
	}
	return ""
}

// ResolveImportedName resolves a name used in a file against the
// file's import table.
//
// Description:
//
//	Handles both bare names (`Base` bound by `from pkg import Base`
//	or `import pkg.Base as Base`) and dotted names whose first
//	segment is an imported module or alias (`alias.Base` after
//	`import pkg.sub as alias`). Aliases resolve transparently to the
//	underlying qualified name.
//
// Outputs:
//   - string: The qualified name, or "" when no import matches.
func (t *Table) ResolveImportedName(filePath, name string) string {
	imports := t.Imports(filePath)
	if len(imports) == 0 {
		return ""
	}

	head := name
	rest := ""
	if idx := strings.Index(name, "."); idx >= 0 {
		head = name[:idx]
		rest = name[idx:]
	}

	for _, imp := range imports {
		if ImportLocalName(imp) != head {
			continue
		}
		return ImportQualifiedName(imp) + rest
	}
	return ""
}
