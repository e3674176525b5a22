// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scopetree

import (
	"errors"
	"fmt"
)

// Validation errors. A failed validation is fatal for the owning file
// only; every other file proceeds through the build.
var (
	// ErrNilFile is returned when a nil File is submitted.
	ErrNilFile = errors.New("scopetree: nil file")

	// ErrEmptyPath is returned when a File carries no path.
	ErrEmptyPath = errors.New("scopetree: empty file path")

	// ErrMalformedNode is returned when a declaration or statement is
	// structurally invalid.
	ErrMalformedNode = errors.New("scopetree: malformed node")
)

// Validate checks the structural integrity of a file's scope tree.
//
// Description:
//
//	Walks every declaration and statement, rejecting nil nodes,
//	unnamed declarations, calls without a callee, and assignments
//	without a target. Validation is purely structural: unresolvable
//	names are not errors here, they degrade confidence downstream.
//
// Outputs:
//   - error: Non-nil if the tree is malformed. Wraps ErrMalformedNode,
//     ErrNilFile, or ErrEmptyPath.
func (f *File) Validate() error {
	if f == nil {
		return ErrNilFile
	}
	if f.Path == "" {
		return ErrEmptyPath
	}
	for i, d := range f.Decls {
		if err := validateDecl(d, fmt.Sprintf("decl[%d]", i)); err != nil {
			return err
		}
	}
	for i, s := range f.Stmts {
		if err := validateStmt(s, fmt.Sprintf("stmt[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateDecl(d *Decl, path string) error {
	if d == nil {
		return fmt.Errorf("%w: %s is nil", ErrMalformedNode, path)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: %s has no name", ErrMalformedNode, path)
	}
	if d.Kind == DeclKindClass && d.Abstract && d.Body == nil {
		// Abstract classes still carry a body listing their members.
		return fmt.Errorf("%w: %s abstract class %q has no body", ErrMalformedNode, path, d.Name)
	}
	if d.Body == nil {
		return nil
	}
	for i, child := range d.Body.Decls {
		if err := validateDecl(child, fmt.Sprintf("%s.%s.decl[%d]", path, d.Name, i)); err != nil {
			return err
		}
	}
	for i, s := range d.Body.Stmts {
		if err := validateStmt(s, fmt.Sprintf("%s.%s.stmt[%d]", path, d.Name, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateStmt(s *Stmt, path string) error {
	if s == nil {
		return fmt.Errorf("%w: %s is nil", ErrMalformedNode, path)
	}
	switch s.Kind {
	case StmtKindCall:
		if s.Call == nil || s.Call.Callee == "" {
			return fmt.Errorf("%w: %s call has no callee", ErrMalformedNode, path)
		}
	case StmtKindAssign:
		if s.Target == "" {
			return fmt.Errorf("%w: %s assignment has no target", ErrMalformedNode, path)
		}
		if s.Value != nil && s.Value.Kind == ExprKindLambda {
			if s.Value.Lambda == nil {
				return fmt.Errorf("%w: %s lambda assignment has no literal", ErrMalformedNode, path)
			}
			if err := validateDecl(s.Value.Lambda, path+".lambda"); err != nil {
				return err
			}
		}
	case StmtKindSuspend:
		// Markers carry only a location.
	default:
		return fmt.Errorf("%w: %s has unknown statement kind %d", ErrMalformedNode, path, s.Kind)
	}
	return nil
}
