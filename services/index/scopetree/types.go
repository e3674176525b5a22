// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scopetree defines the input contract of the indexing core: the
// per-file scope trees produced by an external language front-end.
//
// The core never parses source text. A front-end hands over one File per
// source file, already reduced to declarations, statements in evaluation
// order, imports, and asynchronous-suspension markers. All types in this
// package are plain data with JSON tags so trees can be produced
// out-of-process and replayed from disk.
package scopetree

// Location identifies a source position within a file.
type Location struct {
	// Line is the 1-based line number.
	Line int `json:"line"`

	// Col is the 0-based column number.
	Col int `json:"col"`
}

// DeclKind identifies what a declaration introduces.
type DeclKind int

const (
	// DeclKindClass is a class declaration with an ordered extends list.
	DeclKindClass DeclKind = iota

	// DeclKindFunction is a free function declaration.
	DeclKindFunction

	// DeclKindMethod is a function declared inside a class body.
	DeclKindMethod

	// DeclKindVariable is a named binding declared to hold a callable
	// value. Ordinary variables arrive as assignment statements, not
	// declarations.
	DeclKindVariable

	// DeclKindLambda is an anonymous function literal. Lambdas appear
	// as the value of an assignment or as a standalone declaration with
	// a synthesized name.
	DeclKindLambda
)

// String returns the string representation of the DeclKind.
func (k DeclKind) String() string {
	switch k {
	case DeclKindClass:
		return "class"
	case DeclKindFunction:
		return "function"
	case DeclKindMethod:
		return "method"
	case DeclKindVariable:
		return "variable"
	case DeclKindLambda:
		return "lambda"
	default:
		return "unknown"
	}
}

// Param is one declared parameter of a function, method, or lambda.
type Param struct {
	// Name is the parameter name.
	Name string `json:"name"`

	// Type is the annotated type name, empty when unannotated.
	// May be a bare class name or a dotted qualified name.
	Type string `json:"type,omitempty"`
}

// Decl is one declaration node in a scope tree.
//
// A Decl owns a Body holding its nested declarations and its statements
// in evaluation order. Class bodies hold method and class-variable
// declarations; function bodies hold statements plus nested functions
// and lambdas.
type Decl struct {
	// Name is the declared name. Lambdas carry a front-end synthesized
	// name such as "<lambda:12:4>".
	Name string `json:"name"`

	// Kind identifies the declaration kind.
	Kind DeclKind `json:"kind"`

	// Loc is the declaration's source position.
	Loc Location `json:"loc"`

	// Extends lists superclass names in declared order. Only set for
	// DeclKindClass. Entries may be local names, aliased names, or
	// dotted qualified names.
	Extends []string `json:"extends,omitempty"`

	// Abstract marks a class member with no concrete body.
	Abstract bool `json:"abstract,omitempty"`

	// Decorators is the ordered decorator-application chain, outermost
	// first. Decorators wrap the declaration; they never replace its
	// identity for resolution purposes.
	Decorators []string `json:"decorators,omitempty"`

	// Params lists declared parameters for callable declarations.
	Params []Param `json:"params,omitempty"`

	// Async marks suspension capability. It never changes dispatch.
	Async bool `json:"async,omitempty"`

	// Body holds nested declarations and ordered statements. Nil for
	// variable declarations and abstract members.
	Body *Body `json:"body,omitempty"`
}

// Body is the ordered content of a declaration.
type Body struct {
	// Decls are the nested declarations, in declaration order.
	Decls []*Decl `json:"decls,omitempty"`

	// Stmts are the statements in evaluation order. Program order is
	// preserved: suspension markers and calls interleave exactly as
	// the front-end saw them.
	Stmts []*Stmt `json:"stmts,omitempty"`
}

// StmtKind identifies a statement relevant to resolution.
type StmtKind int

const (
	// StmtKindCall is a call expression.
	StmtKindCall StmtKind = iota

	// StmtKindAssign is an assignment establishing or re-establishing
	// a binding, possibly with a statically-known declared type.
	StmtKindAssign

	// StmtKindSuspend is an asynchronous-suspension marker. Every call
	// at or after it within the same caller is flagged suspended.
	StmtKindSuspend
)

// String returns the string representation of the StmtKind.
func (k StmtKind) String() string {
	switch k {
	case StmtKindCall:
		return "call"
	case StmtKindAssign:
		return "assign"
	case StmtKindSuspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// Stmt is one statement in a declaration body.
type Stmt struct {
	// Kind identifies the statement kind.
	Kind StmtKind `json:"kind"`

	// Loc is the statement's source position.
	Loc Location `json:"loc"`

	// Call is set for StmtKindCall.
	Call *CallExpr `json:"call,omitempty"`

	// Target is the bound name for StmtKindAssign.
	Target string `json:"target,omitempty"`

	// Value is the assigned expression for StmtKindAssign.
	Value *Expr `json:"value,omitempty"`
}

// CallExpr is one call expression as observed by the front-end.
type CallExpr struct {
	// Callee is the called name. For member calls this is the member
	// name only; the receiver expression lives in Receiver.
	Callee string `json:"callee"`

	// Receiver is the receiver expression, empty for free calls.
	// The front-end passes "self" or "this" through verbatim.
	Receiver string `json:"receiver,omitempty"`

	// ArgCount is the number of arguments at the call site.
	ArgCount int `json:"arg_count"`
}

// ExprKind identifies an assignable expression shape.
type ExprKind int

const (
	// ExprKindConstructorCall is `Name(...)` where Name is a class,
	// establishing a declared type for the assignment target.
	ExprKindConstructorCall ExprKind = iota

	// ExprKindNameRef is a bare name reference; declared type
	// propagates from the referenced binding.
	ExprKindNameRef

	// ExprKindAttrAccess is `receiver.member`.
	ExprKindAttrAccess

	// ExprKindLambda is an anonymous function literal.
	ExprKindLambda

	// ExprKindOpaque is any other expression. Opaque values carry no
	// declared type.
	ExprKindOpaque
)

// Expr is the right-hand side of an assignment.
type Expr struct {
	// Kind identifies the expression shape.
	Kind ExprKind `json:"kind"`

	// Name is the constructor class name, referenced name, or member
	// name depending on Kind.
	Name string `json:"name,omitempty"`

	// Receiver is the receiver expression for ExprKindAttrAccess.
	Receiver string `json:"receiver,omitempty"`

	// Lambda is the literal for ExprKindLambda.
	Lambda *Decl `json:"lambda,omitempty"`
}

// Import is one import or alias declaration at module scope.
type Import struct {
	// Path is the imported module path, dotted form.
	Path string `json:"path"`

	// Name is the imported symbol name, empty for whole-module imports.
	Name string `json:"name,omitempty"`

	// Alias is the local name when aliased (`import X as Y`), empty
	// otherwise.
	Alias string `json:"alias,omitempty"`

	// Loc is the import's source position.
	Loc Location `json:"loc"`
}

// File is one parsed source file's scope tree.
type File struct {
	// Path is the file path relative to the project root, using
	// forward slashes.
	Path string `json:"path"`

	// Module is the dotted module name the file defines.
	Module string `json:"module"`

	// Decls are the module-scope declarations in declaration order.
	Decls []*Decl `json:"decls,omitempty"`

	// Stmts are the module-scope statements in evaluation order.
	Stmts []*Stmt `json:"stmts,omitempty"`

	// Imports are the file's imports and aliases.
	Imports []Import `json:"imports,omitempty"`

	// Version is a monotonically increasing stamp assigned by the
	// caller. Changing a file bumps its version and invalidates the
	// definitions extracted from the previous version.
	Version int64 `json:"version,omitempty"`
}
