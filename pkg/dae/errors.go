// Package dae implements a reader, writer, and in-memory object model for
// COLLADA (.dae) documents: geometries, materials, lights, cameras, scene
// graphs, and skin/morph controllers.
package dae

import "fmt"

// Kind classifies a document loading or traversal error.
type Kind int

const (
	// KindMalformed marks structurally invalid input. Always fatal.
	KindMalformed Kind = iota + 1
	// KindMalformedSource marks a source array whose length does not
	// divide evenly by its component count. Fatal.
	KindMalformedSource
	// KindBrokenRef marks a #id reference that never resolves. Ignorable:
	// the element degrades to a nil link or is dropped.
	KindBrokenRef
	// KindUnsupported marks a recognized but unimplemented feature, such
	// as polygon holes. Ignorable: the loader keeps a best-effort
	// approximation.
	KindUnsupported
	// KindDuplicateID marks two elements claiming the same identifier.
	// Fatal.
	KindDuplicateID
	// KindCyclicRef marks a node instancing one of its own ancestors.
	// Fatal: traversal would never terminate.
	KindCyclicRef
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed document"
	case KindMalformedSource:
		return "malformed source"
	case KindBrokenRef:
		return "broken reference"
	case KindUnsupported:
		return "unsupported feature"
	case KindDuplicateID:
		return "duplicate id"
	case KindCyclicRef:
		return "cyclic reference"
	}
	return "unknown"
}

// Ignorable reports whether errors of this kind may be converted into
// recorded warnings via the WithIgnore option. Fatal kinds always abort
// the load.
func (k Kind) Ignorable() bool {
	return k == KindBrokenRef || k == KindUnsupported
}

// Error is a document loading or traversal error. Every error raised while
// loading is also appended, in order, to Document.Errors, whether it was
// fatal or downgraded to a warning.
type Error struct {
	Kind Kind
	Msg  string
	// Where locates the failing element within the document, such as
	// "geometry[box-lib]/polylist". Empty when no location applies.
	Where string
}

func (e *Error) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Where, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func errMalformed(where, format string, args ...any) *Error {
	return &Error{Kind: KindMalformed, Where: where, Msg: fmt.Sprintf(format, args...)}
}

func errMalformedSource(where, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedSource, Where: where, Msg: fmt.Sprintf(format, args...)}
}

func errBrokenRef(where, format string, args ...any) *Error {
	return &Error{Kind: KindBrokenRef, Where: where, Msg: fmt.Sprintf(format, args...)}
}

func errUnsupported(where, format string, args ...any) *Error {
	return &Error{Kind: KindUnsupported, Where: where, Msg: fmt.Sprintf(format, args...)}
}

func errDuplicateID(id string) *Error {
	return &Error{Kind: KindDuplicateID, Msg: fmt.Sprintf("id %q registered twice", id)}
}

func errCyclicRef(where string) *Error {
	return &Error{Kind: KindCyclicRef, Where: where, Msg: "node instances one of its own ancestors"}
}
