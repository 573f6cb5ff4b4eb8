// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast normalizes source files in the supported languages into a
// single language-neutral definition model. Each language has its own
// normalizer (tree-sitter based, except Classic ASP which is regex
// based); the registry dispatches by language name.
//
// Design principles:
//   - One output shape for every language. Downstream stages (symbol
//     building, import resolution, kind tagging) never switch on
//     language-specific structures.
//   - Lossy by intent. The model keeps what the knowledge graph needs,
//     names, parameter lists, imports, calls, not full ASTs.
//   - A file that cannot be parsed is dropped, not fatal: Normalize
//     returns (nil, nil) and the caller logs and moves on.
package ast

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// ===== Errors =====

var (
	// ErrFileTooLarge is returned for files above MaxFileSize.
	ErrFileTooLarge = errors.New("ast: file exceeds maximum size")

	// ErrInvalidContent is returned for content that is not valid UTF-8.
	ErrInvalidContent = errors.New("ast: content is not valid UTF-8")

	// ErrUnsupportedLanguage is returned by the registry for languages
	// without a normalizer.
	ErrUnsupportedLanguage = errors.New("ast: unsupported language")
)

// MaxFileSize is the largest source file a normalizer will accept.
const MaxFileSize = 10 * 1024 * 1024 // 10MB

// ===== Definition model =====

// Function is a function, method, or subroutine definition.
type Function struct {
	// Name is the declared name.
	Name string `json:"name"`

	// Parameters is the raw parameter list text, parentheses included
	// when the grammar provides them.
	Parameters string `json:"parameters,omitempty"`

	// Docstring is the leading documentation string (python only).
	Docstring string `json:"docstring,omitempty"`

	// ReturnType is the declared return type (java, csharp).
	ReturnType string `json:"return_type,omitempty"`
}

// Class is a class definition with its members.
type Class struct {
	// Name is the declared name.
	Name string `json:"name"`

	// Methods lists member functions.
	Methods []Function `json:"methods,omitempty"`

	// Fields lists raw field declaration text (java).
	Fields []string `json:"fields,omitempty"`

	// Annotations lists decorator/annotation/attribute text attached to
	// the class.
	Annotations []string `json:"annotations,omitempty"`

	// Properties lists property names (csharp).
	Properties []string `json:"properties,omitempty"`
}

// Interface is an interface definition (typescript, java, csharp).
type Interface struct {
	// Name is the declared name.
	Name string `json:"name"`

	// Methods lists method signatures.
	Methods []Function `json:"methods,omitempty"`
}

// Struct is a struct definition (c).
type Struct struct {
	Name string `json:"name"`
}

// Namespace is a namespace definition (cpp).
type Namespace struct {
	Name string `json:"name"`
}

// Typedef is a type definition (c).
type Typedef struct {
	Name string `json:"name"`
}

// Call is one call site.
type Call struct {
	// Function is the call target text as written (may be dotted).
	Function string `json:"function"`

	// Arguments lists raw argument text.
	Arguments []string `json:"arguments,omitempty"`
}

// Definitions is the language-neutral result of normalizing one file.
// Fields a language does not produce stay empty and are omitted from
// JSON; nothing is ever serialized as null.
type Definitions struct {
	// Imports lists raw import statement text (python, js/ts, java,
	// csharp).
	Imports []string `json:"imports,omitempty"`

	// Includes lists include directives: raw text for c/cpp, the
	// included path for asp.
	Includes []string `json:"includes,omitempty"`

	// Functions lists top-level functions.
	Functions []Function `json:"functions,omitempty"`

	// Subroutines lists Sub definitions (asp).
	Subroutines []Function `json:"subroutines,omitempty"`

	// Classes lists class definitions.
	Classes []Class `json:"classes,omitempty"`

	// Interfaces lists interface definitions.
	Interfaces []Interface `json:"interfaces,omitempty"`

	// Structs lists struct definitions (c).
	Structs []Struct `json:"structs,omitempty"`

	// Namespaces lists namespace definitions (cpp).
	Namespaces []Namespace `json:"namespaces,omitempty"`

	// Typedefs lists type definitions (c).
	Typedefs []Typedef `json:"typedefs,omitempty"`

	// Variables lists raw variable declaration text (javascript).
	Variables []string `json:"variables,omitempty"`

	// Calls lists call sites.
	Calls []Call `json:"calls,omitempty"`

	// CodePatterns captures per-file conventions (import/export style,
	// decorators, component type, lifecycle hooks, state management).
	// Absent for asp.
	CodePatterns *knowledge.CodePatterns `json:"codePatterns,omitempty"`

	// UIElements captures button/navigation/form usages (js/ts only).
	UIElements *knowledge.UIElements `json:"uiElements,omitempty"`

	// FileStructure records sibling template/style files (js/ts only).
	FileStructure *knowledge.FileStructure `json:"fileStructure,omitempty"`
}

// SymbolCount returns the number of graph symbols these definitions
// produce: functions, classes, class methods, and interfaces.
func (d *Definitions) SymbolCount() int {
	if d == nil {
		return 0
	}
	n := len(d.Functions) + len(d.Classes) + len(d.Interfaces)
	for _, c := range d.Classes {
		n += len(c.Methods)
	}
	return n
}

// Empty reports whether nothing at all was extracted.
func (d *Definitions) Empty() bool {
	if d == nil {
		return true
	}
	return len(d.Imports) == 0 && len(d.Includes) == 0 &&
		len(d.Functions) == 0 && len(d.Subroutines) == 0 &&
		len(d.Classes) == 0 && len(d.Interfaces) == 0 &&
		len(d.Structs) == 0 && len(d.Namespaces) == 0 &&
		len(d.Typedefs) == 0 && len(d.Variables) == 0 &&
		len(d.Calls) == 0
}

// ===== Normalizer contract =====

// Normalizer extracts definitions from one language.
//
// Thread Safety:
//
//	Implementations are safe for concurrent use. Each Normalize call
//	creates its own tree-sitter parser instance.
type Normalizer interface {
	// Language returns the language name this normalizer handles.
	Language() string

	// Normalize extracts definitions from source. It returns (nil, nil)
	// when the file cannot be parsed; the caller drops the file. Errors
	// are reserved for invalid input (size, encoding) and cancellation.
	Normalize(ctx context.Context, path string, source []byte) (*Definitions, error)
}

// ===== Registry =====

// Registry dispatches normalization by language name.
type Registry struct {
	normalizers map[string]Normalizer
}

// NewRegistry returns a registry with all supported languages wired in.
func NewRegistry() *Registry {
	r := &Registry{normalizers: make(map[string]Normalizer, 8)}
	for _, n := range []Normalizer{
		NewPythonNormalizer(),
		NewTypeScriptNormalizer(),
		NewJavaScriptNormalizer(),
		NewJavaNormalizer(),
		NewCNormalizer(),
		NewCPPNormalizer(),
		NewCSharpNormalizer(),
		NewASPNormalizer(),
	} {
		r.normalizers[n.Language()] = n
	}
	return r
}

// Get returns the normalizer for a language.
func (r *Registry) Get(language string) (Normalizer, bool) {
	n, ok := r.normalizers[language]
	return n, ok
}

// Languages returns the registered language names, unordered.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.normalizers))
	for lang := range r.normalizers {
		langs = append(langs, lang)
	}
	return langs
}

// Normalize dispatches to the language's normalizer and records
// normalization metrics.
func (r *Registry) Normalize(ctx context.Context, language, path string, source []byte) (*Definitions, error) {
	n, ok := r.normalizers[language]
	if !ok {
		return nil, ErrUnsupportedLanguage
	}

	ctx, span := startNormalizeSpan(ctx, language, path)
	defer span.End()

	start := time.Now()
	defs, err := n.Normalize(ctx, path, source)
	recordNormalizeMetrics(ctx, language, time.Since(start), defs.SymbolCount(), err == nil && defs != nil)

	return defs, err
}
