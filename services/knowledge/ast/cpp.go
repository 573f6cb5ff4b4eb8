// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/AleutianAI/atlas/services/knowledge/scan"
)

// CPPNormalizer extracts definitions from C++ source and headers.
type CPPNormalizer struct{}

// NewCPPNormalizer creates a C++ normalizer.
func NewCPPNormalizer() *CPPNormalizer {
	return &CPPNormalizer{}
}

// Language returns the language name for this normalizer.
func (n *CPPNormalizer) Language() string {
	return scan.LangCPP
}

// Normalize extracts includes, free functions, classes with inline
// method definitions, and namespaces.
func (n *CPPNormalizer) Normalize(ctx context.Context, path string, source []byte) (*Definitions, error) {
	if err := checkSource(ctx, source); err != nil {
		return nil, err
	}

	tree, err := parseTree(ctx, cpp.GetLanguage(), source)
	if err != nil {
		return nil, nil
	}
	defer tree.Close()

	defs := &Definitions{}

	visit(tree.RootNode(), func(node *sitter.Node) {
		switch node.Type() {
		case cNodePreprocInclude:
			defs.Includes = append(defs.Includes, nodeText(node, source))

		case cNodeFunctionDefinition:
			// Methods defined inside a class body are collected on the
			// class below.
			if cppInsideClass(node) {
				return
			}
			if fn, ok := cFunction(node, source); ok {
				defs.Functions = append(defs.Functions, fn)
			}

		case cNodeClassSpecifier:
			if cls, ok := cppClass(node, source); ok {
				defs.Classes = append(defs.Classes, cls)
			}

		case cNodeNamespaceDefinition:
			if name := nodeText(node.ChildByFieldName("name"), source); name != "" {
				defs.Namespaces = append(defs.Namespaces, Namespace{Name: name})
			}
		}
	})

	return defs, nil
}

// cppClass builds a Class from a class_specifier node. Anonymous and
// forward declarations (no name or no body) report ok = false for the
// former only; a named forward declaration still yields a class with
// no methods.
func cppClass(node *sitter.Node, source []byte) (Class, bool) {
	name := nodeText(node.ChildByFieldName("name"), source)
	if name == "" {
		return Class{}, false
	}
	cls := Class{Name: name}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() == cNodeFunctionDefinition {
				if fn, ok := cFunction(child, source); ok {
					cls.Methods = append(cls.Methods, fn)
				}
			}
		}
	}
	return cls, true
}

// cppInsideClass reports whether a definition sits inside a class body.
func cppInsideClass(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case cNodeClassSpecifier:
			return true
		case cNodeFunctionDefinition:
			return false
		}
	}
	return false
}
