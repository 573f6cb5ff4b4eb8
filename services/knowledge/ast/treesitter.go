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
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// checkSource validates size and encoding before any parse work.
func checkSource(ctx context.Context, source []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("normalize canceled before start: %w", err)
	}
	if len(source) > MaxFileSize {
		return ErrFileTooLarge
	}
	if !utf8.Valid(source) {
		return ErrInvalidContent
	}
	return nil
}

// parseTree parses source with the given grammar. Each call creates its
// own parser instance so normalizers stay safe for concurrent use.
func parseTree(ctx context.Context, lang *sitter.Language, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// nodeText returns the source text a node spans. Nil nodes yield "".
func nodeText(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

// visit walks the subtree rooted at n in depth-first order, calling fn
// for every node.
func visit(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		visit(n.Child(i), fn)
	}
}

// hasChildOfType reports whether n has a direct child with the given
// node type.
func hasChildOfType(n *sitter.Node, nodeType string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == nodeType {
			return true
		}
	}
	return false
}
