// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

func refsForModules(mods []knowledge.Module) []Reference {
	refs := make([]Reference, 0, len(mods))
	for _, mod := range mods {
		refs = append(refs, Reference{Type: "module", ID: mod.ID, Name: mod.Path})
	}
	return refs
}

// featureRefs resolves up to five modules per feature.
func (h *Handler) featureRefs() []Reference {
	var refs []Reference
	for _, feat := range h.engine.Graph().Features {
		for _, moduleID := range first(feat.ModuleIDs, 5) {
			if mod := h.engine.ModuleByID(moduleID); mod != nil {
				refs = append(refs, Reference{Type: "module", ID: moduleID, Name: mod.Path})
			}
		}
	}
	return refs
}

func (h *Handler) projectRefs() []Reference {
	project := h.engine.Graph().Project
	return []Reference{{Type: "project", ID: project.ID, Name: project.Name}}
}

// dependencyRefs lists the queried module plus its ten nearest neighbors,
// or the first ten modules for the project-wide listing.
func (h *Handler) dependencyRefs(ctx context.Context, moduleID string) []Reference {
	var refs []Reference
	if moduleID != "" {
		mod := h.engine.ModuleByID(moduleID)
		if mod == nil {
			return nil
		}
		refs = append(refs, Reference{Type: "module", ID: moduleID, Name: mod.Path})
		deps := h.engine.Dependencies(ctx, moduleID)
		neighbors := append(append([]knowledge.Module{}, deps.Callees...), deps.Callers...)
		for _, neighbor := range first(neighbors, 10) {
			refs = append(refs, Reference{Type: "module", ID: neighbor.ID, Name: neighbor.Path})
		}
		return refs
	}
	for _, mod := range first(h.engine.Graph().Modules, 10) {
		refs = append(refs, Reference{Type: "module", ID: mod.ID, Name: mod.Path})
	}
	return refs
}

// moduleRefs lists the module plus up to five exported symbols.
func (h *Handler) moduleRefs(moduleID string) []Reference {
	mod := h.engine.ModuleByID(moduleID)
	if mod == nil {
		return nil
	}
	refs := []Reference{{Type: "module", ID: moduleID, Name: mod.Path}}
	for _, symbolID := range first(mod.Exports, 5) {
		if sym := h.engine.SymbolByID(symbolID); sym != nil {
			refs = append(refs, Reference{Type: "symbol", ID: symbolID, Name: sym.Name})
		}
	}
	return refs
}

func (h *Handler) endpointRefs() []Reference {
	endpoints := h.engine.Graph().Endpoints
	refs := make([]Reference, 0, len(endpoints))
	for _, ep := range first(endpoints, 20) {
		refs = append(refs, Reference{
			Type: "endpoint",
			ID:   ep.ID,
			Name: strings.TrimSpace(fmt.Sprintf("%s %s", ep.Method, ep.Path)),
		})
	}
	return refs
}

// refsFromAnswer scans an LLM answer for source paths and maps them back
// to modules.
func (h *Handler) refsFromAnswer(text string) []Reference {
	var refs []Reference
	for _, match := range first(answerPathRe.FindAllString(text, -1), 10) {
		for i := range h.engine.Graph().Modules {
			mod := &h.engine.Graph().Modules[i]
			if strings.Contains(mod.Path, match) {
				refs = append(refs, Reference{Type: "module", ID: mod.ID, Name: mod.Path})
				break
			}
		}
	}
	return refs
}
