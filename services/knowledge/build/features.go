// Copyright (C) 2025 Aleutian AI
//
// This program is licensed under the GNU Affero General Public License v3.
// See the LICENSE.txt file for details.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package build

import (
	"strings"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// buildFeatures derives feature groupings from the folder hierarchy.
// Every ancestor folder of a module's path becomes a feature, and the
// module is listed on each of them, so a feature's ModuleIDs covers its
// subtree transitively. Modules arrive sorted by path, which fixes the
// emission order.
func buildFeatures(modules []knowledge.Module) []knowledge.Feature {
	var features []knowledge.Feature
	index := make(map[string]int)

	for _, mod := range modules {
		parts := strings.Split(mod.Path, "/")
		if len(parts) < 2 {
			continue // Root-level file, no folder to group under.
		}
		folders := parts[:len(parts)-1]

		var prefix string
		for _, part := range folders {
			if part == "" {
				continue
			}
			if prefix == "" {
				prefix = part
			} else {
				prefix = prefix + "/" + part
			}

			id := knowledge.FeatureID(prefix)
			pos, ok := index[id]
			if !ok {
				pos = len(features)
				index[id] = pos
				features = append(features, knowledge.Feature{
					ID:   id,
					Name: part,
					Path: prefix,
				})
			}
			features[pos].ModuleIDs = append(features[pos].ModuleIDs, mod.ID)
		}
	}

	return features
}
