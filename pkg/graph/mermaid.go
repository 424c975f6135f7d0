package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/contexto-ai/contexto/pkg/types"
)

// DefaultMermaidMaxNodes caps visualization output when the caller does not
// choose a limit.
const DefaultMermaidMaxNodes = 50

// Mermaid renders part of the graph as a Mermaid flowchart. A non-empty
// entityIDs draws the subgraph induced on exactly those entities, with the
// edges running between them (error when any entity is absent); otherwise the
// whole snapshot is drawn. Output is capped at maxNodes nodes.
func (g *KnowledgeGraph) Mermaid(entityIDs []string, maxNodes int) (string, error) {
	s := g.snapshot()
	if maxNodes <= 0 {
		maxNodes = DefaultMermaidMaxNodes
	}

	var included []int32
	if len(entityIDs) > 0 {
		seen := make(map[int32]bool, len(entityIDs))
		for _, id := range entityIDs {
			idx, ok := s.index[id]
			if !ok {
				return "", types.ErrEntityNotFound
			}
			if seen[idx] {
				continue
			}
			seen[idx] = true
			included = append(included, idx)
		}
	} else {
		for i := range s.nodes {
			included = append(included, int32(i))
		}
		sort.Slice(included, func(i, j int) bool {
			return s.nodes[included[i]].ID < s.nodes[included[j]].ID
		})
	}
	if len(included) > maxNodes {
		included = included[:maxNodes]
	}

	inGraph := make(map[int32]bool, len(included))
	for _, idx := range included {
		inGraph[idx] = true
	}

	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, idx := range included {
		b.WriteString("    ")
		b.WriteString(mermaidNode(s.nodes[idx]))
		b.WriteString("\n")
	}
	for _, idx := range included {
		for _, ei := range s.out[idx] {
			edge := s.edges[ei]
			dst := s.index[edge.TargetID]
			if !inGraph[dst] {
				continue
			}
			fmt.Fprintf(&b, "    %s -->|%s| %s\n",
				mermaidID(edge.SourceID), sanitizeLabel(edge.Type), mermaidID(edge.TargetID))
		}
	}
	return b.String(), nil
}

// mermaidNode renders a node declaration with a shape chosen by entity type:
// stadium for people, parallelogram for code artifacts, rhombus for concepts,
// rectangle otherwise.
func mermaidNode(e *types.Entity) string {
	id := mermaidID(e.ID)
	label := sanitizeLabel(e.Name)
	switch e.Type {
	case types.EntityTypePerson:
		return fmt.Sprintf(`%s(["%s"])`, id, label)
	case types.EntityTypeFile, types.EntityTypeFunction, types.EntityTypeClass:
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	case types.EntityTypeConcept:
		return fmt.Sprintf(`%s{"%s"}`, id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, label)
	}
}

// mermaidID makes an entity id safe for use as a Mermaid node identifier.
func mermaidID(id string) string {
	return strings.ReplaceAll(strings.ReplaceAll(id, "-", "_"), `"`, "'")
}

func sanitizeLabel(label string) string {
	return strings.ReplaceAll(label, `"`, "'")
}
