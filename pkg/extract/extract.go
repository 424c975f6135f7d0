package extract

import (
	"regexp"
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/contexto-ai/contexto/pkg/types"
)

// Candidate is one extracted entity before persistence.
type Candidate struct {
	Name       string
	Type       types.EntityType
	Confidence float64
}

var (
	filePattern = regexp.MustCompile(`\b[\w./-]*\w+\.(?:go|py|js|ts|tsx|jsx|java|rb|rs|c|cpp|h|hpp|md|yaml|yml|json|toml|sql|sh|proto)\b`)
	// A bare identifier followed by () reads as a function reference.
	functionPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]+)\(\)`)
	// Multi-word CamelCase identifiers read as type or class names.
	classPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+)\b`)
)

// techVocabulary names tools and concepts that NER models miss because they
// read as common nouns.
var techVocabulary = map[string]types.EntityType{
	"kubernetes": types.EntityTypeTool,
	"docker":     types.EntityTypeTool,
	"redis":      types.EntityTypeTool,
	"postgres":   types.EntityTypeTool,
	"postgresql": types.EntityTypeTool,
	"sqlite":     types.EntityTypeTool,
	"terraform":  types.EntityTypeTool,
	"helm":       types.EntityTypeTool,
	"grafana":    types.EntityTypeTool,
	"prometheus": types.EntityTypeTool,
	"kafka":      types.EntityTypeTool,
	"nginx":      types.EntityTypeTool,
	"git":        types.EntityTypeTool,
	"api":        types.EntityTypeConcept,
	"database":   types.EntityTypeConcept,
	"cache":      types.EntityTypeConcept,
	"queue":      types.EntityTypeConcept,
	"deployment": types.EntityTypeConcept,
	"migration":  types.EntityTypeConcept,
	"pipeline":   types.EntityTypeConcept,
	"endpoint":   types.EntityTypeConcept,
	"schema":     types.EntityTypeConcept,
	"index":      types.EntityTypeConcept,
	"webhook":    types.EntityTypeConcept,
	"container":  types.EntityTypeConcept,
	"microservice": types.EntityTypeConcept,
	"authentication": types.EntityTypeConcept,
}

// Extractor finds entity candidates in text.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// nerEntityType maps prose labels onto the entity taxonomy. Labels with no
// useful mapping (cardinals, percentages) return "".
func nerEntityType(label string) types.EntityType {
	switch strings.ToUpper(label) {
	case "PERSON":
		return types.EntityTypePerson
	case "ORG", "NORP":
		return types.EntityTypeOrganization
	case "PRODUCT", "LANGUAGE":
		return types.EntityTypeTool
	case "GPE", "LOC", "FAC":
		return types.EntityTypeLocation
	case "DATE", "TIME":
		return types.EntityTypeTemporal
	case "EVENT":
		return types.EntityTypeEvent
	case "WORK_OF_ART":
		return types.EntityTypeProject
	case "LAW":
		return types.EntityTypeConcept
	default:
		return ""
	}
}

// Extract runs NER and the pattern matchers over text and returns
// deduplicated candidates. NER failure degrades to pattern-only extraction.
func (e *Extractor) Extract(text string) []*Candidate {
	var candidates []*Candidate

	if doc, err := prose.NewDocument(text); err == nil {
		for _, ent := range doc.Entities() {
			et := nerEntityType(ent.Label)
			if et == "" {
				continue
			}
			name := strings.TrimSpace(ent.Text)
			if name == "" {
				continue
			}
			candidates = append(candidates, &Candidate{
				Name:       name,
				Type:       et,
				Confidence: scoreCandidate(name, et),
			})
		}
	}

	for _, match := range filePattern.FindAllString(text, -1) {
		candidates = append(candidates, &Candidate{
			Name:       match,
			Type:       types.EntityTypeFile,
			Confidence: scoreCandidate(match, types.EntityTypeFile),
		})
	}
	for _, match := range functionPattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, &Candidate{
			Name:       match[1],
			Type:       types.EntityTypeFunction,
			Confidence: scoreCandidate(match[1], types.EntityTypeFunction),
		})
	}
	for _, match := range classPattern.FindAllString(text, -1) {
		candidates = append(candidates, &Candidate{
			Name:       match,
			Type:       types.EntityTypeClass,
			Confidence: scoreCandidate(match, types.EntityTypeClass),
		})
	}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if et, ok := techVocabulary[word]; ok {
			candidates = append(candidates, &Candidate{
				Name:       word,
				Type:       et,
				Confidence: scoreCandidate(word, et),
			})
		}
	}

	return Deduplicate(candidates)
}

// scoreCandidate assigns a confidence: a 0.7 base, with bumps for longer
// names and for types the matchers identify reliably.
func scoreCandidate(name string, et types.EntityType) float64 {
	score := 0.7
	if len(name) > 10 {
		score += 0.1
	}
	switch et {
	case types.EntityTypePerson, types.EntityTypeOrganization, types.EntityTypeFile:
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Deduplicate collapses candidates sharing a case-insensitive name and type,
// keeping the highest confidence. Input order is preserved for survivors.
func Deduplicate(candidates []*Candidate) []*Candidate {
	type key struct {
		name string
		et   types.EntityType
	}
	best := make(map[key]int, len(candidates))
	var out []*Candidate
	for _, c := range candidates {
		k := key{strings.ToLower(c.Name), c.Type}
		if i, ok := best[k]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		best[k] = len(out)
		out = append(out, c)
	}
	return out
}

// mentionContextWindow is how many characters around a mention the snippet
// keeps on each side.
const mentionContextWindow = 50

// Mention is one occurrence of an entity name in a text.
type Mention struct {
	Position int
	Snippet  string
}

// FindMentions locates every case-insensitive occurrence of name in text,
// each with a surrounding context snippet.
func FindMentions(text, name string) []*Mention {
	if name == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerName := strings.ToLower(name)

	var mentions []*Mention
	for offset := 0; ; {
		i := strings.Index(lowerText[offset:], lowerName)
		if i < 0 {
			break
		}
		pos := offset + i
		start := pos - mentionContextWindow
		if start < 0 {
			start = 0
		}
		end := pos + len(name) + mentionContextWindow
		if end > len(text) {
			end = len(text)
		}
		mentions = append(mentions, &Mention{Position: pos, Snippet: text[start:end]})
		offset = pos + len(lowerName)
	}
	return mentions
}
