// Package extract pulls entity candidates out of conversation text. It
// combines prose NER with pattern matching for code artifacts (file paths,
// function calls, CamelCase type names) and a technical-vocabulary check,
// then deduplicates keeping the highest-confidence candidate per name/type
// pair.
package extract
