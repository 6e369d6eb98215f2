package lambada

import (
	"fmt"
	"slices"
)

// Version is the dataset version shared by every variant.
const Version = "1.0.0"

// DefaultVariant is the variant used when none is selected.
const DefaultVariant = "default"

// Split is the only split the dataset provides.
const Split = "test"

const baseURL = "https://huggingface.co/datasets/EleutherAI/lambada_openai/resolve/main/data"

// BundledJapaneseFile is the file name of the Japanese variant, shipped in the data directory.
const BundledJapaneseFile = "lambada_test_ja.jsonl"

// Variant is a named configuration selecting one language of the dataset.
type Variant struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`

	// Source is either a remote URL or a path relative to the data directory.
	Source string `json:"source" yaml:"source"`

	// Mirror is an optional remote location used when a bundled Source is absent.
	Mirror string `json:"mirror,omitempty" yaml:"mirror,omitempty"`
}

// Bundled reports whether the variant's source ships alongside the configuration
// rather than being fetched from a remote URL.
func (v Variant) Bundled() bool {
	return !isRemote(v.Source)
}

var variants = []Variant{
	{
		Name:        DefaultVariant,
		Version:     Version,
		Description: "Pre-processed English LAMBADA dataset from OpenAI",
		Source:      baseURL + "/lambada_test.jsonl",
	},
	{
		Name:        "de",
		Version:     Version,
		Description: "The German translated LAMBADA OpenAI dataset",
		Source:      baseURL + "/lambada_test_de.jsonl",
	},
	{
		Name:        "en",
		Version:     Version,
		Description: "The English translated LAMBADA OpenAI dataset",
		Source:      baseURL + "/lambada_test_en.jsonl",
	},
	{
		Name:        "es",
		Version:     Version,
		Description: "The Spanish translated LAMBADA OpenAI dataset",
		Source:      baseURL + "/lambada_test_es.jsonl",
	},
	{
		Name:        "fr",
		Version:     Version,
		Description: "The French translated LAMBADA OpenAI dataset",
		Source:      baseURL + "/lambada_test_fr.jsonl",
	},
	{
		Name:        "it",
		Version:     Version,
		Description: "The Italian translated LAMBADA OpenAI dataset",
		Source:      baseURL + "/lambada_test_it.jsonl",
	},
	{
		Name:        "ja",
		Version:     Version,
		Description: "The Japanese translated LAMBADA OpenAI dataset",
		Source:      BundledJapaneseFile,
		Mirror:      "https://gist.githubusercontent.com/mkshing/22b4623233940b2baa2f924e60f9b287/raw/c2c58325f5bc599818fe5f7d6f6b9af3e7699ed6/lambada_test_ja.jsonl",
	},
}

// Variants returns every known variant, in declaration order.
func Variants() []Variant {
	return slices.Clone(variants)
}

// VariantNames returns the names of every known variant, in declaration order.
func VariantNames() []string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name
	}
	return names
}

// Lookup returns the variant with the given name.
func Lookup(name string) (Variant, error) {
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w %q, expected one of %v", ErrUnknownVariant, name, VariantNames())
}
