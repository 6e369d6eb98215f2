package lambada

const description = `The LAMBADA dataset as processed by OpenAI. It is used to evaluate the capabilities
of computational models for text understanding by means of a word prediction task.
LAMBADA is a collection of narrative texts sharing the characteristic that human subjects
are able to guess their last word if they are exposed to the whole text, but not
if they only see the last sentence preceding the target word. To succeed on LAMBADA,
computational models cannot simply rely on local context, but must be able to keep track
of information in the broader discourse.

Reference: https://github.com/openai/gpt-2/issues/131#issuecomment-497136199
`

// Homepage of the dataset.
const Homepage = "https://zenodo.org/record/2630551#.X4Xzn5NKjUI"

// License of the dataset.
const License = "Modified MIT"

// Citation of the dataset, verbatim.
const Citation = `@misc{
    author={Paperno, Denis and Kruszewski, Germán and Lazaridou, Angeliki and Pham, Quan Ngoc and Bernardi, Raffaella and Pezzelle, Sandro and Baroni, Marco and Boleda, Gemma and Fernández, Raquel},
    title={The LAMBADA dataset},
    DOI={10.5281/zenodo.2630551},
    publisher={Zenodo},
    year={2016},
    month={Aug}
}
`

// Info is the dataset-wide metadata for a selected variant.
type Info struct {
	Variant     string            `json:"variant" yaml:"variant"`
	Version     string            `json:"version" yaml:"version"`
	Description string            `json:"description" yaml:"description"`
	Homepage    string            `json:"homepage" yaml:"homepage"`
	License     string            `json:"license" yaml:"license"`
	Citation    string            `json:"citation" yaml:"citation"`
	Features    map[string]string `json:"features" yaml:"features"`
	Splits      []string          `json:"splits" yaml:"splits"`
}

// Describe combines the static dataset metadata with the variant's own description.
func Describe(v Variant) Info {
	return Info{
		Variant:     v.Name,
		Version:     v.Version,
		Description: description + "\n" + v.Description,
		Homepage:    Homepage,
		License:     License,
		Citation:    Citation,
		Features:    map[string]string{"text": "string"},
		Splits:      []string{Split},
	}
}
