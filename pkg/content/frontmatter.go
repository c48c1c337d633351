package content

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"content-loader/pkg/utils"
)

// yamlFrontMatter only recognises the "---" delimited YAML block.
var yamlFrontMatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// ParseFrontMatter splits source into its metadata block and markdown body.
// A document without a front-matter block yields an empty map and the whole source as body.
func ParseFrontMatter(source []byte) (map[string]any, string, error) {
	meta := map[string]any{}

	body, err := frontmatter.Parse(bytes.NewReader(source), &meta, yamlFrontMatter)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", utils.ErrFrontMatter, err)
	}
	if meta == nil {
		meta = map[string]any{}
	}

	return meta, string(body), nil
}
