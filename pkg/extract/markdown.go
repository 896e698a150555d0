package extract

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"webgrab/pkg/utils"
)

// Markdown converts a page's raw HTML to Markdown. Used by the markdown
// export format; the converter keeps link targets absolute since callers
// feed it HTML whose hrefs were already resolved.
func Markdown(rawHTML string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(rawHTML)
	if err != nil {
		return "", fmt.Errorf("%w: markdown conversion: %w", utils.ErrParsing, err)
	}
	return out, nil
}
