package extract

import (
	"fmt"
	"strings"

	"github.com/siftlabs/sift/internal/types"
)

// ValidateExpectedValues checks resolved extractions against each
// category's allowed set. Errors are advisory: the extraction is kept
// and the messages are appended to the row's error list.
func ValidateExpectedValues(extractions map[string]types.CategoryExtraction, categories []types.Category) []string {
	var errs []string
	for _, cat := range categories {
		if len(cat.ExpectedValues) == 0 {
			continue
		}
		ext, ok := extractions[cat.Name]
		if !ok || ext.Value == nil {
			continue
		}
		if !cat.Allows(*ext.Value) {
			errs = append(errs, fmt.Sprintf("%s: %q not in expected values [%s]",
				cat.Name, *ext.Value, strings.Join(cat.ExpectedValues, ", ")))
		}
	}
	return errs
}
