package pdf

import "strings"

// DefaultFileName is used when the document has no display name.
const DefaultFileName = "Resume_CV.pdf"

// FileName derives the download name from a display name, joining words
// with underscores: "Jane Q Doe" becomes "Jane_Q_Doe_CV.pdf".
// Path separators are dropped so the result is always a bare file name.
func FileName(displayName string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return -1
		}
		return r
	}, displayName)

	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return DefaultFileName
	}
	return strings.Join(words, "_") + "_CV.pdf"
}
