package pdf

import (
	"bytes"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// native reads text with the pure-Go reader. The reader panics on some
// malformed inputs, so panics are turned into errors.
func (e *Extractor) native(data []byte) (res Result, err error) {
	res.Method = MethodNative
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return res, err
	}

	res.Pages = reader.NumPage()
	pages := make([]string, 0, res.Pages)
	for i := 1; i <= res.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i, perr))
			continue
		}
		pages = append(pages, text)
	}
	res.Text = Normalize(strings.Join(pages, "\n"))
	return res, nil
}
