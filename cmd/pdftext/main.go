package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/company-extractor/internal/app"
	"github.com/joseph-ayodele/company-extractor/internal/chunk"
	"github.com/joseph-ayodele/company-extractor/internal/pdf"
)

func main() {
	chunkSize := flag.Int("chunk-size", 8000, "max characters per chunk")
	pdftotext := flag.String("pdftotext", "pdftotext", "pdftotext binary used as fallback")
	showText := flag.Bool("text", false, "print the full extracted text")
	flag.Parse()

	logger := app.NewLogger(true, false)

	if flag.NArg() != 1 {
		logger.Error("usage: pdftext [flags] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ex := pdf.NewExtractor(pdf.Config{Pdftotext: *pdftotext, Fallback: true}, logger)
	res, err := ex.ExtractFile(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("text extracted",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)

	if *showText {
		fmt.Println(res.Text)
	}

	chunks := chunk.Split(res.Text, *chunkSize)
	for i, c := range chunks {
		r := []rune(c)
		head := r
		if len(head) > 60 {
			head = head[:60]
		}
		fmt.Printf("chunk %d: %d chars %q\n", i+1, len(r), string(head))
	}
}
