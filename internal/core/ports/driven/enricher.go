package driven

import "context"

// ImageAnalyzer extracts descriptive text from an image.
type ImageAnalyzer interface {
	// AnalyzeImage returns tags or text for the image at url.
	// An empty result with a nil error means nothing was extracted.
	AnalyzeImage(ctx context.Context, url string) (string, error)
}

// DocumentAnalyzer extracts structured text from a document.
type DocumentAnalyzer interface {
	// AnalyzeDocument returns the text content of the document at url.
	AnalyzeDocument(ctx context.Context, url string) (string, error)
}
