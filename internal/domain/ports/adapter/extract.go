package adapter

// TextExtractor turns a document into plain text, choosing the format from fileName.
type TextExtractor interface {
	Extract(fileName string, data []byte) (string, error)
}
