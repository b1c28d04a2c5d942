package steps

import "github.com/danielpatrickdp/reprolab/internal/dataset"

// Comment attaches a free-text comment to a dataset.
type Comment struct{ dataset.AnnotationAttrs }

// NewComment creates a comment annotation. An empty text leaves the content
// empty, which the dataset refuses.
func NewComment(text string) *Comment {
	c := &Comment{}
	if text != "" {
		c.Content = map[string]any{"comment": text}
	}
	return c
}

// Text returns the comment.
func (c *Comment) Text() string {
	s, _ := c.Content["comment"].(string)
	return s
}

func (c *Comment) Annotate(*dataset.Dataset) error { return nil }

func (c *Comment) Clone() dataset.Annotation { return &Comment{AnnotationAttrs: c.CloneAttrs()} }
