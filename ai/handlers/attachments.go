package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
)

const (
	maxImageSide      = 1024
	maxAttachmentText = 8000
)

// Attachment is a file the user sent along with the utterance.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (a Attachment) mimeType() string {
	if a.MIMEType != "" {
		return strings.ToLower(a.MIMEType)
	}
	return http.DetectContentType(a.Data)
}

// IsImage reports whether the attachment is a picture.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.mimeType(), "image/")
}

func (a Attachment) isText() bool {
	mt := a.mimeType()
	switch {
	case strings.HasPrefix(mt, "text/"),
		strings.Contains(mt, "json"),
		strings.Contains(mt, "xml"),
		strings.Contains(mt, "csv"),
		strings.Contains(mt, "markdown"):
		return true
	}
	return utf8.Valid(a.Data) && !bytes.ContainsRune(a.Data, 0)
}

// imageDataURL downsizes the picture to fit maxImageSide and returns it as a JPEG data URL.
func imageDataURL(a Attachment) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(a.Data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image %q: %w", a.Name, err)
	}
	b := img.Bounds()
	if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode image %q: %w", a.Name, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// inlineAttachments renders text files into the prompt body and images as data URLs.
func inlineAttachments(attachments []Attachment) (text string, images []string) {
	var b strings.Builder
	for _, a := range attachments {
		name := a.Name
		if name == "" {
			name = "attachment"
		}
		switch {
		case a.IsImage():
			url, err := imageDataURL(a)
			if err != nil {
				slog.Warn("attachment image skipped", "name", name, "error", err)
				fmt.Fprintf(&b, "\n[Image %s could not be read]\n", name)
				continue
			}
			images = append(images, url)
		case a.isText():
			body := string(a.Data)
			if utf8.RuneCountInString(body) > maxAttachmentText {
				body = string([]rune(body)[:maxAttachmentText]) + "\n...[truncated]"
			}
			fmt.Fprintf(&b, "\n--- File: %s ---\n%s\n--- End of %s ---\n", name, body, name)
		default:
			fmt.Fprintf(&b, "\n[Attached file %s (%s, %d bytes) cannot be read as text]\n", name, a.mimeType(), len(a.Data))
		}
	}
	return b.String(), images
}
