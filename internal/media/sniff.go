// Package media inspects uploaded blobs before they reach object storage.
package media

import (
	"bytes"
	"errors"
	"strings"
)

type Kind string

const (
	KindJPEG Kind = "jpeg"
	KindPNG  Kind = "png"
	KindGIF  Kind = "gif"
	KindWEBP Kind = "webp"
	KindAVIF Kind = "avif"
	KindSVG  Kind = "svg"
)

var ErrNotImage = errors.New("file is not a supported image")

const sniffLen = 512

type Detected struct {
	Kind Kind
	MIME string
}

// Detect classifies data by its leading bytes. The declared content type of
// the upload is never trusted.
func Detect(data []byte) (Detected, error) {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}

	switch {
	case len(head) == 0:
		return Detected{}, ErrNotImage
	case isJPEG(head):
		return Detected{Kind: KindJPEG, MIME: "image/jpeg"}, nil
	case isPNG(head):
		return Detected{Kind: KindPNG, MIME: "image/png"}, nil
	case isGIF(head):
		return Detected{Kind: KindGIF, MIME: "image/gif"}, nil
	case isWEBP(head):
		return Detected{Kind: KindWEBP, MIME: "image/webp"}, nil
	case isAVIF(head):
		return Detected{Kind: KindAVIF, MIME: "image/avif"}, nil
	case isSVG(head):
		return Detected{Kind: KindSVG, MIME: "image/svg+xml"}, nil
	}
	return Detected{}, ErrNotImage
}

func isJPEG(head []byte) bool {
	return len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, pngMagic)
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
}

func isAVIF(head []byte) bool {
	return len(head) >= 12 && string(head[4:8]) == "ftyp" && bytes.Contains(head[8:], []byte("avif"))
}

func isSVG(head []byte) bool {
	trimmed := strings.ToLower(strings.TrimSpace(string(head)))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg")
}
