// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package relay

// Kind is the payload branch a message is copied through.
type Kind string

const (
	KindText        Kind = "text"
	KindPhoto       Kind = "photo"
	KindVideo       Kind = "video"
	KindSticker     Kind = "sticker"
	KindDocument    Kind = "document"
	KindUnsupported Kind = "unsupported"
)

// Classify picks the first matching branch in the order text, photo, video,
// sticker, document. Anything else is unsupported.
func Classify(m *Message) Kind {
	switch {
	case m == nil:
		return KindUnsupported
	case m.Text != "":
		return KindText
	case m.Photo != nil:
		return KindPhoto
	case m.Video != nil:
		return KindVideo
	case m.Sticker != nil:
		return KindSticker
	case m.Document != nil:
		return KindDocument
	default:
		return KindUnsupported
	}
}
