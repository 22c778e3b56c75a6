// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package telegram

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/tg"

	"github.com/chanrelay/chanrelay/internal/bot"
	"github.com/chanrelay/chanrelay/internal/relay"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

const (
	filePhoto    = "photo"
	fileDocument = "document"
)

// channelChatID converts an MTProto channel id to the -100 prefixed form.
func channelChatID(channelID int64) int64 {
	var id constant.TDLibPeerID
	id.Channel(channelID)
	return int64(id)
}

// peerChatID converts a peer to the chat id form used by the relay.
func peerChatID(p tg.PeerClass) (int64, bool) {
	var id constant.TDLibPeerID
	switch p := p.(type) {
	case *tg.PeerChannel:
		id.Channel(p.ChannelID)
	case *tg.PeerChat:
		id.Chat(p.ChatID)
	case *tg.PeerUser:
		id.User(p.UserID)
	default:
		return 0, false
	}
	return int64(id), true
}

// convertMessage reduces an MTProto message to the payloads the copier
// knows how to reproduce. Reply markup is carried verbatim.
func convertMessage(chatID int64, m *tg.Message) *relay.Message {
	out := &relay.Message{
		ID:     m.ID,
		ChatID: chatID,
		Date:   time.Unix(int64(m.Date), 0).UTC(),
	}
	if markup, ok := m.GetReplyMarkup(); ok {
		out.Markup = markup
	}

	media, ok := m.GetMedia()
	if !ok {
		out.Text = m.Message
		if out.Text == "" {
			out.Unsupported = "empty"
		}
		return out
	}

	switch media := media.(type) {
	case *tg.MessageMediaWebPage:
		// A link preview is a text message.
		out.Text = m.Message
		return out
	case *tg.MessageMediaPhoto:
		if p, ok := media.Photo.(*tg.Photo); ok {
			out.Photo = &relay.File{ID: encodeFileID(filePhoto, p.ID, p.AccessHash, p.FileReference)}
			out.Caption = m.Message
			return out
		}
	case *tg.MessageMediaDocument:
		if d, ok := media.Document.(*tg.Document); ok {
			return convertDocument(out, d, m.Message)
		}
	}

	out.Unsupported = media.TypeName()
	return out
}

func convertDocument(out *relay.Message, d *tg.Document, caption string) *relay.Message {
	f := &relay.File{
		ID:       encodeFileID(fileDocument, d.ID, d.AccessHash, d.FileReference),
		MIMEType: d.MimeType,
		Size:     d.Size,
	}

	var isVideo bool
	for _, attr := range d.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			f.Name = a.FileName
		case *tg.DocumentAttributeSticker:
			out.Sticker = f
			out.Unsupported = ""
			return out
		case *tg.DocumentAttributeAnimated:
			out.Unsupported = "animation"
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				out.Unsupported = "voice"
			} else {
				out.Unsupported = "audio"
			}
		case *tg.DocumentAttributeVideo:
			if a.RoundMessage {
				out.Unsupported = "video_note"
			}
			isVideo = true
		}
	}

	switch {
	case out.Unsupported != "":
	case isVideo:
		out.Video = f
		out.Caption = caption
	default:
		out.Document = f
		out.Caption = caption
	}
	return out
}

// encodeFileID packs the triple needed to re-send a stored media object
// into the opaque relay.File ID.
func encodeFileID(kind string, id, accessHash int64, fileReference []byte) string {
	return strings.Join([]string{
		kind,
		strconv.FormatInt(id, 10),
		strconv.FormatInt(accessHash, 10),
		base64.RawURLEncoding.EncodeToString(fileReference),
	}, ":")
}

type fileRef struct {
	kind          string
	id            int64
	accessHash    int64
	fileReference []byte
}

func decodeFileID(s string) (fileRef, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || (parts[0] != filePhoto && parts[0] != fileDocument) {
		return fileRef{}, relayerr.New(relayerr.CodeCopyRequestInvalid, "malformed file id", relayerr.Field("file_id", s))
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fileRef{}, relayerr.Errorf(relayerr.CodeCopyRequestInvalid, "malformed file id %q: %v", s, err)
	}
	hash, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fileRef{}, relayerr.Errorf(relayerr.CodeCopyRequestInvalid, "malformed file id %q: %v", s, err)
	}
	ref, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return fileRef{}, relayerr.Errorf(relayerr.CodeCopyRequestInvalid, "malformed file id %q: %v", s, err)
	}
	return fileRef{kind: parts[0], id: id, accessHash: hash, fileReference: ref}, nil
}

func (r fileRef) inputMedia() tg.InputMediaClass {
	if r.kind == filePhoto {
		return &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{ID: r.id, AccessHash: r.accessHash, FileReference: r.fileReference},
		}
	}
	return &tg.InputMediaDocument{
		ID: &tg.InputDocument{ID: r.id, AccessHash: r.accessHash, FileReference: r.fileReference},
	}
}

// replyMarkup returns markup if it is something the API can send back.
func replyMarkup(markup any) (tg.ReplyMarkupClass, bool) {
	switch m := markup.(type) {
	case nil:
		return nil, false
	case tg.ReplyMarkupClass:
		return m, true
	case bot.Keyboard:
		return inlineKeyboard(m), len(m) > 0
	default:
		return nil, false
	}
}

func inlineKeyboard(kb bot.Keyboard) *tg.ReplyInlineMarkup {
	rows := make([]tg.KeyboardButtonRow, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tg.KeyboardButtonClass, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, &tg.KeyboardButtonCallback{Text: b.Text, Data: []byte(b.Data)})
		}
		rows = append(rows, tg.KeyboardButtonRow{Buttons: buttons})
	}
	return &tg.ReplyInlineMarkup{Rows: rows}
}
