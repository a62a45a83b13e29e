package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

// maxBody bounds the decoded text body of one message.
const maxBody = 4 << 20

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// Parse reads one RFC 5322 message. fallbackID and fallbackTime are used
// when the Message-Id or Date header is missing or malformed.
//
// The body is the first text/plain part, transfer-decoded and converted
// to UTF-8. A body that cannot be decoded is returned raw so the caller
// decides whether it is usable.
func Parse(r io.Reader, fallbackID string, fallbackTime time.Time) (Message, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}

	msg := Message{ID: strings.TrimSpace(m.Header.Get("Message-Id")), ReceivedAt: fallbackTime}
	if msg.ID == "" {
		msg.ID = fallbackID
	}
	if t, err := m.Header.Date(); err == nil {
		msg.ReceivedAt = t
	}
	if subject, err := wordDecoder.DecodeHeader(m.Header.Get("Subject")); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = m.Header.Get("Subject")
	}

	raw, err := io.ReadAll(io.LimitReader(m.Body, maxBody))
	if err != nil {
		return Message{}, fmt.Errorf("read body: %w", err)
	}
	body, err := textBody(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), raw)
	if err != nil {
		msg.Body = string(raw)
		return msg, nil
	}
	msg.Body = body
	return msg, nil
}

func textBody(contentType, encoding string, raw []byte) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", fmt.Errorf("no text/plain part")
			}
			if err != nil {
				return "", err
			}
			data, err := io.ReadAll(io.LimitReader(part, maxBody))
			if err != nil {
				return "", err
			}
			body, err := textBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), data)
			if err == nil {
				return body, nil
			}
		}
	}
	if mediaType != "text/plain" {
		return "", fmt.Errorf("unsupported media type %s", mediaType)
	}

	decoded, err := transferDecode(encoding, raw)
	if err != nil {
		return "", err
	}
	return toUTF8(params["charset"], decoded)
}

func transferDecode(encoding string, raw []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "7bit", "8bit", "binary":
		return raw, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
	case "base64":
		clean := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(raw))
		return base64.StdEncoding.DecodeString(clean)
	}
	return nil, fmt.Errorf("unsupported transfer encoding %q", encoding)
}

func toUTF8(charset string, data []byte) (string, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(data), nil
	}
	r, err := charsetReader(charset, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// charsetReader resolves legacy charsets (windows-1251, koi8-r, ...)
// through the WHATWG encoding index.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
