package sapclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Multipart field names understood by the individual event endpoint.
const (
	fieldStudentInfo = "studentInfo"
	fieldEventKey    = "eventKey"
	fieldEventTitle  = "eventTitle"
	fieldEventData   = "eventData"
	fieldMentorEmail = "mentorEmail"
	fieldEmail       = "email"
	fieldFiles       = "files"
	fieldFileNames   = "fileNames"
)

// Payload is an encoded multipart body that can be replayed for every attempt.
type Payload struct {
	body        []byte
	contentType string
	files       int
}

// ContentType returns the multipart content type including the boundary.
func (p Payload) ContentType() string { return p.contentType }

// Reader returns a fresh reader over the encoded body.
func (p Payload) Reader() io.Reader { return bytes.NewReader(p.body) }

// Len is the encoded body size in bytes.
func (p Payload) Len() int { return len(p.body) }

// Files is the number of attached proof files.
func (p Payload) Files() int { return p.files }

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildPayload serialises a draft. Each attachment contributes a files part followed by its label.
func buildPayload(draft *Draft, info StudentInfo) (Payload, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return Payload{}, fmt.Errorf("encode student info: %w", err)
	}
	dataJSON, err := json.Marshal(draft.eventData())
	if err != nil {
		return Payload{}, fmt.Errorf("encode event data: %w", err)
	}

	category := draft.Category()
	fields := [][2]string{
		{fieldStudentInfo, string(infoJSON)},
		{fieldEventKey, string(category.Key)},
		{fieldEventTitle, category.Title},
		{fieldEventData, string(dataJSON)},
		{fieldMentorEmail, info.MentorEmail},
		{fieldEmail, info.StudentEmail},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return Payload{}, fmt.Errorf("write field %s: %w", field[0], err)
		}
	}

	attachments := draft.Attachments()
	for _, attachment := range attachments {
		if err := writeAttachment(writer, attachment); err != nil {
			return Payload{}, err
		}
		if err := writer.WriteField(fieldFileNames, attachment.Label); err != nil {
			return Payload{}, fmt.Errorf("write field %s: %w", fieldFileNames, err)
		}
	}

	if err := writer.Close(); err != nil {
		return Payload{}, fmt.Errorf("close multipart writer: %w", err)
	}

	return Payload{
		body:        buf.Bytes(),
		contentType: writer.FormDataContentType(),
		files:       len(attachments),
	}, nil
}

func writeAttachment(writer *multipart.Writer, attachment Attachment) error {
	src, err := attachment.File.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInvalidAttachment, attachment.File.Name(), err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidAttachment, attachment.File.Name(), err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		fieldFiles, quoteEscaper.Replace(attachment.File.Name())))
	header.Set("Content-Type", mimetype.Detect(data).String())

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	return nil
}
