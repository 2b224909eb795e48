// =============================================================================
// Ticket Ledger Export - Delivery
// =============================================================================
//
// This package hands a finished export document to its destination. Sinks
// only ever see a complete document: nothing is delivered when building or
// validating the rows failed.
//
// SINKS:
//   Stream  writes the document to an io.Writer (stdout)
//   File    writes the document atomically into an output directory
//   Email   sends the document as an attachment over SMTP
//
// =============================================================================

package delivery

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pretix-unofficial/pretix-itk-export/internal/l10n"
	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
	"github.com/pretix-unofficial/pretix-itk-export/pkg/utils"
)

// Document is a serialized export.
type Document struct {
	// Name is the file or attachment name.
	Name string

	// Content is the serialized export.
	Content []byte

	// ContentType is the MIME type of Content.
	ContentType string

	// Window is the export window, used in email subjects.
	Window types.Window
}

// Sink delivers a document.
type Sink interface {
	Deliver(ctx context.Context, doc Document) error
}

// =============================================================================
// STREAM
// =============================================================================

// Stream writes documents to W.
type Stream struct {
	W io.Writer
}

// Deliver writes the document content.
func (s Stream) Deliver(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.W.Write(doc.Content); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// =============================================================================
// FILE
// =============================================================================

// File writes documents into a directory.
type File struct {
	Manager *utils.FileManager

	// Written is set to the path of the last delivered file.
	Written string
}

// NewFile creates a File sink for dir.
func NewFile(dir string) *File {
	return &File{Manager: utils.NewFileManager(dir)}
}

// Deliver writes the document under its name.
func (f *File) Deliver(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.Manager.WriteFile(doc.Name, doc.Content)
	if err != nil {
		return err
	}
	f.Written = path
	return nil
}

// =============================================================================
// SUBJECT
// =============================================================================

// Subject builds the email subject of an export. A window without a start
// gives the bare subject; an open end is shown as now.
func Subject(localizer *l10n.Localizer, siteName string, window types.Window, now time.Time) string {
	subject := localizer.Sprintf(l10n.MsgOrderExport, siteName)
	if window.Start == nil {
		return subject
	}

	end := now
	if window.End != nil {
		end = *window.End
	}

	return fmt.Sprintf("%s (%s–%s)", subject, window.Start.Format("2006-01-02"), end.Format("2006-01-02"))
}
