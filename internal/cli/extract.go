package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/palletwatch/internal/extract"
	"github.com/roach88/palletwatch/internal/mail"
	"github.com/roach88/palletwatch/internal/model"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	Received string
	Raw      bool
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the event parsed from one message",
		Long: `Parse one message file and print the extracted event.

The file is read as an RFC 5322 message unless --raw is given, in which
case its whole content is the body. No configuration is needed.

Example:
  palletwatch extract ./mail/1697188800.M1.eml
  palletwatch extract --raw --received 2025-10-13T09:30:00+03:00 body.txt --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Received, "received", "", "receive time (RFC3339); defaults to the Date header or now")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "treat the file as a bare message body")

	return cmd
}

func runExtract(opts *ExtractOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var received time.Time
	if opts.Received != "" {
		t, err := time.Parse(time.RFC3339, opts.Received)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --received", err)
		}
		received = t
	}

	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open message", err)
	}
	defer f.Close()

	id := filepath.Base(path)
	var msg mail.Message
	if opts.Raw {
		b, err := io.ReadAll(f)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read message", err)
		}
		msg = mail.Message{ID: id, Body: string(b), ReceivedAt: time.Now()}
	} else {
		msg, err = mail.Parse(f, id, time.Now())
		if err != nil {
			_ = out.Error(CodeParse, err.Error())
			return WrapExitError(ExitFailure, "failed to parse message", err)
		}
	}
	if !received.IsZero() {
		msg.ReceivedAt = received
	}

	ev, err := extract.New().Extract(msg.Body, msg.ReceivedAt)
	if err != nil {
		code := CodeRuntime
		if errors.Is(err, extract.ErrParse) {
			code = CodeParse
		}
		_ = out.Error(code, err.Error())
		return WrapExitError(ExitFailure, "failed to extract event", err)
	}
	ev.ID = msg.ID
	return out.Success(newEventView(ev))
}

// eventView is the printable form of a model.Event.
type eventView struct {
	ID              string   `json:"id"`
	ReceivedAt      string   `json:"received_at"`
	ReturnDate      string   `json:"return_date,omitempty"`
	EffectiveDate   string   `json:"effective_return_date"`
	PartnerCategory string   `json:"partner_category,omitempty"`
	RegionalCenter  string   `json:"regional_center,omitempty"`
	DriverName      string   `json:"driver_name,omitempty"`
	TractorID       string   `json:"tractor_id,omitempty"`
	TrailerID       string   `json:"trailer_id,omitempty"`
	Passport        string   `json:"passport,omitempty"`
	LicenseNumber   string   `json:"license_number,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	TaxID           string   `json:"tax_id,omitempty"`
	ExtraNotes      string   `json:"extra_notes,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

func newEventView(ev model.Event) eventView {
	v := eventView{
		ID:              ev.ID,
		ReceivedAt:      ev.ReceivedAt.Format(time.RFC3339),
		EffectiveDate:   ev.EffectiveReturnDate().String(),
		PartnerCategory: ev.PartnerCategory,
		RegionalCenter:  ev.RegionalCenter,
		DriverName:      ev.DriverName,
		TractorID:       ev.TractorID,
		TrailerID:       ev.TrailerID,
		Passport:        ev.Passport,
		LicenseNumber:   ev.LicenseNumber,
		Phone:           ev.Phone,
		TaxID:           ev.TaxID,
		ExtraNotes:      ev.ExtraNotes,
		Warnings:        ev.Warnings,
	}
	if !ev.ReturnDate.IsZero() {
		v.ReturnDate = ev.ReturnDate.String()
	}
	return v
}

func (v eventView) Text() string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-17s %s\n", label+":", value)
		}
	}
	line("id", v.ID)
	line("received", v.ReceivedAt)
	line("return date", v.ReturnDate)
	line("effective date", v.EffectiveDate)
	line("partner", v.PartnerCategory)
	line("center", v.RegionalCenter)
	line("driver", v.DriverName)
	line("tractor", v.TractorID)
	line("trailer", v.TrailerID)
	line("passport", v.Passport)
	line("license", v.LicenseNumber)
	line("phone", v.Phone)
	line("tax id", v.TaxID)
	line("notes", v.ExtraNotes)
	for _, w := range v.Warnings {
		line("warning", w)
	}
	return b.String()
}
