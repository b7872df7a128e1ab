package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/mcoot/arena-auth/internal/forms"
	"github.com/mcoot/arena-auth/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, out, errOut io.Writer) *Output {
	return &Output{format: format, out: out, errOut: errOut}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == FormatJSON {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error. Form errors are listed per field.
func (o *Output) PrintError(err error) {
	var fieldErrs forms.Errors
	isForm := errors.As(err, &fieldErrs)

	if o.format == FormatJSON {
		body := map[string]any{"message": err.Error()}
		if isForm {
			body["fields"] = fieldErrs
		}
		data, _ := json.Marshal(map[string]any{"error": body})
		_, _ = fmt.Fprintln(o.errOut, string(data))
		return
	}

	if !isForm {
		_, _ = fmt.Fprintf(o.errOut, "Error: %s\n", err)
		return
	}
	fields := make([]string, 0, len(fieldErrs))
	for f := range fieldErrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if f == forms.FieldRoot {
			_, _ = fmt.Fprintf(o.errOut, "Error: %s\n", fieldErrs[f])
		} else {
			_, _ = fmt.Fprintf(o.errOut, "Error: %s: %s\n", f, fieldErrs[f])
		}
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == FormatJSON {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.out, string(data))
	} else {
		_, _ = fmt.Fprintln(o.out, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case WhoAmIResult:
		o.printWhoAmI(v)
	case HealthResult:
		_, _ = fmt.Fprintf(o.out, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// WhoAmIResult describes the signed-in principal
type WhoAmIResult struct {
	SignedIn bool            `json:"signed_in"`
	Identity *model.Identity `json:"identity,omitempty"`
	Route    model.Route     `json:"route"`
}

// NewWhoAmIResult builds the result for identity, which may be nil
func NewWhoAmIResult(identity *model.Identity) WhoAmIResult {
	if identity == nil {
		return WhoAmIResult{Route: model.RouteHome}
	}
	return WhoAmIResult{
		SignedIn: true,
		Identity: identity,
		Route:    model.DashboardFor(identity.Role),
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printWhoAmI(r WhoAmIResult) {
	if !r.SignedIn {
		_, _ = fmt.Fprintln(o.out, "Not signed in")
		return
	}
	id := r.Identity
	_, _ = fmt.Fprintf(o.out, "User: %s (%s)\n", id.Name, id.ID)
	_, _ = fmt.Fprintf(o.out, "Email: %s\n", id.Email)
	_, _ = fmt.Fprintf(o.out, "Role: %s\n", id.Role)
	if id.Profile != nil {
		_, _ = fmt.Fprintf(o.out, "Username: %s\n", id.Profile.Username)
		_, _ = fmt.Fprintf(o.out, "Rating: %d\n", id.Profile.Rating)
	}
	_, _ = fmt.Fprintf(o.out, "Dashboard: %s\n", r.Route)
}
