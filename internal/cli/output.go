package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/header"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98C379"))

	redirectStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E5C07B"))

	failureStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E06C75"))

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#61AFEF"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ABB2BF"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5B47E0"))
)

// statusStyle picks a color by status class
func statusStyle(status int) lipgloss.Style {
	switch {
	case status >= 400:
		return failureStyle
	case status >= 300:
		return redirectStyle
	default:
		return successStyle
	}
}

// ResponsePrinter writes normalized responses for the request command
type ResponsePrinter struct {
	Out            io.Writer
	Err            io.Writer
	IncludeHeaders bool
	Verbose        bool
}

// PrintRequest shows what is about to be sent in verbose mode
func (p *ResponsePrinter) PrintRequest(req *httpinternal.Request) {
	if !p.Verbose {
		return
	}
	fmt.Fprintf(p.Err, "> %s %s\n", req.Method, req.URI)
	for _, e := range req.Headers {
		fmt.Fprintf(p.Err, "> %s: %s\n", e.Field, e.Value)
	}
	if req.Content != nil {
		fmt.Fprintf(p.Err, "> Content-Type: %s\n", req.ContentType)
		fmt.Fprintf(p.Err, "> Content-Length: %d\n", len(req.Content))
	}
	fmt.Fprintln(p.Err, ">")
}

// PrintResponse writes the status and headers as requested, then the body
func (p *ResponsePrinter) PrintResponse(resp *httpinternal.Response) {
	switch {
	case p.Verbose:
		p.printHeaders(p.Err, "< ", resp)
		fmt.Fprintln(p.Err, "<")
	case p.IncludeHeaders:
		p.printHeaders(p.Out, "", resp)
		fmt.Fprintln(p.Out)
	}

	if resp.Content != nil {
		fmt.Fprint(p.Out, string(resp.Content))
	}
}

func (p *ResponsePrinter) printHeaders(w io.Writer, prefix string, resp *httpinternal.Response) {
	fmt.Fprintf(w, "%s%s\n", prefix, statusStyle(resp.Status).Render(fmt.Sprintf("%d", resp.Status)))
	for _, e := range resp.Headers {
		fmt.Fprintf(w, "%s%s: %s\n", prefix, fieldStyle.Render(e.Field), e.Value)
	}
}

// PrintOptions lists the runtime option allow-list with any stored values
func PrintOptions(w io.Writer, stored []session.OptionValue) {
	values := make(map[string]string, len(stored))
	for _, v := range stored {
		values[v.Name] = v.Value
	}

	fmt.Fprintln(w, titleStyle.Render("Runtime options"))
	width := 0
	for _, opt := range session.Options() {
		width = max(width, len(opt.Name))
	}
	for _, opt := range session.Options() {
		line := fmt.Sprintf("%-*s  %s", width, opt.Name, dimStyle.Render(opt.Type.String()))
		if v, ok := values[opt.Name]; ok {
			line += "  = " + v
		}
		fmt.Fprintln(w, line)
	}
}

// ParseHeaders turns "Field: value" flag values into header entries
func ParseHeaders(lines []string) []header.Entry {
	return header.Parse(strings.Join(lines, "\n"))
}
