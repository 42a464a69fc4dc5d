package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/alvarorichard/vidresolve/internal/manifest"
	"github.com/alvarorichard/vidresolve/internal/models"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true).
			Width(10)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#636E72"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Italic(true)
)

type jsonSubtitle struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

type jsonVariant struct {
	Label     string            `json:"label"`
	URL       string            `json:"url"`
	Height    int               `json:"height,omitempty"`
	Bandwidth int               `json:"bandwidth,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Subtitles []jsonSubtitle    `json:"subtitles,omitempty"`
}

func toJSON(variants []models.VideoVariant) []jsonVariant {
	out := make([]jsonVariant, 0, len(variants))
	for _, v := range variants {
		jv := jsonVariant{
			Label:     v.Label,
			URL:       v.URL,
			Height:    v.Height,
			Bandwidth: v.Bandwidth,
		}
		if len(v.Headers) > 0 {
			jv.Headers = v.Headers.Map()
		}
		for _, s := range v.Subtitles {
			jv.Subtitles = append(jv.Subtitles, jsonSubtitle(s))
		}
		out = append(out, jv)
	}
	return out
}

// printVariants writes variants as an aligned list, or as JSON
func printVariants(w io.Writer, variants []models.VideoVariant, asJSON, withHeaders bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(toJSON(variants))
	}

	var b strings.Builder
	for _, v := range variants {
		b.WriteString(labelStyle.Render(v.Label))
		b.WriteString(" ")
		b.WriteString(v.URL)
		b.WriteString("\n")
		if withHeaders {
			for _, h := range v.Headers {
				b.WriteString(headerStyle.Render(fmt.Sprintf("    %s: %s", h.Key, h.Value)))
				b.WriteString("\n")
			}
		}
	}
	if len(variants) > 0 && len(variants[0].Subtitles) > 0 {
		for _, s := range variants[0].Subtitles {
			name := s.Name
			if name == "" {
				name = s.Language
			}
			b.WriteString(subtitleStyle.Render(fmt.Sprintf("sub  %-10s %s", name, s.URL)))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func printManifest(w io.Writer, res manifest.Result) error {
	if res.IsMedia {
		_, err := fmt.Fprintln(w, "media playlist (single rendition)")
		return err
	}
	var b strings.Builder
	for _, v := range res.Variants {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(v.Label), v.URI)
	}
	for _, s := range res.Subtitles {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("sub  %-10s %s", s.Name, s.URL)))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// readInput returns the contents of the file named by the first argument,
// or stdin when there is none or it is "-"
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "failed to read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", args[0])
	}
	return string(data), nil
}
