package out

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ssandoval/treasury-cli/internal/config"
	"github.com/ssandoval/treasury-cli/internal/model"
)

// Render writes a response envelope in the configured output mode. JSON is
// the default; plain mode emits one key=value line per field for shells that
// cannot parse JSON.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	if settings.ResultsOnly {
		return renderValue(w, env.Data, settings.OutputMode)
	}
	if settings.OutputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	plain := map[string]any{
		"success": env.Success,
		"data":    env.Data,
		"meta":    env.Meta,
	}
	if env.Error != nil {
		plain["error"] = env.Error
	}
	return renderValue(w, plain, settings.OutputMode)
}

func renderValue(w io.Writer, data any, mode string) error {
	if mode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return renderPlain(w, data)
}

func renderPlain(w io.Writer, data any) error {
	normalized, err := normalize(data)
	if err != nil {
		return err
	}
	switch t := normalized.(type) {
	case []any:
		if len(t) == 0 {
			_, err := fmt.Fprintln(w, "[]")
			return err
		}
		for _, item := range t {
			if err := renderPlain(w, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			buf, err := json.Marshal(t[k])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s=%s", k, buf)
		}
		_, err := fmt.Fprintln(w)
		return err
	default:
		_, err := fmt.Fprintln(w, normalized)
		return err
	}
}

// normalize round-trips through JSON so plain rendering sees the same shapes
// as JSON output.
func normalize(data any) (any, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}
