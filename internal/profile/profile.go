// Package profile loads raw nonprofit records and partnership contexts from
// JSON, YAML, CSV, and XLSX files.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/roi"
)

// Format identifies a profile file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat returns the format implied by a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("profile: unsupported file type %q", filepath.Ext(path))
	}
}

// Load reads every profile in the file at path.
func Load(ctx context.Context, path string) ([]model.RawProfile, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var profiles []model.RawProfile
	if format == FormatXLSX {
		profiles, err = ReadXLSX(path, XLSXOptions{})
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "profile: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		switch format {
		case FormatJSON:
			profiles, err = ReadJSON(ctx, f)
		case FormatYAML:
			profiles, err = ReadYAML(f)
		case FormatCSV:
			profiles, err = ReadCSV(ctx, f, CSVOptions{})
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "profile: load %s", path)
	}

	zap.L().Debug("profile: loaded profiles",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("count", len(profiles)))
	return profiles, nil
}

// envelope is the object form of a profile document.
type envelope struct {
	Profiles []model.RawProfile `json:"profiles" yaml:"profiles"`
}

// ReadJSON decodes either a bare array of profiles or an object with a
// "profiles" array.
func ReadJSON(ctx context.Context, r io.Reader) ([]model.RawProfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "json: read")
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, eris.Wrap(err, "json: decode object")
		}
		return env.Profiles, nil
	}
	return decodeJSONArray(ctx, bytes.NewReader(trimmed))
}

// decodeJSONArray decodes [{...},{...}] one element at a time so a
// cancelled context stops a large import early.
func decodeJSONArray(ctx context.Context, r io.Reader) ([]model.RawProfile, error) {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err != nil {
		return nil, eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, eris.Errorf("json: expected '[', got %v", tok)
	}

	var out []model.RawProfile
	for decoder.More() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "json: context cancelled")
		}
		var p model.RawProfile
		if err := decoder.Decode(&p); err != nil {
			return nil, eris.Wrapf(err, "json: decode element %d", len(out))
		}
		out = append(out, p)
	}

	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	return out, nil
}

// ReadYAML decodes either a sequence of profiles or a mapping with a
// "profiles" sequence.
func ReadYAML(r io.Reader) ([]model.RawProfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "yaml: read")
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, eris.Wrap(err, "yaml: parse")
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var out []model.RawProfile
		if err := root.Decode(&out); err != nil {
			return nil, eris.Wrap(err, "yaml: decode profiles")
		}
		return out, nil
	case yaml.MappingNode:
		var env envelope
		if err := root.Decode(&env); err != nil {
			return nil, eris.Wrap(err, "yaml: decode profiles")
		}
		return env.Profiles, nil
	default:
		return nil, eris.New("yaml: expected a sequence or a mapping with profiles")
	}
}

// LoadContext reads a partnership context from a JSON or YAML file.
func LoadContext(path string) (roi.PartnershipContext, error) {
	var pctx roi.PartnershipContext

	format, err := DetectFormat(path)
	if err != nil {
		return pctx, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pctx, eris.Wrapf(err, "profile: read context %s", path)
	}

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &pctx)
	case FormatYAML:
		err = yaml.Unmarshal(data, &pctx)
	default:
		return pctx, eris.Errorf("profile: context must be json or yaml, got %s", format)
	}
	if err != nil {
		return pctx, eris.Wrapf(err, "profile: parse context %s", path)
	}
	return pctx, nil
}
