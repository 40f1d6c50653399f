package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type solveRequest struct {
	Problem     json.RawMessage   `json:"problem"`
	Matrices    []json.RawMessage `json:"matrices,omitempty"`
	Config      json.RawMessage   `json:"config,omitempty"`
	GeoJSON     bool              `json:"geojson,omitempty"`
	CallbackURL string            `json:"callbackUrl,omitempty"`
}

type convertRequest struct {
	Format string   `json:"format"`
	Inputs []string `json:"inputs"`
}

func validateSolveRequest(req *solveRequest) error {
	if isNull(req.Problem) {
		return fmt.Errorf("problem is required")
	}
	for i, m := range req.Matrices {
		if isNull(m) {
			return fmt.Errorf("matrices[%d] is empty", i)
		}
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) url")
		}
	}
	return nil
}

func validateConvertRequest(req *convertRequest) error {
	if strings.TrimSpace(req.Format) == "" {
		return fmt.Errorf("format is required")
	}
	if len(req.Inputs) == 0 {
		return fmt.Errorf("inputs must not be empty")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// configString keeps an absent or null config empty so the engine applies its defaults.
func configString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	return string(raw)
}
