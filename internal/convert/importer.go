package convert

import (
	"bytes"
	"sort"
	"strings"
	"sync"

	"vrpengine/internal/pragmatic"
)

// Format names of the built-in importers.
const (
	FormatCSV       = "csv"
	FormatPragmatic = "pragmatic"
)

// Importer reads one foreign problem format.
type Importer interface {
	Name() string
	// Inputs is the number of documents the format consists of.
	Inputs() int
	// Usage tells the caller which documents to pass.
	Usage() string
	Import(inputs [][]byte) (*pragmatic.Problem, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Importer{}
)

func init() {
	Register(csvImporter{})
	Register(pragmaticImporter{})
}

// Register makes imp available to ToPragmatic under its lower-cased name, replacing
// any importer of the same name.
func Register(imp Importer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(imp.Name())] = imp
}

// Lookup finds an importer by case-insensitive name.
func Lookup(format string) (Importer, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	imp, ok := registry[strings.ToLower(strings.TrimSpace(format))]
	return imp, ok
}

// Formats lists the registered format names in order.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type csvImporter struct{}

func (csvImporter) Name() string  { return FormatCSV }
func (csvImporter) Inputs() int   { return 2 }
func (csvImporter) Usage() string { return "pass jobs csv and vehicles csv" }

func (csvImporter) Import(inputs [][]byte) (*pragmatic.Problem, error) {
	return ReadCSV(bytes.NewReader(inputs[0]), bytes.NewReader(inputs[1]))
}

type pragmaticImporter struct{}

func (pragmaticImporter) Name() string  { return FormatPragmatic }
func (pragmaticImporter) Inputs() int   { return 1 }
func (pragmaticImporter) Usage() string { return "pass a single problem document" }

func (pragmaticImporter) Import(inputs [][]byte) (*pragmatic.Problem, error) {
	p, err := pragmatic.DecodeProblem(inputs[0])
	if err != nil {
		return nil, invalid("cannot read problem", err.Error(), "check problem definition")
	}
	return p, nil
}
