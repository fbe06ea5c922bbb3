package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/kilianp07/caresched/core/model"
)

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, s *model.Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteCSV writes t to w with its headers as the first record.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteClientCSV writes the weekly table of c with "Name (Category)" cells.
func WriteClientCSV(w io.Writer, ds model.Dataset, s *model.Schedule, c model.Client) error {
	return WriteCSV(w, ClientTable(ds, s, c, WithCategory))
}

// CSVFileName is the file a client's schedule is exported to. The client ID
// keeps names unique and anything other than letters, digits and '-' becomes
// '_', so the result never leaves the export directory.
func CSVFileName(c model.Client) string {
	return filepath.Base(fileSafe(c.ID) + "_" + fileSafe(c.Name) + "_schedule.csv")
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, s)
}

// ExportClientCSVs writes one CSV per scheduled client into dir, creating it
// if needed, and returns the paths written.
func ExportClientCSVs(dir string, ds model.Dataset, s *model.Schedule) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, c := range ScheduledClients(ds, s) {
		path := filepath.Join(dir, CSVFileName(c))
		if err := writeFile(path, func(w io.Writer) error {
			return WriteClientCSV(w, ds, s, c)
		}); err != nil {
			return paths, fmt.Errorf("export %s: %w", c.ID, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
