// Package zip bundles generated result files into a downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
)

type Entry struct {
	Name string
	Data []byte
}

// Archive writes the entries into a zip archive held in memory. Entries that
// cannot be created are skipped; a write failure aborts the archive.
func Archive(entries []Entry) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			continue
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
