// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

// WriteArchive writes files as a deflated zip archive to w. Entries keep
// their package-relative names.
func WriteArchive(w io.Writer, files []File) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("adding %s to archive: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return fmt.Errorf("writing %s to archive: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}
