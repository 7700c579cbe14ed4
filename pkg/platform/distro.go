package platform

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/dotnetup/dotnetup/pkg/errors"
)

// Distro holds the os-release facts the provider factory selects on.
type Distro struct {
	ID        string // ID field (ubuntu, debian, fedora)
	Name      string // NAME field (Ubuntu, Debian GNU/Linux)
	VersionID string // VERSION_ID field (22.04, 12)
}

// DetectDistro reads /etc/os-release and extracts the fields that select a
// package provider.
func DetectDistro() (Distro, error) {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return Distro{}, errors.Wrap(errors.ErrCodeDistroUnknown, err, "read os-release")
	}
	defer f.Close()
	return parseOSRelease(f)
}

func parseOSRelease(r io.Reader) (Distro, error) {
	var d Distro
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			d.ID = strings.ToLower(value)
		case "NAME":
			d.Name = value
		case "VERSION_ID":
			d.VersionID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Distro{}, errors.Wrap(errors.ErrCodeDistroUnknown, err, "parse os-release")
	}
	if d.ID == "" && d.Name == "" {
		return Distro{}, errors.New(errors.ErrCodeDistroUnknown, "os-release names no distribution")
	}
	if d.ID == "" {
		d.ID = strings.ToLower(strings.Fields(d.Name)[0])
	}
	return d, nil
}
