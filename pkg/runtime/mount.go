package runtime

import (
	"strings"

	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// ParseMount parses a "<source>:<destination>" string as used by the CLI
// and the container-args wire format. Source must be an absolute path,
// destination must be an absolute path other than "/" — the root is owned
// by the "filesystem" capability, not a mount.
func ParseMount(s string) (Mount, error) {
	if !strings.HasPrefix(s, "/") {
		return Mount{}, ocreerr.InvalidArgumentf("invalid mount %q: source must be an absolute path", s)
	}

	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Mount{}, ocreerr.InvalidArgumentf("invalid mount %q: must be <source>:<destination>", s)
	}

	source, dest := s[:idx], s[idx+1:]
	if !strings.HasPrefix(dest, "/") {
		return Mount{}, ocreerr.InvalidArgumentf("invalid mount %q: destination must be an absolute path", s)
	}
	if dest == "/" {
		return Mount{}, ocreerr.InvalidArgumentf("invalid mount %q: destination must not be \"/\"", s)
	}

	return Mount{Source: source, Destination: dest}, nil
}

// ParseMounts parses a batch of "<source>:<destination>" strings, stopping
// at the first invalid entry.
func ParseMounts(ss []string) ([]Mount, error) {
	mounts := make([]Mount, 0, len(ss))
	for _, s := range ss {
		m, err := ParseMount(s)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}
