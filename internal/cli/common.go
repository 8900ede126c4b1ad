package cli

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/migwasm/migwasm"
)

func compileFile(rt *migwasm.Runtime, path string) (*migwasm.CompiledModule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	cm, err := rt.CompileModule(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", path)
	}
	return cm, nil
}

// parseArgs turns a comma-separated list of integers (the CLI's numeric ABI,
// spec.md §4.6) into the []uint64 Instance.Invoke expects.
func parseArgs(csv string) ([]uint64, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", p)
		}
		out[i] = uint64(v)
	}
	return out, nil
}
