package main

import (
	"os"
	"strings"

	"atelier/internal/cli"
	"atelier/internal/model"

	"github.com/joho/godotenv"
)

// recordRef splits "tags/7" into a known resource and an id.
func recordRef(s string) (resource, id string, ok bool) {
	resource, id, ok = strings.Cut(strings.TrimSpace(s), "/")
	if !ok || id == "" || strings.Trim(id, "0123456789") != "" {
		return "", "", false
	}
	if _, known := model.FindResource(resource); !known {
		return "", "", false
	}
	return resource, id, true
}

// rewriteRecordRefArgs lets `atelier tags/7` work like `atelier records show tags 7`.
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten
// before parsing. Persistent flags may come first, so we look for the first
// positional token rather than argv[1].
func rewriteRecordRefArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Unknown flags are skipped without consuming a value so the ref is never eaten.
	valueFlags := map[string]bool{
		"--dir":       true,
		"--workspace": true,
		"--actor":     true,
		"--format":    true,
		"--log-level": true,
		"--log-file":  true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	rewrite := func(i int) []string {
		res, id, ok := recordRef(argv[i])
		if !ok {
			return argv
		}
		out := make([]string, 0, len(argv)+3)
		out = append(out, argv[:i]...)
		out = append(out, "records", "show", res, id)
		out = append(out, argv[i+1:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				return rewrite(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		return rewrite(i)
	}
	return argv
}

func main() {
	// A missing .env is fine; it only seeds ATELIER_* defaults.
	_ = godotenv.Load()

	os.Args = rewriteRecordRefArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
