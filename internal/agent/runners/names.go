package runner

import (
	"path/filepath"
	"strings"
)

// MatchProcessName сравнивает имя процесса без учета регистра и расширения .exe
func MatchProcessName(procName, target string) bool {
	normalize := func(name string) string {
		name = strings.ToLower(filepath.Base(strings.TrimSpace(name)))
		return strings.TrimSuffix(name, ".exe")
	}
	return normalize(procName) != "" && normalize(procName) == normalize(target)
}
