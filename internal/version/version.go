package version

import "fmt"

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/ledger/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo сведения о сборке.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info возвращает сведения о текущей сборке.
func Info() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, Date: date}
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
