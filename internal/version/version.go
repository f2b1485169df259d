// Package version хранит сведения о сборке. Значения подставляются через
// -ldflags "-X github.com/vladislavdragonenkov/orderpay/internal/version.version=...".
package version

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

const unknown = "unknown"

var (
	version = "dev"
	commit  = unknown
	date    = unknown
)

// Build — сведения о сборке для логов и /healthz.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Get возвращает сведения о сборке. Если commit или date не заданы через ldflags,
// берёт их из VCS-данных, встроенных go build.
func Get() Build {
	b := Build{Version: version, Commit: commit, Date: date}
	if b.Commit != unknown && b.Date != unknown {
		return b
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = b.withVCS(info.Settings)
	}
	return b
}

func (b Build) withVCS(settings []debug.BuildSetting) Build {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && b.Commit == unknown && s.Value != "":
			b.Commit = s.Value
			if len(b.Commit) > 12 {
				b.Commit = b.Commit[:12]
			}
		case s.Key == "vcs.time" && b.Date == unknown && s.Value != "":
			b.Date = s.Value
		}
	}
	return b
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

// Fields — поля для стартовой записи в лог.
func (b Build) Fields() log.Fields {
	return log.Fields{
		"version": b.Version,
		"commit":  b.Commit,
		"built":   b.Date,
	}
}
