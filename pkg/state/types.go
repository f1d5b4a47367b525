package state

import "path/filepath"

type Paths struct {
	DB    string
	Store string // pebble directory
	State string
	Tmp   string
	Tel   string
	Crash string
}

func PathsFor(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		DB:    dbPath,
		Store: filepath.Join(dbPath, "store"),

		State: statePath,
		Tmp:   filepath.Join(statePath, "tmp"),
		Tel:   filepath.Join(statePath, "telemetry"),
		Crash: filepath.Join(statePath, "crash"),
	}
}
