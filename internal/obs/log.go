package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var sharedLogger = sync.OnceValue(func() *log.Logger {
	return log.New(os.Stdout, "", 0)
})

// Logger returns the process-wide line logger. It writes one JSON object per
// line to stdout so log collectors need no parser configuration.
func Logger() *log.Logger { return sharedLogger() }

// LogRequest marshals the fields into a single JSON line. It backs both the
// access-log middleware and the audit mirror; keys are caller-defined.
func LogRequest(fields map[string]any) {
	line, err := json.Marshal(fields)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"unserializable log fields"}`)
		return
	}
	Logger().Println(string(line))
}
