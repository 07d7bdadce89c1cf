package cache

import (
	"log"
	"os"

	"github.com/google/uuid"
)

// instanceLogger tags every line with a short correlation id so
// multi-cache processes can tell instances apart in shared log output,
// built on the plain standard-library "log" package.
type instanceLogger struct {
	id  string
	log *log.Logger
}

func newInstanceLogger() *instanceLogger {
	id := uuid.NewString()[:8]
	return &instanceLogger{
		id:  id,
		log: log.New(os.Stderr, "blockcache["+id+"] ", log.LstdFlags),
	}
}

func (l *instanceLogger) Printf(format string, args ...any) {
	l.log.Printf(format, args...)
}
