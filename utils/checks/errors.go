package checks

import (
	"errors"

	"github.com/phuslu/log"
)

// Checks has its own package, so that commands can use it without importing the splitter

// CheckWithMessage logs err under message and exits with a non-zero status.
// A nil error is a no-op. Wrapped causes are logged from outermost to innermost.
func CheckWithMessage(err error, message string) {
	if err == nil {
		return
	}
	var causes []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		causes = append(causes, e.Error())
	}
	log.Fatal().Err(err).Strs("causes", causes).Msg(message)
}
