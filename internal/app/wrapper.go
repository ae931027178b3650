package wrapper

import (
	"os"

	backend "codeagent-wrapper/internal/backend"
	config "codeagent-wrapper/internal/config"
	ilogger "codeagent-wrapper/internal/logger"
)

const version = "3.0.0"

const defaultWorkdir = "."

const defaultBackendName = backend.DefaultName

type Config = config.Config

var (
	exitFn          = os.Exit
	selectBackendFn = backend.Select
)

func currentWrapperName() string { return ilogger.CurrentWrapperName() }

func init() {
	// Route backend config warnings into the wrapper log.
	backend.SetLogFuncs(logWarn, logError)
}
