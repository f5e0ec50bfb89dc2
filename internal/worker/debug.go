package worker

import (
	"os"
	"strings"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("PDFBOT_WORKER_DEBUG"), "1")

func (d *Dispatcher) debugf(format string, args ...interface{}) {
	if workerDebugEnabled {
		d.logger.Debugf(format, args...)
	}
}
